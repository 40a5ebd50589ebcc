/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/types"
)

type PayoutMethodStore struct {
	db      bun.IDB
	methods repository.Repository[models.PayoutMethod]
}

// NewPayoutMethodStore returns a PayoutMethodStore on db.
func NewPayoutMethodStore(db bun.IDB) *PayoutMethodStore {
	return &PayoutMethodStore{db: db, methods: repository.NewRepository[models.PayoutMethod](db)}
}

// Create validates the data of pm against its type and stores it.
func (s *PayoutMethodStore) Create(ctx context.Context, pm *models.PayoutMethod) (*models.PayoutMethod, error) {
	if pm.Data == nil {
		pm.Data = types.JsonObject{}
	}
	if err := pm.Validate(); err != nil {
		return nil, err
	}
	if err := s.methods.Create(ctx, pm); err != nil {
		return nil, fmt.Errorf("failed to create payout method: %w", err)
	}
	return pm, nil
}

// Get returns the payout method with id.
func (s *PayoutMethodStore) Get(ctx context.Context, id int64) (*models.PayoutMethod, error) {
	return s.methods.GetOne(ctx, id)
}

// GetOrCreateFromData reuses the saved method of the same collective and
// type holding identical data, creating pm otherwise.
func (s *PayoutMethodStore) GetOrCreateFromData(ctx context.Context, pm *models.PayoutMethod) (*models.PayoutMethod, error) {
	saved, err := s.methods.Query(ctx, "pm.collective_id = ? AND pm.type = ? AND pm.is_saved = ?", pm.CollectiveID, pm.Type, true)
	if err != nil {
		return nil, err
	}
	for _, existing := range saved {
		if existing.SameData(pm.Data) {
			return existing, nil
		}
	}
	return s.Create(ctx, pm)
}

// ListForCollective returns the methods of collectiveID, only the saved
// ones when savedOnly is set.
func (s *PayoutMethodStore) ListForCollective(ctx context.Context, collectiveID int64, savedOnly bool) ([]*models.PayoutMethod, error) {
	filter := &types.QueryFilter{Schema: "pm.collective_id = ?", Args: []interface{}{collectiveID}}
	if savedOnly {
		filter.Schema += " AND pm.is_saved = ?"
		filter.Args = append(filter.Args, true)
	}
	return s.methods.List(ctx, filter, "pm.id ASC")
}

// Delete soft deletes the payout method.
func (s *PayoutMethodStore) Delete(ctx context.Context, id int64) error {
	return s.methods.Delete(ctx, id)
}
