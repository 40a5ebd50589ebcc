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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/sanitize"
)

// PaymentProvider is the part of the payment processor subscriptions need.
type PaymentProvider interface {
	CancelSubscription(ctx context.Context, providerSubscriptionID, reason string) error
}

var errNoPaymentProvider = errors.New("no payment provider configured")

type OrderStore struct {
	db            bun.IDB
	tiers         repository.Repository[models.Tier]
	orders        repository.Repository[models.Order]
	subscriptions *SubscriptionStore
}

// NewOrderStore returns an OrderStore managing recurring orders through
// subscriptions.
func NewOrderStore(db bun.IDB, subscriptions *SubscriptionStore) *OrderStore {
	return &OrderStore{
		db:            db,
		tiers:         repository.NewRepository[models.Tier](db),
		orders:        repository.NewRepository[models.Order](db),
		subscriptions: subscriptions,
	}
}

// CreateTier inserts t with a slug unique within its collective.
func (s *OrderStore) CreateTier(ctx context.Context, t *models.Tier) (*models.Tier, error) {
	t.Currency = strings.ToUpper(t.Currency)
	base := sanitize.Slug(t.Slug, models.SlugMaxLength)
	if base == "" {
		base = sanitize.Slug(t.Name, models.SlugMaxLength)
	}
	if base == "" {
		base = strings.ToLower(string(t.Type))
	}
	slug, err := uniqueSlug(ctx, base, models.SlugMaxLength, func(ctx context.Context, slug string) (bool, error) {
		return withDeletedExists(ctx, s.tiers, "collective_id = ? AND slug = ?", t.CollectiveID, slug)
	})
	if err != nil {
		return nil, err
	}
	t.Slug = slug
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.tiers.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tier: %w", err)
	}
	return t, nil
}

// GetTier returns the tier with id.
func (s *OrderStore) GetTier(ctx context.Context, id int64) (*models.Tier, error) {
	return s.tiers.GetOne(ctx, id)
}

// AvailableQuantity returns the units left on tierID and false when the
// tier is unlimited.
func (s *OrderStore) AvailableQuantity(ctx context.Context, tierID int64) (int64, bool, error) {
	return s.availableQuantity(ctx, s.db, tierID)
}

func (s *OrderStore) availableQuantity(ctx context.Context, db bun.IDB, tierID int64) (int64, bool, error) {
	tier, err := s.tiers.Tx(db).GetOne(ctx, tierID)
	if err != nil {
		return 0, false, err
	}
	if tier.MaxQuantity == 0 {
		return 0, false, nil
	}
	var sold int64
	err = db.NewSelect().Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(o.quantity), 0)").
		Where("o.tier_id = ?", tierID).
		Where("o.status IN (?)", bun.In(models.OrderStatusesHoldingQuantity)).
		Scan(ctx, &sold)
	if err != nil {
		return 0, false, err
	}
	left, limited := tier.AvailableQuantity(sold)
	return left, limited, nil
}

// Create inserts o, refusing it when its tier has not enough units left.
func (s *OrderStore) Create(ctx context.Context, o *models.Order) (*models.Order, error) {
	o.Currency = strings.ToUpper(o.Currency)
	if o.Quantity == 0 {
		o.Quantity = 1
	}
	if o.Status == "" {
		o.Status = models.OrderStatusNew
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if o.TierID != 0 {
			left, limited, err := s.availableQuantity(ctx, tx, o.TierID)
			if err != nil {
				return err
			}
			if limited && left < o.Quantity {
				return errs.Invariant("No more units left for tier %d", o.TierID)
			}
		}
		return s.orders.Tx(tx).Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns the order with id.
func (s *OrderStore) Get(ctx context.Context, id int64) (*models.Order, error) {
	return s.orders.GetOne(ctx, id)
}

// MarkAsPaid records a successful charge. Recurring orders become ACTIVE
// and their subscription is activated.
func (s *OrderStore) MarkAsPaid(ctx context.Context, id int64) (*models.Order, []events.Event, error) {
	var order *models.Order
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		o, err := s.orders.Tx(tx).GetOne(ctx, id)
		if err != nil {
			return err
		}
		o.Status = models.OrderStatusPaid
		o.ProcessedAt = models.Now()
		if o.SubscriptionID != 0 {
			o.Status = models.OrderStatusActive
			if _, err := s.subscriptions.activate(ctx, tx, o.SubscriptionID); err != nil {
				return err
			}
		}
		if err := s.orders.Tx(tx).Update(ctx, o, "status", "processed_at"); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, []events.Event{orderEvent(events.OrderProcessed, order)}, nil
}

// MarkAsExpired marks the order EXPIRED.
func (s *OrderStore) MarkAsExpired(ctx context.Context, id int64) (*models.Order, error) {
	o, err := s.orders.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatusExpired
	if err := s.orders.Update(ctx, o, "status"); err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel cancels the order and deactivates its subscription. A failure of
// the payment provider leaves the order untouched.
func (s *OrderStore) Cancel(ctx context.Context, id int64, reason string) (*models.Order, []events.Event, error) {
	o, err := s.orders.GetOne(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var sub *models.Subscription
	if o.SubscriptionID != 0 {
		if sub, err = s.subscriptions.cancelWithProvider(ctx, o.SubscriptionID, reason); err != nil {
			return nil, nil, err
		}
	}
	err = runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if sub != nil {
			if err := s.subscriptions.deactivate(ctx, tx, sub, reason); err != nil {
				return err
			}
		}
		o.Status = models.OrderStatusCancelled
		return s.orders.Tx(tx).Update(ctx, o, "status")
	})
	if err != nil {
		return nil, nil, err
	}
	return o, []events.Event{orderEvent(events.OrderCanceled, o)}, nil
}

// ListForCollective returns the orders received by collectiveID, restricted
// to statuses when any are given.
func (s *OrderStore) ListForCollective(ctx context.Context, collectiveID int64, statuses ...models.OrderStatus) ([]*models.Order, error) {
	var out []*models.Order
	q := s.orders.NewSelect().Model(&out).Where("o.collective_id = ?", collectiveID)
	if len(statuses) > 0 {
		q = q.Where("o.status IN (?)", bun.In(statuses))
	}
	err := q.Order("o.id ASC").Scan(ctx)
	return out, err
}

func orderEvent(t events.Type, o *models.Order) events.Event {
	return events.Event{
		Type:             t,
		CollectiveID:     o.CollectiveID,
		FromCollectiveID: o.FromCollectiveID,
		UserID:           o.CreatedByUserID,
		OrderID:          o.ID,
		Data:             o.Activity(),
	}
}

type SubscriptionStore struct {
	db            bun.IDB
	subscriptions repository.Repository[models.Subscription]
	provider      PaymentProvider
}

// NewSubscriptionStore returns a SubscriptionStore cancelling PayPal
// subscriptions through provider.
func NewSubscriptionStore(db bun.IDB, provider PaymentProvider) *SubscriptionStore {
	return &SubscriptionStore{db: db, subscriptions: repository.NewRepository[models.Subscription](db), provider: provider}
}

// Create validates and stores sub.
func (s *SubscriptionStore) Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	sub.Currency = strings.ToUpper(sub.Currency)
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

// Get returns the subscription with id.
func (s *SubscriptionStore) Get(ctx context.Context, id int64) (*models.Subscription, error) {
	return s.subscriptions.GetOne(ctx, id)
}

// Activate marks the subscription active and schedules its next charge.
func (s *SubscriptionStore) Activate(ctx context.Context, id int64) (*models.Subscription, error) {
	return s.activate(ctx, s.db, id)
}

func (s *SubscriptionStore) activate(ctx context.Context, db bun.IDB, id int64) (*models.Subscription, error) {
	repo := s.subscriptions.Tx(db)
	sub, err := repo.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	now := models.Now()
	sub.IsActive = true
	sub.ActivatedAt = now
	sub.DeactivatedAt = time.Time{}
	sub.NextChargeDate = models.NextChargeDate(sub.Interval, now)
	sub.NextPeriodStart = sub.NextChargeDate
	sub.ChargeNumber++
	err = repo.Update(ctx, sub, "is_active", "activated_at", "deactivated_at", "next_charge_date", "next_period_start", "charge_number")
	return sub, err
}

// Deactivate stops the subscription. When it is backed by a PayPal
// subscription the provider is asked to cancel it first; its failures, or a
// missing provider, are reported as errs.ProviderError and leave the row
// untouched.
func (s *SubscriptionStore) Deactivate(ctx context.Context, id int64, reason string) (*models.Subscription, error) {
	sub, err := s.cancelWithProvider(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if err := s.deactivate(ctx, s.db, sub, reason); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionStore) cancelWithProvider(ctx context.Context, id int64, reason string) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.PaypalSubscriptionID == "" {
		return sub, nil
	}
	err = errNoPaymentProvider
	if s.provider != nil {
		err = s.provider.CancelSubscription(ctx, sub.PaypalSubscriptionID, reason)
	}
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"subscription":       sub.ID,
			"paypalSubscription": sub.PaypalSubscriptionID,
		}).Error("failed to cancel PayPal subscription")
		return nil, errs.NewProviderError("Failed to cancel PayPal subscription", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) deactivate(ctx context.Context, db bun.IDB, sub *models.Subscription, reason string) error {
	sub.IsActive = false
	sub.DeactivatedAt = models.Now()
	sub.DeactivationReason = reason
	return s.subscriptions.Tx(db).Update(ctx, sub, "is_active", "deactivated_at", "deactivation_reason")
}
