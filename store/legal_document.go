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
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/repository"
	"github.com/opencollective/ledger/secrets"
)

// StillNeededFunc reports whether the tax form doc was requested for is
// still required when its reminder is about to go out.
type StillNeededFunc func(ctx context.Context, doc *models.LegalDocument) (bool, error)

type LegalDocumentStore struct {
	db        bun.IDB
	cipher    *secrets.Cipher
	documents repository.Repository[models.LegalDocument]
	required  repository.Repository[models.RequiredLegalDocument]
	expenses  *ExpenseStore
}

// NewLegalDocumentStore returns a LegalDocumentStore reading paid totals
// from expenses.
func NewLegalDocumentStore(db bun.IDB, cipher *secrets.Cipher, expenses *ExpenseStore) *LegalDocumentStore {
	return &LegalDocumentStore{
		db:        db,
		cipher:    cipher,
		documents: repository.NewRepository[models.LegalDocument](db),
		required:  repository.NewRepository[models.RequiredLegalDocument](db),
		expenses:  expenses,
	}
}

// Get returns the document with id. The document link stays encrypted.
func (s *LegalDocumentStore) Get(ctx context.Context, id int64) (*models.LegalDocument, error) {
	return s.documents.GetOne(ctx, id)
}

// FindByTypeYearCollective returns the docType document of collectiveID
// for year.
func (s *LegalDocumentStore) FindByTypeYearCollective(ctx context.Context, docType models.LegalDocumentType, year int, collectiveID int64) (*models.LegalDocument, error) {
	return s.findByTypeYearCollective(ctx, s.documents, docType, year, collectiveID)
}

func (s *LegalDocumentStore) findByTypeYearCollective(ctx context.Context, repo repository.Repository[models.LegalDocument], docType models.LegalDocumentType, year int, collectiveID int64) (*models.LegalDocument, error) {
	return repo.First(ctx, "ld.document_type = ? AND ld.year = ? AND ld.collective_id = ?", docType, year, collectiveID)
}

// CreateTaxFormRequestToCollectiveIfNone returns the tax form of
// collectiveID for year, requesting it first when there is none. Only a
// new request produces an event.
func (s *LegalDocumentStore) CreateTaxFormRequestToCollectiveIfNone(ctx context.Context, collectiveID int64, year int) (*models.LegalDocument, []events.Event, error) {
	var (
		doc     *models.LegalDocument
		created bool
	)
	err := runInTx(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		repo := s.documents.Tx(tx)
		existing, err := s.findByTypeYearCollective(ctx, repo, models.LegalDocumentUSTaxForm, year, collectiveID)
		if err == nil {
			doc = existing
			return nil
		}
		if !repository.IsNotFound(err) {
			return err
		}
		doc = &models.LegalDocument{
			Year:          year,
			DocumentType:  models.LegalDocumentUSTaxForm,
			RequestStatus: models.LegalDocumentRequested,
			Service:       models.LegalDocumentServiceOpenCollective,
			CollectiveID:  collectiveID,
		}
		if err := doc.Validate(); err != nil {
			return err
		}
		if err := repo.Create(ctx, doc); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, errs.ErrAlreadyExists) {
		// Lost a race with a concurrent request; the other one wins.
		doc, err = s.FindByTypeYearCollective(ctx, models.LegalDocumentUSTaxForm, year, collectiveID)
		created = false
	}
	if err != nil {
		return nil, nil, err
	}
	if !created {
		return doc, nil, nil
	}
	return doc, []events.Event{event(events.TaxFormRequest, collectiveID, doc.Info())}, nil
}

// MarkAsReceived stores the encrypted link of the received form.
func (s *LegalDocumentStore) MarkAsReceived(ctx context.Context, id int64, service models.LegalDocumentService, documentLink string) (*models.LegalDocument, []events.Event, error) {
	doc, err := s.documents.GetOne(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sealed, err := s.cipher.Encode(documentLink)
	if err != nil {
		return nil, nil, err
	}
	doc.RequestStatus = models.LegalDocumentReceived
	if service != "" {
		doc.Service = service
	}
	doc.DocumentLink = sealed
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.documents.Update(ctx, doc, "request_status", "service", "document_link"); err != nil {
		return nil, nil, err
	}
	return doc, []events.Event{event(events.TaxFormReceived, doc.CollectiveID, doc.Info())}, nil
}

// DocumentLink returns the decrypted link of doc.
func (s *LegalDocumentStore) DocumentLink(doc *models.LegalDocument) (string, error) {
	return s.cipher.Decode(doc.DocumentLink)
}

// MarkAsInvalid rejects a received form. The payee is expected to submit a
// new one.
func (s *LegalDocumentStore) MarkAsInvalid(ctx context.Context, id int64, reason string) (*models.LegalDocument, []events.Event, error) {
	doc, err := s.documents.GetOne(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc.MarkInvalid(reason)
	if err := s.documents.Update(ctx, doc, "request_status", "data"); err != nil {
		return nil, nil, err
	}
	data := doc.Info()
	data["reason"] = reason
	return doc, []events.Event{event(events.TaxFormInvalidated, doc.CollectiveID, data)}, nil
}

// SendReminders stamps the reminder on every pending request in the
// reminder window that stillNeeded confirms, and returns one reminder event
// per stamped document. A document is reminded at most once.
func (s *LegalDocumentStore) SendReminders(ctx context.Context, now time.Time, stillNeeded StillNeededFunc) ([]*models.LegalDocument, []events.Event, error) {
	now = now.UTC()
	var candidates []*models.LegalDocument
	err := s.documents.NewSelect().Model(&candidates).
		Where("ld.request_status = ?", models.LegalDocumentRequested).
		Where("ld.created_at < ?", now.Add(-models.ReminderMinAge)).
		Where("ld.created_at > ?", now.Add(-models.ReminderMaxAge)).
		Order("ld.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	var (
		reminded []*models.LegalDocument
		evs      []events.Event
	)
	for _, doc := range candidates {
		if !doc.NeedsReminder(now) {
			continue
		}
		if stillNeeded != nil {
			needed, err := stillNeeded(ctx, doc)
			if err != nil {
				return reminded, evs, err
			}
			if !needed {
				logger.WithFields(logrus.Fields{"document": doc.ID, "collective": doc.CollectiveID}).Debug("tax form no longer needed, skipping reminder")
				continue
			}
		}
		doc.MarkReminderSent(now)
		if err := s.documents.Update(ctx, doc, "data"); err != nil {
			return reminded, evs, fmt.Errorf("failed to stamp reminder on legal document %d: %w", doc.ID, err)
		}
		reminded = append(reminded, doc)
		evs = append(evs, event(events.TaxFormRequestReminder, doc.CollectiveID, doc.Info()))
	}
	return reminded, evs, nil
}

// Require declares that hostID needs docType from its payees.
func (s *LegalDocumentStore) Require(ctx context.Context, hostID int64, docType models.LegalDocumentType) (*models.RequiredLegalDocument, error) {
	r := &models.RequiredLegalDocument{HostCollectiveID: hostID, DocumentType: docType}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	n, err := s.required.CreateIgnore(ctx, r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return s.required.First(ctx, "rld.host_collective_id = ? AND rld.document_type = ?", hostID, docType)
	}
	return r, nil
}

// HostRequires reports whether hostID requires docType from its payees.
func (s *LegalDocumentStore) HostRequires(ctx context.Context, hostID int64, docType models.LegalDocumentType) (bool, error) {
	return s.required.Exists(ctx, "host_collective_id = ? AND document_type = ?", hostID, docType)
}

// AccountsNeedingTaxForm returns the payees whose PAID expenses on hostID
// during year reach threshold and who have no valid received tax form.
func (s *LegalDocumentStore) AccountsNeedingTaxForm(ctx context.Context, hostID int64, year int, threshold int64) ([]int64, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	covered := s.db.NewSelect().
		TableExpr("legal_documents AS ld").
		Column("ld.collective_id").
		Where("ld.document_type = ?", models.LegalDocumentUSTaxForm).
		Where("ld.request_status = ?", models.LegalDocumentReceived).
		Where("ld.year >= ?", year-models.LegalDocumentValidityYears).
		Where("ld.year <= ?", year).
		Where("ld.deleted_at IS NULL")
	var ids []int64
	err := s.db.NewSelect().Model((*models.Expense)(nil)).
		Column("e.from_collective_id").
		Where("e.host_collective_id = ?", hostID).
		Where("e.status = ?", models.ExpenseStatusPaid).
		Where("e.incurred_at >= ?", start).
		Where("e.incurred_at < ?", start.AddDate(1, 0, 0)).
		Where("e.from_collective_id NOT IN (?)", covered).
		Group("e.from_collective_id").
		Having("SUM(e.amount) >= ?", threshold).
		Order("e.from_collective_id ASC").
		Scan(ctx, &ids)
	return ids, err
}

// NeedsTaxForm is the single account version of AccountsNeedingTaxForm.
// A zero hostID considers expenses paid by every host.
func (s *LegalDocumentStore) NeedsTaxForm(ctx context.Context, collectiveID int64, year int, hostID int64, threshold int64) (bool, error) {
	total, err := s.expenses.SumPaidForPayeeInYear(ctx, collectiveID, year, hostID)
	if err != nil || total < threshold {
		return false, err
	}
	covered, err := s.documents.Exists(ctx,
		"collective_id = ? AND document_type = ? AND request_status = ? AND year >= ? AND year <= ?",
		collectiveID, models.LegalDocumentUSTaxForm, models.LegalDocumentReceived, year-models.LegalDocumentValidityYears, year)
	if err != nil {
		return false, err
	}
	return !covered, nil
}

// StillNeeded adapts NeedsTaxForm to SendReminders, using the document
// year and the default threshold.
func (s *LegalDocumentStore) StillNeeded(ctx context.Context, doc *models.LegalDocument) (bool, error) {
	return s.NeedsTaxForm(ctx, doc.CollectiveID, doc.Year, 0, models.TaxFormThreshold)
}
