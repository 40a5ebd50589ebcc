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

package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type LegalDocumentType string

const LegalDocumentUSTaxForm LegalDocumentType = "US_TAX_FORM"

type LegalDocumentStatus string

const (
	LegalDocumentNotRequested LegalDocumentStatus = "NOT_REQUESTED"
	LegalDocumentRequested    LegalDocumentStatus = "REQUESTED"
	LegalDocumentReceived     LegalDocumentStatus = "RECEIVED"
	LegalDocumentError        LegalDocumentStatus = "ERROR"
	LegalDocumentInvalid      LegalDocumentStatus = "INVALID"
)

type LegalDocumentService string

const (
	LegalDocumentServiceDropbox        LegalDocumentService = "DROPBOX_FORMS"
	LegalDocumentServiceOpenCollective LegalDocumentService = "OPENCOLLECTIVE"
)

const (
	// LegalDocumentValidityYears is how many calendar years after its
	// year a received tax form stays valid.
	LegalDocumentValidityYears = 3

	// ReminderMinAge and ReminderMaxAge bound the age of a pending request
	// eligible for its single reminder.
	ReminderMinAge = 48 * time.Hour
	ReminderMaxAge = 7 * 24 * time.Hour

	// TaxFormThreshold is the yearly amount, in cents, paid to a payee
	// above which a tax form is needed.
	TaxFormThreshold int64 = 60000

	reminderSentAtKey = "reminderSentAt"
	invalidReasonKey  = "invalidReason"
)

// LegalDocument tracks a tax form requested from a payee for a year.
// DocumentLink is stored encrypted.
type LegalDocument struct {
	bun.BaseModel `bun:"table:legal_documents,alias:ld"`

	ID            int64                `bun:"id,pk,autoincrement" json:"id"`
	Year          int                  `bun:"year,notnull" json:"year" validate:"required,min=2015"`
	DocumentType  LegalDocumentType    `bun:"document_type,notnull" json:"documentType" validate:"required,oneof=US_TAX_FORM"`
	RequestStatus LegalDocumentStatus  `bun:"request_status,notnull" json:"requestStatus" validate:"required,oneof=NOT_REQUESTED REQUESTED RECEIVED ERROR INVALID"`
	Service       LegalDocumentService `bun:"service,notnull" json:"service" validate:"required,oneof=DROPBOX_FORMS OPENCOLLECTIVE"`
	DocumentLink  string               `bun:"document_link,nullzero" json:"-"`
	CollectiveID  int64                `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	Data          types.JsonObject     `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (d *LegalDocument) Validate() error {
	return validation.Struct("LegalDocument", d)
}

// IsExpired reports whether the document no longer covers now.
func (d *LegalDocument) IsExpired(now time.Time) bool {
	return d.Year+LegalDocumentValidityYears < now.Year()
}

// ReminderSentAt returns when the reminder went out, zero if never.
func (d *LegalDocument) ReminderSentAt() time.Time {
	s := d.Data.String(reminderSentAtKey)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MarkReminderSent records the reminder in Data.
func (d *LegalDocument) MarkReminderSent(at time.Time) {
	if d.Data == nil {
		d.Data = types.JsonObject{}
	}
	d.Data[reminderSentAtKey] = at.UTC().Format(time.RFC3339Nano)
}

// MarkInvalid flags the document INVALID and keeps reason in Data.
func (d *LegalDocument) MarkInvalid(reason string) {
	if d.Data == nil {
		d.Data = types.JsonObject{}
	}
	d.RequestStatus = LegalDocumentInvalid
	d.Data[invalidReasonKey] = reason
}

// NeedsReminder reports whether a REQUESTED document is in the reminder
// window at now and has not been reminded yet.
func (d *LegalDocument) NeedsReminder(now time.Time) bool {
	if d.RequestStatus != LegalDocumentRequested || !d.ReminderSentAt().IsZero() {
		return false
	}
	age := now.Sub(d.CreatedAt)
	return age > ReminderMinAge && age < ReminderMaxAge
}

func (d *LegalDocument) Info() Projection {
	return Projection{
		"id":            d.ID,
		"year":          d.Year,
		"documentType":  d.DocumentType,
		"requestStatus": d.RequestStatus,
		"service":       d.Service,
		"CollectiveId":  d.CollectiveID,
		"createdAt":     d.CreatedAt,
	}
}

func (*LegalDocument) Indexes() []Index {
	return []Index{{
		Name:    "legal_documents_collective_year_type_key",
		Columns: []string{"collective_id", "year", "document_type"},
		Unique:  true,
	}}
}

// RequiredLegalDocument declares that a host requires a document type from
// the payees of its collectives.
type RequiredLegalDocument struct {
	bun.BaseModel `bun:"table:required_legal_documents,alias:rld"`

	ID               int64             `bun:"id,pk,autoincrement" json:"id"`
	HostCollectiveID int64             `bun:"host_collective_id,notnull" json:"HostCollectiveId" validate:"required"`
	DocumentType     LegalDocumentType `bun:"document_type,notnull" json:"documentType" validate:"required,oneof=US_TAX_FORM"`
	Timestamps
}

func (r *RequiredLegalDocument) Validate() error {
	return validation.Struct("RequiredLegalDocument", r)
}

func (*RequiredLegalDocument) Indexes() []Index {
	return []Index{{
		Name:    "required_legal_documents_host_type_key",
		Columns: []string{"host_collective_id", "document_type"},
		Unique:  true,
	}}
}
