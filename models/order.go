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
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/errs"
	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/validation"
)

type TierType string

const (
	TierTypeTier       TierType = "TIER"
	TierTypeMembership TierType = "MEMBERSHIP"
	TierTypeDonation   TierType = "DONATION"
	TierTypeTicket     TierType = "TICKET"
	TierTypeService    TierType = "SERVICE"
	TierTypeProduct    TierType = "PRODUCT"
)

type AmountType string

const (
	AmountTypeFixed    AmountType = "FIXED"
	AmountTypeFlexible AmountType = "FLEXIBLE"
)

type ContributionInterval string

const (
	ContributionMonthly  ContributionInterval = "month"
	ContributionYearly   ContributionInterval = "year"
	ContributionFlexible ContributionInterval = "flexible"
)

// Tier is a contribution option offered by a collective.
type Tier struct {
	bun.BaseModel `bun:"table:tiers,alias:tr"`

	ID            int64                `bun:"id,pk,autoincrement" json:"id"`
	CollectiveID  int64                `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	Name          string               `bun:"name,notnull" json:"name" validate:"required,max=255"`
	Slug          string               `bun:"slug,notnull" json:"slug" validate:"required,max=255,slug"`
	Type          TierType             `bun:"type,notnull" json:"type" validate:"required,oneof=TIER MEMBERSHIP DONATION TICKET SERVICE PRODUCT"`
	AmountType    AmountType           `bun:"amount_type,notnull" json:"amountType" validate:"required,oneof=FIXED FLEXIBLE"`
	Amount        int64                `bun:"amount" json:"amount" validate:"min=0"`
	MinimumAmount int64                `bun:"minimum_amount" json:"minimumAmount" validate:"min=0"`
	Presets       []int64              `bun:"presets" json:"presets,omitempty"`
	Currency      string               `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	Interval      ContributionInterval `bun:"interval" json:"interval,omitempty" validate:"omitempty,oneof=month year flexible"`
	MaxQuantity   int64                `bun:"max_quantity" json:"maxQuantity,omitempty" validate:"min=0"`
	Goal          int64                `bun:"goal" json:"goal,omitempty" validate:"min=0"`
	Description   string               `bun:"description" json:"description,omitempty" validate:"max=510"`
	Timestamps
}

func (t *Tier) Validate() error {
	if err := validation.Struct("Tier", t); err != nil {
		return err
	}
	if t.AmountType == AmountTypeFixed && t.Amount <= 0 {
		return errs.NewValidationError("Tier", "amount", "is required for a fixed amount tier")
	}
	for _, preset := range t.Presets {
		if preset < t.MinimumAmount {
			return errs.NewValidationError("Tier", "presets", fmt.Sprintf("must be at least the minimum amount %d", t.MinimumAmount))
		}
	}
	return nil
}

// AvailableQuantity returns how many units are left given the units already
// sold, and false when the tier is unlimited.
func (t *Tier) AvailableQuantity(sold int64) (int64, bool) {
	if t.MaxQuantity == 0 {
		return 0, false
	}
	if left := t.MaxQuantity - sold; left > 0 {
		return left, true
	}
	return 0, true
}

func (t *Tier) Info() Projection {
	return Projection{
		"id":            t.ID,
		"name":          t.Name,
		"slug":          t.Slug,
		"type":          t.Type,
		"amountType":    t.AmountType,
		"amount":        t.Amount,
		"minimumAmount": t.MinimumAmount,
		"presets":       t.Presets,
		"currency":      t.Currency,
		"interval":      t.Interval,
		"CollectiveId":  t.CollectiveID,
	}
}

func (t *Tier) Minimal() Projection {
	return Projection{"id": t.ID, "type": t.Type, "name": t.Name, "amount": t.Amount}
}

func (*Tier) Indexes() []Index {
	return []Index{{Name: "tiers_collective_id_slug_key", Columns: []string{"collective_id", "slug"}, Unique: true}}
}

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusActive     OrderStatus = "ACTIVE"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusExpired    OrderStatus = "EXPIRED"
	OrderStatusError      OrderStatus = "ERROR"
	OrderStatusRejected   OrderStatus = "REJECTED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
)

// OrderStatusesHoldingQuantity are the statuses whose quantity counts
// against a tier's stock.
var OrderStatusesHoldingQuantity = []OrderStatus{OrderStatusNew, OrderStatusPending, OrderStatusPaid, OrderStatusActive, OrderStatusProcessing}

// Order is a contribution commitment from FromCollectiveID to CollectiveID.
// Recurring orders point at a Subscription.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                int64                `bun:"id,pk,autoincrement" json:"id"`
	CollectiveID      int64                `bun:"collective_id,notnull" json:"CollectiveId" validate:"required"`
	FromCollectiveID  int64                `bun:"from_collective_id,notnull" json:"FromCollectiveId" validate:"required"`
	CreatedByUserID   int64                `bun:"created_by_user_id,nullzero" json:"CreatedByUserId,omitempty"`
	TierID            int64                `bun:"tier_id,nullzero" json:"TierId,omitempty"`
	SubscriptionID    int64                `bun:"subscription_id,nullzero" json:"SubscriptionId,omitempty"`
	TotalAmount       int64                `bun:"total_amount,notnull" json:"totalAmount" validate:"min=0"`
	PlatformTipAmount int64                `bun:"platform_tip_amount" json:"platformTipAmount,omitempty" validate:"min=0"`
	Currency          string               `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	Quantity          int64                `bun:"quantity,notnull" json:"quantity" validate:"min=1"`
	Interval          ContributionInterval `bun:"interval" json:"interval,omitempty" validate:"omitempty,oneof=month year"`
	Status            OrderStatus          `bun:"status,notnull" json:"status" validate:"required,oneof=NEW PENDING PAID ACTIVE CANCELLED EXPIRED ERROR REJECTED REFUNDED PROCESSING"`
	Description       string               `bun:"description" json:"description,omitempty" validate:"max=255"`
	Data              types.JsonObject     `bun:"data" json:"data,omitempty"`
	ProcessedAt       time.Time            `bun:"processed_at,nullzero" json:"processedAt,omitempty"`
	Timestamps
}

func (o *Order) Validate() error {
	if err := validation.Struct("Order", o); err != nil {
		return err
	}
	if o.PlatformTipAmount > o.TotalAmount {
		return errs.NewValidationError("Order", "platformTipAmount", "cannot exceed the total amount")
	}
	return nil
}

func (o *Order) IsRecurring() bool { return o.Interval != "" }

func (o *Order) Info() Projection {
	return Projection{
		"id":                o.ID,
		"totalAmount":       o.TotalAmount,
		"platformTipAmount": o.PlatformTipAmount,
		"currency":          o.Currency,
		"quantity":          o.Quantity,
		"interval":          o.Interval,
		"status":            o.Status,
		"description":       o.Description,
		"CollectiveId":      o.CollectiveID,
		"FromCollectiveId":  o.FromCollectiveID,
		"TierId":            idOrNil(o.TierID),
		"processedAt":       timeOrNil(o.ProcessedAt),
		"createdAt":         o.CreatedAt,
	}
}

func (o *Order) Activity() Projection {
	p := o.Info()
	p["SubscriptionId"] = idOrNil(o.SubscriptionID)
	return p
}

func (*Order) Indexes() []Index {
	return []Index{
		{Name: "orders_collective_id_status_idx", Columns: []string{"collective_id", "status"}},
		{Name: "orders_subscription_id_idx", Columns: []string{"subscription_id"}},
		{Name: "orders_tier_id_idx", Columns: []string{"tier_id"}},
	}
}

// Subscription tracks the billing state of a recurring order. The charge
// itself is performed by the payment provider.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:sub"`

	ID                   int64                `bun:"id,pk,autoincrement" json:"id"`
	Amount               int64                `bun:"amount,notnull" json:"amount" validate:"min=0"`
	Currency             string               `bun:"currency,notnull" json:"currency" validate:"required,len=3,uppercase"`
	Interval             ContributionInterval `bun:"interval,notnull" json:"interval" validate:"required,oneof=month year"`
	Quantity             int64                `bun:"quantity" json:"quantity" validate:"min=0"`
	IsActive             bool                 `bun:"is_active,notnull" json:"isActive"`
	ActivatedAt          time.Time            `bun:"activated_at,nullzero" json:"activatedAt,omitempty"`
	DeactivatedAt        time.Time            `bun:"deactivated_at,nullzero" json:"deactivatedAt,omitempty"`
	DeactivationReason   string               `bun:"deactivation_reason" json:"deactivationReason,omitempty"`
	NextChargeDate       time.Time            `bun:"next_charge_date,nullzero" json:"nextChargeDate,omitempty"`
	NextPeriodStart      time.Time            `bun:"next_period_start,nullzero" json:"nextPeriodStart,omitempty"`
	ChargeNumber         int64                `bun:"charge_number" json:"chargeNumber"`
	PaypalSubscriptionID string               `bun:"paypal_subscription_id,nullzero" json:"paypalSubscriptionId,omitempty"`
	Data                 types.JsonObject     `bun:"data" json:"data,omitempty"`
	Timestamps
}

func (s *Subscription) Validate() error {
	return validation.Struct("Subscription", s)
}

// NextChargeDate returns the charge date following from for interval.
func NextChargeDate(interval ContributionInterval, from time.Time) time.Time {
	switch interval {
	case ContributionYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

func (s *Subscription) Info() Projection {
	return Projection{
		"id":             s.ID,
		"amount":         s.Amount,
		"currency":       s.Currency,
		"interval":       s.Interval,
		"isActive":       s.IsActive,
		"nextChargeDate": timeOrNil(s.NextChargeDate),
		"chargeNumber":   s.ChargeNumber,
	}
}
