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

// Package events carries the side effects of store operations. Stores
// return Events next to the entities they changed; a Dispatcher delivers
// them once the surrounding transaction committed.
package events

import (
	"context"
	"errors"

	"github.com/opencollective/ledger/types"
)

type Type string

const (
	CollectiveCreated               Type = "collective.created"
	CollectiveExpenseCreated        Type = "collective.expense.created"
	CollectiveExpenseApproved       Type = "collective.expense.approved"
	CollectiveExpenseRejected       Type = "collective.expense.rejected"
	CollectiveExpensePaid           Type = "collective.expense.paid"
	CollectiveExpenseProcessing     Type = "collective.expense.processing"
	CollectiveExpenseError          Type = "collective.expense.error"
	CollectiveExpenseMarkedAsSpam   Type = "collective.expense.spam"
	CollectiveExpenseCanceled       Type = "collective.expense.canceled"
	CollectiveExpenseRecurringDraft Type = "collective.expense.recurring.drafted"
	CollectiveMemberInvited         Type = "collective.member.invited"
	CollectiveMemberCreated         Type = "collective.member.created"
	MemberInvitationDeclined        Type = "collective.member.invitation.declined"
	CollectiveCommentCreated        Type = "collective.comment.created"
	CollectiveConversationCreated   Type = "collective.conversation.created"
	CollectiveUpdatePublished       Type = "collective.update.published"
	OrderProcessed                  Type = "order.processed"
	OrderCanceled                   Type = "order.canceled"
	SubscriptionActivated           Type = "subscription.activated"
	SubscriptionCanceled            Type = "subscription.canceled"
	TaxFormRequest                  Type = "taxform.request"
	TaxFormRequestReminder          Type = "taxform.request.reminder"
	TaxFormReceived                 Type = "taxform.received"
	TaxFormInvalidated              Type = "taxform.invalidated"
	VirtualCardCreated              Type = "virtualcard.created"
)

// Event is a domain notification produced by a store operation.
type Event struct {
	Type             Type             `json:"type"`
	CollectiveID     int64            `json:"CollectiveId,omitempty"`
	FromCollectiveID int64            `json:"FromCollectiveId,omitempty"`
	HostCollectiveID int64            `json:"HostCollectiveId,omitempty"`
	UserID           int64            `json:"UserId,omitempty"`
	ExpenseID        int64            `json:"ExpenseId,omitempty"`
	OrderID          int64            `json:"OrderId,omitempty"`
	TransactionID    int64            `json:"TransactionId,omitempty"`
	Data             types.JsonObject `json:"data,omitempty"`
}

// Dispatcher delivers events. Implementations must not assume they run
// inside the transaction that produced the events.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...Event) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, events ...Event) error

func (f DispatcherFunc) Dispatch(ctx context.Context, events ...Event) error {
	return f(ctx, events...)
}

// Discard drops every event.
var Discard Dispatcher = DispatcherFunc(func(context.Context, ...Event) error { return nil })

// Multi fans events out to every dispatcher and joins their errors.
func Multi(dispatchers ...Dispatcher) Dispatcher {
	return DispatcherFunc(func(ctx context.Context, events ...Event) error {
		var errs []error
		for _, d := range dispatchers {
			if err := d.Dispatch(ctx, events...); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Recorder collects events in memory. Tests use it to assert on side
// effects.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Dispatch(_ context.Context, events ...Event) error {
	r.Events = append(r.Events, events...)
	return nil
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
