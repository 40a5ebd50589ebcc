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

// Package ledger wires the stores of the fiscal-sponsorship ledger on one
// database connection and delivers the events they produce.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/secrets"
	"github.com/opencollective/ledger/store"
	"github.com/opencollective/ledger/types"
	"github.com/opencollective/ledger/utils"
)

var logger = utils.NewLogger("LEDGER")

// Options carries the collaborators living outside the database. Nil
// fields fall back to recording activities, no payment provider and a card
// provider accepting every call.
type Options struct {
	Dispatcher      events.Dispatcher
	PaymentProvider store.PaymentProvider
	CardProvider    store.CardProvider
}

type Ledger struct {
	db         *bun.DB
	dispatcher events.Dispatcher

	Collectives       *store.CollectiveStore
	Users             *store.UserStore
	Members           *store.MemberStore
	Expenses          *store.ExpenseStore
	RecurringExpenses *store.RecurringExpenseStore
	PayoutMethods     *store.PayoutMethodStore
	Subscriptions     *store.SubscriptionStore
	Orders            *store.OrderStore
	Transactions      *store.TransactionStore
	Settlements       *store.SettlementStore
	LegalDocuments    *store.LegalDocumentStore
	ConnectedAccounts *store.ConnectedAccountStore
	VirtualCards      *store.VirtualCardStore
	Applications      *store.ApplicationStore
	Followers         *store.FollowerStore
	Comments          *store.CommentStore
	Conversations     *store.ConversationStore
	Updates           *store.UpdateStore
	Reactions         *store.ReactionStore
	SocialLinks       *store.SocialLinkStore
	Imports           *store.TransactionsImportStore

	Activities Service[models.Activity]
}

// New builds every store on db. cipher seals the encrypted columns.
func New(db *bun.DB, cipher *secrets.Cipher, opts Options) *Ledger {
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.NewActivityRecorder(db)
	}
	l := &Ledger{db: db, dispatcher: opts.Dispatcher}

	l.Collectives = store.NewCollectiveStore(db)
	l.Users = store.NewUserStore(db, cipher, l.Collectives)
	l.Members = store.NewMemberStore(db)
	l.Expenses = store.NewExpenseStore(db)
	l.RecurringExpenses = store.NewRecurringExpenseStore(db, l.Expenses)
	l.PayoutMethods = store.NewPayoutMethodStore(db)
	l.Subscriptions = store.NewSubscriptionStore(db, opts.PaymentProvider)
	l.Orders = store.NewOrderStore(db, l.Subscriptions)
	l.Transactions = store.NewTransactionStore(db)
	l.Settlements = store.NewSettlementStore(db)
	l.LegalDocuments = store.NewLegalDocumentStore(db, cipher, l.Expenses)
	l.ConnectedAccounts = store.NewConnectedAccountStore(db, cipher)
	l.VirtualCards = store.NewVirtualCardStore(db, cipher, opts.CardProvider)
	l.Applications = store.NewApplicationStore(db, cipher)
	l.Followers = store.NewFollowerStore(db)
	l.Comments = store.NewCommentStore(db, l.Followers)
	l.Conversations = store.NewConversationStore(db, l.Comments)
	l.Updates = store.NewUpdateStore(db)
	l.Reactions = store.NewReactionStore(db)
	l.SocialLinks = store.NewSocialLinkStore(db)
	l.Imports = store.NewTransactionsImportStore(db)
	l.Activities = NewService[models.Activity](db)
	return l
}

func (l *Ledger) DB() *bun.DB { return l.db }

// ActivityFeed pages through the activities where collectiveID is the
// collective, the source or the host, newest first.
func (l *Ledger) ActivityFeed(ctx context.Context, collectiveID int64, offset, limit int) (*types.Collection[models.Activity], error) {
	filter := types.NewQueryFilter("act.collective_id = ? OR act.from_collective_id = ? OR act.host_collective_id = ?",
		collectiveID, collectiveID, collectiveID)
	return l.Activities.Page(ctx, types.NewPageRequest(offset, limit, filter, "act.created_at DESC", "act.id DESC"))
}

// Dispatch hands evs to the dispatcher. It is called once the operation
// that produced them committed.
func (l *Ledger) Dispatch(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	if err := l.dispatcher.Dispatch(ctx, evs...); err != nil {
		logger.WithError(err).WithField("events", len(evs)).Error("failed to dispatch events")
		return err
	}
	return nil
}

// DraftRecurringExpenses drafts the next expense of every series due at
// now. A failing series is logged and skipped; the joined errors are
// returned with the drafts that succeeded.
func (l *Ledger) DraftRecurringExpenses(ctx context.Context, now time.Time) ([]*models.Expense, error) {
	due, err := l.RecurringExpenses.GetRecurringExpensesDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due recurring expenses: %w", err)
	}
	var (
		drafts []*models.Expense
		failed []error
	)
	for _, r := range due {
		draft, evs, err := l.RecurringExpenses.CreateNextExpense(ctx, r)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{"recurringExpense": r.ID}).Error("failed to draft recurring expense")
			failed = append(failed, fmt.Errorf("recurring expense %d: %w", r.ID, err))
			continue
		}
		drafts = append(drafts, draft)
		if err := l.Dispatch(ctx, evs...); err != nil {
			failed = append(failed, err)
		}
	}
	logger.WithFields(logrus.Fields{"due": len(due), "drafted": len(drafts)}).Info("recurring expenses drafted")
	return drafts, errors.Join(failed...)
}

// SendTaxFormReminders reminds the payees whose tax form request is still
// pending and still needed at now.
func (l *Ledger) SendTaxFormReminders(ctx context.Context, now time.Time) ([]*models.LegalDocument, error) {
	reminded, evs, err := l.LegalDocuments.SendReminders(ctx, now, l.LegalDocuments.StillNeeded)
	if dispatchErr := l.Dispatch(ctx, evs...); dispatchErr != nil {
		err = errors.Join(err, dispatchErr)
	}
	logger.WithField("reminded", len(reminded)).Info("tax form reminders sent")
	return reminded, err
}
