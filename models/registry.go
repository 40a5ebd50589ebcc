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

import "github.com/opencollective/ledger/database"

// Table creation order: accounts first, then the rows pointing at them.
const (
	priorityAccounts = 10 * (iota + 1)
	priorityCredentials
	priorityCatalog
	priorityFlows
	priorityDetails
	priorityContent
	priorityActivity
)

func init() {
	database.Register(priorityAccounts, (*Collective)(nil))
	database.Register(priorityAccounts+1, (*User)(nil))
	database.Register(priorityCredentials,
		(*UserTwoFactorMethod)(nil),
		(*ConnectedAccount)(nil),
		(*Application)(nil),
		(*PayoutMethod)(nil),
		(*VirtualCard)(nil),
	)
	database.Register(priorityCredentials+1, (*UserToken)(nil), (*PersonalToken)(nil), (*OAuthAuthorizationCode)(nil))
	database.Register(priorityCatalog, (*Tier)(nil), (*SocialLink)(nil), (*RequiredLegalDocument)(nil), (*LegalDocument)(nil))
	database.Register(priorityCatalog+1, (*Member)(nil), (*MemberInvitation)(nil))
	database.Register(priorityFlows, (*RecurringExpense)(nil), (*Subscription)(nil))
	database.Register(priorityFlows+1, (*Expense)(nil), (*Order)(nil))
	database.Register(priorityFlows+2, (*Transaction)(nil))
	database.Register(priorityFlows+3, (*TransactionSettlement)(nil))
	database.Register(priorityDetails, (*ExpenseItem)(nil), (*ExpenseAttachedFile)(nil), (*TransactionsImport)(nil))
	database.Register(priorityDetails+1, (*TransactionsImportRow)(nil))
	database.Register(priorityContent, (*Update)(nil), (*Conversation)(nil))
	database.Register(priorityContent+1, (*Comment)(nil), (*ConversationFollower)(nil))
	database.Register(priorityContent+2, (*EmojiReaction)(nil))
	database.Register(priorityActivity, (*Activity)(nil))

	database.RegisterForeignKeys(
		fk("collectives", "host_collective_id", "collectives", "SET NULL"),
		fk("collectives", "parent_collective_id", "collectives", "SET NULL"),
		fk("users", "collective_id", "collectives", "SET NULL"),
		fk("user_two_factor_methods", "user_id", "users", "CASCADE"),
		fk("members", "collective_id", "collectives", "CASCADE"),
		fk("members", "member_collective_id", "collectives", "CASCADE"),
		fk("member_invitations", "collective_id", "collectives", "CASCADE"),
		fk("member_invitations", "member_collective_id", "collectives", "CASCADE"),
		fk("expenses", "collective_id", "collectives", "CASCADE"),
		fk("expenses", "from_collective_id", "collectives", "CASCADE"),
		fk("expenses", "user_id", "users", "SET NULL"),
		fk("expenses", "payout_method_id", "payout_methods", "SET NULL"),
		fk("expenses", "virtual_card_id", "virtual_cards", "SET NULL"),
		fk("expenses", "recurring_expense_id", "recurring_expenses", "SET NULL"),
		fk("expense_items", "expense_id", "expenses", "CASCADE"),
		fk("expense_attached_files", "expense_id", "expenses", "CASCADE"),
		fk("orders", "collective_id", "collectives", "CASCADE"),
		fk("orders", "tier_id", "tiers", "SET NULL"),
		fk("orders", "subscription_id", "subscriptions", "SET NULL"),
		fk("transactions", "collective_id", "collectives", "CASCADE"),
		fk("transactions", "expense_id", "expenses", "SET NULL"),
		fk("transactions", "order_id", "orders", "SET NULL"),
		fk("transaction_settlements", "expense_id", "expenses", "SET NULL"),
		fk("legal_documents", "collective_id", "collectives", "CASCADE"),
		fk("required_legal_documents", "host_collective_id", "collectives", "CASCADE"),
		fk("comments", "expense_id", "expenses", "CASCADE"),
		fk("comments", "update_id", "updates", "CASCADE"),
		fk("comments", "conversation_id", "conversations", "CASCADE"),
		fk("emoji_reactions", "comment_id", "comments", "CASCADE"),
		fk("emoji_reactions", "update_id", "updates", "CASCADE"),
		fk("transactions_import_rows", "transactions_import_id", "transactions_imports", "CASCADE"),
	)
}

func fk(table, column, reference, onDelete string) database.ForeignKeyConstraint {
	return database.ForeignKeyConstraint{
		Table:           table,
		Column:          column,
		ReferenceTable:  reference,
		ReferenceColumn: "id",
		OnDelete:        onDelete,
		OnUpdate:        "CASCADE",
	}
}
