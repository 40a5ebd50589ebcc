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
	"testing"
	"time"
)

func TestLegalDocumentIsExpired(t *testing.T) {
	doc := &LegalDocument{Year: 2021}
	tests := []struct {
		year    int
		expired bool
	}{
		{2021, false},
		{2024, false},
		{2025, true},
	}
	for _, tt := range tests {
		now := time.Date(tt.year, 6, 1, 0, 0, 0, 0, time.UTC)
		if got := doc.IsExpired(now); got != tt.expired {
			t.Errorf("IsExpired in %d = %v, want %v", tt.year, got, tt.expired)
		}
	}
}

func TestLegalDocumentNeedsReminder(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	newDoc := func(age time.Duration) *LegalDocument {
		return &LegalDocument{
			RequestStatus: LegalDocumentRequested,
			Timestamps:    Timestamps{CreatedAt: now.Add(-age)},
		}
	}
	tests := []struct {
		name string
		doc  *LegalDocument
		want bool
	}{
		{"too recent", newDoc(24 * time.Hour), false},
		{"in window", newDoc(72 * time.Hour), true},
		{"too old", newDoc(8 * 24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.NeedsReminder(now); got != tt.want {
				t.Errorf("NeedsReminder = %v, want %v", got, tt.want)
			}
		})
	}

	received := newDoc(72 * time.Hour)
	received.RequestStatus = LegalDocumentReceived
	if received.NeedsReminder(now) {
		t.Error("received documents need no reminder")
	}

	reminded := newDoc(72 * time.Hour)
	reminded.MarkReminderSent(now.Add(-time.Hour))
	if reminded.NeedsReminder(now) {
		t.Error("a document is reminded at most once")
	}
	if !reminded.ReminderSentAt().Equal(now.Add(-time.Hour)) {
		t.Errorf("ReminderSentAt = %v", reminded.ReminderSentAt())
	}
}
