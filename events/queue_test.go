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

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/opencollective/ledger/types"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: task.Type(), Queue: QueueName}, nil
}

func TestQueueDispatcher(t *testing.T) {
	fake := &fakeEnqueuer{}
	d := NewQueueDispatcher(fake)
	err := d.Dispatch(context.Background(),
		Event{Type: CollectiveExpenseCreated, CollectiveID: 3, ExpenseID: 10, Data: types.JsonObject{"amount": 1000}},
		Event{Type: TaxFormRequest, CollectiveID: 4},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(fake.tasks))
	}
	if got := fake.tasks[0].Type(); got != "activity:collective.expense.created" {
		t.Errorf("task type = %s", got)
	}
	e, err := ParseTask(fake.tasks[0])
	if err != nil {
		t.Fatal(err)
	}
	if e.ExpenseID != 10 || e.CollectiveID != 3 || e.Data["amount"] != float64(1000) {
		t.Errorf("round tripped event = %+v", e)
	}
}

func TestQueueDispatcherError(t *testing.T) {
	boom := errors.New("redis down")
	d := NewQueueDispatcher(&fakeEnqueuer{err: boom})
	if err := d.Dispatch(context.Background(), Event{Type: OrderProcessed}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped enqueue error, got %v", err)
	}
}

func TestServeMuxRoutesActivities(t *testing.T) {
	rec := &Recorder{}
	mux := NewServeMux(rec)
	task, err := NewTask(Event{Type: CollectiveUpdatePublished, CollectiveID: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if len(rec.OfType(CollectiveUpdatePublished)) != 1 {
		t.Fatalf("recorded = %+v", rec.Events)
	}

	bad := asynq.NewTask(TaskPrefix+"broken", []byte("{"))
	if err := mux.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("malformed payload should skip retry, got %v", err)
	}
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	boom := errors.New("boom")
	failing := DispatcherFunc(func(context.Context, ...Event) error { return boom })
	err := Multi(a, failing, b).Dispatch(context.Background(), Event{Type: OrderCanceled})
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Error("every dispatcher should receive the events")
	}
}
