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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/opencollective/ledger/utils"
)

const (
	// TaskPrefix namespaces activity tasks: activity:<event type>.
	TaskPrefix = "activity:"
	QueueName  = "activities"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher pushes every event as an asynq task. Tasks are enqueued
// once and never retried.
type QueueDispatcher struct {
	client Enqueuer
	logger *logrus.Logger
}

func NewQueueDispatcher(client Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{client: client, logger: utils.NewLogger("EVENTS")}
}

// NewRedisQueueDispatcher builds an asynq client for the redis at addr.
// The caller closes the returned client.
func NewRedisQueueDispatcher(addr string) (*QueueDispatcher, *asynq.Client) {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: addr})
	return NewQueueDispatcher(client), client
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, events ...Event) error {
	for _, e := range events {
		task, err := NewTask(e)
		if err != nil {
			return err
		}
		info, err := d.client.EnqueueContext(ctx, task)
		if err != nil {
			d.logger.WithError(err).WithField("type", e.Type).Error("failed to enqueue activity")
			return fmt.Errorf("failed to enqueue %s: %w", e.Type, err)
		}
		d.logger.WithFields(logrus.Fields{"type": e.Type, "task": info.ID}).Debug("activity enqueued")
	}
	return nil
}

// NewTask serializes e into an asynq task routed to QueueName.
func NewTask(e Event) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	return asynq.NewTask(
		TaskPrefix+string(e.Type),
		payload,
		asynq.MaxRetry(0),
		asynq.Queue(QueueName),
		asynq.Timeout(30*time.Second),
	), nil
}

// ParseTask decodes the event carried by an activity task.
func ParseTask(t *asynq.Task) (Event, error) {
	var e Event
	if !strings.HasPrefix(t.Type(), TaskPrefix) {
		return e, fmt.Errorf("not an activity task: %s", t.Type())
	}
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return e, fmt.Errorf("failed to unmarshal activity payload: %w", err)
	}
	return e, nil
}

// NewServeMux routes every activity task to next, typically an
// ActivityRecorder on the worker side.
func NewServeMux(next Dispatcher) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPrefix, func(ctx context.Context, t *asynq.Task) error {
		e, err := ParseTask(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return next.Dispatch(ctx, e)
	})
	return mux
}
