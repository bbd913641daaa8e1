// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

import "context"

// EventJournal is a thin facade over EventStore.AppendEvent. It exists so
// every state transition that needs to record an event goes through one
// narrow call surface, making the causal-ordering invariant
// enforceable by inspection of a handful of call sites rather than by
// auditing every Store caller.
type EventJournal struct {
	store EventStore
}

// NewEventJournal wraps store's event-append operation.
func NewEventJournal(store EventStore) *EventJournal {
	return &EventJournal{store: store}
}

// RunStarted records a RUN_STARTED event.
func (j *EventJournal) RunStarted(ctx context.Context, runID, message string) (*Event, error) {
	return j.store.AppendEvent(ctx, runID, nil, EventRunStarted, message)
}

// StepStarted records a STEP_STARTED event scoped to stepRunID.
func (j *EventJournal) StepStarted(ctx context.Context, runID, stepRunID, message string) (*Event, error) {
	return j.store.AppendEvent(ctx, runID, &stepRunID, EventStepStarted, message)
}

// StepSucceeded records a STEP_SUCCEEDED event scoped to stepRunID.
func (j *EventJournal) StepSucceeded(ctx context.Context, runID, stepRunID, message string) (*Event, error) {
	return j.store.AppendEvent(ctx, runID, &stepRunID, EventStepSucceeded, message)
}

// StepFailed records a STEP_FAILED event scoped to stepRunID.
func (j *EventJournal) StepFailed(ctx context.Context, runID, stepRunID, message string) (*Event, error) {
	return j.store.AppendEvent(ctx, runID, &stepRunID, EventStepFailed, message)
}

// RunSucceeded records a RUN_SUCCEEDED event.
func (j *EventJournal) RunSucceeded(ctx context.Context, runID, message string) (*Event, error) {
	return j.store.AppendEvent(ctx, runID, nil, EventRunSucceeded, message)
}

// RunFailed records a RUN_FAILED event.
func (j *EventJournal) RunFailed(ctx context.Context, runID, message string) (*Event, error) {
	return j.store.AppendEvent(ctx, runID, nil, EventRunFailed, message)
}
