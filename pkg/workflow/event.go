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

import "time"

// EventType is the semantic type of a recorded state transition.
type EventType string

const (
	EventRunStarted     EventType = "RUN_STARTED"
	EventStepStarted    EventType = "STEP_STARTED"
	EventStepSucceeded  EventType = "STEP_SUCCEEDED"
	EventStepFailed     EventType = "STEP_FAILED"
	EventRunSucceeded   EventType = "RUN_SUCCEEDED"
	EventRunFailed      EventType = "RUN_FAILED"
)

// Event is an immutable record of one state transition in a run. The
// ordered sequence of a run's events, by CreatedAt ascending with a
// stable tiebreak, reconstructs its full causal history.
type Event struct {
	ID            string
	WorkflowRunID string
	StepRunID     *string
	Type          EventType
	Message       string
	CreatedAt     time.Time
}
