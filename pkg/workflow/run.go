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

// Status is the lifecycle state of a WorkflowRun or StepRun.
type Status string

const (
	// StatusPending has not yet started.
	StatusPending Status = "PENDING"
	// StatusRunning is actively executing.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded is a terminal, absorbing success state.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed is a terminal, absorbing failure state.
	StatusFailed Status = "FAILED"
)

// IsTerminal reports whether s is an absorbing terminal status.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// WorkflowRun is a single execution instance of a Workflow.
type WorkflowRun struct {
	ID         string
	WorkflowID string
	Status     Status
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// StepRun is the execution state of one step within a run. WorkflowStepID
// is a snapshot taken at run-creation time, so edits to the parent
// workflow's step sequence (via updateWorkflow) never alter a live run's
// step identities.
type StepRun struct {
	ID             string
	WorkflowRunID  string
	WorkflowStepID string
	Status         Status
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// ApplyStatusTimestamps applies the shared timestamp rules for a status
// transition: startedAt is set the first time status becomes RUNNING and
// never cleared; finishedAt is set exactly once, on the first transition
// to a terminal status. Existing non-nil timestamps are never
// overwritten. Every Store implementation funnels its transitions
// through this one function so the two backends cannot drift.
func ApplyStatusTimestamps(status Status, startedAt, finishedAt *time.Time, now time.Time) (*time.Time, *time.Time) {
	if status == StatusRunning && startedAt == nil {
		t := now
		startedAt = &t
	}
	if status.IsTerminal() && finishedAt == nil {
		t := now
		finishedAt = &t
	}
	return startedAt, finishedAt
}
