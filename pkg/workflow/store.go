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

import (
	"context"
	"time"
)

// Clock yields the current UTC time. The core consumes it as a boundary
// contract rather than calling time.Now() directly, so tests can control
// timestamps deterministically.
type Clock interface {
	Now() time.Time
}

// IDGenerator yields collision-resistant opaque string identifiers.
type IDGenerator interface {
	NewID() string
}

// WorkflowStore persists Workflow definitions and their steps.
type WorkflowStore interface {
	// ListWorkflows returns all workflows, newest first, each with its
	// steps ordered by Order ascending.
	ListWorkflows(ctx context.Context) ([]*Workflow, error)

	// GetWorkflow returns a workflow with its steps ordered by Order
	// ascending, or a *errors.NotFoundError if absent.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	// CreateWorkflow persists wf and its steps atomically. wf.ID and
	// every step's ID must already be populated by the caller.
	CreateWorkflow(ctx context.Context, wf *Workflow) error

	// UpdateWorkflow replaces an existing workflow's steps atomically:
	// all existing steps are deleted and wf.Steps reinserted. Returns a
	// *errors.NotFoundError if wf.ID is unknown.
	UpdateWorkflow(ctx context.Context, wf *Workflow) error
}

// RunStore persists WorkflowRuns.
type RunStore interface {
	// CreateRun persists run and stepRuns atomically. run.ID and every
	// step-run's ID must already be populated by the caller.
	CreateRun(ctx context.Context, run *WorkflowRun, stepRuns []*StepRun) error

	// GetRun returns a run, or a *errors.NotFoundError if absent.
	GetRun(ctx context.Context, id string) (*WorkflowRun, error)

	// ListRuns returns all runs for workflowID, newest first.
	ListRuns(ctx context.Context, workflowID string) ([]*WorkflowRun, error)

	// SetRunStatus atomically transitions run to status, applying the
	// startedAt/finishedAt timestamp rules, and returns the updated run.
	// Returns a *errors.NotFoundError if runID is unknown.
	SetRunStatus(ctx context.Context, runID string, status Status) (*WorkflowRun, error)
}

// StepRunStore persists StepRuns.
type StepRunStore interface {
	// GetStepRun returns a step run, or a *errors.NotFoundError if absent.
	GetStepRun(ctx context.Context, id string) (*StepRun, error)

	// ListStepRuns returns all step runs for runID, in step order.
	ListStepRuns(ctx context.Context, runID string) ([]*StepRun, error)

	// SetStepRunStatus atomically transitions a step run to status,
	// applying the startedAt/finishedAt timestamp rules, and returns the
	// updated step run. Returns a *errors.NotFoundError if stepRunID is
	// unknown.
	SetStepRunStatus(ctx context.Context, stepRunID string, status Status) (*StepRun, error)
}

// EventStore persists the append-only Event log.
type EventStore interface {
	// AppendEvent inserts a new Event with a fresh id and current
	// timestamp, and returns it.
	AppendEvent(ctx context.Context, runID string, stepRunID *string, eventType EventType, message string) (*Event, error)

	// ListEvents returns all events for runID, in creation order.
	ListEvents(ctx context.Context, runID string) ([]*Event, error)
}

// Store is the full, transactional persistence contract for the core:
// workflows, runs, step-runs, and the event log. Implementations must be
// safe for concurrent use and crash-safe (on restart, visible state is
// the last committed transaction).
type Store interface {
	WorkflowStore
	RunStore
	StepRunStore
	EventStore
}
