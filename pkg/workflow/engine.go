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

// RunDetail is the aggregate view returned by Run: the run itself
// alongside its step-runs and full event history.
type RunDetail struct {
	Run      *WorkflowRun
	StepRuns []*StepRun
	Events   []*Event
}

// Engine is the façade the transport layer (out of scope for this
// module) calls into. It wires Store, EventJournal, Broker, and
// Executor together into the query/mutation/subscription operations.
type Engine struct {
	store    Store
	journal  *EventJournal
	broker   *Broker
	executor *Executor
	ids      IDGenerator
}

// NewEngine builds an Engine over an already-constructed Executor (which
// itself owns the store/journal/broker it was built with). ids mints
// identifiers for new workflows, steps, and runs.
func NewEngine(store Store, journal *EventJournal, broker *Broker, executor *Executor, ids IDGenerator) *Engine {
	return &Engine{store: store, journal: journal, broker: broker, executor: executor, ids: ids}
}

// Workflows lists every workflow, newest first.
func (e *Engine) Workflows(ctx context.Context) ([]*Workflow, error) {
	return e.store.ListWorkflows(ctx)
}

// Workflow fetches a single workflow with its steps.
func (e *Engine) Workflow(ctx context.Context, id string) (*Workflow, error) {
	return e.store.GetWorkflow(ctx, id)
}

// Runs lists every run of workflowID, newest first.
func (e *Engine) Runs(ctx context.Context, workflowID string) ([]*WorkflowRun, error) {
	return e.store.ListRuns(ctx, workflowID)
}

// Run fetches a run together with its step-runs and event history.
func (e *Engine) Run(ctx context.Context, id string) (*RunDetail, error) {
	run, err := e.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	stepRuns, err := e.store.ListStepRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := e.store.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: run, StepRuns: stepRuns, Events: events}, nil
}

// CreateWorkflow persists a new workflow. Steps are assigned fresh ids
// where the caller left ID empty and WorkflowID is stamped in; each
// step's Order is kept as given.
func (e *Engine) CreateWorkflow(ctx context.Context, name, description string, steps []*WorkflowStep) (*Workflow, error) {
	wf := &Workflow{
		ID:          e.ids.NewID(),
		Name:        name,
		Description: description,
	}
	wf.Steps = e.prepareSteps(wf.ID, steps)

	if err := e.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return e.store.GetWorkflow(ctx, wf.ID)
}

// UpdateWorkflow replaces id's name, description, and full step
// sequence. name/description, if empty, retain the existing value.
func (e *Engine) UpdateWorkflow(ctx context.Context, id, name, description string, steps []*WorkflowStep) (*Workflow, error) {
	existing, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	wf := &Workflow{
		ID:          id,
		Name:        existing.Name,
		Description: existing.Description,
	}
	if name != "" {
		wf.Name = name
	}
	if description != "" {
		wf.Description = description
	}
	wf.Steps = e.prepareSteps(id, steps)

	if err := e.store.UpdateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return e.store.GetWorkflow(ctx, id)
}

// prepareSteps stamps workflowID onto each step and fills in a fresh id
// for any step the caller left blank, preserving identity for steps
// that already carry one, so UpdateWorkflow can preserve step identity.
func (e *Engine) prepareSteps(workflowID string, steps []*WorkflowStep) []*WorkflowStep {
	out := make([]*WorkflowStep, len(steps))
	for i, s := range steps {
		step := *s
		step.WorkflowID = workflowID
		if step.ID == "" {
			step.ID = e.ids.NewID()
		}
		out[i] = &step
	}
	return out
}

// StartRun creates a new run (and its PENDING StepRuns) for workflowID,
// appends the initial "Run enqueued" RUN_STARTED event, and hands the
// run to the Executor. The returned WorkflowRun may still show PENDING,
// since enqueueing is asynchronous.
func (e *Engine) StartRun(ctx context.Context, workflowID string) (*WorkflowRun, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	run := &WorkflowRun{ID: e.ids.NewID(), WorkflowID: workflowID}
	stepRuns := make([]*StepRun, len(wf.Steps))
	for i, step := range wf.Steps {
		stepRuns[i] = &StepRun{ID: e.ids.NewID(), WorkflowRunID: run.ID, WorkflowStepID: step.ID}
	}

	if err := e.store.CreateRun(ctx, run, stepRuns); err != nil {
		return nil, err
	}
	if _, err := e.journal.RunStarted(ctx, run.ID, "Run enqueued"); err != nil {
		return nil, err
	}

	e.executor.Enqueue(ctx, run.ID)

	return e.store.GetRun(ctx, run.ID)
}

// CompleteManualStep resolves a pending MANUAL step and resumes
// scheduling on success. See Executor.CompleteManualStep for the exact
// idempotency and failure-cascade semantics.
func (e *Engine) CompleteManualStep(ctx context.Context, stepRunID string, success bool) (*StepRun, error) {
	return e.executor.CompleteManualStep(ctx, stepRunID, success)
}

// RunUpdated subscribes to runID's topic and returns a channel of
// current WorkflowRun snapshots — one per published signal, re-queried
// from the Store at delivery time so a slow or dropped signal never
// yields stale data. The returned cancel func must be called to release
// the subscription; closing it also closes the returned channel.
func (e *Engine) RunUpdated(ctx context.Context, runID string) (<-chan *WorkflowRun, func()) {
	signals, unsubscribe := e.broker.Subscribe(RunTopic(runID))
	snapshots := make(chan *WorkflowRun, 1)

	if run, err := e.store.GetRun(ctx, runID); err == nil {
		snapshots <- run
	}

	go func() {
		defer close(snapshots)
		for range signals {
			run, err := e.store.GetRun(ctx, runID)
			if err != nil {
				continue
			}
			select {
			case snapshots <- run:
			default:
				select {
				case <-snapshots:
				default:
				}
				snapshots <- run
			}
		}
	}()

	return snapshots, unsubscribe
}
