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

package workflow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowcore/internal/clock"
	"github.com/tombee/flowcore/internal/idgen"
	"github.com/tombee/flowcore/pkg/workflow"
)

type testHarness struct {
	store    *workflow.MemoryStore
	journal  *workflow.EventJournal
	broker   *workflow.Broker
	executor *workflow.Executor
	ids      *idgen.Sequential
}

func newHarness(t *testing.T, handlers map[workflow.StepKind]workflow.Handler) *testHarness {
	t.Helper()
	store := workflow.NewMemoryStore(clock.Real{})
	journal := workflow.NewEventJournal(store)
	broker := workflow.NewBroker()
	executor := workflow.NewExecutor(store, journal, broker, handlers)
	return &testHarness{store: store, journal: journal, broker: broker, executor: executor, ids: &idgen.Sequential{Prefix: "id"}}
}

func (h *testHarness) createWorkflow(t *testing.T, steps []*workflow.WorkflowStep) *workflow.Workflow {
	t.Helper()
	wfID := h.ids.NewID()
	for _, s := range steps {
		s.WorkflowID = wfID
		if s.ID == "" {
			s.ID = h.ids.NewID()
		}
	}
	wf := &workflow.Workflow{ID: wfID, Name: "test", Steps: steps}
	require.NoError(t, h.store.CreateWorkflow(context.Background(), wf))
	return wf
}

func (h *testHarness) startRun(t *testing.T, wf *workflow.Workflow) *workflow.WorkflowRun {
	t.Helper()
	ctx := context.Background()
	runID := h.ids.NewID()
	run := &workflow.WorkflowRun{ID: runID, WorkflowID: wf.ID}
	stepRuns := make([]*workflow.StepRun, len(wf.Steps))
	for i, s := range wf.Steps {
		stepRuns[i] = &workflow.StepRun{ID: h.ids.NewID(), WorkflowRunID: runID, WorkflowStepID: s.ID}
	}
	require.NoError(t, h.store.CreateRun(ctx, run, stepRuns))
	_, err := h.journal.RunStarted(ctx, runID, "Run enqueued")
	require.NoError(t, err)
	h.executor.Enqueue(ctx, runID)
	return run
}

func eventTypes(t *testing.T, store workflow.Store, runID string) []workflow.EventType {
	t.Helper()
	events, err := store.ListEvents(context.Background(), runID)
	require.NoError(t, err)
	types := make([]workflow.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func waitTerminal(t *testing.T, store workflow.Store, runID string) *workflow.WorkflowRun {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, err := store.GetRun(context.Background(), runID)
		require.NoError(t, err)
		if run.Status.IsTerminal() {
			return run
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run never reached a terminal state")
	return nil
}

func TestExecutor_HappyAllAutomated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := newHarness(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
		workflow.StepHTTP:  workflow.NewHTTPHandler(server.Client()),
	})

	wf := h.createWorkflow(t, []*workflow.WorkflowStep{
		{Name: "wait", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
		{Name: "notify", Kind: workflow.StepHTTP, Order: 1, Config: map[string]any{"url": server.URL}},
	})
	run := h.startRun(t, wf)

	final := waitTerminal(t, h.store, run.ID)
	assert.Equal(t, workflow.StatusSucceeded, final.Status)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.FinishedAt)

	types := eventTypes(t, h.store, run.ID)
	assert.Equal(t, []workflow.EventType{
		workflow.EventRunStarted, // "Run enqueued", from startRun
		workflow.EventRunStarted, // Executor's own RUN_STARTED on PENDING->RUNNING
		workflow.EventStepStarted, workflow.EventStepSucceeded,
		workflow.EventStepStarted, workflow.EventStepSucceeded,
		workflow.EventRunSucceeded,
	}, types)
}

func TestExecutor_HTTPFailureCascadesToRunFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	h := newHarness(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepHTTP: workflow.NewHTTPHandler(server.Client()),
	})

	wf := h.createWorkflow(t, []*workflow.WorkflowStep{
		{Name: "call", Kind: workflow.StepHTTP, Order: 0, Config: map[string]any{"url": server.URL}},
	})
	run := h.startRun(t, wf)

	final := waitTerminal(t, h.store, run.ID)
	assert.Equal(t, workflow.StatusFailed, final.Status)

	events, err := h.store.ListEvents(context.Background(), run.ID)
	require.NoError(t, err)
	last3 := events[len(events)-3:]
	assert.Equal(t, workflow.EventStepStarted, last3[0].Type)
	assert.Equal(t, workflow.EventStepFailed, last3[1].Type)
	assert.Contains(t, last3[1].Message, "500")
	assert.Equal(t, workflow.EventRunFailed, last3[2].Type)
}

func TestExecutor_ManualPauseAndResume(t *testing.T) {
	h := newHarness(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})

	wf := h.createWorkflow(t, []*workflow.WorkflowStep{
		{Name: "before", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
		{Name: "approve", Kind: workflow.StepManual, Order: 1},
		{Name: "after", Kind: workflow.StepDelay, Order: 2, Config: map[string]any{"seconds": float64(0)}},
	})
	run := h.startRun(t, wf)

	// Wait for the run to suspend at the manual step.
	deadline := time.Now().Add(2 * time.Second)
	var stepRuns []*workflow.StepRun
	for time.Now().Before(deadline) {
		var err error
		stepRuns, err = h.store.ListStepRuns(context.Background(), run.ID)
		require.NoError(t, err)
		if stepRuns[1].Status == workflow.StatusPending {
			events, _ := h.store.ListEvents(context.Background(), run.ID)
			if len(events) >= 4 && events[len(events)-1].Type == workflow.EventStepStarted {
				break
			}
		}
		time.Sleep(time.Millisecond)
	}

	r, err := h.store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRunning, r.Status)
	assert.Equal(t, workflow.StatusPending, stepRuns[1].Status)

	sr, err := h.executor.CompleteManualStep(context.Background(), stepRuns[1].ID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, sr.Status)

	final := waitTerminal(t, h.store, run.ID)
	assert.Equal(t, workflow.StatusSucceeded, final.Status)
}

func TestExecutor_ManualFailureLeavesTrailingStepPending(t *testing.T) {
	h := newHarness(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})

	wf := h.createWorkflow(t, []*workflow.WorkflowStep{
		{Name: "before", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
		{Name: "approve", Kind: workflow.StepManual, Order: 1},
		{Name: "after", Kind: workflow.StepDelay, Order: 2, Config: map[string]any{"seconds": float64(0)}},
	})
	run := h.startRun(t, wf)

	var stepRuns []*workflow.StepRun
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		stepRuns, err = h.store.ListStepRuns(context.Background(), run.ID)
		require.NoError(t, err)
		if stepRuns[1].Status == workflow.StatusPending {
			r, _ := h.store.GetRun(context.Background(), run.ID)
			if r.Status == workflow.StatusRunning && stepRuns[0].Status == workflow.StatusSucceeded {
				break
			}
		}
		time.Sleep(time.Millisecond)
	}

	sr, err := h.executor.CompleteManualStep(context.Background(), stepRuns[1].ID, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFailed, sr.Status)

	final := waitTerminal(t, h.store, run.ID)
	assert.Equal(t, workflow.StatusFailed, final.Status)

	after, err := h.store.GetStepRun(context.Background(), stepRuns[2].ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, after.Status)
}

func TestExecutor_CompleteManualStepIsIdempotent(t *testing.T) {
	h := newHarness(t, map[workflow.StepKind]workflow.Handler{})
	wf := h.createWorkflow(t, []*workflow.WorkflowStep{
		{Name: "approve", Kind: workflow.StepManual, Order: 0},
	})
	run := h.startRun(t, wf)

	var stepRunID string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stepRuns, err := h.store.ListStepRuns(context.Background(), run.ID)
		require.NoError(t, err)
		if stepRuns[0].Status == workflow.StatusPending {
			events, _ := h.store.ListEvents(context.Background(), run.ID)
			if len(events) >= 3 {
				stepRunID = stepRuns[0].ID
				break
			}
		}
		time.Sleep(time.Millisecond)
	}
	require.NotEmpty(t, stepRunID)

	first, err := h.executor.CompleteManualStep(context.Background(), stepRunID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, first.Status)

	waitTerminal(t, h.store, run.ID)
	eventsBefore, err := h.store.ListEvents(context.Background(), run.ID)
	require.NoError(t, err)

	second, err := h.executor.CompleteManualStep(context.Background(), stepRunID, true)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)

	eventsAfter, err := h.store.ListEvents(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, len(eventsBefore), len(eventsAfter), "idempotent completion must append no further events")
}

func TestExecutor_EnqueueIsIdempotent(t *testing.T) {
	h := newHarness(t, map[workflow.StepKind]workflow.Handler{
		workflow.StepDelay: workflow.DelayHandler{},
	})
	wf := h.createWorkflow(t, []*workflow.WorkflowStep{
		{Name: "wait", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(0)}},
	})
	run := h.startRun(t, wf)

	for i := 0; i < 10; i++ {
		h.executor.Enqueue(context.Background(), run.ID)
	}

	waitTerminal(t, h.store, run.ID)
}

func TestExecutor_ZeroStepWorkflowSucceedsImmediately(t *testing.T) {
	h := newHarness(t, map[workflow.StepKind]workflow.Handler{})
	wf := h.createWorkflow(t, nil)
	run := h.startRun(t, wf)

	final := waitTerminal(t, h.store, run.ID)
	assert.Equal(t, workflow.StatusSucceeded, final.Status)

	types := eventTypes(t, h.store, run.ID)
	assert.Equal(t, []workflow.EventType{
		workflow.EventRunStarted,
		workflow.EventRunStarted,
		workflow.EventRunSucceeded,
	}, types)
}
