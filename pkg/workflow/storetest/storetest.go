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

// Package storetest is a black-box conformance suite exercised against
// every workflow.Store implementation (MemoryStore, sqlstore.Store) so
// both backends are held to the exact same contract.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/tombee/flowcore/pkg/errors"
	"github.com/tombee/flowcore/pkg/workflow"
)

// Factory builds a fresh, empty Store for a single test.
type Factory func() workflow.Store

// Run exercises the full Store contract against a Store built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetWorkflow", func(t *testing.T) { testCreateAndGetWorkflow(t, newStore()) })
	t.Run("ListWorkflowsReturnsAll", func(t *testing.T) { testListWorkflowsReturnsAll(t, newStore()) })
	t.Run("UpdateWorkflowReplacesSteps", func(t *testing.T) { testUpdateWorkflowReplacesSteps(t, newStore()) })
	t.Run("UpdateUnknownWorkflowFails", func(t *testing.T) { testUpdateUnknownWorkflowFails(t, newStore()) })
	t.Run("CreateRunWithStepRuns", func(t *testing.T) { testCreateRunWithStepRuns(t, newStore()) })
	t.Run("SetStepRunStatusTimestampRules", func(t *testing.T) { testSetStepRunStatusTimestampRules(t, newStore()) })
	t.Run("AppendAndListEventsInOrder", func(t *testing.T) { testAppendAndListEventsInOrder(t, newStore()) })
	t.Run("AppendEventUnknownRunFails", func(t *testing.T) { testAppendEventUnknownRunFails(t, newStore()) })
}

func testCreateAndGetWorkflow(t *testing.T, store workflow.Store) {
	ctx := context.Background()
	wf := &workflow.Workflow{
		ID:   "wf-1",
		Name: "onboarding",
		Steps: []*workflow.WorkflowStep{
			{ID: "step-1", WorkflowID: "wf-1", Name: "wait", Kind: workflow.StepDelay, Order: 0, Config: map[string]any{"seconds": float64(1)}},
			{ID: "step-2", WorkflowID: "wf-1", Name: "notify", Kind: workflow.StepHTTP, Order: 1, Config: map[string]any{"url": "http://example.com"}},
		},
	}
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	got, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "wait", got.Steps[0].Name)
	assert.Equal(t, "notify", got.Steps[1].Name)

	var nf *flowerrors.NotFoundError
	_, err = store.GetWorkflow(ctx, "missing")
	assert.ErrorAs(t, err, &nf)
}

func testListWorkflowsReturnsAll(t *testing.T, store workflow.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, &workflow.Workflow{ID: "wf-a", Name: "a"}))
	require.NoError(t, store.CreateWorkflow(ctx, &workflow.Workflow{ID: "wf-b", Name: "b"}))

	list, err := store.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func testUpdateWorkflowReplacesSteps(t *testing.T, store workflow.Store) {
	ctx := context.Background()
	wf := &workflow.Workflow{
		ID:   "wf-1",
		Name: "v1",
		Steps: []*workflow.WorkflowStep{
			{ID: "step-1", WorkflowID: "wf-1", Name: "a", Kind: workflow.StepDelay, Order: 0},
		},
	}
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	updated := &workflow.Workflow{
		ID:   "wf-1",
		Name: "v2",
		Steps: []*workflow.WorkflowStep{
			{ID: "step-2", WorkflowID: "wf-1", Name: "b", Kind: workflow.StepHTTP, Order: 0, Config: map[string]any{"url": "http://x"}},
			{ID: "step-3", WorkflowID: "wf-1", Name: "c", Kind: workflow.StepManual, Order: 1},
		},
	}
	require.NoError(t, store.UpdateWorkflow(ctx, updated))

	got, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "b", got.Steps[0].Name)
	assert.Equal(t, "c", got.Steps[1].Name)
}

func testUpdateUnknownWorkflowFails(t *testing.T, store workflow.Store) {
	var nf *flowerrors.NotFoundError
	err := store.UpdateWorkflow(context.Background(), &workflow.Workflow{ID: "missing", Name: "x"})
	assert.ErrorAs(t, err, &nf)
}

func testCreateRunWithStepRuns(t *testing.T, store workflow.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, &workflow.Workflow{
		ID:   "wf-1",
		Name: "w",
		Steps: []*workflow.WorkflowStep{
			{ID: "step-1", WorkflowID: "wf-1", Name: "a", Kind: workflow.StepDelay, Order: 0},
			{ID: "step-2", WorkflowID: "wf-1", Name: "b", Kind: workflow.StepManual, Order: 1},
		},
	}))

	run := &workflow.WorkflowRun{ID: "run-1", WorkflowID: "wf-1"}
	stepRuns := []*workflow.StepRun{
		{ID: "sr-1", WorkflowRunID: "run-1", WorkflowStepID: "step-1"},
		{ID: "sr-2", WorkflowRunID: "run-1", WorkflowStepID: "step-2"},
	}
	require.NoError(t, store.CreateRun(ctx, run, stepRuns))

	gotRun, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, gotRun.Status)

	list, err := store.ListStepRuns(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "step-1", list[0].WorkflowStepID)
	assert.Equal(t, "step-2", list[1].WorkflowStepID)
	for _, sr := range list {
		assert.Equal(t, workflow.StatusPending, sr.Status)
	}

	runs, err := store.ListRuns(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func testSetStepRunStatusTimestampRules(t *testing.T, store workflow.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, &workflow.Workflow{
		ID: "wf-1", Name: "w",
		Steps: []*workflow.WorkflowStep{{ID: "step-1", WorkflowID: "wf-1", Name: "a", Kind: workflow.StepDelay, Order: 0}},
	}))
	require.NoError(t, store.CreateRun(ctx, &workflow.WorkflowRun{ID: "run-1", WorkflowID: "wf-1"},
		[]*workflow.StepRun{{ID: "sr-1", WorkflowRunID: "run-1", WorkflowStepID: "step-1"}}))

	sr, err := store.SetStepRunStatus(ctx, "sr-1", workflow.StatusRunning)
	require.NoError(t, err)
	require.NotNil(t, sr.StartedAt)
	assert.Nil(t, sr.FinishedAt)

	sr, err = store.SetStepRunStatus(ctx, "sr-1", workflow.StatusSucceeded)
	require.NoError(t, err)
	require.NotNil(t, sr.FinishedAt)

	var nf *flowerrors.NotFoundError
	_, err = store.SetStepRunStatus(ctx, "missing", workflow.StatusRunning)
	assert.ErrorAs(t, err, &nf)
}

func testAppendAndListEventsInOrder(t *testing.T, store workflow.Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, &workflow.Workflow{ID: "wf-1", Name: "w"}))
	require.NoError(t, store.CreateRun(ctx, &workflow.WorkflowRun{ID: "run-1", WorkflowID: "wf-1"}, nil))

	_, err := store.AppendEvent(ctx, "run-1", nil, workflow.EventRunStarted, "Run enqueued")
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, "run-1", nil, workflow.EventRunSucceeded, "done")
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, workflow.EventRunStarted, events[0].Type)
	assert.Equal(t, workflow.EventRunSucceeded, events[1].Type)
}

func testAppendEventUnknownRunFails(t *testing.T, store workflow.Store) {
	var nf *flowerrors.NotFoundError
	_, err := store.AppendEvent(context.Background(), "missing", nil, workflow.EventRunStarted, "x")
	assert.ErrorAs(t, err, &nf)
}
