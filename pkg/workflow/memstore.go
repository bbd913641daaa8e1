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
	"sort"
	"strconv"
	"sync"

	flowerrors "github.com/tombee/flowcore/pkg/errors"
)

// MemoryStore is an in-memory Store implementation. It is thread-safe
// and suitable for tests or single-instance deployments that do not
// require durability across restarts.
type MemoryStore struct {
	mu sync.Mutex

	clock Clock

	workflows map[string]*Workflow
	runs      map[string]*WorkflowRun
	stepRuns  map[string]*StepRun
	// runStepRuns indexes step-run ids by workflow run id, in step order.
	runStepRuns map[string][]string
	events      map[string][]*Event
}

// NewMemoryStore creates a new in-memory Store. clock supplies the
// timestamps recorded on transitions and events.
func NewMemoryStore(clock Clock) *MemoryStore {
	return &MemoryStore{
		clock:       clock,
		workflows:   make(map[string]*Workflow),
		runs:        make(map[string]*WorkflowRun),
		stepRuns:    make(map[string]*StepRun),
		runStepRuns: make(map[string][]string),
		events:      make(map[string][]*Event),
	}
}

var _ Store = (*MemoryStore)(nil)

// ListWorkflows returns all workflows, newest first.
func (s *MemoryStore) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]*Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		results = append(results, copyWorkflow(wf))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// GetWorkflow returns a workflow with its steps ordered by Order.
func (s *MemoryStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, &flowerrors.NotFoundError{Resource: "workflow", ID: id}
	}
	return copyWorkflow(wf), nil
}

// CreateWorkflow persists wf and its steps atomically.
func (s *MemoryStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	if wf == nil || wf.ID == "" {
		return &flowerrors.ValidationError{Field: "id", Message: "workflow ID cannot be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[wf.ID]; exists {
		return &flowerrors.ValidationError{
			Field:      "id",
			Message:    "workflow with this ID already exists",
			Suggestion: "use a unique workflow ID or call UpdateWorkflow instead",
		}
	}

	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = s.clock.Now()
	}
	sortSteps(wf.Steps)
	s.workflows[wf.ID] = copyWorkflow(wf)
	return nil
}

// UpdateWorkflow replaces an existing workflow's steps atomically.
func (s *MemoryStore) UpdateWorkflow(ctx context.Context, wf *Workflow) error {
	if wf == nil || wf.ID == "" {
		return &flowerrors.ValidationError{Field: "id", Message: "workflow ID cannot be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workflows[wf.ID]
	if !ok {
		return &flowerrors.NotFoundError{Resource: "workflow", ID: wf.ID}
	}

	updated := copyWorkflow(wf)
	updated.CreatedAt = existing.CreatedAt
	sortSteps(updated.Steps)
	s.workflows[wf.ID] = updated
	return nil
}

// CreateRun persists run and stepRuns atomically.
func (s *MemoryStore) CreateRun(ctx context.Context, run *WorkflowRun, stepRuns []*StepRun) error {
	if run == nil || run.ID == "" {
		return &flowerrors.ValidationError{Field: "id", Message: "run ID cannot be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[run.WorkflowID]; !exists {
		return &flowerrors.NotFoundError{Resource: "workflow", ID: run.WorkflowID}
	}
	if _, exists := s.runs[run.ID]; exists {
		return &flowerrors.ValidationError{Field: "id", Message: "run with this ID already exists"}
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock.Now()
	}
	if run.Status == "" {
		run.Status = StatusPending
	}

	runCopy := copyRun(run)
	s.runs[run.ID] = runCopy

	ids := make([]string, 0, len(stepRuns))
	for _, sr := range stepRuns {
		if sr.Status == "" {
			sr.Status = StatusPending
		}
		s.stepRuns[sr.ID] = copyStepRun(sr)
		ids = append(ids, sr.ID)
	}
	s.runStepRuns[run.ID] = ids

	return nil
}

// GetRun returns a run by id.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &flowerrors.NotFoundError{Resource: "run", ID: id}
	}
	return copyRun(run), nil
}

// ListRuns returns all runs for workflowID, newest first.
func (s *MemoryStore) ListRuns(ctx context.Context, workflowID string) ([]*WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]*WorkflowRun, 0)
	for _, run := range s.runs {
		if run.WorkflowID == workflowID {
			results = append(results, copyRun(run))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// SetRunStatus atomically transitions run to status, applying the
// startedAt/finishedAt timestamp rules.
func (s *MemoryStore) SetRunStatus(ctx context.Context, runID string, status Status) (*WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, &flowerrors.NotFoundError{Resource: "run", ID: runID}
	}

	run.Status = status
	run.StartedAt, run.FinishedAt = ApplyStatusTimestamps(status, run.StartedAt, run.FinishedAt, s.clock.Now())

	return copyRun(run), nil
}

// GetStepRun returns a step run by id.
func (s *MemoryStore) GetStepRun(ctx context.Context, id string) (*StepRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.stepRuns[id]
	if !ok {
		return nil, &flowerrors.NotFoundError{Resource: "stepRun", ID: id}
	}
	return copyStepRun(sr), nil
}

// ListStepRuns returns all step runs for runID, in step order.
func (s *MemoryStore) ListStepRuns(ctx context.Context, runID string) ([]*StepRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.runStepRuns[runID]
	if !ok {
		return []*StepRun{}, nil
	}
	results := make([]*StepRun, 0, len(ids))
	for _, id := range ids {
		if sr, ok := s.stepRuns[id]; ok {
			results = append(results, copyStepRun(sr))
		}
	}
	return results, nil
}

// SetStepRunStatus atomically transitions a step run to status, applying
// the startedAt/finishedAt timestamp rules.
func (s *MemoryStore) SetStepRunStatus(ctx context.Context, stepRunID string, status Status) (*StepRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.stepRuns[stepRunID]
	if !ok {
		return nil, &flowerrors.NotFoundError{Resource: "stepRun", ID: stepRunID}
	}

	sr.Status = status
	sr.StartedAt, sr.FinishedAt = ApplyStatusTimestamps(status, sr.StartedAt, sr.FinishedAt, s.clock.Now())

	return copyStepRun(sr), nil
}

// AppendEvent inserts a new Event with a fresh id and current timestamp.
func (s *MemoryStore) AppendEvent(ctx context.Context, runID string, stepRunID *string, eventType EventType, message string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, &flowerrors.NotFoundError{Resource: "run", ID: runID}
	}

	var stepRunIDCopy *string
	if stepRunID != nil {
		v := *stepRunID
		stepRunIDCopy = &v
	}

	event := &Event{
		ID:            s.nextEventID(),
		WorkflowRunID: runID,
		StepRunID:     stepRunIDCopy,
		Type:          eventType,
		Message:       message,
		CreatedAt:     s.clock.Now(),
	}
	s.events[runID] = append(s.events[runID], event)

	out := *event
	return &out, nil
}

// ListEvents returns all events for runID, in creation order.
func (s *MemoryStore) ListEvents(ctx context.Context, runID string) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.events[runID]
	results := make([]*Event, len(src))
	for i, e := range src {
		v := *e
		results[i] = &v
	}
	return results, nil
}

// nextEventID generates a monotonically increasing id across the whole
// store. Ordering itself relies on append order within s.events, not on
// this id; it exists only to give each event a unique identifier. Caller
// must hold s.mu.
func (s *MemoryStore) nextEventID() string {
	total := 0
	for _, evs := range s.events {
		total += len(evs)
	}
	return "evt-" + strconv.Itoa(total)
}

func sortSteps(steps []*WorkflowStep) {
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
}

// copyWorkflow creates a deep copy of a workflow, including its steps,
// so stored and returned values never alias caller-held memory.
func copyWorkflow(w *Workflow) *Workflow {
	if w == nil {
		return nil
	}
	out := &Workflow{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		CreatedAt:   w.CreatedAt,
	}
	if w.Steps != nil {
		out.Steps = make([]*WorkflowStep, len(w.Steps))
		for i, step := range w.Steps {
			out.Steps[i] = copyStep(step)
		}
	}
	return out
}

func copyStep(s *WorkflowStep) *WorkflowStep {
	if s == nil {
		return nil
	}
	out := &WorkflowStep{
		ID:         s.ID,
		WorkflowID: s.WorkflowID,
		Name:       s.Name,
		Kind:       s.Kind,
		Order:      s.Order,
	}
	if s.Config != nil {
		out.Config = make(map[string]any, len(s.Config))
		for k, v := range s.Config {
			out.Config[k] = v
		}
	}
	return out
}

func copyRun(r *WorkflowRun) *WorkflowRun {
	if r == nil {
		return nil
	}
	out := &WorkflowRun{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

func copyStepRun(s *StepRun) *StepRun {
	if s == nil {
		return nil
	}
	out := &StepRun{
		ID:             s.ID,
		WorkflowRunID:  s.WorkflowRunID,
		WorkflowStepID: s.WorkflowStepID,
		Status:         s.Status,
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
