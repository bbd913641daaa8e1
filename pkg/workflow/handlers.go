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
	"net/http"
	"strconv"
	"time"

	flowerrors "github.com/tombee/flowcore/pkg/errors"
)

// Handler is the per-step-kind contract invoked by the Executor for
// automated steps. Handlers are stateless and make no persistent
// mutations themselves: the Executor owns all state updates and event
// appends.
type Handler interface {
	Handle(ctx context.Context, step *WorkflowStep) error
}

// DelayHandler sleeps for the step's configured duration. Suspension is
// cooperative: it honors ctx cancellation.
type DelayHandler struct{}

// Handle blocks for config.seconds (default 1, never negative).
func (DelayHandler) Handle(ctx context.Context, step *WorkflowStep) error {
	d := time.Duration(step.ConfigSeconds(1) * float64(time.Second))
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &flowerrors.StepExecutionError{Kind: string(StepDelay), Message: "delay cancelled", Cause: ctx.Err()}
	}
}

// HTTPClient is the boundary contract an HTTPHandler consumes: anything
// able to issue a request and return a response or error. *http.Client
// satisfies this directly.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPHandler issues an outbound request to the step's configured URL.
type HTTPHandler struct {
	Client HTTPClient
}

// NewHTTPHandler wraps client. A nil client falls back to
// http.DefaultClient.
func NewHTTPHandler(client HTTPClient) *HTTPHandler {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHandler{Client: client}
}

// Handle issues the request and fails unless the response status is 2xx.
func (h *HTTPHandler) Handle(ctx context.Context, step *WorkflowStep) error {
	url := step.ConfigString("url", "")
	if url == "" {
		return &flowerrors.ValidationError{Field: "config.url", Message: "HTTP step requires a url"}
	}
	method := step.ConfigString("method", http.MethodGet)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return &flowerrors.ValidationError{Field: "config.url", Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return &flowerrors.StepExecutionError{Kind: string(StepHTTP), Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &flowerrors.StepExecutionError{
			Kind:    string(StepHTTP),
			Message: httpFailureMessage(resp.StatusCode),
		}
	}
	return nil
}

func httpFailureMessage(status int) string {
	return "request returned status " + strconv.Itoa(status) + " " + http.StatusText(status)
}

// ManualHandler is never invoked by the Executor for a MANUAL step (it
// is driven entirely by completeManualStep), but it satisfies Handler so
// callers can dispatch uniformly by kind if needed.
type ManualHandler struct{}

// Handle is a no-op.
func (ManualHandler) Handle(ctx context.Context, step *WorkflowStep) error {
	return nil
}
