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

package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/tombee/flowcore/pkg/errors"
)

func TestNotFoundError(t *testing.T) {
	err := &flowerrors.NotFoundError{Resource: "workflow", ID: "wf-1"}
	assert.Equal(t, "workflow not found: wf-1", err.Error())
}

func TestValidationError(t *testing.T) {
	err := &flowerrors.ValidationError{Field: "name", Message: "must not be empty"}
	assert.Equal(t, "validation failed on name: must not be empty", err.Error())

	err = &flowerrors.ValidationError{Message: "workflow has no steps"}
	assert.Equal(t, "validation failed: workflow has no steps", err.Error())
}

func TestStepExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &flowerrors.StepExecutionError{
		StepRunID: "sr-1",
		Kind:      "HTTP",
		Message:   "request failed",
		Cause:     cause,
	}

	assert.Equal(t, "HTTP step failed: request failed", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTransientStoreError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &flowerrors.TransientStoreError{Op: "setRunStatus", Cause: cause}

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "setRunStatus")
}

func TestHelpers_WrapPreservesChain(t *testing.T) {
	base := &flowerrors.NotFoundError{Resource: "run", ID: "run-1"}
	wrapped := flowerrors.Wrapf(base, "starting run %s", "run-1")

	var target *flowerrors.NotFoundError
	require.True(t, flowerrors.As(wrapped, &target))
	assert.Equal(t, "run-1", target.ID)
}

func TestHelpers_WrapNil(t *testing.T) {
	assert.Nil(t, flowerrors.Wrap(nil, "noop"))
	assert.Nil(t, flowerrors.Wrapf(nil, "noop %d", 1))
}

func TestIsNotFoundAndIsValidation(t *testing.T) {
	nf := flowerrors.Wrap(&flowerrors.NotFoundError{Resource: "workflow", ID: "wf-1"}, "lookup")
	assert.True(t, flowerrors.IsNotFound(nf))
	assert.False(t, flowerrors.IsValidation(nf))

	ve := &flowerrors.ValidationError{Field: "kind", Message: "unknown step kind"}
	assert.True(t, flowerrors.IsValidation(ve))
	assert.False(t, flowerrors.IsNotFound(ve))
}
