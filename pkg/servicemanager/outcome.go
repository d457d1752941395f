package servicemanager

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// OutcomeKind classifies what happened to a single cloud resource during a run.
type OutcomeKind string

const (
	// Created means the resource was absent and has been created by this run.
	Created OutcomeKind = "created"
	// AlreadyExists means the resource was found and left untouched.
	AlreadyExists OutcomeKind = "already_exists"
	// Applied is used for operations that are re-issued on every run, such as
	// enabling an API or adding a role binding.
	Applied OutcomeKind = "applied"
	// Failed means reconciling the resource returned an error.
	Failed OutcomeKind = "failed"
)

// Outcome is the result of reconciling one resource.
type Outcome struct {
	Resource string
	Kind     OutcomeKind
	Err      error
}

// CreatedOutcome reports a newly created resource.
func CreatedOutcome(resource string) Outcome {
	return Outcome{Resource: resource, Kind: Created}
}

// ExistingOutcome reports a resource that was already present.
func ExistingOutcome(resource string) Outcome {
	return Outcome{Resource: resource, Kind: AlreadyExists}
}

// AppliedOutcome reports an unconditionally re-issued operation.
func AppliedOutcome(resource string) Outcome {
	return Outcome{Resource: resource, Kind: Applied}
}

// FailedOutcome reports a failure. The error is kept as-is so callers can inspect it.
func FailedOutcome(resource string, err error) Outcome {
	return Outcome{Resource: resource, Kind: Failed, Err: err}
}

// OK is true for every kind except Failed.
func (o Outcome) OK() bool {
	return o.Kind != Failed
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", o.Resource, o.Kind, o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Resource, o.Kind)
}

// FirstFailure returns the error of the first failed outcome, wrapped with its resource name.
func FirstFailure(outcomes []Outcome) error {
	for _, o := range outcomes {
		if !o.OK() {
			return fmt.Errorf("%s: %w", o.Resource, o.Err)
		}
	}
	return nil
}

// IsAlreadyExists reports whether err is a Google API "already exists" answer,
// either as a gRPC status or as an HTTP 409 from a JSON API.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	var e *googleapi.Error
	if errors.As(err, &e) {
		return e.Code == http.StatusConflict
	}
	return false
}

// IsNotFound reports whether err is a Google API "not found" answer.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if status.Code(err) == codes.NotFound {
		return true
	}
	var e *googleapi.Error
	if errors.As(err, &e) {
		return e.Code == http.StatusNotFound
	}
	return false
}
