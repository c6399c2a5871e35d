package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/dispatch"
	"github.com/marginalia-app/marginalia/pkg/schema"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// Kind classifies a failed command.
type Kind string

const (
	BadEnvelope            Kind = "BadEnvelope"
	ValidationError        Kind = "ValidationError"
	NotFound               Kind = "NotFound"
	Forbidden              Kind = "Forbidden"
	Conflict               Kind = "Conflict"
	UnsupportedCombination Kind = "UnsupportedCombination"
	Infrastructure         Kind = "Infrastructure"
)

// Details is the structured part of a failure, shaped for the wire.
type Details struct {
	Type          string                        `json:"type,omitempty"`
	ID            string                        `json:"id,omitempty"`
	Activity      string                        `json:"activity"`
	Validation    map[string][]schema.Violation `json:"validation,omitempty"`
	MissingParams []string                      `json:"missingParams,omitempty"`
	BadParams     []string                      `json:"badParams,omitempty"`
}

// Failure is the terminal error of a command that did not reach Logged.
type Failure struct {
	Kind Kind
	// State is the last state the command reached before failing.
	State   State
	Details Details
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Details.Activity, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Details.Activity, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// StatusCode maps the failure kind to an HTTP status.
func (f *Failure) StatusCode() int {
	switch f.Kind {
	case BadEnvelope, ValidationError, UnsupportedCombination, Conflict:
		return http.StatusBadRequest
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the details safe to show a caller. Infrastructure failures
// keep only the activity name.
func (f *Failure) Public() Details {
	if f.Kind == Infrastructure {
		return Details{Activity: f.Details.Activity}
	}
	return f.Details
}

// AsFailure reports whether err carries a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// classify turns an error from any pipeline step into a Failure.
func classify(state State, activity string, err error) *Failure {
	f := &Failure{State: state, Details: Details{Activity: activity}, Err: err}

	var (
		envErr   *command.EnvelopeError
		valErr   *schema.ValidationError
		notFound *store.NotFoundError
		conflict *store.ConflictError
	)
	switch {
	case errors.As(err, &envErr):
		f.Kind = BadEnvelope
		f.Details.Type = string(envErr.Reason)
		f.Details.MissingParams = envErr.MissingParams
		f.Details.BadParams = envErr.BadParams
	case errors.As(err, &valErr):
		f.Kind = ValidationError
		f.Details.Validation = valErr.Fields
	case errors.Is(err, dispatch.ErrUnsupportedCombination):
		f.Kind = UnsupportedCombination
	case errors.As(err, &notFound):
		f.Kind = NotFound
		f.Details.Type, f.Details.ID = notFound.Type, notFound.ID
	case errors.Is(err, store.ErrNotFound):
		f.Kind = NotFound
	case errors.As(err, &conflict):
		f.Kind = Conflict
		f.Details.Type, f.Details.ID = conflict.Type, conflict.ID
	case errors.Is(err, store.ErrConflict):
		f.Kind = Conflict
	default:
		f.Kind = Infrastructure
	}
	return f
}

// classifyCommand is classify for a parsed command. Failures that do not name
// a resource of their own report the command's object type.
func classifyCommand(state State, activity string, cmd command.Command, err error) *Failure {
	f := classify(state, activity, err)
	if f.Details.Type == "" {
		f.Details.Type = string(cmd.Object.Type)
	}
	return f
}

func forbidden(state State, activity string, ref command.Ref) *Failure {
	return &Failure{
		Kind:    Forbidden,
		State:   state,
		Details: Details{Type: string(ref.Type), ID: ref.ID, Activity: activity},
		Err:     fmt.Errorf("%s is not owned by the actor", ref),
	}
}
