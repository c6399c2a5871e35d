// Package engine runs reader commands end to end.
//
// A command is parsed, routed, validated, authorized, executed and finally
// logged as an activity in the actor's outbox. The mutation and the activity
// are written in one store transaction, so a command either leaves both
// behind or neither.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/dispatch"
	"github.com/marginalia-app/marginalia/pkg/handler"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/outbox"
	"github.com/marginalia-app/marginalia/pkg/schema"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// Engine processes commands against a store.
type Engine struct {
	store   store.Store
	schemas *schema.Registry
	outbox  *outbox.Log
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithSchemas(r *schema.Registry) Option {
	return func(e *Engine) { e.schemas = r }
}

// New returns an engine writing to st and logging activities to log.
func New(st store.Store, log *outbox.Log, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		outbox: log,
		logger: zerolog.Nop(),
		tracer: otel.Tracer("github.com/marginalia-app/marginalia/pkg/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.schemas == nil {
		e.schemas = schema.Default()
	}
	return e
}

// Outbox returns the activity log the engine appends to.
func (e *Engine) Outbox() *outbox.Log { return e.outbox }

// Process runs one command for actor, the authenticated reader. It returns
// the logged activity, or a *Failure.
func (e *Engine) Process(ctx context.Context, actor models.ReaderID, env command.Envelope) (*models.Activity, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Process")
	defer span.End()

	activity, err := e.process(ctx, actor, env)
	if err != nil {
		f, ok := AsFailure(err)
		if !ok {
			f = classify(Received, envelopeActivity(env), err)
		}
		span.SetAttributes(
			attribute.String("marginalia.activity", f.Details.Activity),
			attribute.String("marginalia.failure", string(f.Kind)),
		)
		span.SetStatus(codes.Error, string(f.Kind))
		e.logFailure(actor, f)
		return nil, f
	}

	span.SetAttributes(
		attribute.String("marginalia.activity", activity.Name),
		attribute.String("marginalia.activity_id", activity.ID.String()),
	)
	e.logger.Info().
		Str("verb", activity.Type).
		Str("activity", activity.Name).
		Str("actor", actor.String()).
		Str("activity_id", activity.ID.String()).
		Msg("activity logged")
	return activity, nil
}

func (e *Engine) process(ctx context.Context, actor models.ReaderID, env command.Envelope) (*models.Activity, error) {
	name := envelopeActivity(env)

	// Received -> Parsed
	cmd, err := command.Parse(env)
	if err != nil {
		return nil, classify(Received, name, err)
	}
	name = dispatch.ActivityName(cmd.Verb, cmd.Object.Type, cmd.TargetType())
	if cmd.Actor != "" && cmd.Actor != actor.String() {
		return nil, forbidden(Parsed, name, command.Ref{Type: "Reader", ID: cmd.Actor})
	}

	route, err := dispatch.Resolve(cmd.Verb, cmd.Object.Type, cmd.TargetType())
	if err != nil {
		return nil, classifyCommand(Parsed, name, cmd, err)
	}

	// Parsed -> Validated
	if err := e.schemas.Validate(cmd); err != nil {
		return nil, classifyCommand(Parsed, name, cmd, err)
	}
	intent, prepErr := route.Op.Prepare(cmd, actor)
	var valErr *schema.ValidationError
	if errors.As(prepErr, &valErr) {
		return nil, classifyCommand(Parsed, name, cmd, prepErr)
	}

	// Validated -> Authorized
	if f := e.authorize(ctx, actor, cmd, name); f != nil {
		return nil, f
	}
	// a reference the probes could not see, e.g. a malformed payload id
	if prepErr != nil {
		return nil, classify(Authorized, name, prepErr)
	}

	// Authorized -> Executed -> Logged
	var logged *models.Activity
	err = e.store.WithinTx(ctx, func(tx store.Store) error {
		res, err := route.Op.Execute(ctx, tx, intent)
		if err != nil {
			return err
		}
		logged, err = e.outbox.Append(ctx, tx, actor, cmd.Verb, route.Activity, res)
		if err != nil {
			return &stepError{state: Executed, err: err}
		}
		return nil
	})
	if err != nil {
		state := Authorized
		var se *stepError
		if errors.As(err, &se) {
			state, err = se.state, se.err
		}
		return nil, classifyCommand(state, name, cmd, err)
	}
	return logged, nil
}

// authorize checks that the actor exists, then probes every reference of the
// command: existence first, then ownership.
func (e *Engine) authorize(ctx context.Context, actor models.ReaderID, cmd command.Command, name string) *Failure {
	ctx, span := e.tracer.Start(ctx, "engine.authorize")
	defer span.End()

	probe := store.ReadOnly(e.store)

	reader, err := probe.GetReader(ctx, actor)
	if err != nil {
		return classify(Validated, name, fmt.Errorf("failed to load actor: %w", err))
	}
	if reader == nil {
		return classify(Validated, name, &store.NotFoundError{Type: "Reader", ID: actor.String()})
	}

	for _, p := range dispatch.Probes(cmd) {
		res, ok := handler.ResourceFor(p.Ref.Type)
		if !ok {
			continue
		}
		exists, err := res.Exists(ctx, probe, p.Ref.ID)
		if err != nil {
			return classify(Validated, name, fmt.Errorf("failed to probe %s: %w", p.Ref, err))
		}
		if !exists {
			return classify(Validated, name, &store.NotFoundError{Type: string(p.Ref.Type), ID: p.Ref.ID})
		}
		if !p.Owned {
			continue
		}
		owned, err := res.OwnedBy(ctx, probe, p.Ref.ID, actor)
		if err != nil {
			return classify(Validated, name, fmt.Errorf("failed to probe %s: %w", p.Ref, err))
		}
		if !owned {
			return forbidden(Validated, name, p.Ref)
		}
	}
	return nil
}

func (e *Engine) logFailure(actor models.ReaderID, f *Failure) {
	var ev *zerolog.Event
	switch f.Kind {
	case UnsupportedCombination, Infrastructure:
		ev = e.logger.Error().Err(f.Err)
	case BadEnvelope, ValidationError:
		ev = e.logger.Debug()
	default:
		ev = e.logger.Info()
	}
	ev.Str("activity", f.Details.Activity).
		Str("actor", actor.String()).
		Str("kind", string(f.Kind)).
		Str("state", f.State.String()).
		Str("type", f.Details.Type).
		Str("id", f.Details.ID).
		Msg("command failed")
}

// stepError marks the state an error inside the transaction came from.
type stepError struct {
	state State
	err   error
}

func (e *stepError) Error() string { return e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

// envelopeActivity names an activity from the raw envelope, for failures
// that happen before parsing succeeds.
func envelopeActivity(env command.Envelope) string {
	name := strings.TrimSpace(env.Type)
	if t, ok := env.Object["type"].(string); ok {
		name = strings.TrimSpace(name + " " + t)
	}
	return name
}
