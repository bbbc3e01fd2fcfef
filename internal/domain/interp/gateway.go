// Package interp is the consent-gated pass-through to external
// interpretation modules. Interpreters are black boxes: the gateway checks
// access, hands them the assembled state, and appends their annotations
// without ever mutating the base fields.
package interp

import (
	"context"
	"time"

	"github.com/synheart-ai/synheart-core/internal/domain/access"
	"github.com/synheart-ai/synheart-core/internal/domain/model"
	"github.com/synheart-ai/synheart-core/pkg/logger"
)

// ModuleInterpretation is the access-control module name for interpreters.
const ModuleInterpretation = "interpretation"

// Interpreter is an external semantic model consuming assembled state.
type Interpreter interface {
	// Name identifies the interpreter in annotations.
	Name() string

	// Consent is the category gating this interpreter.
	Consent() model.ConsentType

	// Interpret produces annotations for the state. Errors skip this
	// interpreter for the window; they never fail the pipeline.
	Interpret(ctx context.Context, state model.InternalState) ([]model.Annotation, error)
}

// Gateway fans assembled state out to registered interpreters.
type Gateway struct {
	interpreters []Interpreter
	log          logger.Logger
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithInterpreter registers an interpreter.
func WithInterpreter(i Interpreter) Option {
	return func(g *Gateway) {
		if i != nil {
			g.interpreters = append(g.interpreters, i)
		}
	}
}

// WithLogger sets a custom logger for the gateway.
func WithLogger(log logger.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Annotate runs each allowed interpreter and returns a copy of the state
// with their annotations appended. Denied interpreters are skipped
// silently from the state's point of view; denials are logged for audit.
func (g *Gateway) Annotate(ctx context.Context, state model.InternalState, cap *access.CapabilityToken, consents access.ConsentView, now time.Time) model.InternalState {
	for _, i := range g.interpreters {
		req := access.Request{Module: ModuleInterpretation, Verb: model.VerbInfer, Consent: i.Consent()}
		out := access.Decide(cap, consents, req, now)
		if !out.Allowed() {
			if g.log != nil {
				g.log.Debug(ctx, "interpreter skipped",
					logger.String("interpreter", i.Name()),
					logger.String("reason", string(out.Reason)),
				)
			}
			continue
		}
		anns, err := i.Interpret(ctx, state)
		if err != nil {
			if g.log != nil {
				g.log.Warn(ctx, "interpreter failed",
					logger.String("interpreter", i.Name()),
					logger.Error(err),
				)
			}
			continue
		}
		state.Annotations = append(state.Annotations, anns...)
	}
	return state
}
