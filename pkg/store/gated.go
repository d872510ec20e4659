package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/matchnote/matchnote/pkg/models"
)

// ErrRemoteUnavailable is returned by a Gated remote whose gate is closed.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// Gate decides whether the remote may be contacted right now.
type Gate interface {
	Ready(ctx context.Context) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context) bool

func (f GateFunc) Ready(ctx context.Context) bool { return f(ctx) }

// Gated wraps a Remote and refuses every call while its gate is closed.
//
// The gate is evaluated on each call, so signing in or regaining connectivity
// takes effect without rebuilding the store.
type Gated struct {
	Remote
	gate Gate
}

// NewGated returns remote guarded by gate.
func NewGated(remote Remote, gate Gate) *Gated {
	return &Gated{Remote: remote, gate: gate}
}

// Unwrap returns the underlying remote.
func (g *Gated) Unwrap() Remote {
	return g.Remote
}

func (g *Gated) check(ctx context.Context) error {
	if !g.gate.Ready(ctx) {
		return fmt.Errorf("%w: offline or signed out", ErrRemoteUnavailable)
	}
	return nil
}

func (g *Gated) Save(ctx context.Context, r models.Record) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	return g.Remote.Save(ctx, r)
}

func (g *Gated) Update(ctx context.Context, r models.Record) error {
	if err := g.check(ctx); err != nil {
		return err
	}
	return g.Remote.Update(ctx, r)
}

func (g *Gated) GetAll(ctx context.Context, kind models.Kind, owner string) ([]models.Record, error) {
	if err := g.check(ctx); err != nil {
		return nil, err
	}
	return g.Remote.GetAll(ctx, kind, owner)
}
