// Package notebook holds the operations behind every user action: saving and
// deleting records, listing them, and synchronising on demand.
//
// Every write goes to the local store first and fails if the local store
// fails. When the device is online and signed in, the changed records are then
// pushed to the remote; a failed push is logged and left for the next
// reconciliation.
package notebook

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/reconcile"
	"github.com/matchnote/matchnote/pkg/store"
)

// ErrNotReady is returned by Sync when the device is offline or signed out.
var ErrNotReady = errors.New("sync skipped: offline or signed out")

// Syncer reconciles every kind.
type Syncer interface {
	ReconcileAll(ctx context.Context) (reconcile.Report, error)
}

// Service implements the notebook operations.
type Service struct {
	local  store.Local
	remote store.Remote
	gate   store.Gate
	owners reconcile.OwnerSource
	syncer Syncer
	log    zerolog.Logger
}

// New wires a service. remote is wrapped in a store.Gated using gate.
func New(local store.Local, remote store.Remote, gate store.Gate, owners reconcile.OwnerSource, syncer Syncer, log zerolog.Logger) *Service {
	return &Service{
		local:  local,
		remote: store.NewGated(remote, gate),
		gate:   gate,
		owners: owners,
		syncer: syncer,
		log:    log.With().Str("component", "notebook").Logger(),
	}
}

// Save stores r locally and pushes it to the remote when possible. A record
// without an id gets a new one; the owner and timestamps are always set here.
// Save never changes the delete flag: a new record starts live and an
// existing one keeps its flag, so deletion always goes through Delete and
// reaches every descendant.
func (s *Service) Save(ctx context.Context, r models.Record) error {
	owner, err := s.owners.OwnerID(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve owner: %w", err)
	}

	var existing models.Record
	if r.RecordID() == "" {
		r.SetRecordID(models.NewID())
	} else if existing, err = s.local.Get(ctx, r.Kind(), r.RecordID()); err != nil {
		return err
	}
	if existing != nil {
		r.SetDeleted(existing.Deleted())
		if r.Created().IsZero() {
			// Keeps created_at on updates that omit it.
			r.Touch(existing.Created())
		}
	} else {
		r.SetDeleted(false)
	}
	r.SetOwner(owner)
	r.Touch(models.Now())

	if err := s.local.Upsert(ctx, r); err != nil {
		return err
	}
	s.push(ctx, r)
	return nil
}

// Delete soft-deletes the record and its descendants, then pushes them.
// It returns the number of records flagged; 0 means the record did not exist.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id string) (int, error) {
	changed, err := s.local.SoftDelete(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	for _, r := range changed {
		s.push(ctx, r)
	}
	return len(changed), nil
}

// Get returns the record or nil. Deleted records are returned too.
func (s *Service) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	return s.local.Get(ctx, kind, id)
}

func (s *Service) List(ctx context.Context, kind models.Kind, opts store.ListOptions) ([]models.Record, error) {
	return s.local.List(ctx, kind, opts)
}

func (s *Service) Count(ctx context.Context, kind models.Kind, opts store.ListOptions) (int64, error) {
	return s.local.Count(ctx, kind, opts)
}

// Sync runs a full reconciliation, or returns ErrNotReady without trying.
func (s *Service) Sync(ctx context.Context) (reconcile.Report, error) {
	if !s.gate.Ready(ctx) {
		return reconcile.Report{}, ErrNotReady
	}
	return s.syncer.ReconcileAll(ctx)
}

func (s *Service) push(ctx context.Context, r models.Record) {
	err := s.remote.Save(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrRemoteUnavailable):
		s.log.Debug().Str("kind", r.Kind().String()).Str("id", r.RecordID()).Msg("remote push deferred")
	default:
		s.log.Warn().Err(err).Str("kind", r.Kind().String()).Str("id", r.RecordID()).Msg("remote push failed")
	}
}
