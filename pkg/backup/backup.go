// Package backup writes and restores CBOR snapshots of an owner's records.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

const snapshotVersion = 1

type snapshot struct {
	Version int       `cbor:"version"`
	Owner   string    `cbor:"owner"`
	TakenAt time.Time `cbor:"taken_at"`
	Records []entry   `cbor:"records"`
}

type entry struct {
	Kind models.Kind     `cbor:"kind"`
	Body cbor.RawMessage `cbor:"body"`
}

// Store is the part of the local store a backup needs.
type Store interface {
	List(ctx context.Context, kind models.Kind, opts store.ListOptions) ([]models.Record, error)
	Merge(ctx context.Context, r models.Record) (bool, error)
}

// Service exports and restores snapshots.
type Service struct {
	local   Store
	objects ObjectStore
	enc     cbor.EncMode
	log     zerolog.Logger
	now     func() time.Time
}

func New(local Store, objects ObjectStore, log zerolog.Logger) (*Service, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	return &Service{
		local:   local,
		objects: objects,
		enc:     enc,
		log:     log.With().Str("component", "backup").Logger(),
		now:     models.Now,
	}, nil
}

// Key returns the object key of a snapshot of owner taken at t.
func Key(owner string, t time.Time) string {
	return fmt.Sprintf("%s/%s.cbor", owner, t.UTC().Format("20060102T150405.000Z"))
}

// Export writes every record of owner, tombstones included, and returns the
// snapshot key.
func (s *Service) Export(ctx context.Context, owner string) (string, error) {
	snap := snapshot{Version: snapshotVersion, Owner: owner, TakenAt: s.now()}
	for _, kind := range models.Kinds() {
		records, err := s.local.List(ctx, kind, store.ListOptions{
			IncludeDeleted: true,
			Match:          map[string]any{"owner_id": owner},
		})
		if err != nil {
			return "", fmt.Errorf("failed to list %s: %w", kind, err)
		}
		for _, r := range records {
			body, err := s.enc.Marshal(r)
			if err != nil {
				return "", fmt.Errorf("failed to encode %s %s: %w", kind, r.RecordID(), err)
			}
			snap.Records = append(snap.Records, entry{Kind: kind, Body: body})
		}
	}

	data, err := s.enc.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	key := Key(owner, snap.TakenAt)
	if err := s.objects.Put(ctx, key, data); err != nil {
		return "", err
	}
	s.log.Info().Str("key", key).Int("records", len(snap.Records)).Msg("snapshot written")
	return key, nil
}

// Restore merges the records of snapshot key into the local store. A record
// only replaces a local one that is strictly older. It returns how many
// records were written.
func (s *Service) Restore(ctx context.Context, key string) (int, error) {
	data, err := s.objects.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	if snap.Version > snapshotVersion {
		return 0, fmt.Errorf("snapshot %s has version %d, newer than %d", key, snap.Version, snapshotVersion)
	}

	written := 0
	for _, e := range snap.Records {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		r, err := models.New(e.Kind)
		if err != nil {
			return written, err
		}
		if err := cbor.Unmarshal(e.Body, r); err != nil {
			return written, fmt.Errorf("failed to decode %s record: %w", e.Kind, err)
		}
		ok, err := s.local.Merge(ctx, r)
		if err != nil {
			return written, fmt.Errorf("failed to restore %s %s: %w", e.Kind, r.RecordID(), err)
		}
		if ok {
			written++
		}
	}
	s.log.Info().Str("key", key).Int("records", len(snap.Records)).Int("written", written).Msg("snapshot restored")
	return written, nil
}

// Latest returns the key of the newest snapshot of owner, or "" when none.
func (s *Service) Latest(ctx context.Context, owner string) (string, error) {
	keys, err := s.objects.List(ctx, owner+"/")
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", nil
	}
	return keys[len(keys)-1], nil
}
