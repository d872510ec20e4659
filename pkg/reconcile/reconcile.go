package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

// OwnerSource yields the owner whose records are reconciled.
type OwnerSource interface {
	OwnerID(ctx context.Context) (string, error)
}

// StaticOwner is an OwnerSource that always returns itself.
type StaticOwner string

func (o StaticOwner) OwnerID(context.Context) (string, error) { return string(o), nil }

// Result counts what one kind's reconciliation did.
type Result struct {
	Kind models.Kind
	// Pushed local-only records saved to the remote.
	Pushed int
	// Pulled remote-only records written locally.
	Pulled int
	// PushedUpdates and PulledUpdates resolve records both sides have.
	PushedUpdates int
	PulledUpdates int
	Unchanged     int
	// Failed remote writes. The affected records are retried by the next pass.
	Failed int
	Err    error
}

// Changed returns the number of writes the pass performed.
func (r Result) Changed() int {
	return r.Pushed + r.Pulled + r.PushedUpdates + r.PulledUpdates
}

// Report is the outcome of ReconcileAll.
type Report struct {
	Results  []Result
	Started  time.Time
	Finished time.Time
}

// Result returns the result for kind, if that kind was reached.
func (r Report) Result(kind models.Kind) (Result, bool) {
	for _, res := range r.Results {
		if res.Kind == kind {
			return res, true
		}
	}
	return Result{}, false
}

// Changed sums Changed over every kind.
func (r Report) Changed() int {
	n := 0
	for _, res := range r.Results {
		n += res.Changed()
	}
	return n
}

// Err joins the errors of the kinds that failed.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Kind, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Reconciler merges one owner's records between a local and a remote store.
type Reconciler struct {
	local  store.Local
	remote store.Remote
	owners OwnerSource
	log    zerolog.Logger
}

func New(local store.Local, remote store.Remote, owners OwnerSource, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		local:  local,
		remote: remote,
		owners: owners,
		log:    log.With().Str("component", "reconcile").Logger(),
	}
}

// ReconcileAll reconciles every kind in turn. It returns ctx.Err() together
// with the results gathered so far when cancelled between kinds.
func (r *Reconciler) ReconcileAll(ctx context.Context) (Report, error) {
	report := Report{Started: time.Now()}
	for _, kind := range models.Kinds() {
		if err := ctx.Err(); err != nil {
			report.Finished = time.Now()
			return report, err
		}
		res, err := r.Reconcile(ctx, kind)
		if err != nil {
			res.Err = err
			syncFailuresTotal.WithLabelValues(kind.String()).Inc()
			r.log.Error().Err(err).Str("kind", kind.String()).Msg("reconciliation failed")
		}
		report.Results = append(report.Results, res)
	}
	report.Finished = time.Now()

	r.log.Info().
		Int("changed", report.Changed()).
		Dur("took", report.Finished.Sub(report.Started)).
		Msg("reconciliation finished")
	return report, nil
}

// Reconcile brings one kind into agreement. Remote write failures are counted
// in the result; fetch failures and local write failures are returned.
func (r *Reconciler) Reconcile(ctx context.Context, kind models.Kind) (Result, error) {
	res := Result{Kind: kind}
	if _, err := models.Describe(kind); err != nil {
		return res, err
	}
	start := time.Now()
	defer func() {
		syncDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}()

	owner, err := r.owners.OwnerID(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to resolve owner: %w", err)
	}

	var localSet, remoteSet []models.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		localSet, err = r.local.List(gctx, kind, store.ListOptions{
			IncludeDeleted: true,
			Match:          map[string]any{"owner_id": owner},
		})
		if err != nil {
			return fmt.Errorf("failed to list local records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		remoteSet, err = r.remote.GetAll(gctx, kind, owner)
		if err != nil {
			return fmt.Errorf("failed to fetch remote records: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	locals := byID(localSet)
	remotes := byID(remoteSet)
	log := r.log.With().Str("kind", kind.String()).Logger()

	for _, id := range difference(locals, remotes) {
		if r.push(ctx, log, r.remote.Save, locals[id], &res) {
			res.Pushed++
		}
	}

	for _, id := range difference(remotes, locals) {
		written, err := r.pull(ctx, log, remotes[id])
		if err != nil {
			return res, err
		}
		if written {
			res.Pulled++
		}
	}

	for _, id := range intersection(locals, remotes) {
		l, rm := locals[id], remotes[id]
		switch {
		case models.Newer(l, rm):
			if r.push(ctx, log, r.remote.Update, l, &res) {
				res.PushedUpdates++
			}
		case models.Newer(rm, l):
			written, err := r.pull(ctx, log, rm)
			if err != nil {
				return res, err
			}
			if written {
				res.PulledUpdates++
			} else {
				// A local edit newer than the remote copy landed after the read.
				res.Unchanged++
			}
		default:
			res.Unchanged++
		}
	}

	log.Debug().
		Int("pushed", res.Pushed).
		Int("pulled", res.Pulled).
		Int("pushed_updates", res.PushedUpdates).
		Int("pulled_updates", res.PulledUpdates).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Msg("kind reconciled")
	return res, nil
}

func (r *Reconciler) push(ctx context.Context, log zerolog.Logger, write func(context.Context, models.Record) error, rec models.Record, res *Result) bool {
	if err := write(ctx, rec); err != nil {
		res.Failed++
		syncFailuresTotal.WithLabelValues(rec.Kind().String()).Inc()
		log.Warn().Err(err).Str("id", rec.RecordID()).Msg("remote write failed")
		return false
	}
	recordsSyncedTotal.WithLabelValues(rec.Kind().String(), directionPush).Inc()
	return true
}

// pull writes a remote record locally. Malformed remote documents are skipped.
func (r *Reconciler) pull(ctx context.Context, log zerolog.Logger, rec models.Record) (bool, error) {
	written, err := r.local.Merge(ctx, rec)
	if errors.Is(err, models.ErrInvalidRecord) {
		log.Warn().Err(err).Str("id", rec.RecordID()).Msg("skipping malformed remote record")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if written {
		recordsSyncedTotal.WithLabelValues(rec.Kind().String(), directionPull).Inc()
	}
	return written, nil
}

// Run reconciles every interval while gate is open, until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, gate store.Gate) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !gate.Ready(ctx) {
				r.log.Debug().Msg("skipping background sync: offline or signed out")
				continue
			}
			report, err := r.ReconcileAll(ctx)
			if err != nil {
				return
			}
			if err := report.Err(); err != nil {
				r.log.Warn().Err(err).Msg("background sync finished with errors")
			}
		}
	}
}

func byID(records []models.Record) map[string]models.Record {
	out := make(map[string]models.Record, len(records))
	for _, rec := range records {
		out[rec.RecordID()] = rec
	}
	return out
}

// difference returns the sorted ids in a but not in b.
func difference(a, b map[string]models.Record) []string {
	var ids []string
	for id := range a {
		if _, ok := b[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// intersection returns the sorted ids in both a and b.
func intersection(a, b map[string]models.Record) []string {
	var ids []string
	for id := range a {
		if _, ok := b[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
