// Package account binds the device's records to a signed-in account.
//
// Identity itself is established elsewhere; this package receives the account
// id once the identity provider has accepted the user.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/matchnote/matchnote/pkg/notebook"
	"github.com/matchnote/matchnote/pkg/reconcile"
	"github.com/matchnote/matchnote/pkg/session"
)

// ErrEmptyAccount is returned for an empty account id.
var ErrEmptyAccount = errors.New("empty account id")

// OwnerRewriter reassigns every local record to a new owner.
type OwnerRewriter interface {
	RewriteOwner(ctx context.Context, owner string) (int64, error)
}

// Syncer runs a gated full reconciliation.
type Syncer interface {
	Sync(ctx context.Context) (reconcile.Report, error)
}

// Service performs registration, login and logout.
type Service struct {
	records OwnerRewriter
	session *session.Session
	syncer  Syncer
	log     zerolog.Logger
}

func New(records OwnerRewriter, s *session.Session, syncer Syncer, log zerolog.Logger) *Service {
	return &Service{
		records: records,
		session: s,
		syncer:  syncer,
		log:     log.With().Str("component", "account").Logger(),
	}
}

// Register binds the local records to a newly created account.
func (s *Service) Register(ctx context.Context, accountID string) (int64, error) {
	return s.bind(ctx, accountID, "register")
}

// Login binds the local records to an existing account and pulls its records.
// A failed or skipped sync does not fail the login.
func (s *Service) Login(ctx context.Context, accountID string) (int64, error) {
	n, err := s.bind(ctx, accountID, "login")
	if err != nil {
		return n, err
	}

	report, err := s.syncer.Sync(ctx)
	switch {
	case errors.Is(err, notebook.ErrNotReady):
		s.log.Info().Msg("offline; records will sync later")
	case err != nil:
		s.log.Warn().Err(err).Msg("initial sync interrupted")
	case report.Err() != nil:
		s.log.Warn().Err(report.Err()).Msg("initial sync finished with errors")
	}
	return n, nil
}

// Logout clears the signed-in flag. Local records stay on the device.
func (s *Service) Logout(ctx context.Context) error {
	return s.session.SignOut(ctx)
}

// bind switches the session to accountID and then rewrites every local
// record to it. The rewrite is one transaction; when either step fails the
// previous session is put back, so the session owner and the record owners
// never disagree.
func (s *Service) bind(ctx context.Context, accountID, event string) (int64, error) {
	if accountID == "" {
		return 0, ErrEmptyAccount
	}
	prevOwner, err := s.session.OwnerID(ctx)
	if err != nil {
		return 0, err
	}
	wasSignedIn := s.session.SignedIn(ctx)

	restore := func() {
		if err := s.session.Restore(ctx, prevOwner, wasSignedIn); err != nil {
			s.log.Error().Err(err).Str("owner", prevOwner).Msg("failed to restore session after bind failure")
		}
	}
	if err := s.session.SignIn(ctx, accountID); err != nil {
		restore()
		return 0, err
	}
	n, err := s.records.RewriteOwner(ctx, accountID)
	if err != nil {
		restore()
		return 0, fmt.Errorf("failed to bind records to account: %w", err)
	}
	s.log.Info().Str("event", event).Str("account", accountID).Int64("records", n).Msg("account bound")
	return n, nil
}
