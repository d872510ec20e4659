// Package session tracks who owns the records on this device and whether an
// account is signed in.
//
// Until the user signs in, records are owned by an anonymous id generated on
// first use. Signing in replaces the owner with the account id.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/settings"
)

const (
	keyOwnerID  = "owner_id"
	keySignedIn = "is_login"
)

// Session reads and writes the session state kept in settings.
type Session struct {
	settings settings.Store

	mu sync.Mutex
}

func New(s settings.Store) *Session {
	return &Session{settings: s}
}

// OwnerID returns the current owner, creating an anonymous one if none exists.
func (s *Session) OwnerID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok, err := s.settings.Get(ctx, keyOwnerID)
	if err != nil {
		return "", err
	}
	if ok && owner != "" {
		return owner, nil
	}

	owner = models.NewID()
	if err := s.settings.Set(ctx, keyOwnerID, owner); err != nil {
		return "", fmt.Errorf("failed to store anonymous owner: %w", err)
	}
	return owner, nil
}

// SignedIn reports whether an account is signed in. Unreadable state counts as signed out.
func (s *Session) SignedIn(ctx context.Context) bool {
	v, ok, err := s.settings.Get(ctx, keySignedIn)
	if err != nil || !ok {
		return false
	}
	signedIn, err := strconv.ParseBool(v)
	return err == nil && signedIn
}

// SignIn makes account the owner and sets the signed-in flag.
func (s *Session) SignIn(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.Set(ctx, keyOwnerID, account); err != nil {
		return fmt.Errorf("failed to store owner: %w", err)
	}
	if err := s.settings.Set(ctx, keySignedIn, strconv.FormatBool(true)); err != nil {
		return fmt.Errorf("failed to store sign-in flag: %w", err)
	}
	return nil
}

// Restore puts back an owner and sign-in flag read earlier, undoing a SignIn
// whose follow-up work failed.
func (s *Session) Restore(ctx context.Context, owner string, signedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.Set(ctx, keyOwnerID, owner); err != nil {
		return fmt.Errorf("failed to restore owner: %w", err)
	}
	if err := s.settings.Set(ctx, keySignedIn, strconv.FormatBool(signedIn)); err != nil {
		return fmt.Errorf("failed to restore sign-in flag: %w", err)
	}
	return nil
}

// SignOut clears the signed-in flag. The owner and local records are kept.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.settings.Set(ctx, keySignedIn, strconv.FormatBool(false)); err != nil {
		return fmt.Errorf("failed to clear sign-in flag: %w", err)
	}
	return nil
}
