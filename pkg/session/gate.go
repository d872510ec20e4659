package session

import "context"

// Prober reports whether the network is reachable.
type Prober interface {
	Online(ctx context.Context) bool
}

// Gate is open when an account is signed in and the device is online. It
// implements store.Gate.
type Gate struct {
	session *Session
	prober  Prober
}

func NewGate(s *Session, p Prober) *Gate {
	return &Gate{session: s, prober: p}
}

// Ready checks the session first so a signed-out device never probes the network.
func (g *Gate) Ready(ctx context.Context) bool {
	return g.session.SignedIn(ctx) && g.prober.Online(ctx)
}
