package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parleychat/parley/session"
)

func TestSessionLifecycle(t *testing.T) {
	s := session.New()
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())

	s.Set("tok-123", "alice")
	assert.True(t, s.Authenticated())
	assert.Equal(t, "tok-123", s.Token())
	assert.Equal(t, "alice", s.Username())

	s.Clear()
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())
	assert.Empty(t, s.Username())
}

func TestGuardRedirectsAnonymous(t *testing.T) {
	s := session.New()
	g := session.NewGuard(s)

	assert.Equal(t, session.ViewLogin, g.Resolve(session.ViewChat))
	assert.Equal(t, session.ViewSignup, g.Resolve(session.ViewSignup))

	// authentication returns to the view that triggered the redirect
	s.Set("tok", "alice")
	assert.Equal(t, session.ViewChat, g.AfterLogin())

	// the remembered request is consumed
	assert.Equal(t, session.ViewChat, g.AfterLogin())
}

func TestGuardAllowsAuthenticated(t *testing.T) {
	s := session.New()
	s.Set("tok", "alice")
	g := session.NewGuard(s)

	assert.Equal(t, session.ViewChat, g.Resolve(session.ViewChat))
}

func TestGuardLogout(t *testing.T) {
	s := session.New()
	s.Set("tok", "alice")
	g := session.NewGuard(s)

	assert.Equal(t, session.ViewLogin, g.Logout())
	assert.False(t, s.Authenticated())
	assert.Equal(t, session.ViewLogin, g.Resolve(session.ViewChat))
}
