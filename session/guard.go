package session

// View names the screens the guard routes between.
type View string

const (
	ViewLogin  View = "login"
	ViewSignup View = "signup"
	ViewChat   View = "chat"
)

// protected reports whether a view requires a credential.
func protected(v View) bool {
	return v == ViewChat
}

// Guard decides which view may render. An anonymous attempt to enter a
// protected view is redirected to login; the requested view is remembered
// so a later authentication returns there.
type Guard struct {
	session   *Session
	requested View
}

func NewGuard(s *Session) *Guard {
	return &Guard{session: s}
}

// Resolve returns the view to render for a navigation request. If the
// request is protected and the session is anonymous, login is returned and
// the request is kept for later.
func (g *Guard) Resolve(v View) View {
	if protected(v) && !g.session.Authenticated() {
		g.requested = v
		return ViewLogin
	}
	return v
}

// AfterLogin returns the view to land on once a credential is stored: the
// view that originally triggered the redirect, or chat by default. The
// remembered request is consumed.
func (g *Guard) AfterLogin() View {
	v := g.requested
	g.requested = ""
	if v == "" {
		return ViewChat
	}
	return v
}

// Logout clears the credential and routes back to login.
func (g *Guard) Logout() View {
	g.session.Clear()
	g.requested = ""
	return ViewLogin
}
