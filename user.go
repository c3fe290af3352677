package parley

// User is the minimal descriptor the client keeps for the logged-in user.
type User struct {
	Username string `json:"username"`
}

// Credentials carry a login or signup attempt.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
