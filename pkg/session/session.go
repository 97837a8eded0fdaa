package session

import "github.com/google/uuid"

// State is the authentication state of the Manager.
type State int

const (
	StateAnonymous State = iota
	StateValidating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateValidating:
		return "validating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// User is the signed-in identity.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}
