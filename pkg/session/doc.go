// Package session owns the client's authentication state: the bearer token,
// the current user and where the token is persisted.
//
// A remembered login writes the token to the durable storage tier and survives
// restarts; otherwise it goes to the ephemeral tier. Exactly one tier holds
// the token at a time.
//
// # Lifecycle
//
//	Anonymous ──Initialize(token found)──► Validating ──ok──► Authenticated
//	    ▲                                      │                  │
//	    └─────────────── failure ──────────────┘                  │
//	    └──────────── Logout / 401 from any request ──────────────┘
//
// The Manager registers itself as the gateway's unauthorized handler. When any
// call through the gateway is rejected with 401, the session is cleared and
// the listeners added with OnInvalidated run, in registration order.
//
// # Usage
//
//	m := session.New(gw, durable, ephemeral)
//	m.OnInvalidated(func() { showLogin() })
//	m.Initialize(ctx)
//	if !m.IsAuthenticated() {
//		_, err := m.Login(ctx, session.Credentials{Username: u, Password: p}, true)
//	}
package session
