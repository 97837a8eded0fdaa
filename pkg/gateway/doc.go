// Package gateway is the single point through which stocksync talks to the
// remote inventory API.
//
// Every request passes through Client.Do, which resolves the path against the
// configured base URL, attaches the bearer credential held by Credentials (if
// any), tags the call with an X-Request-ID and decodes JSON responses.
//
// # Credentials
//
// Credentials is an explicit, shareable request context instead of a
// process-wide global. It holds the current token and exactly one
// unauthorized handler. The token is read when a request is dispatched, so a
// change made after dispatch is not observed by in-flight calls. Registering a
// handler replaces the previous one (last writer wins).
//
// # Errors
//
// Failed calls return *Error. Use errors.Is with the package sentinels to
// classify them:
//
//   - ErrUnauthorized – HTTP 401; the unauthorized handler has already run once
//   - ErrValidation   – HTTP 400, 409 or 422
//   - ErrNotFound     – HTTP 404
//   - ErrRequest      – any failure other than 401, including transport errors
//   - ErrTransport    – the request never produced a response
//   - ErrTimeout      – the per-request deadline expired
//
// # Usage
//
//	creds := gateway.NewCredentials()
//	gw, err := gateway.New("https://stock.example.com/api", gateway.WithCredentials(creds))
//	creds.SetUnauthorizedHandler(func() { /* clear session, go to login */ })
//
//	var items []items.Item
//	err = gw.Get(ctx, "/items", url.Values{"q": {"bolt"}}, &items)
package gateway
