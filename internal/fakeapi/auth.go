package fakeapi

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

type userKey struct{}

func withUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func userFrom(ctx context.Context) User {
	u, _ := ctx.Value(userKey{}).(User)
	return u
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Username]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	s.mu.Lock()
	token := s.issueLocked(acc.user.Username)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		User:        acc.user,
	})
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}
