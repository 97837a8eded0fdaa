package fakeapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/stocksync/pkg/items"
	"github.com/dmitrymomot/stocksync/pkg/tables"
)

// DefaultTokenTTL matches the remote service's default token lifetime.
const DefaultTokenTTL = 12 * time.Hour

// User is the identity returned by the auth endpoints.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

type account struct {
	user User
	hash []byte
}

type fault struct {
	method string
	path   string
	status int
	detail any
}

// Option configures a Server.
type Option func(*Server)

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithSigningKey sets the token signing key.
func WithSigningKey(key string) Option {
	return func(s *Server) {
		if key != "" {
			s.signer = signer{key: []byte(key)}
		}
	}
}

// WithLogger enables request logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server holds the fake service state. All methods are safe for concurrent use.
type Server struct {
	signer   signer
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	accounts   map[string]account
	tables     []tables.Table
	items      []items.Item
	generation int
	faults     []fault
	latency    time.Duration
	hits       map[string]int
	uploads    map[string][]byte
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		signer:   signer{key: []byte(uuid.NewString())},
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
		accounts: map[string]account{},
		tables:   []tables.Table{},
		items:    []items.Item{},
		hits:     map[string]int{},
		uploads:  map[string][]byte{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router. Routes are mounted at the root; callers
// usually serve it under "/api".
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.logger != nil {
		r.Use(s.logRequests)
	}
	r.Use(s.count, s.delay, s.injectFaults)

	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/auth/validate", s.validate)

		r.Get("/tables", s.listTables)
		r.Post("/tables", s.createTable)
		r.Patch("/tables/{id}", s.updateTable)
		r.Delete("/tables/{id}", s.deleteTable)

		r.Get("/items", s.listItems)
		r.Post("/items", s.createItem)
		r.Get("/items/{id}", s.getItem)
		r.Patch("/items/{id}", s.updateItem)
		r.Delete("/items/{id}", s.deleteItem)

		r.Post("/stock/in", s.stockIn)
		r.Post("/stock/out", s.stockOut)

		r.Post("/upload", s.upload)
	})

	r.Get("/media/*", s.media)
	return r
}

// AddUser registers an account. The password is stored as a bcrypt hash.
func (s *Server) AddUser(username, password, role string) User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u := User{ID: uuid.New(), Username: username, Role: role}

	s.mu.Lock()
	s.accounts[username] = account{user: u, hash: hash}
	s.mu.Unlock()
	return u
}

// IssueToken returns a valid token for username without a login call.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(username)
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// SeedTable stores t, assigning an id and timestamps when missing.
func (s *Server) SeedTable(t tables.Table) tables.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Schema == nil {
		t.Schema = map[string]any{"fields": []any{}}
	}
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.tables = append([]tables.Table{t}, s.tables...)
	return t
}

// SeedItem stores it, assigning an id and timestamp when missing.
func (s *Server) SeedItem(it items.Item) items.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.Properties == nil {
		it.Properties = map[string]any{}
	}
	it.UpdatedAt = s.now().UTC()
	s.items = append([]items.Item{it}, s.items...)
	return it.Clone()
}

// Item returns the stored item with id.
func (s *Server) Item(id uuid.UUID) (items.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.itemIndexLocked(id); i >= 0 {
		return s.items[i].Clone(), true
	}
	return items.Item{}, false
}

// FailNext makes the next request matching method and path fail with status.
// detail becomes the "detail" member of the error body.
func (s *Server) FailNext(method, path string, status int, detail any) {
	s.mu.Lock()
	s.faults = append(s.faults, fault{method: method, path: path, status: status, detail: detail})
	s.mu.Unlock()
}

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// Hits returns how many requests were received for "METHOD /path".
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) issueLocked(username string) string {
	now := s.now()
	c := claims{Subject: username, IssuedAt: now.Unix(), Generation: s.generation}
	if s.tokenTTL > 0 {
		c.ExpiresAt = now.Add(s.tokenTTL).Unix()
	}
	return s.signer.issue(c)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		d := s.latency
		s.mu.Unlock()

		if d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var hit *fault
		for i, f := range s.faults {
			if f.method == r.Method && f.path == r.URL.Path {
				hit = &f
				s.faults = append(s.faults[:i:i], s.faults[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		if hit != nil {
			writeDetail(w, hit.status, hit.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "fakeapi request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", r.Header.Get("X-Request-ID")),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		c, err := s.signer.verify(token, s.now())
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		acc, known := s.accounts[c.Subject]
		current := c.Generation == s.generation
		s.mu.Unlock()

		if !known || !current {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), acc.user)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// decode reads a JSON body into v, answering 422 on malformed input.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]any{{
			"loc":  []string{"body"},
			"msg":  err.Error(),
			"type": "value_error.jsondecode",
		}})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []map[string]any{{
			"loc":  []string{"path", "id"},
			"msg":  "value is not a valid uuid",
			"type": "type_error.uuid",
		}})
		return uuid.Nil, false
	}
	return id, true
}

// Mount returns the router with prefix stripped from request paths, so the
// API can be served at "<host>/api" like the real service.
func (s *Server) Mount(prefix string) http.Handler {
	return http.StripPrefix(strings.TrimRight(prefix, "/"), s.Handler())
}
