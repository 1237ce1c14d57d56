// Package apitest is an in-memory stand-in for the upstream inventory API.
// It serves the same routes, status codes and response shapes the console
// relies on, and adds fault injection hooks for tests.
package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/InventarisHub/internal/middleware"
	"github.com/atinyakov/InventarisHub/internal/models"
)

// UsersShape selects how GET /users/get/all encodes its list.
type UsersShape int

const (
	// UsersBareArray encodes users as a JSON array.
	UsersBareArray UsersShape = iota
	// UsersDataEnvelope encodes users as {"data": [...]}.
	UsersDataEnvelope
	// UsersUnexpected encodes users as {"items": [...]}.
	UsersUnexpected
)

type account struct {
	user models.User
	hash []byte
}

type fault struct {
	status  int
	message string
}

// Server holds the fake API state. All methods are safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	secret   []byte
	cost     int
	log      *zap.Logger
	now      func() time.Time
	products map[string]models.Product
	order    []string
	accounts map[string]*account
	gen      int
	revoked  map[string]bool
	shape    UsersShape
	broken   bool
	faults   map[string][]fault
	holds    map[string]chan struct{}
	calls    map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithBcryptCost sets the cost used to hash seeded passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// WithClock replaces time.Now for record dates and token issue times.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns an empty Server signing tokens with secret.
func New(secret string, opts ...Option) *Server {
	s := &Server{
		secret:   []byte(secret),
		cost:     bcrypt.DefaultCost,
		log:      zap.NewNop(),
		now:      time.Now,
		products: map[string]models.Product{},
		accounts: map[string]*account{},
		faults:   map[string][]fault{},
		holds:    map[string]chan struct{}{},
		calls:    map[string]int{},
		revoked:  map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(s.log))
	r.Use(s.intercept)

	r.Post("/users/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(s.verifyToken))

		r.Post("/users/logout", s.handleLogout)
		r.Get("/users/get/all", s.handleListUsers)
		r.Put("/users/{id}", s.handleUpdateUser)
		r.Delete("/users/{id}", s.handleDeleteUser)

		r.Get("/products", s.handleListProducts)
		r.Put("/products/{id}", s.handleUpdateProduct)
		r.Delete("/products/{id}", s.handleDeleteProduct)
	})
	return r
}

// intercept counts calls and applies holds and injected faults.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callKey(r.Method, r.URL.Path)

		s.mu.Lock()
		s.calls[key]++
		hold := s.holds[key]
		var f *fault
		if queue := s.faults[key]; len(queue) > 0 {
			f = &queue[0]
			s.faults[key] = queue[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if f != nil {
			writeJSON(w, f.status, map[string]string{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callKey(method, path string) string {
	return method + " " + path
}

// AddUser seeds an account and returns its record.
func (s *Server) AddUser(username, password, email string, role models.Role) models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		panic(fmt.Sprintf("apitest: hash password: %v", err))
	}
	u := models.User{ID: uuid.NewString(), Username: username, Email: email, Role: role}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[u.ID] = &account{user: u, hash: hash}
	return u
}

// AddProduct seeds a product. An empty ID gets a uuid, a zero Date gets the
// current time and TotalPrice is recomputed.
func (s *Server) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Date.IsZero() {
		p.Date = s.now().UTC().Truncate(time.Second)
	}
	p.Recalculate()
	if _, exists := s.products[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	s.products[p.ID] = p
	return p
}

// Product returns the stored product id.
func (s *Server) Product(id string) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// Products returns stored products in insertion order.
func (s *Server) Products() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productsLocked()
}

func (s *Server) productsLocked() []models.Product {
	out := make([]models.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

// Users returns stored users sorted by username.
func (s *Server) Users() []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usersLocked()
}

func (s *Server) usersLocked() []models.User {
	out := make([]models.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// SetUsersShape selects the GET /users/get/all encoding.
func (s *Server) SetUsersShape(shape UsersShape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = shape
}

// BreakProductsEnvelope makes GET /products answer {"items": [...]} instead
// of {"products": [...]}.
func (s *Server) BreakProductsEnvelope(broken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = broken
}

// FailNext makes the next call to method path answer status with message.
// Repeated calls queue further failures.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := callKey(method, path)
	s.faults[key] = append(s.faults[key], fault{status: status, message: message})
}

// Hold blocks calls to method path until the returned release func is
// called. release is idempotent.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	key := callKey(method, path)

	s.mu.Lock()
	s.holds[key] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[key] == ch {
				delete(s.holds, key)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many requests method path has received.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[callKey(method, path)]
}

// RevokeTokens invalidates every token issued so far, as if they expired.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
}

type claims struct {
	Role models.Role `json:"role"`
	Gen  int         `json:"gen"`
	jwt.RegisteredClaims
}

func (s *Server) sign(u models.User, gen int) (string, error) {
	now := s.now()
	c := claims{
		Role: u.Role,
		Gen:  gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) verifyToken(raw string) (string, error) {
	c, err := s.parse(raw)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Gen != s.gen || s.revoked[c.ID] {
		return "", errors.New("token revoked")
	}
	if _, ok := s.accounts[c.Subject]; !ok {
		return "", errors.New("account removed")
	}
	return c.Subject, nil
}

func (s *Server) parse(raw string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return &c, nil
}
