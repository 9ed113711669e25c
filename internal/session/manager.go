// Package session owns the authentication token lifecycle and the current
// user. A single Manager is built at bootstrap and handed to every consumer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/credential"
	"github.com/nhle/agri-advisor/internal/logging"
	"github.com/nhle/agri-advisor/internal/model"
)

// Fallback messages used when the backend supplies no detail.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
)

// ErrSuperseded is returned by a flow whose result was discarded because a
// newer flow (typically Logout) changed the session while it was in flight.
var ErrSuperseded = errors.New("session changed while the request was in flight")

// ErrAlreadyInitialized is returned when Initialize runs more than once.
var ErrAlreadyInitialized = errors.New("session already initialized")

// Error is a user-facing session failure. Error() returns exactly the
// message to display; the cause stays reachable through Unwrap.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// State is the session state machine position.
type State int

const (
	Unauthenticated State = iota
	Validating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	State   State
	User    *model.User
	Token   string
	Loading bool
}

// IsAuthenticated reports whether a user is present.
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

// Authenticator is the backend collaborator. *api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.TokenResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	Me(ctx context.Context, token string) (*model.User, error)
}

// Manager is the single source of truth for the current user.
//
// token and user are always set and cleared together. Every entry point
// that changes the session advances a generation counter; a flow that
// finds the counter moved on discards its result without touching state
// or the token slot.
type Manager struct {
	auth   Authenticator
	tokens credential.TokenStore
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	token       string
	user        *model.User
	loading     bool
	initialized bool
	generation  uint64
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New creates a Manager. Loading reports true until Initialize settles.
func New(auth Authenticator, tokens credential.TokenStore, logger *zap.Logger) *Manager {
	return &Manager{
		auth:        auth,
		tokens:      tokens,
		logger:      logging.OrNop(logger),
		state:       Unauthenticated,
		loading:     true,
		subscribers: make(map[int]chan Snapshot),
	}
}

// Initialize restores the persisted session. Without a stored token it
// settles as unauthenticated. With one, it validates the token against
// the backend; any failure purges the slot and settles as
// unauthenticated. Validation failures are logged, never returned.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initialized = true
	gen := m.generation
	m.mu.Unlock()

	tok, err := m.tokens.Get()
	if err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			m.logger.Warn("reading stored token failed", zap.Error(err))
		}
		m.settle()
		return nil
	}

	m.mu.Lock()
	if gen != m.generation {
		m.loading = false
		m.mu.Unlock()
		m.notify()
		return nil
	}
	m.state = Validating
	m.mu.Unlock()
	m.notify()

	user, err := m.auth.Me(ctx, tok)

	m.mu.Lock()
	m.loading = false
	switch {
	case gen != m.generation:
		m.logger.Debug("discarding stale session validation")
	case api.IsUnauthorized(err):
		m.logger.Info("stored session expired, signing out")
		m.clearLocked()
	case err != nil:
		m.logger.Warn("stored session could not be validated, signing out", zap.Error(err))
		m.clearLocked()
	default:
		m.token = tok
		m.user = user
		m.state = Authenticated
		m.logger.Info("session restored", zap.Int("user_id", user.ID))
	}
	m.mu.Unlock()
	m.notify()

	return nil
}

// Login authenticates with email and password. The token is persisted
// before the profile is fetched. On any failure the session is cleared
// and the returned *Error carries the backend detail or "Login failed".
func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.login(ctx, m.begin(), email, password)
}

// Register creates an account and then logs in with the same credentials.
// A failed login after a successful registration reports the generic
// "Registration failed" rather than the login detail.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	gen := m.begin()

	if err := m.auth.Register(ctx, req); err != nil {
		m.logger.Info("registration rejected", zap.Error(err))
		if !m.isCurrent(gen) {
			return ErrSuperseded
		}
		return userError("register", MsgRegistrationFailed, err)
	}

	if !m.isCurrent(gen) {
		return ErrSuperseded
	}

	if err := m.login(ctx, gen, req.Email, req.Password); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return err
		}
		return &Error{Op: "register", Message: MsgRegistrationFailed, Err: err}
	}
	return nil
}

// Logout clears the stored token and the in-memory session. It never
// touches the network and is idempotent.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.generation++
	m.clearLocked()
	if m.initialized {
		m.loading = false
	}
	m.mu.Unlock()
	m.notify()
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// Loading reports whether the startup validation has not settled yet.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// Token returns the bearer token of the signed-in user, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// State returns the state machine position.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel that receives the latest snapshot after
// every session change. Only the most recent snapshot is buffered.
// cancel stops delivery and closes the channel.
func (m *Manager) Subscribe() (updates <-chan Snapshot, cancel func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) login(ctx context.Context, gen uint64, email, password string) error {
	tok, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return m.fail(gen, "login", MsgLoginFailed, err)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrSuperseded
	}
	if err := m.tokens.Set(tok.AccessToken); err != nil {
		m.clearLocked()
		m.mu.Unlock()
		m.notify()
		return userError("login", MsgLoginFailed, fmt.Errorf("persisting token: %w", err))
	}
	m.mu.Unlock()

	user, err := m.auth.Me(ctx, tok.AccessToken)
	if err != nil {
		return m.fail(gen, "login", MsgLoginFailed, err)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrSuperseded
	}
	m.token = tok.AccessToken
	m.user = user
	m.state = Authenticated
	m.loading = false
	m.initialized = true
	m.mu.Unlock()
	m.notify()

	m.logger.Info("signed in", zap.Int("user_id", user.ID))
	return nil
}

// fail clears the session unless gen was superseded and builds the
// user-facing error.
func (m *Manager) fail(gen uint64, op, fallback string, err error) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrSuperseded
	}
	m.clearLocked()
	m.mu.Unlock()
	m.notify()

	m.logger.Info("authentication failed", zap.String("op", op), zap.Error(err))
	return userError(op, fallback, err)
}

// begin starts a new session-changing flow.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return m.generation
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.generation
}

// settle marks the startup validation finished without a session.
func (m *Manager) settle() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	m.notify()
}

// clearLocked purges the slot and the in-memory session. Slot writes
// happen under the lock so a superseded flow can never write after a
// newer one.
func (m *Manager) clearLocked() {
	if err := m.tokens.Delete(); err != nil {
		m.logger.Error("removing stored token failed", zap.Error(err))
	}
	m.token = ""
	m.user = nil
	m.state = Unauthenticated
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:   m.state,
		User:    m.user.Clone(),
		Token:   m.token,
		Loading: m.loading,
	}
}

// notify delivers the current snapshot to every subscriber without
// blocking, replacing any snapshot still waiting in a buffer.
func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshotLocked()
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func userError(op, fallback string, err error) *Error {
	msg := api.DetailOf(err)
	if msg == "" {
		msg = fallback
	}
	return &Error{Op: op, Message: msg, Err: err}
}
