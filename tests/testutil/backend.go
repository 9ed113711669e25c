package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nhle/agri-advisor/internal/model"
)

// RecordedRequest is a request observed by the fake backend.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	RequestID     string
	Body          string
}

type failure struct {
	status int
	detail string
}

type hold struct {
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

func (h *hold) open() {
	h.releaseOnce.Do(func() { close(h.release) })
}

type account struct {
	password string
	user     model.User
}

// Backend is an in-process fake of the advisory REST API mounted under /api.
type Backend struct {
	Server *httptest.Server

	// NextToken, when set, is issued by the next successful login.
	NextToken string

	mu            sync.Mutex
	accounts      map[string]*account
	tokens        map[string]string
	notifications []model.Notification
	failures      map[string]failure
	holds         map[string]*hold
	requests      []RecordedRequest
	seq           int
}

// NewBackend starts a fake backend that is closed when the test completes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		failures: make(map[string]failure),
		holds:    make(map[string]*hold),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", b.handleLogin)
	mux.HandleFunc("POST /api/auth/register", b.handleRegister)
	mux.HandleFunc("GET /api/v1/auth/me", b.handleMe)
	mux.HandleFunc("GET /api/notifications/unread-count", b.handleUnreadCount)
	mux.HandleFunc("GET /api/notifications/", b.handleList)
	mux.HandleFunc("POST /api/notifications/mark-read", b.handleMarkRead)
	mux.HandleFunc("POST /api/notifications/mark-all-read", b.handleMarkAllRead)
	mux.HandleFunc("DELETE /api/notifications/{id}", b.handleDelete)

	b.Server = httptest.NewServer(b.intercept(mux))
	t.Cleanup(func() {
		b.ReleaseAll()
		b.Server.Close()
	})

	return b
}

// BaseURL returns the API root of the fake backend.
func (b *Backend) BaseURL() string {
	return b.Server.URL + "/api"
}

// AddUser registers an account and returns its profile.
func (b *Backend) AddUser(email, password string, superuser bool) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	u := model.User{
		ID:          b.seq,
		Email:       email,
		IsActive:    true,
		IsSuperuser: superuser,
		CreatedAt:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	b.accounts[email] = &account{password: password, user: u}
	return u
}

// IssueToken returns a valid token for an existing account.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

func (b *Backend) issueLocked(email string) string {
	tok := b.NextToken
	b.NextToken = ""
	if tok == "" {
		b.seq++
		tok = fmt.Sprintf("tok_%d", b.seq)
	}
	b.tokens[tok] = email
	return tok
}

// RevokeToken invalidates a token.
func (b *Backend) RevokeToken(tok string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, tok)
}

// SetNotifications replaces the server-side notification list.
func (b *Backend) SetNotifications(ns ...model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append([]model.Notification(nil), ns...)
}

// Notifications returns a copy of the server-side notification list.
func (b *Backend) Notifications() []model.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Notification(nil), b.notifications...)
}

// Fail makes every request matching method and path answer with status
// and a FastAPI-style detail body until ClearFailures is called.
func (b *Backend) Fail(method, path string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, detail: detail}
}

// ClearFailures removes all injected failures.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// Hold blocks requests matching method and path until release is called.
// entered is closed when the first matching request arrives.
func (b *Backend) Hold(method, path string) (entered <-chan struct{}, release func()) {
	h := &hold{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	b.mu.Lock()
	b.holds[method+" "+path] = h
	b.mu.Unlock()

	return h.entered, func() {
		b.mu.Lock()
		if b.holds[method+" "+path] == h {
			delete(b.holds, method+" "+path)
		}
		b.mu.Unlock()
		h.open()
	}
}

// ReleaseAll unblocks every held request.
func (b *Backend) ReleaseAll() {
	b.mu.Lock()
	holds := b.holds
	b.holds = make(map[string]*hold)
	b.mu.Unlock()

	for _, h := range holds {
		h.open()
	}
}

// Requests returns every request seen so far.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// CountRequests returns how many requests matched method and path.
func (b *Backend) CountRequests(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// intercept records requests and applies injected failures and holds.
func (b *Backend) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		path := strings.TrimPrefix(r.URL.Path, "/api")
		key := r.Method + " " + path

		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method:        r.Method,
			Path:          path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          string(body),
		})
		h := b.holds[key]
		b.mu.Unlock()

		if h != nil {
			h.enterOnce.Do(func() { close(h.entered) })
			select {
			case <-h.release:
			case <-r.Context().Done():
				return
			}
		}

		b.mu.Lock()
		f, failing := b.failures[key]
		b.mu.Unlock()

		if failing {
			writeDetail(w, f.status, f.detail)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}
	email := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[email]
	if !ok || acc.password != password {
		writeDetail(w, http.StatusBadRequest, "Incorrect email or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": b.issueLocked(email),
		"token_type":   "bearer",
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string  `json:"email"`
		Password string  `json:"password"`
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone"`
		Location *string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[req.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	b.seq++
	b.accounts[req.Email] = &account{
		password: req.Password,
		user: model.User{
			ID:        b.seq,
			Email:     req.Email,
			FullName:  req.FullName,
			Phone:     req.Phone,
			Location:  req.Location,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		},
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": b.seq, "email": req.Email})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email, ok := b.authorizeLocked(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	writeJSON(w, http.StatusOK, b.accounts[email].user)
}

func (b *Backend) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.authorizeLocked(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	count := 0
	for _, n := range b.notifications {
		if !n.IsRead {
			count++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (b *Backend) handleList(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.authorizeLocked(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	list := b.notifications
	if list == nil {
		list = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NotificationIDs []int `json:"notification_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.authorizeLocked(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	ids := make(map[int]bool, len(req.NotificationIDs))
	for _, id := range req.NotificationIDs {
		ids[id] = true
	}
	for i := range b.notifications {
		if ids[b.notifications[i].ID] {
			b.notifications[i].IsRead = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Marked %d notifications as read", len(req.NotificationIDs)),
	})
}

func (b *Backend) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.authorizeLocked(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	marked := 0
	for i := range b.notifications {
		if !b.notifications[i].IsRead {
			b.notifications[i].IsRead = true
			marked++
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Marked %d notifications as read", marked),
	})
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.authorizeLocked(r); !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	for i, n := range b.notifications {
		if n.ID == id {
			b.notifications = append(b.notifications[:i], b.notifications[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
			return
		}
	}

	writeDetail(w, http.StatusNotFound, "Notification not found")
}

func (b *Backend) authorizeLocked(r *http.Request) (string, bool) {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	email, ok := b.tokens[tok]
	if !ok {
		return "", false
	}
	if _, exists := b.accounts[email]; !exists {
		return "", false
	}
	return email, true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
