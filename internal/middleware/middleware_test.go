package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"todoTracker/internal/auth"
	"todoTracker/internal/models/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) UserID(r *http.Request) (int64, error) {
	args := m.Called(r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessions) Logout(w http.ResponseWriter) {
	m.Called(w)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) CurrentUser(ctx context.Context, id int64) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)

	for _, bad := range []string{"has space", strings.Repeat("x", 65), "tab\there"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", bad)
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.NotEqual(t, bad, seen)
		assert.Len(t, seen, 36)
	}
}

func TestLogging_DefaultsToOK(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogging_PassesStatusThrough(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.9:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0)(http.HandlerFunc(okHandler))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestAuthenticate_LoadsUser(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockUsers)
	alice := &user.User{ID: 7, Username: "alice", IsActive: true}

	sessions.On("UserID", mock.Anything).Return(int64(7), nil)
	users.On("CurrentUser", mock.Anything, int64(7)).Return(alice, nil)

	var got *user.User
	h := Authenticate(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentUser(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, alice, got)
	sessions.AssertNotCalled(t, "Logout", mock.Anything)
}

func TestAuthenticate_Anonymous(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockUsers)
	sessions.On("UserID", mock.Anything).Return(int64(0), auth.ErrNoSession)

	ran, authenticated := false, false
	h := Authenticate(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		_, authenticated = CurrentUser(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, ran)
	assert.False(t, authenticated)
	users.AssertNotCalled(t, "CurrentUser", mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "Logout", mock.Anything)
}

func TestAuthenticate_ClearsBadSession(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockUsers)
	sessions.On("UserID", mock.Anything).Return(int64(0), auth.ErrInvalidSession)
	sessions.On("Logout", mock.Anything).Return()

	h := Authenticate(sessions, users)(http.HandlerFunc(okHandler))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	sessions.AssertCalled(t, "Logout", mock.Anything)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	sessions := new(MockSessions)
	users := new(MockUsers)
	sessions.On("UserID", mock.Anything).Return(int64(3), nil)
	sessions.On("Logout", mock.Anything).Return()
	users.On("CurrentUser", mock.Anything, int64(3)).Return(nil, errors.New("gone"))

	var authenticated bool
	h := Authenticate(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = CurrentUser(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, authenticated)
	sessions.AssertCalled(t, "Logout", mock.Anything)
}

func TestRequireLogin(t *testing.T) {
	h := RequireLogin(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/?page=2", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/?next=%2Ftasks%2F%3Fpage%3D2", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	req = req.WithContext(WithUser(req.Context(), &user.User{ID: 1}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
