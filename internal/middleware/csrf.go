package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"todoTracker/internal/logger"

	"go.uber.org/zap"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFFieldName  = "csrfmiddlewaretoken"
	CSRFHeaderName = "X-CSRFToken"

	csrfTokenBytes   = 32
	csrfCookieMaxAge = 365 * 24 * 60 * 60
	csrfKey          = contextKey("csrf")
)

type CSRFOptions struct {
	Secure bool
	// MaxBodyBytes caps the body read while looking for the form field.
	MaxBodyBytes int64
	// Failure answers rejected requests: 403 for a missing or wrong token,
	// 400 for a body that could not be read.
	Failure func(w http.ResponseWriter, r *http.Request, status int)
}

type csrfState struct {
	token  string
	secure bool
}

// CSRF implements double-submit protection. Every unsafe request must echo
// the csrftoken cookie in the csrfmiddlewaretoken field or the X-CSRFToken
// header. Pages get the token from CSRFToken, which also sets the cookie.
func CSRF(opts CSRFOptions) func(http.Handler) http.Handler {
	if opts.Failure == nil {
		opts.Failure = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := &csrfState{secure: opts.Secure}
			if c, err := r.Cookie(CSRFCookieName); err == nil && validCSRFToken(c.Value) {
				state.token = c.Value
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfKey, state))

			if !safeMethod(r.Method) {
				if status := checkCSRF(w, r, state.token, opts.MaxBodyBytes); status != 0 {
					logger.Warn("Middleware: CSRF check failed",
						zap.Int("status", status),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())))
					opts.Failure(w, r, status)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// checkCSRF returns 0 when the submitted token matches the cookie, otherwise
// the status to answer with. Form bodies are parsed here, so handlers find
// r.PostForm already filled.
func checkCSRF(w http.ResponseWriter, r *http.Request, cookieToken string, maxBody int64) int {
	if cookieToken == "" {
		return http.StatusForbidden
	}

	submitted := r.Header.Get(CSRFHeaderName)
	if submitted == "" {
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			err = r.ParseMultipartForm(maxBody)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return http.StatusBadRequest
		}
		submitted = r.PostForm.Get(CSRFFieldName)
	}

	if subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) != 1 {
		return http.StatusForbidden
	}
	return 0
}

func validCSRFToken(token string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == csrfTokenBytes
}

func newCSRFToken() (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// CSRFToken returns the token a form must send back. The first call for a
// visitor without one mints it and sets the cookie on w, so call it before
// the response header is written. Outside CSRF it returns "".
func CSRFToken(w http.ResponseWriter, r *http.Request) string {
	state, ok := r.Context().Value(csrfKey).(*csrfState)
	if !ok {
		return ""
	}
	if state.token != "" {
		return state.token
	}

	token, err := newCSRFToken()
	if err != nil {
		logger.Error("Middleware: Could not mint CSRF token", err)
		return ""
	}
	state.token = token
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		Secure:   state.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// RotateCSRFToken replaces the visitor's token. Logging in calls it so a
// token planted before login is useless afterwards.
func RotateCSRFToken(w http.ResponseWriter, r *http.Request) {
	if state, ok := r.Context().Value(csrfKey).(*csrfState); ok {
		state.token = ""
	}
	CSRFToken(w, r)
}
