// Package session owns the ambient authentication state shared by the HTTP
// transport and the realtime channel: the cookie jar, the resolved user
// identity, and session teardown.
//
// Credentials travel only as cookies. The client never attaches a bearer
// token; it reads the access-token cookie solely to learn who is signed in.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/dmitrijs2005/shiftdesk/internal/common"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// Navigator moves the user to another application entry point.
type Navigator interface {
	Redirect(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Redirect(ctx context.Context, path string) { f(ctx, path) }

// Claims are the access-token claims the client cares about.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId,omitempty"`
}

// Session implements http.CookieJar so the same value can be handed to the
// HTTP client and the websocket dialer, and still be wiped on teardown.
type Session struct {
	mu        sync.RWMutex
	jar       *cookiejar.Jar
	baseURL   *url.URL
	userID    string
	navigator Navigator
	loginPath string
	logger    logging.Logger
}

// New creates an empty session scoped to the API base URL.
func New(baseURL string, navigator Navigator, loginPath string, logger logging.Logger) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		jar:       jar,
		baseURL:   u,
		navigator: navigator,
		loginPath: loginPath,
		logger:    logger,
	}, nil
}

func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	jar.SetCookies(u, cookies)
}

func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	jar := s.jar
	s.mu.RUnlock()
	return jar.Cookies(u)
}

// LoadCookieHeader seeds the jar from a "name=value; name2=value2" header
// value, as copied from a browser session.
func (s *Session) LoadCookieHeader(header string) error {
	var cookies []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	if len(cookies) == 0 {
		return fmt.Errorf("%w: no cookies in header", common.ErrInvalidToken)
	}
	s.SetCookies(s.baseURL, cookies)
	return nil
}

// SetUserID pins the identity, e.g. after a login response.
func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
}

// UserID resolves the signed-in user from local state: a pinned identity
// first, then the access-token cookie. The token signature is not checked;
// the server remains the authority and only the subject is read.
func (s *Session) UserID() (string, error) {
	s.mu.RLock()
	id := s.userID
	s.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	for _, c := range s.Cookies(s.baseURL) {
		if c.Name != common.AccessTokenCookieName {
			continue
		}
		return userIDFromToken(c.Value)
	}
	return "", common.ErrNoIdentity
}

func userIDFromToken(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", common.ErrNoIdentity
}

// Teardown clears cookies and identity and redirects to the login entry
// point.
func (s *Session) Teardown(ctx context.Context) {
	jar, _ := cookiejar.New(nil)

	s.mu.Lock()
	s.jar = jar
	s.userID = ""
	s.mu.Unlock()

	s.logger.Warn(ctx, "session terminated", "redirect", s.loginPath)
	if s.navigator != nil {
		s.navigator.Redirect(ctx, s.loginPath)
	}
}
