package middleware

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	sessionCookieName = "face_attendance_session"
	tokenIssuer       = "face-attendance"
)

// Token stages. A pending token proves the password; a session token also
// proves the face.
const (
	StagePending = "pending"
	StageSession = "session"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload.
type Claims struct {
	Stage string `json:"stage"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	secret     []byte
	pendingTTL time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewTokenManager creates a token manager. An empty secret is replaced by a
// random one, which invalidates all tokens on restart.
func NewTokenManager(secret string, pendingTTL, sessionTTL time.Duration) (*TokenManager, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}
	return &TokenManager{
		secret:     key,
		pendingTTL: pendingTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}, nil
}

// Issue signs a token for the user at the given stage.
func (tm *TokenManager) Issue(userID int64, role, stage string) (string, time.Time, error) {
	ttl := tm.pendingTTL
	if stage == StageSession {
		ttl = tm.sessionTTL
	}
	now := tm.now()
	expires := now.Add(ttl)

	claims := Claims{
		Stage: stage,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates the signature, expiry and issuer of a token.
func (tm *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(tokenIssuer, true) || claims.UserID() == 0 {
		return nil, ErrInvalidToken
	}
	if claims.Stage != StagePending && claims.Stage != StageSession {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetSessionCookie stores a session token in an HttpOnly cookie.
func (tm *TokenManager) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie.
func (tm *TokenManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// FromRequest reads the bearer token, falling back to the session cookie.
func (tm *TokenManager) FromRequest(r *http.Request) (*Claims, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return tm.Parse(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return tm.Parse(c.Value)
	}
	return nil, ErrInvalidToken
}
