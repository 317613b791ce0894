// Package identity resolves who is on the other end of a websocket before
// the upgrade. The coordinator trusts whatever identity ends up here.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Identity is a verified user.
type Identity struct {
	UserID      string
	DisplayName string
}

// Provider inspects the upgrade request. A nil Identity with a nil error
// means the connection is trusted to name itself in joinRoom.
type Provider interface {
	Identify(r *http.Request) (*Identity, error)
}

// Trusting accepts every connection without verification.
type Trusting struct{}

func (Trusting) Identify(*http.Request) (*Identity, error) { return nil, nil }

// JWTProvider verifies HS256 tokens issued by the auth service. The token is
// read from the "token" query parameter, the "token" cookie or a bearer
// Authorization header.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret []byte) *JWTProvider {
	return &JWTProvider{secret: secret}
}

func (p *JWTProvider) Identify(r *http.Request) (*Identity, error) {
	tok := tokenFromRequest(r)
	if tok == "" {
		return nil, ErrMissingToken
	}
	return p.Verify(tok)
}

// Verify validates the token. The user id comes from "sub" (or "userId" for
// tokens minted by the notes API) and the display name from "username".
func (p *JWTProvider) Verify(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		uid, _ = claims["userId"].(string)
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	name, _ := claims["username"].(string)
	return &Identity{UserID: uid, DisplayName: name}, nil
}

// Generate mints a token for userID. Used by tests and local tooling.
func (p *JWTProvider) Generate(userID, username string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(expiresIn).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
