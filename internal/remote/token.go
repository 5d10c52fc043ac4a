package remote

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmgilman/go/errors"
)

// TokenSource supplies the bearer token for sync requests. An empty token
// means the request is sent without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// TokenFile holds a saved authentication token.
type TokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Server    string    `json:"server,omitempty"`
	Username  string    `json:"username,omitempty"`
}

// Expiry returns the token expiry: ExpiresAt when set, otherwise the "exp"
// claim of the (unverified) JWT. The zero time means no known expiry.
func (t *TokenFile) Expiry() time.Time {
	if !t.ExpiresAt.IsZero() {
		return t.ExpiresAt
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.Token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// IsExpired returns true if the token expires within margin.
func (t *TokenFile) IsExpired(margin time.Duration) bool {
	exp := t.Expiry()
	if exp.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(exp)
}

// LoadTokenFile reads a token file. Plain files holding only the token are
// accepted too.
func LoadTokenFile(path string) (*TokenFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeUnauthorized, "read token file %s", path)
	}
	var tf TokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		tf = TokenFile{Token: strings.TrimSpace(string(data))}
	}
	if tf.Token == "" {
		return nil, errors.Newf(errors.CodeUnauthorized, "token file %s is empty", path)
	}
	return &tf, nil
}

// SaveTokenFile writes tf to path with owner-only permissions.
func SaveTokenFile(path string, tf *TokenFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// FileTokenSource re-reads a token file on every call so an external login
// helper can refresh it. Expired tokens are reported instead of sent.
type FileTokenSource struct {
	Path   string
	Margin time.Duration
}

func (f *FileTokenSource) Token(context.Context) (string, error) {
	tf, err := LoadTokenFile(f.Path)
	if err != nil {
		return "", err
	}
	if tf.IsExpired(f.Margin) {
		return "", errors.WithContext(
			errors.New(errors.CodeUnauthorized, "token expired"),
			"expires_at", tf.Expiry().Format(time.RFC3339),
		)
	}
	return tf.Token, nil
}
