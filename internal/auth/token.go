// Package auth resolves the bearer token attached to authenticated backend
// requests. Token issuance belongs to the external identity provider; this
// package only loads what it produced.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// TokenSource yields the current bearer token. An empty token with a nil
// error means no identity is signed in.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same token.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// VaultTokenSource reads a token sealed with SealToken from disk. The
// decrypted token is cached until the file's modification time changes, so
// an identity refresh that rewrites the file is picked up without restart.
type VaultTokenSource struct {
	path     string
	password string

	mu      sync.Mutex
	token   string
	modTime time.Time
}

// NewVaultTokenSource creates a source over the sealed token file at path.
func NewVaultTokenSource(path, password string) *VaultTokenSource {
	return &VaultTokenSource{path: path, password: password}
}

// Token implements TokenSource.
func (v *VaultTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(v.path)
	if err != nil {
		return "", fmt.Errorf("auth: stat token file: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.token != "" && info.ModTime().Equal(v.modTime) {
		return v.token, nil
	}

	data, err := os.ReadFile(v.path)
	if err != nil {
		return "", fmt.Errorf("auth: read token file: %w", err)
	}
	token, err := OpenToken(data, v.password)
	if err != nil {
		return "", err
	}
	v.token = token
	v.modTime = info.ModTime()
	return token, nil
}

// Config carries what NewTokenSource needs to pick a source.
type Config struct {
	// Token is a raw bearer token. Takes precedence when set.
	Token string
	// TokenFile is a file written by SealToken.
	TokenFile string
	// TokenPassword decrypts TokenFile.
	TokenPassword string
}

// NewTokenSource resolves the configured token source.
//
// Resolution order:
//  1. Token set: a StaticTokenSource.
//  2. TokenFile set: a VaultTokenSource.
//  3. Otherwise a source that always reports domain.ErrAuthMissing, so public
//     endpoints keep working and authenticated ones fail without being sent.
func NewTokenSource(cfg Config) TokenSource {
	switch {
	case strings.TrimSpace(cfg.Token) != "":
		return StaticTokenSource(cfg.Token)
	case cfg.TokenFile != "":
		return NewVaultTokenSource(cfg.TokenFile, cfg.TokenPassword)
	default:
		return TokenFunc(func(context.Context) (string, error) {
			return "", fmt.Errorf("auth: no token configured: %w", domain.ErrAuthMissing)
		})
	}
}
