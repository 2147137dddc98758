// Package provider defines the contracts this service needs from the remote
// storage and identity provider.
package provider

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectUnavailable means the provider answered not-found or forbidden for an object.
	ErrObjectUnavailable = errors.New("object unavailable at provider")
	// ErrGrantRevoked means the provider rejected the owner's refresh credential.
	ErrGrantRevoked = errors.New("delegated grant revoked")
	// ErrUpstream covers network failures and unexpected provider responses.
	ErrUpstream = errors.New("provider request failed")
)

// Token is the result of a credential exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenRefresher exchanges a refresh credential for a new access credential.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// ObjectMetadata is the subset of provider metadata the proxy relays.
type ObjectMetadata struct {
	ID       string
	Name     string
	MimeType string
}

// ObjectStream is an open byte stream for a remote object. ContentLength is -1 when unknown.
type ObjectStream struct {
	Body          io.ReadCloser
	ContentLength int64
}

// ContentProvider reads and removes objects on behalf of an owner.
type ContentProvider interface {
	Metadata(ctx context.Context, accessToken, fileID string) (*ObjectMetadata, error)
	Open(ctx context.Context, accessToken, fileID string) (*ObjectStream, error)
	// Delete removes the object. An object that is already gone is not an error.
	Delete(ctx context.Context, accessToken, fileID string) error
}

// Identity is the profile returned after a sign-in code exchange.
type Identity struct {
	ID      string
	Name    string
	Picture string
}

// Authenticator drives the delegated sign-in exchange.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	Identify(ctx context.Context, accessToken string) (*Identity, error)
}
