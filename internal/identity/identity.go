// Package identity resolves callers from bearer tokens and carries the
// permission flags the room operations check.
package identity

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a token cannot be resolved to a caller.
var ErrInvalidToken = errors.New("invalid token")

// Permissions are the capability flags granted to a caller.
type Permissions struct {
	CanCreateRooms bool `json:"canCreateRooms"`
	CanJoinRooms   bool `json:"canJoinRooms"`
	CanManageUsers bool `json:"canManageUsers"`
	CanDeleteRooms bool `json:"canDeleteRooms"`
}

// Caller is an authenticated user.
type Caller struct {
	UserID      string
	Permissions Permissions
}

// IsAdmin reports whether the caller may act on rooms they do not own.
func (c Caller) IsAdmin() bool {
	return c.Permissions.CanManageUsers
}

// Provider authenticates tokens.
type Provider interface {
	CallerFromToken(ctx context.Context, token string) (Caller, error)
}

// StaticProvider resolves tokens from a fixed map, for tests and demos.
type StaticProvider struct {
	callers map[string]Caller
}

func NewStaticProvider(callers map[string]Caller) *StaticProvider {
	return &StaticProvider{callers: callers}
}

func (p *StaticProvider) CallerFromToken(_ context.Context, token string) (Caller, error) {
	caller, ok := p.callers[token]
	if !ok {
		return Caller{}, ErrInvalidToken
	}
	return caller, nil
}

// OpenProvider treats any non-empty token as the user ID itself with full
// permissions. Only suitable for local single-host runs without auth
// configured.
type OpenProvider struct{}

func (OpenProvider) CallerFromToken(_ context.Context, token string) (Caller, error) {
	if token == "" {
		return Caller{}, ErrInvalidToken
	}
	return Caller{
		UserID: token,
		Permissions: Permissions{
			CanCreateRooms: true,
			CanJoinRooms:   true,
			CanManageUsers: true,
			CanDeleteRooms: true,
		},
	}, nil
}
