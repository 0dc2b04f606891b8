package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTProvider validates HS256 tokens. The subject claim carries the user ID
// and the "perms" claim carries the permission flags.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) CallerFromToken(_ context.Context, tokenString string) (Caller, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return Caller{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Caller{}, ErrInvalidToken
	}

	caller := Caller{UserID: sub}
	if perms, ok := claims["perms"].(map[string]interface{}); ok {
		caller.Permissions = Permissions{
			CanCreateRooms: boolClaim(perms, "canCreateRooms"),
			CanJoinRooms:   boolClaim(perms, "canJoinRooms"),
			CanManageUsers: boolClaim(perms, "canManageUsers"),
			CanDeleteRooms: boolClaim(perms, "canDeleteRooms"),
		}
	}
	return caller, nil
}

// IssueToken signs a token for the given caller, valid for ttl.
func (p *JWTProvider) IssueToken(caller Caller, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": caller.UserID,
		"perms": map[string]bool{
			"canCreateRooms": caller.Permissions.CanCreateRooms,
			"canJoinRooms":   caller.Permissions.CanJoinRooms,
			"canManageUsers": caller.Permissions.CanManageUsers,
			"canDeleteRooms": caller.Permissions.CanDeleteRooms,
		},
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func boolClaim(m map[string]interface{}, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}
