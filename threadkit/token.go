package threadkit

import (
	gojwt "github.com/golang-jwt/jwt/v5"
)

// TokenAccessor returns the current bearer token, or "" when the user is
// not signed in. the identity collaborator owns storage and refresh.
// the engine only ever reads through this.
type TokenAccessor func() string

func NoToken() string {
	return ""
}

// StoreTokenAccessor reads the token from the host key-value store on
// every call, so a login relayed from a sibling tab is picked up without
// re-initialization.
func StoreTokenAccessor(store KeyValueStore, key string) TokenAccessor {
	return func() string {
		value, _ := store.Get(key)
		return value
	}
}

// TokenClaims is the subset of identity claims the engine cares about.
type TokenClaims struct {
	UserId   string
	UserName string
}

// ParseTokenUnverified extracts claims without verifying the signature.
// the server verifies on every request. the client only uses claims for
// self-identification, e.g. suppressing its own typing echo.
func ParseTokenUnverified(token string) (*TokenClaims, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := parsed.Claims.(gojwt.MapClaims)

	tokenClaims := &TokenClaims{}
	if userId, ok := claims["user_id"].(string); ok {
		tokenClaims.UserId = userId
	} else if sub, ok := claims["sub"].(string); ok {
		tokenClaims.UserId = sub
	}
	if userName, ok := claims["user_name"].(string); ok {
		tokenClaims.UserName = userName
	} else if name, ok := claims["name"].(string); ok {
		tokenClaims.UserName = name
	}
	return tokenClaims, nil
}
