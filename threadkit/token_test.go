package threadkit

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"
)

func makeTestToken(claims string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(claims))
	return fmt.Sprintf("%s.%s.sig", header, payload)
}

func TestParseTokenUnverified(t *testing.T) {
	token := makeTestToken(`{"user_id":"u1","user_name":"ann"}`)

	claims, err := ParseTokenUnverified(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "u1", claims.UserId)
	assert.Equal(t, "ann", claims.UserName)
}

func TestParseTokenStandardClaims(t *testing.T) {
	token := makeTestToken(`{"sub":"u2","name":"bo"}`)

	claims, err := ParseTokenUnverified(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, "u2", claims.UserId)
	assert.Equal(t, "bo", claims.UserName)
}

func TestParseTokenMalformed(t *testing.T) {
	_, err := ParseTokenUnverified("not-a-token")
	assert.NotEqual(t, nil, err)
}

func TestStoreTokenAccessor(t *testing.T) {
	store := NewMemoryStore()
	accessor := StoreTokenAccessor(store, "threadkit.token")

	assert.Equal(t, "", accessor())

	// a login in a sibling tab writes the shared store. the accessor
	// picks it up on the next call without re-initialization
	store.Set("threadkit.token", "tok")
	assert.Equal(t, "tok", accessor())

	store.Remove("threadkit.token")
	assert.Equal(t, "", accessor())
}
