package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccessToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	user := &model.User{Username: "alice", Tenant: "acme", Permissions: []string{model.ReadTarget, model.UpdateTarget}}

	signed, err := GenerateAccessToken(user, key, time.Hour)
	require.NoError(t, err)

	token, err := jwt.Parse([]byte(signed), jwt.WithKey(jwa.RS256, &key.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, "alice", token.Subject())
	assert.NotEmpty(t, token.JwtID())
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiration(), time.Minute)
	tenant, ok := token.Get("tenant")
	require.True(t, ok)
	assert.Equal(t, "acme", tenant)
	permissions, ok := token.Get("permissions")
	require.True(t, ok)
	assert.Equal(t, []any{model.ReadTarget, model.UpdateTarget}, permissions)
}

func TestGenerateAccessToken_Invalid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = GenerateAccessToken(&model.User{Username: "alice"}, key, time.Hour)
	assert.ErrorContains(t, err, "tenant")

	_, err = GenerateAccessToken(&model.User{Username: "alice", Tenant: "acme"}, key, 0)
	assert.ErrorContains(t, err, "expiration")
}

func TestParsePrivateKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("PKCS1", func(t *testing.T) {
		encoded := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

		parsed, err := ParsePrivateKey(encoded)

		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})

	t.Run("PKCS8", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		encoded := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

		parsed, err := ParsePrivateKey(encoded)

		require.NoError(t, err)
		assert.True(t, key.Equal(parsed))
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := ParsePrivateKey([]byte("not a key"))

		assert.Error(t, err)
	})
}
