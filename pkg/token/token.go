package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// GenerateAccessToken returns an RS256 signed access token of user which expires after
// expiration. The token carries the claims the authentication middleware extracts the user from.
func GenerateAccessToken(user *model.User, key *rsa.PrivateKey, expiration time.Duration) (string, error) {
	if user.Username == "" || user.Tenant == "" {
		return "", errors.New("username and tenant are required")
	}
	if expiration <= 0 {
		return "", fmt.Errorf("expiration must be positive, got %s", expiration)
	}

	now := time.Now()
	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Subject(user.Username).
		IssuedAt(now).
		Expiration(now.Add(expiration)).
		Claim("tenant", user.Tenant).
		Claim("permissions", user.Permissions).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %v", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return string(signed), nil
}

// ParsePrivateKey parses a PEM encoded RSA private key.
func ParsePrivateKey(pem []byte) (*rsa.PrivateKey, error) {
	key, err := jwk.ParseKey(pem, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}

	var privateKey rsa.PrivateKey
	if err := key.Raw(&privateKey); err != nil {
		return nil, fmt.Errorf("private key must be an RSA key: %v", err)
	}
	return &privateKey, nil
}
