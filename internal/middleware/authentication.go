package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials are the credentials of the bootstrap administrator. The administrator is granted
// every permission within Tenant.
type AdminCredentials struct {
	Username string
	// PasswordHash is a bcrypt hash of the password.
	PasswordHash string
	Tenant       string
}

// NewAuthentication creates the authentication middleware. Bearer tokens are only accepted if
// publicKey is set.
func NewAuthentication(logger *slog.Logger, publicKey *rsa.PublicKey, admin AdminCredentials) Authentication {
	return Authentication{
		logger:    logger,
		publicKey: publicKey,
		admin:     admin,
	}
}

type Authentication struct {
	logger    *slog.Logger
	publicKey *rsa.PublicKey
	admin     AdminCredentials
}

// Authenticate accepts HTTP basic authentication of the administrator or an RS256 signed bearer
// token. The authenticated [model.User] is stored in the request context.
func (m Authentication) Authenticate(c *gin.Context) {
	user, err := m.authenticate(c)
	if err != nil {
		m.logger.WarnContext(c.Request.Context(), "Authentication failed", "error", err)
		_ = c.Error(errdef.NewUnauthorized("authentication failed"))
		c.Abort()
		return
	}

	ctx := model.NewContextWithUser(c.Request.Context(), user)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func (m Authentication) authenticate(c *gin.Context) (*model.User, error) {
	header := c.GetHeader("Authorization")
	scheme, _, _ := strings.Cut(header, " ")
	switch strings.ToLower(scheme) {
	case "basic":
		return m.basic(c)
	case "bearer":
		return m.token(c)
	case "":
		return nil, errors.New("missing Authorization header")
	}
	return nil, fmt.Errorf("unsupported authorization scheme %q", scheme)
}

func (m Authentication) basic(c *gin.Context) (*model.User, error) {
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		return nil, errors.New("invalid Authorization header format")
	}

	if m.admin.Username == "" || username != m.admin.Username {
		return nil, fmt.Errorf("unknown user %q", username)
	}

	err := bcrypt.CompareHashAndPassword([]byte(m.admin.PasswordHash), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("invalid password of user %q: %v", username, err)
	}

	return &model.User{
		Username:    username,
		Tenant:      m.admin.Tenant,
		Permissions: model.AllPermissions,
	}, nil
}

func (m Authentication) token(c *gin.Context) (*model.User, error) {
	if m.publicKey == nil {
		return nil, errors.New("token authentication is not configured")
	}

	token, err := jwt.ParseRequest(
		c.Request,
		jwt.WithKey(jwa.RS256, m.publicKey),
		jwt.WithHeaderKey("Authorization"),
	)
	if err != nil {
		return nil, fmt.Errorf("token not valid: %v", err)
	}

	return extractUser(token)
}

func extractUser(token jwt.Token) (*model.User, error) {
	if token.Subject() == "" {
		return nil, errors.New("subject not found in claims")
	}

	claim, ok := token.Get("tenant")
	if !ok {
		return nil, errors.New("tenant not found in claims")
	}
	tenant, ok := claim.(string)
	if !ok || tenant == "" {
		return nil, errors.New("tenant claim must be a non-empty string")
	}

	var permissions []string
	if claim, ok := token.Get("permissions"); ok {
		values, ok := claim.([]any)
		if !ok {
			return nil, errors.New("permissions claim must be a list")
		}
		for _, value := range values {
			permission, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("permission %v must be a string", value)
			}
			permissions = append(permissions, permission)
		}
	}

	return &model.User{
		Username:    token.Subject(),
		Tenant:      strings.ToLower(tenant),
		Permissions: permissions,
	}, nil
}
