package log

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`)
	jwtPattern    = regexp.MustCompile(`[a-zA-Z0-9\-_]{10,}\.[a-zA-Z0-9\-_]{10,}\.[a-zA-Z0-9\-_]{10,}`)
)

// newRedactAttr returns a [slog.HandlerOptions.ReplaceAttr] function masking credentials. Target
// security tokens are sent to devices and must never end up in logs.
func newRedactAttr() func([]string, slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("authorization"),
		masq.WithFieldName("password"),
		masq.WithFieldName("passwordHash"),
		masq.WithFieldName("securityToken"),
		masq.WithFieldName("SecurityToken"),
		masq.WithFieldName("targetSecurityToken"),
		masq.WithFieldName("secretKey"),
		masq.WithFieldName("SecretKey"),
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(jwtPattern),
	)
}
