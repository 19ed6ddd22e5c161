package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authz string) (string, bool) {
	if !strings.HasPrefix(authz, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authz, bearerPrefix))
	if tok == "" {
		return "", false
	}
	return tok, true
}

type TokenInfo struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes the token's registered claims without verifying the
// signature. The result is only for logging; the portal stays the sole
// judge of validity.
func Inspect(raw string) (TokenInfo, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return TokenInfo{}, false
	}
	info := TokenInfo{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}

// LogFields renders token metadata as key=value pairs for log lines.
func LogFields(raw string) string {
	info, ok := Inspect(raw)
	if !ok {
		return "token_len=" + strconv.Itoa(len(raw)) + " token_format=opaque"
	}
	var b strings.Builder
	b.WriteString("token_len=")
	b.WriteString(strconv.Itoa(len(raw)))
	b.WriteString(" token_format=jwt")
	if info.Subject != "" {
		b.WriteString(" token_sub=")
		b.WriteString(info.Subject)
	}
	if !info.ExpiresAt.IsZero() {
		b.WriteString(" token_exp=")
		b.WriteString(info.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}
