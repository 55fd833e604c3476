package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token fields the client inspects. Signatures are not
// verified: the token is only read to decide when to refresh and to display
// who is logged in.
type Claims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token expires within leeway of now. Tokens
// without an exp claim never expire client-side.
func (c Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

// ParseClaims decodes the payload of a JWT access token.
func ParseClaims(token string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithJSONNumber())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("auth: parse token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("auth: parse token: unexpected claims type %T", parsed.Claims)
	}

	var claims Claims
	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("auth: parse token: %w", err)
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time.UTC()
	}
	claims.UserID = claimString(mapClaims["user_id"])
	claims.Role = claimString(mapClaims["role"])
	return claims, nil
}

func claimString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
