package dto

import "github.com/golang-jwt/jwt/v5"

// AuthClaims are the claims of access tokens minted by the external auth service.
// The user id is the subject; user_id is accepted for older tokens.
type AuthClaims struct {
	UserID    string `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// UserIDFromClaims returns the subject, falling back to user_id.
func (c *AuthClaims) UserIDFromClaims() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}
