package service

import (
	"context"
	"testing"
	"time"

	"quiztube/internal/config"
	"quiztube/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims dto.AuthClaims) string {
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() dto.AuthClaims {
	return dto.AuthClaims{
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "quiztube-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(config.AuthConfig{})
	assert.Error(t, err)
}

func TestAuthService_ValidateJWT(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: testSecret, Issuer: "quiztube-auth"})
	require.NoError(t, err)

	claims, err := svc.ValidateJWT(context.Background(), signToken(t, testSecret, jwt.SigningMethodHS256, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserIDFromClaims())

	legacy := validClaims()
	legacy.Subject = ""
	legacy.UserID = "user-2"
	claims, err = svc.ValidateJWT(context.Background(), signToken(t, testSecret, jwt.SigningMethodHS256, legacy))
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.UserIDFromClaims())
}

func TestAuthService_ValidateJWT_Rejects(t *testing.T) {
	svc, err := NewAuthService(config.AuthConfig{JWTSecret: testSecret, Issuer: "quiztube-auth"})
	require.NoError(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	refresh := validClaims()
	refresh.TokenType = "refresh"
	foreignIssuer := validClaims()
	foreignIssuer.Issuer = "someone-else"
	noSubject := validClaims()
	noSubject.Subject = ""

	tokens := map[string]string{
		"expired":        signToken(t, testSecret, jwt.SigningMethodHS256, expired),
		"wrong secret":   signToken(t, "other", jwt.SigningMethodHS256, validClaims()),
		"refresh token":  signToken(t, testSecret, jwt.SigningMethodHS256, refresh),
		"foreign issuer": signToken(t, testSecret, jwt.SigningMethodHS256, foreignIssuer),
		"no subject":     signToken(t, testSecret, jwt.SigningMethodHS256, noSubject),
		"HS512":          signToken(t, testSecret, jwt.SigningMethodHS512, validClaims()),
		"garbage":        "not.a.token",
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateJWT(context.Background(), token)
			assert.ErrorIs(t, err, ErrInvalidJWTToken)
		})
	}
}
