package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"quiztube/internal/config"
	"quiztube/internal/dto"
	"quiztube/internal/logger"
	"quiztube/internal/middleware"
	"quiztube/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(config.LoggerConfig{Level: "debug", Env: "test"}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// Manual MockAuthService for testing the middleware against service.AuthService
type ManualMockAuthService struct {
	ValidateJWTFunc func(ctx context.Context, tokenString string) (*dto.AuthClaims, error)
}

func (m *ManualMockAuthService) ValidateJWT(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
	if m.ValidateJWTFunc != nil {
		return m.ValidateJWTFunc(ctx, tokenString)
	}
	return nil, errors.New("ValidateJWTFunc not set on mock")
}

func protectedApp(authService service.AuthService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Get("/me", middleware.Protected(authService), func(c *fiber.Ctx) error {
		userID, err := middleware.UserID(c)
		if err != nil {
			return err
		}
		return c.SendString(userID)
	})
	return app
}

func TestProtected(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		setupMock      func(mockSvc *ManualMockAuthService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "No Auth Header",
			authHeader:     "",
			setupMock:      func(mockSvc *ManualMockAuthService) {},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Malformed Auth Header - No Bearer",
			authHeader:     "Basic some_token",
			setupMock:      func(mockSvc *ManualMockAuthService) {},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "Empty Bearer Token",
			authHeader:     "Bearer   ",
			setupMock:      func(mockSvc *ManualMockAuthService) {},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "Invalid Token",
			authHeader: "Bearer invalid_token",
			setupMock: func(mockSvc *ManualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					assert.Equal(t, "invalid_token", tokenString)
					return nil, service.ErrInvalidJWTToken
				}
			},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:       "Valid Token uses subject",
			authHeader: "Bearer valid_access_token",
			setupMock: func(mockSvc *ManualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					return &dto.AuthClaims{TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{Subject: "user123"}}, nil
				}
			},
			expectedStatus: fiber.StatusOK,
			expectedBody:   "user123",
		},
		{
			name:       "Legacy user_id claim",
			authHeader: "Bearer legacy_token",
			setupMock: func(mockSvc *ManualMockAuthService) {
				mockSvc.ValidateJWTFunc = func(ctx context.Context, tokenString string) (*dto.AuthClaims, error) {
					return &dto.AuthClaims{UserID: "user456"}, nil
				}
			},
			expectedStatus: fiber.StatusOK,
			expectedBody:   "user456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &ManualMockAuthService{}
			tt.setupMock(mockSvc)
			app := protectedApp(mockSvc)

			req := httptest.NewRequest("GET", "/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == fiber.StatusOK {
				body := make([]byte, 64)
				n, _ := resp.Body.Read(body)
				assert.Equal(t, tt.expectedBody, string(body[:n]))
				return
			}
			var errResp middleware.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, "UNAUTHORIZED", errResp.Code)
		})
	}
}

func TestProtected_WithRealTokens(t *testing.T) {
	authService, err := service.NewAuthService(config.AuthConfig{JWTSecret: "middleware-secret", Issuer: "quiztube-auth"})
	require.NoError(t, err)
	app := protectedApp(authService)

	sign := func(claims dto.AuthClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("middleware-secret"))
		require.NoError(t, err)
		return token
	}
	valid := dto.AuthClaims{TokenType: "access", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-789",
		Issuer:    "quiztube-auth",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(valid))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(expired))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
