package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/config"
	"recruit-pipeline/internal/constants"
)

var testAuth = config.AuthConfig{JWTSecret: "test-secret", Issuer: "recruit-pipeline"}

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(userID string) Claims {
	return Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "recruit-pipeline",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestParseToken(t *testing.T) {
	userID, err := ParseToken(testAuth, sign(t, "test-secret", validClaims("u-1")))
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	sub := validClaims("")
	sub.Subject = "u-2"
	userID, err = ParseToken(testAuth, sign(t, "test-secret", sub))
	require.NoError(t, err)
	assert.Equal(t, "u-2", userID)

	_, err = ParseToken(testAuth, sign(t, "other-secret", validClaims("u-1")))
	assert.Error(t, err)

	expired := validClaims("u-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = ParseToken(testAuth, sign(t, "test-secret", expired))
	assert.Error(t, err)

	wrongIssuer := validClaims("u-1")
	wrongIssuer.Issuer = "someone-else"
	_, err = ParseToken(testAuth, sign(t, "test-secret", wrongIssuer))
	assert.Error(t, err)

	_, err = ParseToken(testAuth, sign(t, "test-secret", validClaims("")))
	assert.ErrorIs(t, err, errMissingUser)
}

func TestAuthMiddleware(t *testing.T) {
	h := server.New()
	h.Use(Auth(testAuth))
	h.GET("/whoami", func(c context.Context, ctx *app.RequestContext) {
		v, _ := ctx.Get(constants.ContextKeyUserID)
		ctx.String(http.StatusOK, v.(string))
	})

	resp := ut.PerformRequest(h.Engine, "GET", "/whoami", nil,
		ut.Header{Key: "Authorization", Value: "Bearer " + sign(t, "test-secret", validClaims("u-9"))})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "u-9", resp.Body.String())

	resp = ut.PerformRequest(h.Engine, "GET", "/whoami", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/whoami", nil,
		ut.Header{Key: "Authorization", Value: "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
