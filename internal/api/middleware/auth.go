package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/keyauth"

	"recruit-pipeline/internal/config"
	"recruit-pipeline/internal/constants"
)

// Claims 访问令牌中携带的用户信息，user_id 缺失时回退到 sub
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

var errMissingUser = errors.New("令牌中缺少用户ID")

// ParseToken 校验 HS256 令牌并返回其中的用户ID
func ParseToken(cfg config.AuthConfig, tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("令牌无效: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("令牌声明无效")
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", errMissingUser
	}
	return userID, nil
}

// Auth 从 Authorization: Bearer 头提取令牌，校验通过后把用户ID写入请求上下文
func Auth(cfg config.AuthConfig) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			userID, err := ParseToken(cfg, key)
			if err != nil {
				return false, err
			}
			c.Set(constants.ContextKeyUserID, userID)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			hlog.CtxDebugf(ctx, "认证失败: %v", err)
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权访问"})
		}),
	)
}
