package handler

import (
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"

	"recruit-pipeline/internal/constants"
	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/tracing"
)

const internalErrorMessage = "服务器内部错误"

// StatusFor 将引擎错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrValidation), errors.Is(err, pipeline.ErrConflict):
		return consts.StatusBadRequest
	case errors.Is(err, pipeline.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, pipeline.ErrAuthorization):
		return consts.StatusForbidden
	case errors.Is(err, pipeline.ErrNoNextRound):
		return consts.StatusConflict
	default:
		return consts.StatusInternalServerError
	}
}

// writeError 写出错误响应。5xx 只返回通用信息，细节进日志和 span。
func writeError(ctx context.Context, c *app.RequestContext, op string, err error) {
	status := StatusFor(err)
	tracing.RecordPipelineError(trace.SpanFromContext(ctx), op, err, status)

	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "[%s] 请求处理失败: %v", op, err)
		c.JSON(status, utils.H{"error": internalErrorMessage})
		return
	}

	msg := err.Error()
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		msg = pe.Message()
	}
	hlog.CtxWarnf(ctx, "[%s] %v", op, err)
	c.JSON(status, utils.H{"error": msg})
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, utils.H{"error": msg})
}

// currentUser 读取认证中间件写入的用户ID，缺失时直接返回 401
func currentUser(c *app.RequestContext) (string, bool) {
	v, ok := c.Get(constants.ContextKeyUserID)
	userID, _ := v.(string)
	if !ok || userID == "" {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "未授权访问"})
		return "", false
	}
	return userID, true
}

// authorize 要求当前用户属于资源所在组织，失败时已写出响应
func authorize(ctx context.Context, c *app.RequestContext, svc PipelineService, scope pipeline.Scope, id string) bool {
	userID, ok := currentUser(c)
	if !ok {
		return false
	}
	if err := svc.Authorize(ctx, userID, scope, id); err != nil {
		writeError(ctx, c, "Authorize", err)
		return false
	}
	return true
}

// bindBody 解析 JSON 请求体，失败时返回 400
func bindBody(c *app.RequestContext, req any) bool {
	if err := c.BindJSON(req); err != nil {
		badRequest(c, "请求体格式错误: "+err.Error())
		return false
	}
	return true
}
