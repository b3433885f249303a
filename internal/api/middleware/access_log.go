package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"go.opentelemetry.io/otel/trace"

	"recruit-pipeline/internal/tracing"
)

// AccessLog 记录每个请求的方法、路径、状态码与耗时，5xx 同时标记到 span
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)

		status := ctx.Response.StatusCode()
		method, path := string(ctx.Method()), string(ctx.Path())
		tracing.RecordServerFailure(trace.SpanFromContext(c), method, path, status)
		hlog.CtxInfof(c, "%s %s -> %d (%s)", method, path, status, time.Since(start))
	}
}
