package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recruit-pipeline/internal/pipeline"
)

// ErrorType 写入 span 的 error.type 属性
type ErrorType string

const (
	ErrorTypeDB          ErrorType = "db"
	ErrorTypeRedis       ErrorType = "redis"
	ErrorTypeRabbitMQ    ErrorType = "rabbitmq"
	ErrorTypeMinIO       ErrorType = "minio"
	ErrorTypeHTTP        ErrorType = "http"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypePermission  ErrorType = "permission"
	ErrorTypeNoNextRound ErrorType = "no_next_round"
	ErrorTypeInternal    ErrorType = "internal"
)

// markFailed 写入错误类型与消息，并把 span 状态置为 Error
func markFailed(span trace.Span, errorType ErrorType, msg string, attrs ...attribute.KeyValue) {
	span.SetAttributes(append([]attribute.KeyValue{
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(msg, DefaultMaxLength)),
	}, attrs...)...)
	span.SetStatus(codes.Error, msg)
}

// RecordError 记录基础设施错误（MySQL、Redis、RabbitMQ、MinIO），附加属性可选
func RecordError(span trace.Span, err error, errorType ErrorType, attrs ...attribute.KeyValue) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	markFailed(span, errorType, err.Error(), attrs...)
}

// ClassifyPipelineError 按引擎错误的种类得到 span 上的错误类型，未分类的错误视为 internal
func ClassifyPipelineError(err error) ErrorType {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, pipeline.ErrConflict):
		return ErrorTypeConflict
	case errors.Is(err, pipeline.ErrNoNextRound):
		return ErrorTypeNoNextRound
	case errors.Is(err, pipeline.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, pipeline.ErrAuthorization):
		return ErrorTypePermission
	case errors.Is(err, pipeline.ErrStore):
		return ErrorTypeDB
	default:
		return ErrorTypeInternal
	}
}

// RecordPipelineError 记录引擎返回给 handler 的错误。
// pipeline.Error 的 Op 和 Detail 写入 pipeline.op / pipeline.detail，op 参数只在错误未携带 Op 时使用。
func RecordPipelineError(span trace.Span, op string, err error, statusCode int) {
	if err == nil || !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int("http.status_code", statusCode)}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		if pe.Op != "" {
			op = pe.Op
		}
		if pe.Detail != "" {
			attrs = append(attrs, attribute.String("pipeline.detail", SafeComment(pe.Detail)))
		}
	}
	attrs = append(attrs, attribute.String("pipeline.op", op))
	RecordError(span, err, ClassifyPipelineError(err), attrs...)
}

// RecordUnconfirmedPublish 记录没有拿到 broker ack 的事件发布。
// waitErr 为空表示 broker 返回了 nack，否则是等待确认出错（通常是超时）。
func RecordUnconfirmedPublish(span trace.Span, eventType, messageID string, waitErr error) {
	if !span.IsRecording() {
		return
	}
	outcome, msg := "nack", "broker 拒绝了事件 "+eventType
	if waitErr != nil {
		outcome, msg = "wait_failed", "等待 broker 确认失败: "+waitErr.Error()
		span.RecordError(waitErr)
	}
	markFailed(span, ErrorTypeRabbitMQ, msg,
		attribute.String("messaging.message_id", messageID),
		attribute.String("pipeline.event_type", eventType),
		attribute.String("messaging.rabbitmq.confirm_outcome", outcome))
}

// RecordServerFailure 标记返回 5xx 的请求，4xx 属于调用方问题，不算 span 错误
func RecordServerFailure(span trace.Span, method, path string, statusCode int) {
	if statusCode < 500 || !span.IsRecording() {
		return
	}
	markFailed(span, ErrorTypeHTTP, method+" "+path+" 返回服务端错误",
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode))
}
