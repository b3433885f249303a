package constants

import "time"

const (
	// ServiceName 用于链路追踪与日志
	ServiceName = "recruit-pipeline"

	// ContextKeyUserID 认证中间件写入请求上下文的用户ID键
	ContextKeyUserID = "user_id"

	// DefaultLockTTL 分布式锁默认过期时间
	DefaultLockTTL = 10 * time.Second
	// HeadshotURLExpiry 头像预签名地址有效期
	HeadshotURLExpiry = 1 * time.Hour

	// PipelineEventsExchange 领域事件发往的交换机
	PipelineEventsExchange = "pipeline.events.exchange"
)
