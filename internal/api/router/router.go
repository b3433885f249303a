package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"recruit-pipeline/internal/api/handler"
	"recruit-pipeline/internal/api/middleware"
)

// HealthChecker 健康检查依赖，由 storage.Storage 实现
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes 注册 API 路由。除健康检查外全部接口都经过 auth；health 可以为 nil。
func RegisterRoutes(h *server.Hertz, svc handler.PipelineService, auth app.HandlerFunc, health HealthChecker) {
	h.Use(middleware.AccessLog())

	api := h.Group("/api/v1")

	// 添加健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		if health != nil {
			if err := health.Ping(c); err != nil {
				// 错误里可能带有主机与连接串，只写日志
				hlog.CtxErrorf(c, "健康检查失败: %v", err)
				ctx.JSON(consts.StatusServiceUnavailable, utils.H{"status": "unavailable"})
				return
			}
		}
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	secured := api.Group("", auth)

	scoring := handler.NewScoringHandler(svc)
	secured.GET("/rounds/:round_id/metrics", scoring.HandleListMetrics)
	secured.PUT("/rounds/:round_id/metrics", scoring.HandleReplaceMetrics)
	secured.DELETE("/rounds/:round_id/scores", scoring.HandleDeleteRoundScores)
	secured.POST("/scores", scoring.HandleSubmitScores)
	secured.PATCH("/scores/:score_id", scoring.HandleUpdateScore)
	secured.GET("/applicant-rounds/:applicant_round_id/scores", scoring.HandleFetchScores)
	secured.DELETE("/submissions/:submission_id", scoring.HandleDeleteSubmission)

	rounds := handler.NewRoundHandler(svc)
	secured.PATCH("/applicant-rounds/:applicant_round_id/status", rounds.HandleSetStatus)
	secured.POST("/cycles/:cycle_id/rounds", rounds.HandleCreateRound)
	secured.DELETE("/cycles/:cycle_id", rounds.HandleDeleteCycle)
	secured.DELETE("/rounds/:round_id", rounds.HandleDeleteRound)
	secured.DELETE("/applicants/:applicant_id", rounds.HandleDeleteApplicant)

	comments := handler.NewCommentHandler(svc)
	secured.POST("/applicant-rounds/:applicant_round_id/comments", comments.HandleAddComment)
	secured.GET("/applicant-rounds/:applicant_round_id/comments", comments.HandleListComments)
	secured.PATCH("/comments/:comment_id", comments.HandleEditComment)
	secured.DELETE("/comments/:comment_id", comments.HandleDeleteComment)

	delibs := handler.NewDelibsHandler(svc)
	secured.GET("/rounds/:round_id/delibs", delibs.HandleListForVoting)
	secured.GET("/rounds/:round_id/delibs/session", delibs.HandleGetSession)
	secured.PUT("/rounds/:round_id/delibs/votes", delibs.HandleCastVote)
	secured.GET("/rounds/:round_id/delibs/results", delibs.HandleResults)
	secured.POST("/rounds/:round_id/delibs/lock", delibs.HandleLock)
	secured.POST("/rounds/:round_id/delibs/unlock", delibs.HandleUnlock)
}
