package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/tracing"
	"recruit-pipeline/internal/types"
)

// CommentHandler 桥接记录上的评论
type CommentHandler struct {
	svc PipelineService
}

func NewCommentHandler(svc PipelineService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

// CommentRequest 新增或编辑评论，编辑时忽略 source
type CommentRequest struct {
	CommentText string              `json:"comment_text"`
	Source      types.CommentSource `json:"source"`
}

// HandleAddComment POST /api/v1/applicant-rounds/:applicant_round_id/comments
func (h *CommentHandler) HandleAddComment(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CommentRequest
	if !bindBody(c, &req) {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("comment.source", string(req.Source)),
		attribute.String("comment.preview", tracing.SafeComment(req.CommentText)),
	)
	view, err := h.svc.AddComment(ctx, c.Param("applicant_round_id"), userID, req.CommentText, req.Source)
	if err != nil {
		writeError(ctx, c, "AddComment", err)
		return
	}
	c.JSON(consts.StatusCreated, view)
}

// HandleListComments GET /api/v1/applicant-rounds/:applicant_round_id/comments
func (h *CommentHandler) HandleListComments(ctx context.Context, c *app.RequestContext) {
	arID := c.Param("applicant_round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeApplicantRound, arID) {
		return
	}
	views, err := h.svc.ListComments(ctx, arID)
	if err != nil {
		writeError(ctx, c, "ListComments", err)
		return
	}
	if views == nil {
		views = []types.CommentView{}
	}
	c.JSON(consts.StatusOK, utils.H{"comments": views})
}

// HandleEditComment PATCH /api/v1/comments/:comment_id
func (h *CommentHandler) HandleEditComment(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CommentRequest
	if !bindBody(c, &req) {
		return
	}
	view, err := h.svc.EditComment(ctx, c.Param("comment_id"), userID, req.CommentText)
	if err != nil {
		writeError(ctx, c, "EditComment", err)
		return
	}
	c.JSON(consts.StatusOK, view)
}

// HandleDeleteComment DELETE /api/v1/comments/:comment_id
func (h *CommentHandler) HandleDeleteComment(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteComment(ctx, c.Param("comment_id"), userID); err != nil {
		writeError(ctx, c, "DeleteComment", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true})
}
