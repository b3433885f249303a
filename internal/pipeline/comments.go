package pipeline

import (
	"context"
	"sort"
	"strings"

	"recruit-pipeline/internal/types"
)

// AddComment 为桥接记录添加评论，来源默认为 named
func (e *Engine) AddComment(ctx context.Context, applicantRoundID, userID, text string, source types.CommentSource) (*types.CommentView, error) {
	const op = "AddComment"
	text = strings.TrimSpace(text)
	if applicantRoundID == "" || userID == "" {
		return nil, NewValidationError(op, "applicant_round_id 和 user_id 不能为空")
	}
	if text == "" {
		return nil, NewValidationError(op, "评论内容不能为空")
	}
	if source == "" {
		source = types.CommentNamed
	}
	if source != types.CommentNamed && source != types.CommentAnonymous {
		return nil, NewValidationError(op, "未知的评论来源 %q", source)
	}
	if _, err := e.store.GetApplicantRound(ctx, applicantRoundID); err != nil {
		return nil, notFoundOr(op, err, "桥接记录 %s 不存在", applicantRoundID)
	}

	c := &types.Comment{
		ID:               e.newID(),
		ApplicantRoundID: applicantRoundID,
		UserID:           userID,
		CommentText:      text,
		Source:           source,
		CreatedAt:        e.now(),
	}
	if err := e.store.CreateComment(ctx, c); err != nil {
		return nil, NewStoreError(op, "保存评论失败", err)
	}
	names, err := e.commentAuthors(ctx, []types.Comment{*c})
	if err != nil {
		return nil, NewStoreError(op, "查询评论作者失败", err)
	}
	view := toCommentView(*c, names)
	return &view, nil
}

// ListComments 返回桥接记录的评论，最新的在前；匿名评论不返回作者
func (e *Engine) ListComments(ctx context.Context, applicantRoundID string) ([]types.CommentView, error) {
	const op = "ListComments"
	if applicantRoundID == "" {
		return nil, NewValidationError(op, "applicant_round_id 不能为空")
	}
	if _, err := e.store.GetApplicantRound(ctx, applicantRoundID); err != nil {
		return nil, notFoundOr(op, err, "桥接记录 %s 不存在", applicantRoundID)
	}
	comments, err := e.store.ListComments(ctx, applicantRoundID)
	if err != nil {
		return nil, NewStoreError(op, "查询评论失败", err)
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	names, err := e.commentAuthors(ctx, comments)
	if err != nil {
		return nil, NewStoreError(op, "查询评论作者失败", err)
	}
	views := make([]types.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, toCommentView(c, names))
	}
	return views, nil
}

// EditComment 修改评论内容，只有作者可以修改
func (e *Engine) EditComment(ctx context.Context, commentID, userID, text string) (*types.CommentView, error) {
	const op = "EditComment"
	text = strings.TrimSpace(text)
	if commentID == "" || userID == "" {
		return nil, NewValidationError(op, "comment_id 和 user_id 不能为空")
	}
	if text == "" {
		return nil, NewValidationError(op, "评论内容不能为空")
	}
	c, err := e.ownComment(ctx, op, commentID, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.store.UpdateCommentText(ctx, commentID, text, now); err != nil {
		return nil, NewStoreError(op, "更新评论失败", err)
	}
	c.CommentText = text
	c.UpdatedAt = &now
	names, err := e.commentAuthors(ctx, []types.Comment{*c})
	if err != nil {
		return nil, NewStoreError(op, "查询评论作者失败", err)
	}
	view := toCommentView(*c, names)
	return &view, nil
}

// DeleteComment 删除评论，只有作者可以删除
func (e *Engine) DeleteComment(ctx context.Context, commentID, userID string) error {
	const op = "DeleteComment"
	if commentID == "" || userID == "" {
		return NewValidationError(op, "comment_id 和 user_id 不能为空")
	}
	if _, err := e.ownComment(ctx, op, commentID, userID); err != nil {
		return err
	}
	if err := e.store.DeleteComment(ctx, commentID); err != nil {
		return NewStoreError(op, "删除评论失败", err)
	}
	return nil
}

func (e *Engine) ownComment(ctx context.Context, op, commentID, userID string) (*types.Comment, error) {
	c, err := e.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, notFoundOr(op, err, "评论 %s 不存在", commentID)
	}
	if c.UserID != userID {
		return nil, NewAuthorizationError(op, "只能修改或删除自己的评论")
	}
	return c, nil
}

// commentAuthors 只查询具名评论的作者姓名
func (e *Engine) commentAuthors(ctx context.Context, comments []types.Comment) (map[string]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, c := range comments {
		if c.Source == types.CommentAnonymous {
			continue
		}
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		ids = append(ids, c.UserID)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	return e.store.GetUserNames(ctx, ids)
}

func toCommentView(c types.Comment, names map[string]string) types.CommentView {
	view := types.CommentView{
		ID:               c.ID,
		ApplicantRoundID: c.ApplicantRoundID,
		CommentText:      c.CommentText,
		Source:           c.Source,
		Edited:           c.Edited(),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if c.Source != types.CommentAnonymous {
		view.Author = &types.UserRef{ID: c.UserID, Name: names[c.UserID]}
	}
	return view
}
