package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsAndWrapping(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:3306: i/o timeout")
	err := NewStoreError("SetStatus", "更新状态失败", cause)

	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)

	var pe *Error
	assert.True(t, errors.As(fmt.Errorf("handler: %w", err), &pe))
	assert.Equal(t, ErrStore.Error(), pe.Message(), "存储错误不暴露底层细节")
	assert.Contains(t, err.Error(), "i/o timeout")
}

func TestNotFoundOr(t *testing.T) {
	err := notFoundOr("GetRound", fmt.Errorf("gorm: %w", ErrRecordNotFound), "轮次 %s 不存在", "r9")
	assert.ErrorIs(t, err, ErrNotFound)

	var pe *Error
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "轮次 r9 不存在", pe.Message())

	err = notFoundOr("GetRound", errors.New("boom"), "轮次 %s 不存在", "r9")
	assert.ErrorIs(t, err, ErrStore)
}

func TestPassThroughKeepsDomainErrors(t *testing.T) {
	conflict := NewConflictError("DeleteRound", "请先移除申请人")
	assert.Same(t, conflict, passThrough("DeleteRound", "事务执行失败", conflict))

	wrapped := passThrough("DeleteRound", "事务执行失败", errors.New("commit failed"))
	assert.ErrorIs(t, wrapped, ErrStore)
}
