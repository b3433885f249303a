package pipeline

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

// WeightedScoreMode 决定 applicant_round.weighted_score 缓存的取值方式
type WeightedScoreMode string

const (
	// ScoreModeLatest 取最新一次提交的加权平均
	ScoreModeLatest WeightedScoreMode = "latest"
	// ScoreModeMean 取全部提交加权平均的均值
	ScoreModeMean WeightedScoreMode = "mean"
)

// Settings 引擎的可调参数
type Settings struct {
	WeightTolerance float64
	ScoreMode       WeightedScoreMode
	MinVote         int
	MaxVote         int
	AcceptLockTTL   time.Duration
}

// DefaultSettings 返回默认参数
func DefaultSettings() Settings {
	return Settings{
		WeightTolerance: 0.001,
		ScoreMode:       ScoreModeLatest,
		MinVote:         1,
		MaxVote:         5,
		AcceptLockTTL:   10 * time.Second,
	}
}

// Engine 招聘流程的核心：评分维度、评分、轮次状态机、评议与评论。
// 所有依赖通过构造函数注入，引擎自身不持有任何全局客户端。
type Engine struct {
	store     Store
	locker    Locker
	headshots HeadshotResolver
	settings  Settings
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
}

// Option 引擎选项
type Option func(*Engine)

// WithLocker 设置分布式锁，未设置时接受晋级只依赖事务
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithHeadshotResolver 设置头像地址解析器
func WithHeadshotResolver(r HeadshotResolver) Option {
	return func(e *Engine) {
		e.headshots = r
	}
}

// WithSettings 覆盖默认参数，非法值在 NewEngine 中回退为默认值
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithLogger 设置引擎日志，默认不输出
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator 替换 ID 生成器，测试用
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine 创建引擎
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		settings: DefaultSettings(),
		logger:   zerolog.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newUUIDv7,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locker == nil {
		e.locker = noopLocker{}
	}
	if e.headshots == nil {
		e.headshots = passthroughHeadshots{}
	}
	if e.settings.WeightTolerance <= 0 {
		e.settings.WeightTolerance = 0.001
	}
	if e.settings.ScoreMode == "" {
		e.settings.ScoreMode = ScoreModeLatest
	}
	if e.settings.MaxVote < e.settings.MinVote || (e.settings.MinVote == 0 && e.settings.MaxVote == 0) {
		e.settings.MinVote, e.settings.MaxVote = 1, 5
	}
	if e.settings.AcceptLockTTL <= 0 {
		e.settings.AcceptLockTTL = 10 * time.Second
	}
	return e
}

// Settings 返回当前生效的参数
func (e *Engine) Settings() Settings {
	return e.settings
}

func newUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 只在系统随机源不可用时失败
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (string, error) {
	return "noop", nil
}

func (noopLocker) Release(context.Context, string, string) (bool, error) {
	return true, nil
}

type passthroughHeadshots struct{}

func (passthroughHeadshots) ResolveHeadshot(_ context.Context, raw string) (string, error) {
	return raw, nil
}
