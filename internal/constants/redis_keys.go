package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// PipelineModulePrefix 招聘流程模块
	PipelineModulePrefix = "pipeline"

	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyAcceptLock 接受晋级分布式锁 (STRING)
	// 格式: app:pipeline:lock:accept:{applicantRoundID}
	KeyAcceptLock = AppPrefix + ":" + PipelineModulePrefix + ":" + EntityLock + ":accept:%s"

	// KeyRoundLock 轮次删除/重排序分布式锁 (STRING)
	// 格式: app:pipeline:lock:round:{cycleID}
	KeyRoundLock = AppPrefix + ":" + PipelineModulePrefix + ":" + EntityLock + ":round:%s"
)
