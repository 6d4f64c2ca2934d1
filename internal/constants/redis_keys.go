package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "parsely"

	// ParseModulePrefix 解析模块
	ParseModulePrefix = "parse"
	// FileModulePrefix 文件模块
	FileModulePrefix = "file"

	// EntityResult 解析结果实体
	EntityResult = "result"
	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToRecord MD5到记录ID的映射实体
	EntityMD5ToRecord = "md5_to_record"

	// KeyParseResult 解析结果缓存 (STRING, JSON)
	// 格式: parsely:parse:result:{md5}:{nlpModel}
	KeyParseResult = AppPrefix + ":" + ParseModulePrefix + ":" + EntityResult + ":%s:%s"

	// KeyFileMD5Set 文件MD5集合，用于快速去重 (SET)
	// 格式: parsely:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileMD5ToRecordID MD5到记录ID的映射 (STRING)
	// 格式: parsely:file:md5_to_record:{md5}
	KeyFileMD5ToRecordID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToRecord + ":%s"
)
