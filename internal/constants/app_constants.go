package constants

import "time"

const (
	// Application-level constants
	AppName    = "parsely"
	AppVersion = "1.0.0"

	// ParserVersion 写入记录的解析器版本号，词典或评分规则变化时递增
	ParserVersion = "1.0"

	// Pipeline defaults (可被配置覆盖)
	DefaultSimilarityThreshold  = 0.72
	DefaultHeadingnessThreshold = 0.5
	DefaultMaxWorkers           = 8
	DefaultCacheTTL             = 24 * time.Hour
	MinYear                     = 1950

	// Upload limits
	MinUploadBytes   = 4  // 小于该字节数的上传直接拒绝
	MinTextChars     = 3  // 抽取文本少于该字符数视为空文档
	MaxUploadBytes   = 10 << 20
	MaxBatchFiles    = 50
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// Messaging
	ParseJobsQueue      = "parsely.parse_jobs"
	ParseJobsExchange   = "parsely.jobs"
	ParseJobsRoutingKey = "parse.job"
	EventsExchange      = "parsely.events"
	EventResumeParsed   = "resume.parsed"
	EventParseJob       = "parse.job"

	// Record sources
	SourceAPI   = "api"
	SourceQueue = "queue"
	SourceCLI   = "cli"

	// Record status
	StatusQueued = "queued"
	StatusParsed = "parsed"
	StatusFailed = "failed"
)
