package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parsely-go/internal/constants"
	"parsely-go/internal/logger"
	"parsely-go/internal/storage"
	"parsely-go/internal/storage/models"
	"parsely-go/internal/tracing"
	"parsely-go/internal/types"
	"parsely-go/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentIndex 文件 MD5 到记录 ID 的登记表，storage.Redis 满足该接口
type ContentIndex interface {
	ClaimContentMD5(ctx context.Context, md5Hex, recordID string) (exists bool, existingID string, err error)
	ReleaseContentMD5(ctx context.Context, md5Hex string) error
}

// Route 消息目标
type Route struct {
	Exchange   string
	RoutingKey string
}

// UploadResult 单文件上传解析的结果。Duplicate 为 true 时 RecordID 指向先前的记录
type UploadResult struct {
	RecordID  string          `json:"record_id,omitempty"`
	Duplicate bool            `json:"duplicate,omitempty"`
	Item      BatchItemResult `json:"result"`
}

// ResumeService 组合流水线、批处理器与存储，供 API、队列消费者与 CLI 使用。
// 存储组件均可为空，此时只解析不归档
type ResumeService struct {
	pipeline Pipeline
	runner   *BatchRunner
	store    RecordStore
	objects  ObjectStore
	index    ContentIndex
	events   Route
	jobs     Route
	logger   zerolog.Logger
}

// ServiceOption 服务选项
type ServiceOption func(*ResumeService)

// WithRecordStore 设置记录库
func WithRecordStore(s RecordStore) ServiceOption {
	return func(rs *ResumeService) { rs.store = s }
}

// WithObjectStore 设置对象存储
func WithObjectStore(o ObjectStore) ServiceOption {
	return func(rs *ResumeService) { rs.objects = o }
}

// WithContentIndex 设置上传去重登记表
func WithContentIndex(idx ContentIndex) ServiceOption {
	return func(rs *ResumeService) { rs.index = idx }
}

// WithEventRoute 设置 resume.parsed 事件的目标
func WithEventRoute(exchange, routingKey string) ServiceOption {
	return func(rs *ResumeService) { rs.events = Route{Exchange: exchange, RoutingKey: routingKey} }
}

// WithJobRoute 设置异步解析任务的目标
func WithJobRoute(exchange, routingKey string) ServiceOption {
	return func(rs *ResumeService) { rs.jobs = Route{Exchange: exchange, RoutingKey: routingKey} }
}

// WithServiceLogger 设置日志记录器
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(rs *ResumeService) { rs.logger = l }
}

// NewResumeService 创建服务
func NewResumeService(pipeline Pipeline, runner *BatchRunner, opts ...ServiceOption) *ResumeService {
	rs := &ResumeService{
		pipeline: pipeline,
		runner:   runner,
		events:   Route{Exchange: constants.EventsExchange, RoutingKey: constants.EventResumeParsed},
		jobs:     Route{Exchange: constants.ParseJobsExchange, RoutingKey: constants.ParseJobsRoutingKey},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// HasStore 是否配置了记录库
func (rs *ResumeService) HasStore() bool {
	return rs.store != nil
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}

// ParseText 解析纯文本。空文本得到合法的空结果，不经过缓存
func (rs *ResumeService) ParseText(ctx context.Context, text string, opts types.ParseOptions) *ParseResult {
	return rs.pipeline.Parse(ctx, types.RawDocument{Text: text, MimeType: "text/plain"}, opts)
}

// ParseFile 解析单个文件，不归档。结果经批处理缓存
func (rs *ResumeService) ParseFile(ctx context.Context, file BatchFile, opts types.ParseOptions) BatchItemResult {
	return rs.runner.ParseOne(ctx, file, opts)
}

// RunBatch 批量解析，不归档
func (rs *ResumeService) RunBatch(ctx context.Context, files []BatchFile, opts types.ParseOptions, sequential bool) *BatchResult {
	return rs.runner.Run(ctx, files, opts, sequential)
}

// ParseUpload 解析单个上传文件并归档。
// 输入错误（空文件、类型不支持）以 types.ErrInput 返回；归档失败不影响解析结果，只记录日志
func (rs *ResumeService) ParseUpload(ctx context.Context, file BatchFile, opts types.ParseOptions, source string) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.ParseUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("parsely.source", source),
		attribute.String("parsely.filename", tracing.SafeAttributeValue("filename", file.Name, tracing.DefaultMaxLength)),
		attribute.Int("parsely.size", len(file.Data)),
	)

	item := rs.runner.ParseOne(ctx, file, opts)
	if item.Status != BatchStatusOK {
		tracing.RecordError(span, item.Err(), tracing.ErrorTypeInput)
		return &UploadResult{Item: item}, item.Err()
	}
	res := &UploadResult{Item: item}
	if rs.store == nil {
		return res, nil
	}

	recordID := newRecordID()
	if rs.index != nil {
		exists, existingID, err := rs.index.ClaimContentMD5(ctx, item.Hash, recordID)
		if err != nil {
			rs.logger.Warn().Err(err).Str("hash", item.Hash).Msg("登记文件MD5失败，按新文件处理")
		} else if exists && existingID != "" {
			res.RecordID = existingID
			res.Duplicate = true
			span.SetAttributes(attribute.Bool("parsely.duplicate", true))
			return res, nil
		}
	}

	ctx = logger.WithRecordID(ctx, recordID)
	span.SetAttributes(attribute.String("parsely.record_id", recordID))
	if err := rs.archive(ctx, recordID, file, item, opts, source, ""); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		rs.logger.Error().Err(err).Str("record_id", recordID).Msg("归档解析结果失败")
		if rs.index != nil {
			if rerr := rs.index.ReleaseContentMD5(ctx, item.Hash); rerr != nil {
				rs.logger.Warn().Err(rerr).Str("hash", item.Hash).Msg("回滚文件MD5登记失败")
			}
		}
		return res, nil
	}
	res.RecordID = recordID
	return res, nil
}

// archive 上传原始文件与解析结果，写记录与 resume.parsed 事件。
// rawKey 非空表示原始文件已在对象存储中，不再上传也不回滚。
// 写记录失败时删除本次上传的对象
func (rs *ResumeService) archive(ctx context.Context, recordID string, file BatchFile, item BatchItemResult, opts types.ParseOptions, source, rawKey string) (err error) {
	parsed := item.Parsed
	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		return NewArchiveError(recordID, err)
	}

	rec := &models.ResumeRecord{
		RecordID:      recordID,
		Filename:      file.Name,
		MimeType:      file.MimeType,
		ContentMD5:    item.Hash,
		Source:        source,
		NLPModel:      string(modelOrDefault(opts.NLPModel)),
		Status:        constants.StatusParsed,
		ParsedJSON:    parsedJSON,
		ParserVersion: constants.ParserVersion,
	}
	if parsed != nil {
		rec.QualityScore = parsed.ResumeQualityScore
	}

	var uploaded []string
	defer func() {
		if err != nil {
			rs.rollbackObjects(ctx, uploaded...)
		}
	}()

	rec.RawObjectKey = rawKey
	if rs.objects != nil {
		if rawKey == "" {
			key, uerr := rs.objects.UploadRaw(ctx, recordID, utils.FileExt(file.Name, "bin"), file.Data, file.MimeType)
			if uerr != nil {
				return NewArchiveError(recordID, uerr)
			}
			uploaded = append(uploaded, key)
			rec.RawObjectKey = key
		}
		parsedKey, uerr := rs.objects.UploadParsed(ctx, recordID, parsedJSON)
		if uerr != nil {
			return NewArchiveError(recordID, uerr)
		}
		uploaded = append(uploaded, parsedKey)
		rec.ParsedObjectKey = parsedKey
	}

	event, err := rs.parsedEvent(rec)
	if err != nil {
		return NewArchiveError(recordID, err)
	}
	if err := rs.store.SaveRecord(ctx, rec, event); err != nil {
		return NewArchiveError(recordID, err)
	}
	return nil
}

// rollbackObjects 删除已上传的对象，失败只记日志
func (rs *ResumeService) rollbackObjects(ctx context.Context, keys ...string) {
	if rs.objects == nil {
		return
	}
	for _, key := range keys {
		if err := rs.objects.DeleteObject(ctx, key); err != nil {
			rs.logger.Warn().Err(err).Str("object_key", key).Msg("回滚归档对象失败")
		}
	}
}

func modelOrDefault(m types.NLPModel) types.NLPModel {
	if m == "" {
		return types.NLPModelFast
	}
	return m
}

func (rs *ResumeService) parsedEvent(rec *models.ResumeRecord) (*models.OutboxMessage, error) {
	if rs.events.Exchange == "" {
		return nil, nil
	}
	payload, err := json.Marshal(storage.ResumeParsedEvent{
		RecordID:        rec.RecordID,
		ContentMD5:      rec.ContentMD5,
		Source:          rec.Source,
		Status:          rec.Status,
		QualityScore:    rec.QualityScore,
		ParsedObjectKey: rec.ParsedObjectKey,
		ParsedAt:        time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      rec.RecordID,
		EventType:        constants.EventResumeParsed,
		Payload:          string(payload),
		TargetExchange:   rs.events.Exchange,
		TargetRoutingKey: rs.events.RoutingKey,
		Status:           models.OutboxStatusPending,
	}, nil
}

// SubmitJob 上传原始文件并登记 queued 记录，解析任务经 outbox 投递到任务队列
func (rs *ResumeService) SubmitJob(ctx context.Context, file BatchFile, opts types.ParseOptions) (string, error) {
	if rs.store == nil {
		return "", ErrStoreNotInit
	}
	if rs.objects == nil {
		return "", ErrObjectStoreInit
	}
	if len(file.Data) < constants.MinUploadBytes {
		return "", types.NewInputError("submit", fmt.Sprintf("文件过小 (%d 字节)", len(file.Data)))
	}

	recordID := newRecordID()
	hash := utils.CalculateMD5(file.Data)
	rawKey, err := rs.objects.UploadRaw(ctx, recordID, utils.FileExt(file.Name, "bin"), file.Data, file.MimeType)
	if err != nil {
		return "", NewArchiveError(recordID, err)
	}

	job := storage.ParseJobMessage{
		RecordID:          recordID,
		ObjectKey:         rawKey,
		Filename:          file.Name,
		MimeType:          file.MimeType,
		ContentMD5:        hash,
		SubmittedAt:       time.Now().UTC(),
		IncludeConfidence: opts.IncludeConfidence,
		NLPModel:          modelOrDefault(opts.NLPModel),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		rs.rollbackObjects(ctx, rawKey)
		return "", NewArchiveError(recordID, err)
	}

	rec := &models.ResumeRecord{
		RecordID:      recordID,
		Filename:      file.Name,
		MimeType:      file.MimeType,
		ContentMD5:    hash,
		Source:        constants.SourceQueue,
		NLPModel:      string(job.NLPModel),
		Status:        constants.StatusQueued,
		RawObjectKey:  rawKey,
		ParserVersion: constants.ParserVersion,
	}
	event := &models.OutboxMessage{
		AggregateID:      recordID,
		EventType:        constants.EventParseJob,
		Payload:          string(payload),
		TargetExchange:   rs.jobs.Exchange,
		TargetRoutingKey: rs.jobs.RoutingKey,
		Status:           models.OutboxStatusPending,
	}
	if err := rs.store.SaveRecord(ctx, rec, event); err != nil {
		rs.rollbackObjects(ctx, rawKey)
		return "", NewArchiveError(recordID, err)
	}
	rs.logger.Info().Str("record_id", recordID).Str("file", file.Name).Msg("解析任务已提交")
	return recordID, nil
}

// HandleParseJob 消费一条解析任务。返回 false 表示暂时性失败，消息应重新入队；
// 消息格式错误或文档本身无法解析时记录失败状态并确认消息
func (rs *ResumeService) HandleParseJob(ctx context.Context, body []byte) bool {
	ctx, span := tracer.Start(ctx, "ResumeService.HandleParseJob", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var job storage.ParseJobMessage
	if err := json.Unmarshal(body, &job); err != nil || job.RecordID == "" || job.ObjectKey == "" {
		err = NewJobError(job.RecordID, "消息格式错误")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		rs.logger.Error().Err(err).Msg("丢弃无效的解析任务")
		return true
	}
	span.SetAttributes(attribute.String("parsely.record_id", job.RecordID))
	log := rs.logger.With().Str("record_id", job.RecordID).Logger()

	if rs.store == nil || rs.objects == nil {
		log.Error().Msg("存储未配置，无法处理解析任务")
		return false
	}

	data, err := rs.objects.GetObject(ctx, job.ObjectKey)
	if err != nil {
		err = NewFetchError(job.RecordID, err)
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		log.Warn().Err(err).Msg("下载原始文件失败，稍后重试")
		return false
	}

	file := BatchFile{Name: job.Filename, MimeType: job.MimeType, Data: data}
	opts := types.ParseOptions{IncludeConfidence: job.IncludeConfidence, NLPModel: job.NLPModel}
	item := rs.runner.ParseOne(ctx, file, opts)
	if item.Status != BatchStatusOK {
		rec := &models.ResumeRecord{
			RecordID:      job.RecordID,
			Filename:      job.Filename,
			MimeType:      job.MimeType,
			ContentMD5:    item.Hash,
			Source:        constants.SourceQueue,
			NLPModel:      string(modelOrDefault(job.NLPModel)),
			Status:        constants.StatusFailed,
			ErrorMessage:  item.Error,
			RawObjectKey:  job.ObjectKey,
			ParserVersion: constants.ParserVersion,
			CreatedAt:     job.SubmittedAt,
		}
		if err := rs.store.SaveRecord(ctx, rec, nil); err != nil {
			log.Warn().Err(err).Msg("更新失败状态出错，稍后重试")
			return false
		}
		log.Info().Str("error", item.Error).Msg("文档无法解析，已标记失败")
		return true
	}

	if err := rs.archive(ctx, job.RecordID, file, item, opts, constants.SourceQueue, job.ObjectKey); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		log.Warn().Err(err).Msg("归档失败，稍后重试")
		return false
	}
	log.Info().Float64("quality", item.Parsed.ResumeQualityScore).Msg("解析任务完成")
	return true
}

// GetRecord 查询记录
func (rs *ResumeService) GetRecord(ctx context.Context, id string) (*models.ResumeRecord, error) {
	if rs.store == nil {
		return nil, ErrStoreNotInit
	}
	rec, err := rs.store.GetRecord(ctx, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, &ResumeProcessError{RecordID: id, Op: "get", BaseErr: ErrRecordNotFound}
	}
	return rec, err
}

// ListRecords 分页查询记录，limit 限制在 [1, MaxPageLimit]
func (rs *ResumeService) ListRecords(ctx context.Context, limit, offset int) ([]models.ResumeRecord, int64, error) {
	if rs.store == nil {
		return nil, 0, ErrStoreNotInit
	}
	if offset < 0 {
		offset = 0
	}
	return rs.store.ListRecords(ctx, utils.Clamp(limit, constants.DefaultPageLimit, constants.MaxPageLimit), offset)
}
