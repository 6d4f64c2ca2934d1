package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"parsely-go/internal/constants"
	"parsely-go/internal/export"
	"parsely-go/internal/processor"
	"parsely-go/internal/storage/models"
	"parsely-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParseService 处理器对外暴露的能力，processor.ResumeService 满足该接口
type ParseService interface {
	ParseUpload(ctx context.Context, file processor.BatchFile, opts types.ParseOptions, source string) (*processor.UploadResult, error)
	ParseText(ctx context.Context, text string, opts types.ParseOptions) *processor.ParseResult
	RunBatch(ctx context.Context, files []processor.BatchFile, opts types.ParseOptions, sequential bool) *processor.BatchResult
	SubmitJob(ctx context.Context, file processor.BatchFile, opts types.ParseOptions) (string, error)
	GetRecord(ctx context.Context, id string) (*models.ResumeRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]models.ResumeRecord, int64, error)
}

// ParseTextRequest POST /parse/text 请求体
type ParseTextRequest struct {
	Text              string `json:"text"`
	IncludeConfidence bool   `json:"include_confidence"`
	NLPModel          string `json:"nlp_model"`
}

// RecordListResponse 记录分页响应
type RecordListResponse struct {
	Items  []models.ResumeRecord `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ResumeHandler 简历解析 HTTP 处理器
type ResumeHandler struct {
	svc            ParseService
	version        string
	maxUploadBytes int64
	maxBatchFiles  int
	defaultModel   types.NLPModel
	logger         zerolog.Logger
}

// Option 处理器选项
type Option func(*ResumeHandler)

// WithVersion 设置健康检查返回的版本号
func WithVersion(v string) Option {
	return func(h *ResumeHandler) { h.version = v }
}

// WithMaxUploadBytes 设置单文件大小上限
func WithMaxUploadBytes(n int64) Option {
	return func(h *ResumeHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithMaxBatchFiles 设置单次批量上传的文件数上限
func WithMaxBatchFiles(n int) Option {
	return func(h *ResumeHandler) {
		if n > 0 {
			h.maxBatchFiles = n
		}
	}
}

// WithDefaultModel 请求未指定 nlp_model 时使用的模型
func WithDefaultModel(m types.NLPModel) Option {
	return func(h *ResumeHandler) {
		if m != "" {
			h.defaultModel = m
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(h *ResumeHandler) { h.logger = l }
}

// NewResumeHandler 创建处理器
func NewResumeHandler(svc ParseService, opts ...Option) *ResumeHandler {
	h := &ResumeHandler{
		svc:            svc,
		version:        constants.ParserVersion,
		maxUploadBytes: constants.MaxUploadBytes,
		maxBatchFiles:  constants.MaxBatchFiles,
		defaultModel:   types.NLPModelFast,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health GET /health
func (h *ResumeHandler) Health(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok", "version": h.version})
}

// Parse POST /parse，multipart 字段 file
func (h *ResumeHandler) Parse(ctx context.Context, c *app.RequestContext) {
	opts, ok := h.parseOptions(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "缺少上传文件字段 file"})
		return
	}
	file, status, err := h.readFile(fh)
	if err != nil {
		c.JSON(status, utils.H{"error": err.Error()})
		return
	}

	res, err := h.svc.ParseUpload(ctx, file, opts, constants.SourceAPI)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// ParseText POST /parse/text。空文本返回空 schema，不视为错误
func (h *ResumeHandler) ParseText(ctx context.Context, c *app.RequestContext) {
	var req ParseTextRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
		return
	}
	model, ok := h.model(req.NLPModel)
	if !ok {
		c.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("未知的 nlp_model: %s", req.NLPModel)})
		return
	}
	res := h.svc.ParseText(ctx, req.Text, types.ParseOptions{IncludeConfidence: req.IncludeConfidence, NLPModel: model})
	c.JSON(consts.StatusOK, res.View(req.IncludeConfidence))
}

// ParseBatch POST /parse/batch，multipart 字段 files，format=json|xlsx
func (h *ResumeHandler) ParseBatch(ctx context.Context, c *app.RequestContext) {
	opts, ok := h.parseOptions(c)
	if !ok {
		return
	}
	sequential, ok := queryBool(c, "sequential")
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "xlsx" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "format 只支持 json 或 xlsx"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "缺少上传文件字段 files"})
		return
	}
	headers := form.File["files"]
	if len(headers) > h.maxBatchFiles {
		c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": fmt.Sprintf("单次最多 %d 个文件", h.maxBatchFiles)})
		return
	}

	// 单个文件读取失败不影响其他文件，交给批处理按空内容报错
	files := make([]processor.BatchFile, 0, len(headers))
	for _, fh := range headers {
		f, _, err := h.readFile(fh)
		if err != nil {
			h.log(ctx).Warn().Err(err).Str("file", fh.Filename).Msg("读取批量上传文件失败")
			f = processor.BatchFile{Name: fh.Filename}
		}
		files = append(files, f)
	}

	res := h.svc.RunBatch(ctx, files, opts, sequential)
	if format == "xlsx" {
		data, err := export.BatchXLSX(res)
		if err != nil {
			h.writeError(ctx, c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="batch-%s.xlsx"`, res.BatchID))
		c.Data(consts.StatusOK, xlsxContentType, data)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// SubmitJob POST /jobs，上传后异步解析，返回 202 与记录 ID
func (h *ResumeHandler) SubmitJob(ctx context.Context, c *app.RequestContext) {
	opts, ok := h.parseOptions(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "缺少上传文件字段 file"})
		return
	}
	file, status, err := h.readFile(fh)
	if err != nil {
		c.JSON(status, utils.H{"error": err.Error()})
		return
	}
	id, err := h.svc.SubmitJob(ctx, file, opts)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusAccepted, utils.H{"record_id": id, "status": constants.StatusQueued})
}

// ListRecords GET /records?limit=&offset=
func (h *ResumeHandler) ListRecords(ctx context.Context, c *app.RequestContext) {
	limit, ok := queryInt(c, "limit", constants.DefaultPageLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	items, total, err := h.svc.ListRecords(ctx, limit, offset)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if items == nil {
		items = []models.ResumeRecord{}
	}
	c.JSON(consts.StatusOK, RecordListResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// GetRecord GET /records/:id
func (h *ResumeHandler) GetRecord(ctx context.Context, c *app.RequestContext) {
	rec, err := h.svc.GetRecord(ctx, c.Param("id"))
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, rec)
}

// readFile 读取上传文件并做大小检查
func (h *ResumeHandler) readFile(fh *multipart.FileHeader) (processor.BatchFile, int, error) {
	if fh.Size > h.maxUploadBytes {
		return processor.BatchFile{}, consts.StatusRequestEntityTooLarge,
			fmt.Errorf("文件 %s 超过大小上限 %d 字节", fh.Filename, h.maxUploadBytes)
	}
	if fh.Size < constants.MinUploadBytes {
		return processor.BatchFile{}, consts.StatusUnprocessableEntity,
			fmt.Errorf("文件 %s 过小 (%d 字节)", fh.Filename, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return processor.BatchFile{}, consts.StatusInternalServerError, fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return processor.BatchFile{}, consts.StatusInternalServerError, fmt.Errorf("读取上传文件失败: %w", err)
	}
	return processor.BatchFile{Name: fh.Filename, MimeType: fh.Header.Get("Content-Type"), Data: data}, 0, nil
}

func (h *ResumeHandler) parseOptions(c *app.RequestContext) (types.ParseOptions, bool) {
	include, ok := queryBool(c, "include_confidence")
	if !ok {
		return types.ParseOptions{}, false
	}
	raw := c.Query("nlp_model")
	model, ok := h.model(raw)
	if !ok {
		c.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("未知的 nlp_model: %s", raw)})
		return types.ParseOptions{}, false
	}
	return types.ParseOptions{IncludeConfidence: include, NLPModel: model}, true
}

func (h *ResumeHandler) model(raw string) (types.NLPModel, bool) {
	if raw == "" {
		return h.defaultModel, true
	}
	return types.ParseNLPModel(raw)
}

// log 优先使用请求上下文中带 request_id 的日志记录器
func (h *ResumeHandler) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

// writeError 按错误分类映射状态码
func (h *ResumeHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrInput):
		status = consts.StatusUnprocessableEntity
	case errors.Is(err, processor.ErrRecordNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, processor.ErrStoreNotInit), errors.Is(err, processor.ErrObjectStoreInit):
		status = consts.StatusServiceUnavailable
	}
	if status >= consts.StatusInternalServerError {
		h.log(ctx).Error().Err(err).Msg("请求处理失败")
	}
	c.JSON(status, utils.H{"error": err.Error()})
}

func queryBool(c *app.RequestContext, key string) (bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("参数 %s 不是布尔值: %s", key, raw)})
		return false, false
	}
	return v, true
}

func queryInt(c *app.RequestContext, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("参数 %s 不是整数: %s", key, raw)})
		return 0, false
	}
	return v, true
}
