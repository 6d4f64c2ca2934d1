package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
	"sync"
	"testing"

	"parsely-go/internal/api/handler"
	"parsely-go/internal/constants"
	"parsely-go/internal/processor"
	"parsely-go/internal/storage/models"
	"parsely-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService 记录调用参数的 ParseService 替身
type fakeService struct {
	mu       sync.Mutex
	lastOpts types.ParseOptions
	lastText string
	files    []processor.BatchFile
	seqFlag  bool
	records  map[string]models.ResumeRecord
	noStore  bool
}

func newFakeService() *fakeService {
	return &fakeService{records: map[string]models.ResumeRecord{
		"rec-1": {RecordID: "rec-1", Filename: "a.txt", Status: constants.StatusParsed},
	}}
}

func fakeResult(name string) *processor.ParseResult {
	schema := types.NewEmptySchema()
	schema.Name = name
	pct := 80.0
	schema.ConfidencePercentage = &pct
	return &processor.ParseResult{Schema: schema, Confidence: &types.ConfidenceReport{}}
}

func (f *fakeService) ParseUpload(_ context.Context, file processor.BatchFile, opts types.ParseOptions, _ string) (*processor.UploadResult, error) {
	f.mu.Lock()
	f.lastOpts = opts
	f.files = append(f.files, file)
	f.mu.Unlock()
	if strings.HasSuffix(file.Name, ".png") {
		return nil, types.NewInputError("extract", "不支持的文件类型")
	}
	res := fakeResult("Jane Doe").View(opts.IncludeConfidence)
	return &processor.UploadResult{RecordID: "rec-new", Item: processor.BatchItemResult{
		File: file.Name, Status: "ok", Parsed: res.Schema, Confidence: res.Confidence,
	}}, nil
}

func (f *fakeService) ParseText(_ context.Context, text string, opts types.ParseOptions) *processor.ParseResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastText = text
	f.lastOpts = opts
	if text == "" {
		return &processor.ParseResult{Schema: types.NewEmptySchema()}
	}
	return fakeResult("Jane Doe")
}

func (f *fakeService) RunBatch(_ context.Context, files []processor.BatchFile, opts types.ParseOptions, sequential bool) *processor.BatchResult {
	f.mu.Lock()
	f.lastOpts = opts
	f.files = append(f.files, files...)
	f.seqFlag = sequential
	f.mu.Unlock()
	res := &processor.BatchResult{BatchID: "batch-1", Sequential: sequential, Workers: 1}
	for _, file := range files {
		item := processor.BatchItemResult{File: file.Name}
		if len(file.Data) == 0 {
			item.Status = "error"
			item.Error = "empty"
			res.Failed++
		} else {
			item.Status = "ok"
			item.Parsed = fakeResult(file.Name).Schema
			res.Succeeded++
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func (f *fakeService) SubmitJob(_ context.Context, file processor.BatchFile, _ types.ParseOptions) (string, error) {
	if f.noStore {
		return "", processor.ErrStoreNotInit
	}
	f.mu.Lock()
	f.files = append(f.files, file)
	f.mu.Unlock()
	return "rec-job", nil
}

func (f *fakeService) GetRecord(_ context.Context, id string) (*models.ResumeRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, &processor.ResumeProcessError{RecordID: id, Op: "get", BaseErr: processor.ErrRecordNotFound}
	}
	return &rec, nil
}

func (f *fakeService) ListRecords(_ context.Context, limit, offset int) ([]models.ResumeRecord, int64, error) {
	if f.noStore {
		return nil, 0, processor.ErrStoreNotInit
	}
	if offset > 0 {
		return nil, int64(len(f.records)), nil
	}
	out := make([]models.ResumeRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func newTestEngine(svc handler.ParseService, opts ...handler.Option) *server.Hertz {
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	rh := handler.NewResumeHandler(svc, opts...)
	api := h.Group("/api/v1")
	api.GET("/health", rh.Health)
	api.POST("/parse", rh.Parse)
	api.POST("/parse/text", rh.ParseText)
	api.POST("/parse/batch", rh.ParseBatch)
	api.POST("/jobs", rh.SubmitJob)
	api.GET("/records", rh.ListRecords)
	api.GET("/records/:id", rh.GetRecord)
	return h
}

type upload struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func perform(h *server.Hertz, method, url string, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	headers := []ut.Header{}
	if contentType != "" {
		headers = append(headers, ut.Header{Key: "Content-Type", Value: contentType})
	}
	return ut.PerformRequest(h.Engine, method, url, &ut.Body{Body: body, Len: body.Len()}, headers...)
}

func decode(t *testing.T, w *ut.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Result().Body(), v), string(w.Result().Body()))
}

func TestHealth(t *testing.T) {
	h := newTestEngine(newFakeService(), handler.WithVersion("9.9"))
	w := perform(h, "GET", "/api/v1/health", nil, "")
	assert.Equal(t, 200, w.Result().StatusCode())

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "9.9", resp["version"])
}

func TestParseUpload(t *testing.T) {
	svc := newFakeService()
	h := newTestEngine(svc)

	body, ct := multipartBody(t, upload{"file", "resume.txt", []byte("Jane Doe\njane@example.com")})
	w := perform(h, "POST", "/api/v1/parse?include_confidence=true&nlp_model=accurate", body, ct)
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))

	var resp map[string]any
	decode(t, w, &resp)
	assert.Equal(t, "rec-new", resp["record_id"])
	result := resp["result"].(map[string]any)
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, "Jane Doe", result["parsed"].(map[string]any)["name"])

	assert.True(t, svc.lastOpts.IncludeConfidence)
	assert.Equal(t, types.NLPModelAccurate, svc.lastOpts.NLPModel)
	require.Len(t, svc.files, 1)
	assert.Equal(t, "resume.txt", svc.files[0].Name)
}

func TestParseUploadValidation(t *testing.T) {
	h := newTestEngine(newFakeService(), handler.WithMaxUploadBytes(64))

	t.Run("缺少文件字段", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"other", "a.txt", []byte("hello world")})
		w := perform(h, "POST", "/api/v1/parse", body, ct)
		assert.Equal(t, 400, w.Result().StatusCode())
	})

	t.Run("文件过小", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"file", "a.txt", []byte("ab")})
		w := perform(h, "POST", "/api/v1/parse", body, ct)
		assert.Equal(t, 422, w.Result().StatusCode())
	})

	t.Run("文件过大", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"file", "a.txt", bytes.Repeat([]byte("x"), 100)})
		w := perform(h, "POST", "/api/v1/parse", body, ct)
		assert.Equal(t, 413, w.Result().StatusCode())
	})

	t.Run("不支持的格式", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"file", "photo.png", []byte("\x89PNG....")})
		w := perform(h, "POST", "/api/v1/parse", body, ct)
		assert.Equal(t, 422, w.Result().StatusCode())
	})

	t.Run("未知模型", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"file", "a.txt", []byte("hello world")})
		w := perform(h, "POST", "/api/v1/parse?nlp_model=huge", body, ct)
		assert.Equal(t, 400, w.Result().StatusCode())
	})

	t.Run("布尔参数非法", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"file", "a.txt", []byte("hello world")})
		w := perform(h, "POST", "/api/v1/parse?include_confidence=maybe", body, ct)
		assert.Equal(t, 400, w.Result().StatusCode())
	})
}

func TestParseText(t *testing.T) {
	svc := newFakeService()
	h := newTestEngine(svc, handler.WithDefaultModel(types.NLPModelFast))

	t.Run("默认不返回置信度", func(t *testing.T) {
		w := perform(h, "POST", "/api/v1/parse/text", bytes.NewBufferString(`{"text":"Jane Doe"}`), "application/json")
		require.Equal(t, 200, w.Result().StatusCode())
		var resp map[string]any
		decode(t, w, &resp)
		parsed := resp["parsed"].(map[string]any)
		assert.Equal(t, "Jane Doe", parsed["name"])
		assert.NotContains(t, parsed, "confidence_percentage")
		assert.NotContains(t, resp, "confidence")
		assert.Equal(t, types.NLPModelFast, svc.lastOpts.NLPModel)
	})

	t.Run("请求置信度", func(t *testing.T) {
		w := perform(h, "POST", "/api/v1/parse/text", bytes.NewBufferString(`{"text":"Jane Doe","include_confidence":true}`), "application/json")
		require.Equal(t, 200, w.Result().StatusCode())
		var resp map[string]any
		decode(t, w, &resp)
		assert.Contains(t, resp["parsed"].(map[string]any), "confidence_percentage")
	})

	t.Run("空文本返回空结构", func(t *testing.T) {
		w := perform(h, "POST", "/api/v1/parse/text", bytes.NewBufferString(`{"text":""}`), "application/json")
		require.Equal(t, 200, w.Result().StatusCode())
		var resp map[string]any
		decode(t, w, &resp)
		parsed := resp["parsed"].(map[string]any)
		assert.Equal(t, "", parsed["name"])
		assert.Empty(t, parsed["emails"])
	})

	t.Run("非法JSON", func(t *testing.T) {
		w := perform(h, "POST", "/api/v1/parse/text", bytes.NewBufferString(`{"text":`), "application/json")
		assert.Equal(t, 400, w.Result().StatusCode())
	})

	t.Run("未知模型", func(t *testing.T) {
		w := perform(h, "POST", "/api/v1/parse/text", bytes.NewBufferString(`{"text":"x","nlp_model":"gpt"}`), "application/json")
		assert.Equal(t, 400, w.Result().StatusCode())
	})
}

func TestParseBatch(t *testing.T) {
	svc := newFakeService()
	h := newTestEngine(svc)

	body, ct := multipartBody(t,
		upload{"files", "a.txt", []byte("Alice Smith resume")},
		upload{"files", "b.txt", []byte("Bob Jones resume")},
		upload{"files", "tiny.txt", []byte("x")},
	)
	w := perform(h, "POST", "/api/v1/parse/batch?sequential=true", body, ct)
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))

	var res processor.BatchResult
	decode(t, w, &res)
	assert.True(t, svc.seqFlag)
	require.Len(t, res.Items, 3)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "tiny.txt", res.Items[2].File)
	assert.Equal(t, "error", res.Items[2].Status)
}

func TestParseBatchXLSX(t *testing.T) {
	h := newTestEngine(newFakeService())
	body, ct := multipartBody(t, upload{"files", "a.txt", []byte("Alice Smith resume")})
	w := perform(h, "POST", "/api/v1/parse/batch?format=xlsx", body, ct)
	require.Equal(t, 200, w.Result().StatusCode())

	resp := w.Result()
	assert.Contains(t, string(resp.Header.ContentType()), "spreadsheetml")
	assert.Contains(t, string(resp.Header.Peek("Content-Disposition")), "batch-batch-1.xlsx")
	// xlsx 是 zip 容器
	assert.True(t, bytes.HasPrefix(resp.Body(), []byte("PK")))
}

func TestParseBatchValidation(t *testing.T) {
	h := newTestEngine(newFakeService())

	t.Run("格式非法", func(t *testing.T) {
		body, ct := multipartBody(t, upload{"files", "a.txt", []byte("hello world")})
		w := perform(h, "POST", "/api/v1/parse/batch?format=csv", body, ct)
		assert.Equal(t, 400, w.Result().StatusCode())
	})

	t.Run("没有文件", func(t *testing.T) {
		body, ct := multipartBody(t)
		w := perform(h, "POST", "/api/v1/parse/batch", body, ct)
		assert.Equal(t, 400, w.Result().StatusCode())
	})

	t.Run("文件数超限", func(t *testing.T) {
		h := newTestEngine(newFakeService(), handler.WithMaxBatchFiles(3))
		files := make([]upload, 0, 4)
		for i := 0; i < 4; i++ {
			files = append(files, upload{"files", fmt.Sprintf("f%d.txt", i), []byte("hello")})
		}
		body, ct := multipartBody(t, files...)
		w := perform(h, "POST", "/api/v1/parse/batch", body, ct)
		assert.Equal(t, 413, w.Result().StatusCode())
	})
}

func TestSubmitJob(t *testing.T) {
	svc := newFakeService()
	h := newTestEngine(svc)

	body, ct := multipartBody(t, upload{"file", "resume.txt", []byte("Jane Doe resume")})
	w := perform(h, "POST", "/api/v1/jobs", body, ct)
	require.Equal(t, 202, w.Result().StatusCode())
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "rec-job", resp["record_id"])
	assert.Equal(t, constants.StatusQueued, resp["status"])

	svc.noStore = true
	body, ct = multipartBody(t, upload{"file", "resume.txt", []byte("Jane Doe resume")})
	w = perform(h, "POST", "/api/v1/jobs", body, ct)
	assert.Equal(t, 503, w.Result().StatusCode())
}

func TestRecords(t *testing.T) {
	svc := newFakeService()
	h := newTestEngine(svc)

	w := perform(h, "GET", "/api/v1/records?limit=5", nil, "")
	require.Equal(t, 200, w.Result().StatusCode())
	var list handler.RecordListResponse
	decode(t, w, &list)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 5, list.Limit)
	require.Len(t, list.Items, 1)

	w = perform(h, "GET", "/api/v1/records?offset=10", nil, "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), `"items":[]`)

	w = perform(h, "GET", "/api/v1/records?limit=abc", nil, "")
	assert.Equal(t, 400, w.Result().StatusCode())

	w = perform(h, "GET", "/api/v1/records/rec-1", nil, "")
	require.Equal(t, 200, w.Result().StatusCode())
	var rec models.ResumeRecord
	decode(t, w, &rec)
	assert.Equal(t, "a.txt", rec.Filename)

	w = perform(h, "GET", "/api/v1/records/missing", nil, "")
	assert.Equal(t, 404, w.Result().StatusCode())

	svc.noStore = true
	w = perform(h, "GET", "/api/v1/records", nil, "")
	assert.Equal(t, 503, w.Result().StatusCode())
}
