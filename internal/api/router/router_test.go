package router

import (
	"bytes"
	"context"
	"testing"

	"parsely-go/internal/api/handler"
	"parsely-go/internal/processor"
	"parsely-go/internal/storage/models"
	"parsely-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
)

type stubService struct{}

func (stubService) ParseUpload(context.Context, processor.BatchFile, types.ParseOptions, string) (*processor.UploadResult, error) {
	return &processor.UploadResult{}, nil
}

func (stubService) ParseText(context.Context, string, types.ParseOptions) *processor.ParseResult {
	return &processor.ParseResult{Schema: types.NewEmptySchema()}
}

func (stubService) RunBatch(context.Context, []processor.BatchFile, types.ParseOptions, bool) *processor.BatchResult {
	return &processor.BatchResult{}
}

func (stubService) SubmitJob(context.Context, processor.BatchFile, types.ParseOptions) (string, error) {
	return "id", nil
}

func (stubService) GetRecord(context.Context, string) (*models.ResumeRecord, error) {
	return &models.ResumeRecord{}, nil
}

func (stubService) ListRecords(context.Context, int, int) ([]models.ResumeRecord, int64, error) {
	return nil, 0, nil
}

func newEngine(keys []string) *server.Hertz {
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	RegisterRoutes(h, handler.NewResumeHandler(stubService{}), keys)
	return h
}

func postText(h *server.Hertz, headers ...ut.Header) *ut.ResponseRecorder {
	body := bytes.NewBufferString(`{"text":"hello"}`)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(h.Engine, "POST", "/api/v1/parse/text", &ut.Body{Body: body, Len: body.Len()}, headers...)
}

func TestRoutesWithoutAuth(t *testing.T) {
	h := newEngine(nil)

	w := postText(h)
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.NotEmpty(t, w.Result().Header.Peek(RequestIDHeader))

	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/records", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestAPIKeyAuth(t *testing.T) {
	h := newEngine([]string{"secret-key"})

	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode(), "健康检查不需要鉴权")

	w = postText(h)
	assert.Equal(t, 401, w.Result().StatusCode())

	w = postText(h, ut.Header{Key: APIKeyHeader, Value: "wrong"})
	assert.Equal(t, 401, w.Result().StatusCode())

	w = postText(h, ut.Header{Key: APIKeyHeader, Value: "secret-key"})
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestRequestIDPropagated(t *testing.T) {
	h := newEngine(nil)
	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil, ut.Header{Key: RequestIDHeader, Value: "req-123"})
	assert.Equal(t, "req-123", string(w.Result().Header.Peek(RequestIDHeader)))
}
