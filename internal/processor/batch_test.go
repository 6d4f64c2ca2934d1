package processor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"parsely-go/internal/parser"
	"parsely-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPipeline 记录流水线实际执行次数
type countingPipeline struct {
	inner Pipeline
	calls atomic.Int32
}

func (c *countingPipeline) Parse(ctx context.Context, doc types.RawDocument, opts types.ParseOptions) *ParseResult {
	c.calls.Add(1)
	return c.inner.Parse(ctx, doc, opts)
}

func newCountingRunner(t *testing.T, opts ...BatchOption) (*BatchRunner, *countingPipeline) {
	t.Helper()
	counter := &countingPipeline{inner: newTestPipeline(t)}
	return NewBatchRunner(counter, parser.NewDocumentExtractor(nil), opts...), counter
}

func textFile(name, body string) BatchFile {
	return BatchFile{Name: name, MimeType: "text/plain", Data: []byte(body)}
}

func TestBatchIdenticalDocumentsParsedOnce(t *testing.T) {
	for _, sequential := range []bool{true, false} {
		runner, counter := newCountingRunner(t)
		files := []BatchFile{textFile("a.txt", sampleResume), textFile("b.txt", sampleResume)}

		res := runner.Run(context.Background(), files, types.ParseOptions{}, sequential)

		assert.Equal(t, int32(1), counter.calls.Load(), "sequential=%v", sequential)
		require.Len(t, res.Items, 2)
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 1, res.CacheHits)
		assert.Equal(t, res.Items[0].Hash, res.Items[1].Hash)
		assert.Equal(t, res.Items[0].Parsed, res.Items[1].Parsed)
		if sequential {
			assert.False(t, res.Items[0].FromCache)
			assert.True(t, res.Items[1].FromCache)
			assert.Equal(t, 1, res.Workers)
		}
	}
}

func TestBatchErrorsAreIsolated(t *testing.T) {
	runner, counter := newCountingRunner(t)
	files := []BatchFile{
		textFile("ok.txt", sampleResume),
		{Name: "empty.txt", MimeType: "text/plain", Data: []byte{}},
		{Name: "photo.png", MimeType: "image/png", Data: []byte("\x89PNG....")},
		textFile("other.txt", "Jane Roe\njane@example.org\n\nSKILLS\nGo, Python, Docker"),
	}

	res := runner.Run(context.Background(), files, types.ParseOptions{}, false)

	require.Len(t, res.Items, 4)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, int32(2), counter.calls.Load())

	for i, f := range files {
		assert.Equal(t, f.Name, res.Items[i].File, "结果顺序应与输入一致")
	}
	assert.Equal(t, BatchStatusOK, res.Items[0].Status)
	assert.Equal(t, BatchStatusError, res.Items[1].Status)
	assert.True(t, errors.Is(res.Items[1].Err(), types.ErrInput))
	assert.NotEmpty(t, res.Items[1].Error)
	assert.Nil(t, res.Items[1].Parsed)
	assert.True(t, errors.Is(res.Items[2].Err(), types.ErrInput))
	assert.Equal(t, BatchStatusOK, res.Items[3].Status)
	assert.Equal(t, []string{"Docker"}, res.Items[3].Parsed.Skills["Infrastructure"])
}

func TestBatchConfidenceViewSharesCache(t *testing.T) {
	runner, counter := newCountingRunner(t)
	file := textFile("a.txt", sampleResume)

	plain := runner.ParseOne(context.Background(), file, types.ParseOptions{})
	detailed := runner.ParseOne(context.Background(), file, types.ParseOptions{IncludeConfidence: true})

	assert.Equal(t, int32(1), counter.calls.Load())
	assert.Nil(t, plain.Confidence)
	assert.Nil(t, plain.Parsed.ConfidencePercentage)
	assert.True(t, detailed.FromCache)
	require.NotNil(t, detailed.Confidence)
	require.NotNil(t, detailed.Parsed.ConfidencePercentage)

	// 不同模型各自缓存
	runner.ParseOne(context.Background(), file, types.ParseOptions{NLPModel: types.NLPModelAccurate})
	assert.Equal(t, int32(2), counter.calls.Load())
}

func TestBatchCancelledContext(t *testing.T) {
	runner, counter := newCountingRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runner.Run(ctx, []BatchFile{textFile("a.txt", sampleResume)}, types.ParseOptions{}, true)

	assert.Equal(t, int32(0), counter.calls.Load())
	assert.Equal(t, 1, res.Failed)
	assert.True(t, errors.Is(res.Items[0].Err(), context.Canceled))
}

func TestBatchWorkers(t *testing.T) {
	runner, _ := newCountingRunner(t, WithBatchMaxWorkers(2))
	assert.Equal(t, 1, runner.Workers(0))
	assert.Equal(t, 1, runner.Workers(1))
	assert.LessOrEqual(t, runner.Workers(10), 2)
}

func TestBatchEmptyInput(t *testing.T) {
	runner, _ := newCountingRunner(t)
	res := runner.Run(context.Background(), nil, types.ParseOptions{}, false)
	assert.Empty(t, res.Items)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 0, res.Failed)
}
