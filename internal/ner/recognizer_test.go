package ner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRecognizer(t *testing.T) {
	r := NewRuleRecognizer([]string{"engineer", "software", "senior"}, []string{"Inc", "Corp", "Ltd."})
	ctx := context.Background()

	cases := []struct {
		text string
		want []Entity
	}{
		{"John Doe", []Entity{{Label: LabelPerson, Text: "John Doe"}}},
		{"Jean-Luc Picard", []Entity{{Label: LabelPerson, Text: "Jean-Luc Picard"}}},
		{"Ludwig van Beethoven", []Entity{{Label: LabelPerson, Text: "Ludwig van Beethoven"}}},
		{"worked at Acme Corp", []Entity{{Label: LabelOrg, Text: "Acme Corp"}}},
		{"Worked at Google, then John Smith joined", []Entity{{Label: LabelPerson, Text: "John Smith"}}},
		{"Senior Software Engineer", nil},
		{"JOHN DOE", nil},
		{"Madonna", nil},
	}
	for _, tc := range cases {
		got, err := r.Recognize(ctx, tc.text)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestRuleRecognizerDoesNotSpanLines(t *testing.T) {
	r := NewRuleRecognizer(nil, nil)
	got, err := r.Recognize(context.Background(), "Jane\nRoe")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFirstPerson(t *testing.T) {
	name, ok := FirstPerson([]Entity{
		{Label: LabelOrg, Text: "Acme Inc"},
		{Label: LabelPerson, Text: "  "},
		{Label: LabelPerson, Text: " Jane Roe "},
	})
	require.True(t, ok)
	assert.Equal(t, "Jane Roe", name)

	_, ok = FirstPerson(nil)
	assert.False(t, ok)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "简历", truncateRunes("简历解析", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}

func newNERServer(t *testing.T, handler func(calls int32, req recognizeRequest) (int, any)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req recognizeRequest
		assert.NoError(t, json.Unmarshal(body, &req))

		status, reply := handler(n, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestHTTPRecognizer(t *testing.T) {
	var seen string
	srv, _ := newNERServer(t, func(_ int32, req recognizeRequest) (int, any) {
		seen = req.Text
		return http.StatusOK, recognizeResponse{Entities: []Entity{{Label: LabelPerson, Text: "Jane Roe"}}}
	})

	rec, err := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL + "/ner", Timeout: 2 * time.Second, MaxChars: 8})
	require.NoError(t, err)

	got, err := rec.Recognize(context.Background(), "Jane Roe\nSoftware Engineer")
	require.NoError(t, err)
	assert.Equal(t, []Entity{{Label: LabelPerson, Text: "Jane Roe"}}, got)
	assert.Equal(t, "Jane Roe", seen)
}

func TestHTTPRecognizerStatusError(t *testing.T) {
	srv, _ := newNERServer(t, func(int32, recognizeRequest) (int, any) {
		return http.StatusServiceUnavailable, map[string]string{"error": "busy"}
	})
	rec, err := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	_, err = rec.Recognize(context.Background(), "Jane Roe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "状态码 503")
}

func TestNewHTTPRecognizerRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPRecognizer(HTTPConfig{})
	assert.Error(t, err)
}

func TestRateLimitedRecognizerRetries(t *testing.T) {
	srv, calls := newNERServer(t, func(n int32, _ recognizeRequest) (int, any) {
		if n == 1 {
			return http.StatusServiceUnavailable, map[string]string{"error": "busy"}
		}
		return http.StatusOK, recognizeResponse{Entities: []Entity{{Label: LabelPerson, Text: "Jane Roe"}}}
	})
	remote, err := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	rec := NewRateLimitedRecognizer(remote, 600).WithRetryPolicy(time.Millisecond, 2)
	got, err := rec.Recognize(context.Background(), "Jane Roe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", got[0].Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestRateLimitedRecognizerStopsOnPermanentError(t *testing.T) {
	srv, calls := newNERServer(t, func(int32, recognizeRequest) (int, any) {
		return http.StatusBadRequest, map[string]string{"error": "bad"}
	})
	remote, err := NewHTTPRecognizer(HTTPConfig{Endpoint: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	_, err = NewRateLimitedRecognizer(remote, 600).WithRetryPolicy(time.Millisecond, 3).
		Recognize(context.Background(), "Jane Roe")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}
