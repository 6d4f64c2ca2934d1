package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"parsely-go/internal/storage/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "records.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSaveAndGetRecord(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := &models.ResumeRecord{
		RecordID:     "rec-1",
		Filename:     "jane.pdf",
		MimeType:     "application/pdf",
		ContentMD5:   "abc",
		Source:       "api",
		Status:       "parsed",
		ParsedJSON:   datatypes.JSON(`{"name":"Jane Doe"}`),
		QualityScore: 72.5,
	}
	event := &models.OutboxMessage{
		AggregateID:      "rec-1",
		EventType:        "resume.parsed",
		Payload:          `{"record_id":"rec-1"}`,
		TargetExchange:   "parsely.events",
		TargetRoutingKey: "resume.parsed",
	}
	require.NoError(t, s.SaveRecord(ctx, rec, event))
	assert.NotZero(t, event.ID)

	got, err := s.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "jane.pdf", got.Filename)
	assert.JSONEq(t, `{"name":"Jane Doe"}`, string(got.ParsedJSON))
	assert.Equal(t, 72.5, got.QualityScore)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetRecord(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSQLiteListRecordsNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := &models.ResumeRecord{RecordID: id, Status: "parsed", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.SaveRecord(ctx, rec, nil))
	}

	page, total, err := s.ListRecords(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].RecordID)
	assert.Equal(t, "b", page[1].RecordID)

	page, _, err = s.ListRecords(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].RecordID)
}

func TestSQLiteWithPendingOutbox(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2"} {
		require.NoError(t, s.SaveRecord(ctx, &models.ResumeRecord{RecordID: id}, &models.OutboxMessage{
			AggregateID: id, EventType: "resume.parsed", Payload: "{}",
			TargetExchange: "ex", TargetRoutingKey: "rk",
		}))
	}

	n, err := s.WithPendingOutbox(ctx, 10, func(msgs []models.OutboxMessage) {
		require.Len(t, msgs, 2)
		now := time.Now()
		msgs[0].Status = models.OutboxStatusSent
		msgs[0].ProcessedAt = &now
		msgs[1].RetryCount = 1
		msgs[1].ErrorMessage = "broker down"
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var seen []models.OutboxMessage
	n, err = s.WithPendingOutbox(ctx, 10, func(msgs []models.OutboxMessage) { seen = msgs })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, seen, 1)
	assert.Equal(t, "r2", seen[0].AggregateID)
	assert.Equal(t, 1, seen[0].RetryCount)
	assert.Equal(t, "broker down", seen[0].ErrorMessage)
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "resume/r1/original.pdf", RawObjectName("r1", ".pdf"))
	assert.Equal(t, "resume/r1/original.txt", RawObjectName("r1", "txt"))
	assert.Equal(t, "resume/r1/parsed.json", ParsedObjectName("r1"))

	b, o, err := SplitObjectKey("originals/resume/r1/original.pdf")
	require.NoError(t, err)
	assert.Equal(t, "originals", b)
	assert.Equal(t, "resume/r1/original.pdf", o)

	_, _, err = SplitObjectKey("nobucket")
	assert.Error(t, err)
}

func TestAMQPHeaderCarrier(t *testing.T) {
	c := amqpHeaderCarrier{}
	c.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestStorageRecordsPrefersMySQL(t *testing.T) {
	var s *Storage
	assert.Nil(t, s.Records())

	sq := newTestSQLite(t)
	s = &Storage{SQLite: sq}
	assert.Equal(t, sq, s.Records())
}
