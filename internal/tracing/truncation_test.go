package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))
}

func TestMaskTextKeepsSurroundingText(t *testing.T) {
	got := MaskText("phone: 555-123-4567 rejected; email jane.doe@example.com invalid")
	assert.NotContains(t, got, "555-123-4567")
	assert.NotContains(t, got, "jane.doe@example.com")
	assert.Contains(t, got, "phone: ")
	assert.Contains(t, got, " rejected; email ")
	assert.Contains(t, got, " invalid")
}

func TestSafeAttributeValue(t *testing.T) {
	assert.Equal(t, "se*****et", SafeAttributeValue("api_key", "secretset", 100))
	assert.Equal(t, "plain", SafeAttributeValue("section", "plain", 100))
	assert.Equal(t, "ab...yz", SafeAttributeValue("section", "abcdefghijklmnopqrstuvwxyz", 7))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Len(t, []rune(TruncateString("一二三四五六七八九十", 7)), 7)
}

func TestRecordErrorNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordError(nil, errors.New("x"), ErrorTypeInternal)
		RecordHTTPError(nil, nil, 500)
		RecordRabbitMQNack(nil, "id", "")
	})
}

func TestInitProviderWithoutEndpoint(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceName: "parsely"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
