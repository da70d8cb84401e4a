package sys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostMemory(t *testing.T) {
	m, err := HostMemory()
	require.NoError(t, err)
	assert.Greater(t, m.Total, uint64(0))
	assert.LessOrEqual(t, m.UsedPercent(), 100.0)
	assert.Contains(t, m.String(), "available")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(1536*1024))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}

func TestUsedPercent(t *testing.T) {
	assert.Equal(t, 0.0, Memory{}.UsedPercent())
	assert.Equal(t, 25.0, Memory{Total: 400, Used: 100}.UsedPercent())
}
