package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEntryID(t *testing.T) {
	assert.Equal(t, "2025-01-001", FormatEntryID(2025, 1, 1))
	assert.Equal(t, "2025-11-1234", FormatEntryID(2025, 11, 1234))
}

func TestParseEntryID(t *testing.T) {
	y, m, s, err := ParseEntryID("2025-11-042")
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 11, 42}, []int{y, m, s})
}

func TestParseEntryID_Invalid(t *testing.T) {
	for _, in := range []string{"", "2025-11", "x-11-001", "2025-13-001", "2025-11-abc", "2025-11-000"} {
		_, _, _, err := ParseEntryID(in)
		assert.Error(t, err, in)
	}
}
