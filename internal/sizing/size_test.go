package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt(t *testing.T) {
	t.Parallel()

	n, err := ToInt(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ToInt(-1, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestAddInt64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   int64
		want   int64
		wantOK bool
	}{
		{"small", 1, 2, 3, true},
		{"zero", 0, 0, 0, true},
		{"overflow", math.MaxInt64, 1, 0, false},
		{"negative", -1, 5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := AddInt64(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInRange(t *testing.T) {
	t.Parallel()

	assert.True(t, InRange(0, 10, 10))
	assert.True(t, InRange(10, 0, 10))
	assert.False(t, InRange(5, 6, 10))
	assert.False(t, InRange(math.MaxInt64, 1, math.MaxInt64))
}

func TestAlign16(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0), Align16(0))
	assert.Equal(t, int64(16), Align16(1))
	assert.Equal(t, int64(16), Align16(16))
	assert.Equal(t, int64(32), Align16(17))
}
