package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAt(t *testing.T) {
	pools := []PoolSnapshot{{FeesUSD: 1}, {FeesUSD: 2}, {FeesUSD: 3}}

	tests := []struct {
		name        string
		index       int
		wantFees    float64
		wantClamped bool
	}{
		{"first", 0, 1, false},
		{"last in range", 2, 3, false},
		{"past the end reuses last", 3, 3, true},
		{"far past the end", 100, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, clamped := PoolAt(pools, tt.index)
			require.NotNil(t, snap)
			assert.Equal(t, tt.wantFees, snap.FeesUSD)
			assert.Equal(t, tt.wantClamped, clamped)
		})
	}

	snap, clamped := PoolAt(nil, 0)
	assert.Nil(t, snap)
	assert.False(t, clamped)
}

func TestPointFromClose(t *testing.T) {
	p := PointFromClose(1700000000000, 2, 50)

	assert.Equal(t, 2.0, p.Open)
	assert.InDelta(t, 2.02, p.High, 1e-12)
	assert.InDelta(t, 1.98, p.Low, 1e-12)
	assert.Equal(t, 50.0, p.Volume)
	assert.Equal(t, int64(1700000000000), p.Date.UnixMilli())
}
