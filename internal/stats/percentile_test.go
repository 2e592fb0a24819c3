package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campaignready/internal/domain"
)

func TestP95(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{name: "empty", values: nil, ok: false},
		{name: "single", values: []float64{42}, want: 42, ok: true},
		{name: "spike at tail", values: []float64{100, 100, 100, 100, 500}, want: 500, ok: true},
		{name: "unsorted input", values: []float64{500, 100, 300, 200}, want: 500, ok: true},
		{name: "twenty values", values: seq(1, 20), want: 19, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := P95(tt.values)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestP95DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, _ = P95(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestP95Ptr(t *testing.T) {
	assert.Nil(t, P95Ptr(nil))
	if v := P95Ptr([]float64{7}); assert.NotNil(t, v) {
		assert.Equal(t, 7.0, *v)
	}
}

func TestMedian(t *testing.T) {
	m, ok := Median([]float64{4, 1, 3, 2})
	assert.True(t, ok)
	assert.Equal(t, 2.5, m)

	m, ok = Median([]float64{9, 1, 5})
	assert.True(t, ok)
	assert.Equal(t, 5.0, m)

	_, ok = Median(nil)
	assert.False(t, ok)
}

func TestStability(t *testing.T) {
	tests := []struct {
		name    string
		ttfbs   []float64
		okCount int
		total   int
		want    domain.Stability
	}{
		{name: "no samples", total: 0, want: domain.StabilityUnknown},
		{name: "one failure", ttfbs: []float64{200, 200}, okCount: 2, total: 3, want: domain.StabilityUnstable},
		{name: "uniform", ttfbs: []float64{200, 210, 205}, okCount: 3, total: 3, want: domain.StabilityStable},
		{name: "single timing", ttfbs: []float64{200}, okCount: 1, total: 1, want: domain.StabilityUnknown},
		{name: "spike", ttfbs: []float64{100, 100, 100, 450}, okCount: 4, total: 4, want: domain.StabilityUnstable},
		{name: "exactly twice median", ttfbs: []float64{100, 100, 200}, okCount: 3, total: 3, want: domain.StabilityStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stability(tt.ttfbs, tt.okCount, tt.total))
		})
	}
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}
