package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func makeSamples(n int) []Sample {
	samples := make([]Sample, n)
	now := time.Now()
	for i := range samples {
		samples[i] = Sample{Timestamp: now.Add(time.Duration(i) * time.Second), Humidity: [2]float32{float32(i), 0}}
	}
	return samples
}

func TestDownsampleSamples_NoDownsampling(t *testing.T) {
	samples := makeSamples(5)
	got := DownsampleSamples(nil, samples, 10)
	assert.Equal(t, samples, got)

	got[0].Humidity[0] = 99
	assert.Equal(t, float32(0), samples[0].Humidity[0], "result must be a copy")
}

func TestDownsampleSamples_WithDownsampling(t *testing.T) {
	samples := makeSamples(100)
	got := DownsampleSamples(nil, samples, 10)

	assert.Len(t, got, 10)
	for i, s := range got {
		assert.Equal(t, float32(i*10), s.Humidity[0])
	}
}

func TestDownsampleSamples_DestinationReuse(t *testing.T) {
	dst := make([]Sample, 0, 20)
	got := DownsampleSamples(dst, makeSamples(100), 10)

	assert.Len(t, got, 10)
	assert.Equal(t, 20, cap(got))
}

func TestDownsampleSamples_EmptyInput(t *testing.T) {
	assert.Empty(t, DownsampleSamples(nil, nil, 10))
}

func TestDownsampleSamples_NoLimit(t *testing.T) {
	assert.Len(t, DownsampleSamples(nil, makeSamples(50), 0), 50)
}
