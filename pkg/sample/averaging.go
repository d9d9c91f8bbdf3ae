package sample

import (
	"github.com/chewxy/math32"
)

// NewAveragingConverter creates a moving average over the last windowSize
// Samples. One averaged Sample is emitted per input Sample. NaN readings are
// left out of the average; a field with no valid readings in the window
// stays NaN.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			buffer := make([]Sample, 0, windowSize+1)
			for s := range in {
				buffer = append(buffer, s)
				if len(buffer) > windowSize {
					buffer = buffer[1:]
				}
				out <- Average(buffer)
			}
		}()

		return out
	}
}

// Average averages the readings of samples. Timestamps and actuator states
// are taken from the most recent sample.
func Average(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	avg := samples[len(samples)-1]
	for ch := range avg.Humidity {
		avg.Humidity[ch] = mean(samples, func(s Sample) float32 { return s.Humidity[ch] })
		avg.Temperature[ch] = mean(samples, func(s Sample) float32 { return s.Temperature[ch] })
		avg.Pressure[ch] = mean(samples, func(s Sample) float32 { return s.Pressure[ch] })
	}
	return avg
}

func mean(samples []Sample, field func(Sample) float32) float32 {
	var sum float32
	n := 0
	for _, s := range samples {
		v := field(s)
		if math32.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math32.NaN()
	}
	return sum / float32(n)
}
