// Package audio provides the PCM primitives shared by the conversation
// pipeline: mono float frames, downmixing, RMS energy, windowed-sinc
// resampling, and WAV encoding/decoding.
//
// All sample buffers are normalised float32 in [-1, 1]. Conversion to 16-bit
// PCM happens only at the WAV boundary, mirroring what the external ASR and
// TTS services expect.
package audio

import "math"

// DownmixInterleaved averages interleaved multi-channel samples into a mono
// buffer. A channel count of 1 returns the input unchanged (zero allocation).
// Invalid channel counts return nil.
func DownmixInterleaved(samples []float32, channels int) []float32 {
	if channels <= 0 {
		return nil
	}
	if channels == 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// RMS returns the root-mean-square energy of the buffer. Empty input yields 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// FloatToPCM16 converts normalised float samples to 16-bit signed PCM.
// Samples are clamped to [-0.999, 0.999] before scaling so that full-scale
// input cannot wrap around.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		c := clampf(s, -0.999, 0.999)
		out[i] = int16(c * 32767.0)
	}
	return out
}

// PCM16ToFloat converts 16-bit signed PCM to normalised float samples.
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
