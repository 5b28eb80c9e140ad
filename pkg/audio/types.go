package audio

import "time"

// Frame is a single block of mono float32 audio delivered by a capture
// source. Frames are ephemeral: the segmenter consumes them immediately and
// never retains a reference to Samples.
type Frame struct {
	// Samples holds normalised mono samples in [-1, 1].
	Samples []float32

	// SampleRate in Hz (e.g., 48000 for a desktop capture device, 16000 for
	// VAD model input).
	SampleRate int
}

// Duration returns the wall-clock length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// Utterance is one finalised, contiguous block of captured speech ready for
// transcription. It is created by the segmenter when the silence timeout
// fires (or on a manual stop) and discarded after it has been sent.
type Utterance struct {
	// Samples holds the full mono buffer from first speech onset through the
	// trailing silence window.
	Samples []float32

	// SampleRate in Hz of the capture device that produced the samples.
	SampleRate int
}

// Duration returns the total length of the utterance.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(u.Samples)) / float64(u.SampleRate) * float64(time.Second))
}
