package audio

import "math"

// sincTaps is the number of source samples consulted on each side of the
// interpolation point. 16 taps with a Hann window keeps aliasing below the
// noise floor of speech audio while staying cheap enough for per-frame use.
const sincTaps = 16

// ResampleSinc resamples mono float samples from srcRate to dstRate using
// windowed-sinc interpolation (Hann window). When downsampling, the sinc
// kernel is widened by the rate ratio so it doubles as the anti-aliasing
// low-pass filter.
//
// If the rates match (or either is invalid) the input is returned unchanged.
func ResampleSinc(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	dstLen := int(float64(len(samples)) / ratio)
	if dstLen == 0 {
		return nil
	}

	// Cutoff scale < 1 widens the kernel when downsampling.
	scale := 1.0
	if ratio > 1 {
		scale = 1 / ratio
	}
	width := int(math.Ceil(float64(sincTaps) / scale))

	out := make([]float32, dstLen)
	for i := 0; i < dstLen; i++ {
		center := float64(i) * ratio
		left := int(center) - width + 1
		right := int(center) + width

		var acc, norm float64
		for j := left; j <= right; j++ {
			if j < 0 || j >= len(samples) {
				continue
			}
			x := (center - float64(j)) * scale
			w := hannSinc(x, float64(width)*scale)
			acc += float64(samples[j]) * w
			norm += w
		}
		if norm != 0 {
			acc /= norm
		}
		out[i] = float32(acc)
	}
	return out
}

// hannSinc is the sinc function tapered by a Hann window of half-width n.
func hannSinc(x, n float64) float64 {
	if x == 0 {
		return 1
	}
	ax := math.Abs(x)
	if ax >= n {
		return 0
	}
	px := math.Pi * x
	sinc := math.Sin(px) / px
	hann := 0.5 + 0.5*math.Cos(px/n)
	return sinc * hann
}
