package audio

import "math"

// biquad is a direct-form-I second-order IIR section. Coefficients follow
// the Audio EQ Cookbook (R. Bristow-Johnson).
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *biquad) processBuffer(samples []float64) {
	for i, x := range samples {
		samples[i] = f.process(x)
	}
}

func normalize(f *biquad, a0 float64) {
	f.b0 /= a0
	f.b1 /= a0
	f.b2 /= a0
	f.a1 /= a0
	f.a2 /= a0
}

const butterworthQ = math.Sqrt2 / 2

func newHighpass(sampleRate, freq, q float64) *biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	f := &biquad{
		b0: (1 + cosw0) / 2,
		b1: -(1 + cosw0),
		b2: (1 + cosw0) / 2,
		a1: -2 * cosw0,
		a2: 1 - alpha,
	}
	normalize(f, 1+alpha)
	return f
}

func newLowpass(sampleRate, freq, q float64) *biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	f := &biquad{
		b0: (1 - cosw0) / 2,
		b1: 1 - cosw0,
		b2: (1 - cosw0) / 2,
		a1: -2 * cosw0,
		a2: 1 - alpha,
	}
	normalize(f, 1+alpha)
	return f
}

// newPeaking boosts (or cuts) gainDB around freq with a fixed Q.
func newPeaking(sampleRate, freq, gainDB, q float64) *biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	f := &biquad{
		b0: 1 + alpha*a,
		b1: -2 * cosw0,
		b2: 1 - alpha*a,
		a1: -2 * cosw0,
		a2: 1 - alpha/a,
	}
	normalize(f, 1+alpha)
	return f
}

// shaperTableSize is the resolution of the precomputed distortion curve.
const shaperTableSize = 4096

// newShaperCurve tabulates the soft-clip transfer function for a distortion
// amount. The closed form is the classic arctangent-free curve
// y = (1+k)x / (1+k|x|), which stays within -1..1 for any k >= 0.
func newShaperCurve(amount float64) []float64 {
	k := amount * 100
	curve := make([]float64, shaperTableSize)
	for i := range curve {
		x := 2*float64(i)/float64(shaperTableSize-1) - 1
		curve[i] = (1 + k) * x / (1 + k*math.Abs(x))
	}
	return curve
}

// shape applies the curve with linear interpolation between table entries.
func shape(curve []float64, x float64) float64 {
	if x < -1 {
		x = -1
	} else if x > 1 {
		x = 1
	}
	pos := (x + 1) / 2 * float64(shaperTableSize-1)
	i := int(pos)
	if i >= shaperTableSize-1 {
		return curve[shaperTableSize-1]
	}
	frac := pos - float64(i)
	return curve[i]*(1-frac) + curve[i+1]*frac
}

// oversampleFactor reduces the aliasing the waveshaper would otherwise fold
// back into the audible band.
const oversampleFactor = 4

// distort runs the buffer through the curve at 4x oversampling: linear
// upsample, shape, then average back down.
func distort(samples []float64, curve []float64) {
	for i := range samples {
		x0 := samples[i]
		x1 := x0
		if i+1 < len(samples) {
			x1 = samples[i+1]
		}
		var acc float64
		for k := 0; k < oversampleFactor; k++ {
			t := float64(k) / oversampleFactor
			acc += shape(curve, x0+(x1-x0)*t)
		}
		samples[i] = acc / oversampleFactor
	}
}

// compressor is a feed-forward peak compressor with exponential
// attack/release smoothing of the detected envelope.
type compressor struct {
	thresholdDB float64
	ratio       float64
	attack      float64 // per-sample smoothing coefficients
	release     float64
	envelope    float64
}

func newCompressor(sampleRate, thresholdDB, ratio, attackSec, releaseSec float64) *compressor {
	return &compressor{
		thresholdDB: thresholdDB,
		ratio:       ratio,
		attack:      math.Exp(-1 / (attackSec * sampleRate)),
		release:     math.Exp(-1 / (releaseSec * sampleRate)),
	}
}

func (c *compressor) processBuffer(samples []float64) {
	for i, x := range samples {
		level := math.Abs(x)
		if level > c.envelope {
			c.envelope = c.attack*c.envelope + (1-c.attack)*level
		} else {
			c.envelope = c.release*c.envelope + (1-c.release)*level
		}
		gain := 1.0
		if c.envelope > 1e-9 {
			levelDB := 20 * math.Log10(c.envelope)
			if levelDB > c.thresholdDB {
				outDB := c.thresholdDB + (levelDB-c.thresholdDB)/c.ratio
				gain = math.Pow(10, (outDB-levelDB)/20)
			}
		}
		samples[i] = x * gain
	}
}

// applyGain scales the buffer in place.
func applyGain(samples []float64, gain float64) {
	for i := range samples {
		samples[i] *= gain
	}
}
