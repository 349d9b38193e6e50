package loudness

import "math"

// Meter implements the ITU-R BS.1770 / EBU R128 integrated-loudness
// algorithm directly: a two-stage K-weighting filter cascade, 400ms
// gating blocks on a 100ms step (75% overlap), and the standard
// absolute-then-relative gating pass. No corpus or ecosystem library
// implements this measurement, so it is one of the few places this engine
// is deliberately stdlib-only (see DESIGN.md).
type Meter struct {
	sampleRate int
	channels   int

	// stage1/stage2 biquad coefficients, a0 normalized to 1.
	b1 [3]float64
	a1 [3]float64
	b2 [3]float64
	a2 [3]float64

	// per-channel filter state (direct form II transposed), two stages.
	z1 [][2]float64
	z2 [][2]float64

	stepSamples int
	stepPos     int
	stepSumSq   []float64 // per-channel accumulated squared samples in current step

	// ring of the last blockSteps per-channel step mean-squares, for the
	// overlapping 400ms block average.
	stepHistory   [][]float64
	stepHistoryAt int
	historyFilled int

	blockMeanSquares []float64 // one entry per completed gating block
}

const (
	gatingBlockSeconds = 0.4
	gatingStepSeconds  = 0.1
	blockSteps         = int(gatingBlockSeconds / gatingStepSeconds) // 4
	absoluteGateLUFS   = -70.0
	relativeGateOffset = -10.0
)

// NewMeter builds a Meter for the given sample rate and channel count
// (mono or stereo; additional channels are weighted 1.0 like front
// channels, since this engine never feeds surround content).
func NewMeter(sampleRate, channels int) *Meter {
	m := &Meter{sampleRate: sampleRate, channels: channels}
	m.computeCoefficients()

	m.z1 = make([][2]float64, channels)
	m.z2 = make([][2]float64, channels)
	m.stepSumSq = make([]float64, channels)
	m.stepSamples = int(float64(sampleRate) * gatingStepSeconds)
	if m.stepSamples < 1 {
		m.stepSamples = 1
	}
	m.stepHistory = make([][]float64, blockSteps)
	for i := range m.stepHistory {
		m.stepHistory[i] = make([]float64, channels)
	}
	return m
}

// computeCoefficients derives the stage-1 (high-shelf pre-filter) and
// stage-2 (RLB high-pass) biquad coefficients for this meter's sample
// rate, following the reference bilinear-transform derivation in
// ITU-R BS.1770-4 Annex 2.
func (m *Meter) computeCoefficients() {
	fs := float64(m.sampleRate)

	// Stage 1: high shelf.
	const f0 = 1681.9744509555319
	const g = 3.99984385397343313
	const q = 0.70717523695553728

	k := math.Tan(math.Pi * f0 / fs)
	vh := math.Pow(10.0, g/20.0)
	vb := math.Pow(vh, 0.4996667741545416)

	a0 := 1.0 + k/q + k*k
	m.b1[0] = (vh + vb*k/q + k*k) / a0
	m.b1[1] = 2.0 * (k*k - vh) / a0
	m.b1[2] = (vh - vb*k/q + k*k) / a0
	m.a1[0] = 1.0
	m.a1[1] = 2.0 * (k*k - 1.0) / a0
	m.a1[2] = (1.0 - k/q + k*k) / a0

	// Stage 2: RLB weighting (high-pass).
	const f0rlb = 38.13547087602444
	const qrlb = 0.5003270373238773

	krlb := math.Tan(math.Pi * f0rlb / fs)
	a0rlb := 1.0 + krlb/qrlb + krlb*krlb
	m.b2[0] = 1.0
	m.b2[1] = -2.0
	m.b2[2] = 1.0
	m.a2[0] = 1.0
	m.a2[1] = 2.0 * (krlb*krlb - 1.0) / a0rlb
	m.a2[2] = (1.0 - krlb/qrlb + krlb*krlb) / a0rlb
}

func biquad(x float64, b, a [3]float64, z *[2]float64) float64 {
	y := b[0]*x + z[0]
	z[0] = b[1]*x - a[1]*y + z[1]
	z[1] = b[2]*x - a[2]*y
	return y
}

// AddFrames feeds interleaved float32 samples (frame = one sample per
// channel) through the K-weighting filter cascade and accumulates gating
// blocks.
func (m *Meter) AddFrames(interleaved []float32) {
	channels := m.channels
	if channels == 0 {
		return
	}
	frames := len(interleaved) / channels

	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			x := float64(interleaved[f*channels+c])
			y1 := biquad(x, m.b1, m.a1, &m.z1[c])
			y2 := biquad(y1, m.b2, m.a2, &m.z2[c])
			m.stepSumSq[c] += y2 * y2
		}

		m.stepPos++
		if m.stepPos >= m.stepSamples {
			m.completeStep()
		}
	}
}

func (m *Meter) completeStep() {
	means := m.stepHistory[m.stepHistoryAt]
	for c := range means {
		means[c] = m.stepSumSq[c] / float64(m.stepPos)
		m.stepSumSq[c] = 0
	}
	m.stepHistoryAt = (m.stepHistoryAt + 1) % blockSteps
	m.stepPos = 0
	if m.historyFilled < blockSteps {
		m.historyFilled++
	}

	if m.historyFilled == blockSteps {
		var blockSum float64
		for _, step := range m.stepHistory {
			for _, v := range step {
				blockSum += v // channel weight 1.0 for all supported (front) channels
			}
		}
		blockMean := blockSum / float64(blockSteps)
		m.blockMeanSquares = append(m.blockMeanSquares, blockMean)
	}
}

func meanSquareToLUFS(ms float64) float64 {
	if ms <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(ms)
}

// LoudnessGlobal computes the integrated loudness over every gating block
// seen so far, applying the standard absolute (-70 LUFS) then relative
// (ungated-10 LU) gate. Returns -Inf for silence or too little data.
func (m *Meter) LoudnessGlobal() float64 {
	if len(m.blockMeanSquares) == 0 {
		return math.Inf(-1)
	}

	var absKept []float64
	for _, ms := range m.blockMeanSquares {
		if meanSquareToLUFS(ms) >= absoluteGateLUFS {
			absKept = append(absKept, ms)
		}
	}
	if len(absKept) == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for _, ms := range absKept {
		sum += ms
	}
	ungatedLUFS := meanSquareToLUFS(sum / float64(len(absKept)))
	relativeThreshold := ungatedLUFS + relativeGateOffset

	var relSum float64
	var relCount int
	for _, ms := range absKept {
		if meanSquareToLUFS(ms) >= relativeThreshold {
			relSum += ms
			relCount++
		}
	}
	if relCount == 0 {
		return ungatedLUFS
	}
	return meanSquareToLUFS(relSum / float64(relCount))
}

// Reset clears all filter state and accumulated blocks, keeping the
// derived coefficients (sample rate/channels are unchanged).
func (m *Meter) Reset() {
	for i := range m.z1 {
		m.z1[i] = [2]float64{}
	}
	for i := range m.z2 {
		m.z2[i] = [2]float64{}
	}
	for i := range m.stepSumSq {
		m.stepSumSq[i] = 0
	}
	for _, step := range m.stepHistory {
		for i := range step {
			step[i] = 0
		}
	}
	m.stepHistoryAt = 0
	m.historyFilled = 0
	m.stepPos = 0
	m.blockMeanSquares = m.blockMeanSquares[:0]
}
