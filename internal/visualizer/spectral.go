package visualizer

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	minSpectralFreqHz = 20.0
	maxSpectralFreqHz = 20000.0
)

// SpectralAnalyzer is a progressive, rate-limited FFT analyzer feeding the
// "spectral ribbon" visualizer: a wide, smoothed, log-spaced band set
// updated at its own cadence independent of the main FFT processor's.
type SpectralAnalyzer struct {
	fftSize          int
	numBands         int
	smoothingFactor  float64
	frameInterval    time.Duration
	lastUpdate       time.Time
	sampleRateHz     int

	window        []float64
	fft           *fourier.FFT
	fftInput      []float64
	magnitudes    []float64
	bandBinRanges [][2]int
	bandsRaw      []float64
	bandsSmoothed []float64
	latestBands   []float32
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewSpectralAnalyzer builds an analyzer. fftSize is clamped to one of
// {512,1024,2048} (defaulting to 1024), numBands to [48,192], updateRateHz
// to [20,60], and smoothingFactor to [0,0.98].
func NewSpectralAnalyzer(sampleRateHz, fftSize, numBands, updateRateHz int, smoothingFactor float64) *SpectralAnalyzer {
	switch fftSize {
	case 512, 1024, 2048:
	default:
		fftSize = 1024
	}
	numBands = clampInt(numBands, 48, 192)
	updateRateHz = clampInt(updateRateHz, 20, 60)
	smoothingFactor = clampFloat(smoothingFactor, 0.0, 0.98)

	s := &SpectralAnalyzer{
		fftSize:         fftSize,
		numBands:        numBands,
		smoothingFactor: smoothingFactor,
		frameInterval:   time.Second / time.Duration(updateRateHz),
		lastUpdate:       time.Time{},
		sampleRateHz:    sampleRateHz,
		window:          make([]float64, fftSize),
		fft:             fourier.NewFFT(fftSize),
		fftInput:        make([]float64, fftSize),
		magnitudes:      make([]float64, fftSize/2),
		bandBinRanges:   make([][2]int, numBands),
		bandsRaw:        make([]float64, numBands),
		bandsSmoothed:   make([]float64, numBands),
		latestBands:     make([]float32, numBands),
	}
	s.rebuildWindow()
	s.rebuildBandRanges(sampleRateHz)
	return s
}

func (s *SpectralAnalyzer) rebuildWindow() {
	denom := float64(s.fftSize - 1)
	for n := 0; n < s.fftSize; n++ {
		s.window[n] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(n)/denom))
	}
}

func (s *SpectralAnalyzer) rebuildBandRanges(sampleRateHz int) {
	nyquist := float64(sampleRateHz) * 0.5
	maxFreq := math.Min(maxSpectralFreqHz, math.Max(nyquist, minSpectralFreqHz+1.0))
	minLog := math.Log(minSpectralFreqHz)
	maxLog := math.Log(maxFreq)
	binHz := float64(sampleRateHz) / float64(s.fftSize)
	maxBin := len(s.magnitudes) - 1

	for band := 0; band < s.numBands; band++ {
		t0 := float64(band) / float64(s.numBands)
		t1 := float64(band+1) / float64(s.numBands)

		lowHz := math.Exp(minLog + (maxLog-minLog)*t0)
		highHz := math.Exp(minLog + (maxLog-minLog)*t1)

		startBin := clampInt(int(math.Floor(lowHz/binHz)), 0, maxBin)
		endBin := clampInt(int(math.Ceil(highHz/binHz)), 0, maxBin+1)
		if endBin <= startBin {
			endBin = clampInt(startBin+1, 0, maxBin+1)
		}
		s.bandBinRanges[band] = [2]int{startBin, endBin}
	}
}

// Process runs one step if the analyzer's own update cadence allows it.
// monoSamples must hold at least fftSize samples; only the first fftSize
// are used. Returns true if LatestBands was refreshed.
func (s *SpectralAnalyzer) Process(monoSamples []float32, sampleRateHz int) bool {
	if len(monoSamples) < s.fftSize {
		return false
	}

	now := time.Now()
	if !s.lastUpdate.IsZero() && now.Sub(s.lastUpdate) < s.frameInterval {
		return false
	}
	s.lastUpdate = now

	if sampleRateHz != s.sampleRateHz {
		s.sampleRateHz = sampleRateHz
		s.rebuildBandRanges(sampleRateHz)
	}

	for i := 0; i < s.fftSize; i++ {
		s.fftInput[i] = float64(monoSamples[i]) * s.window[i]
	}
	coeffs := s.fft.Coefficients(nil, s.fftInput)

	norm := 1.0 / float64(s.fftSize)
	for i := 0; i < s.fftSize/2 && i < len(coeffs); i++ {
		s.magnitudes[i] = cmplxAbs(coeffs[i]) * norm
	}

	for band := 0; band < s.numBands; band++ {
		r := s.bandBinRanges[band]
		if r[1] <= r[0] {
			s.bandsRaw[band] = 0
			continue
		}
		var sum float64
		var count int
		for bin := r[0]; bin < r[1]; bin++ {
			m := s.magnitudes[bin]
			sum += m * m
			count++
		}
		rms := 0.0
		if count > 0 {
			rms = math.Sqrt(sum / float64(count))
		}
		compressed := clampFloat(math.Pow(rms*18.0, 0.55), 0.0, 1.0)
		s.bandsRaw[band] = compressed
	}

	for i := 0; i < s.numBands; i++ {
		newValue := s.bandsRaw[i]
		prev := s.bandsSmoothed[i]
		var alpha float64
		if newValue > prev {
			alpha = 1.0 - s.smoothingFactor*0.5
		} else {
			alpha = 1.0 - s.smoothingFactor
		}
		smoothed := prev + alpha*(newValue-prev)
		s.bandsSmoothed[i] = smoothed
		s.latestBands[i] = float32(clampFloat(smoothed, 0.0, 1.0))
	}

	return true
}

// LatestBands returns the most recently computed band values.
func (s *SpectralAnalyzer) LatestBands() []float32 {
	return s.latestBands
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
