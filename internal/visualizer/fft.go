package visualizer

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the window length fed to the main bar/energy/transient
	// FFT each frame.
	FFTSize = 1024
	// NumBars is the number of logarithmically-spaced spectrum bars
	// published to the bar-graph visualizer.
	NumBars = 32
	// NumEnergyBands is the number of broad perceptual bands (sub-bass
	// through air) published to the energy-bands visualizer.
	NumEnergyBands = 5
	// TargetFPS bounds how often a caller should drive Process.
	TargetFPS = 30
	// WaveformPoints is the number of downsampled points published per
	// channel for the oscilloscope visualizer.
	WaveformPoints = 256

	minBarFreqHz = 20.0
	maxBarFreqHz = 20000.0

	transientThreshold       = 0.04
	transientCooldownFrames  = 3
	barSmoothing             = 0.65
)

type energyBandRange struct{ lo, hi float64 }

var energyBandRanges = [NumEnergyBands]energyBandRange{
	{20.0, 60.0},
	{60.0, 250.0},
	{250.0, 2000.0},
	{2000.0, 6000.0},
	{6000.0, 20000.0},
}

// Frame is one processed visualization step.
type Frame struct {
	Bars               []float32
	Energy             []float32
	HasTransient       bool
	TransientIntensity float32
	Waveform           []float32 // WaveformPoints of channel 0 followed by WaveformPoints of channel 1
	Spectral           []float32 // nil unless the spectral ribbon refreshed this frame
}

// Processor runs the bar-graph/energy-bands/transient-detection/waveform
// FFT pipeline on a dedicated goroutine, separate from playback.
type Processor struct {
	sampleRate int
	fft        *fourier.FFT
	window     []float64
	fftInput   []float64
	magnitudes []float64
	freqForBin []float64

	barsOut  []float32
	smoothed []float32

	energy         []float32
	smoothedEnergy []float32
	prevRMS        float32
	cooldown       int

	spectral *SpectralAnalyzer
}

// NewProcessor builds a processor for the given sample rate.
func NewProcessor(sampleRate int) *Processor {
	p := &Processor{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(FFTSize),
		window:     make([]float64, FFTSize),
		fftInput:   make([]float64, FFTSize),
		magnitudes: make([]float64, FFTSize/2+1),
		freqForBin: make([]float64, FFTSize/2+1),
		barsOut:    make([]float32, NumBars),
		smoothed:   make([]float32, NumBars),
		energy:         make([]float32, NumEnergyBands),
		smoothedEnergy: make([]float32, NumEnergyBands),
		spectral:       NewSpectralAnalyzer(sampleRate, FFTSize, 190, 58, 0.80),
	}
	denom := float64(FFTSize - 1)
	for n := 0; n < FFTSize; n++ {
		p.window[n] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(n)/denom))
	}
	p.rebuildFreqs(sampleRate)
	return p
}

func (p *Processor) rebuildFreqs(sampleRate int) {
	binHz := float64(sampleRate) / float64(FFTSize)
	for i := range p.freqForBin {
		p.freqForBin[i] = float64(i) * binHz
	}
}

// Process runs one FFT pass over samples (length FFTSize, interleaved
// stereo exactly as captured from the ring buffer) and returns the
// resulting visualization frame. Callers should rate-limit calls to
// roughly TargetFPS; the spectral ribbon rate-limits itself internally.
func (p *Processor) Process(samples []float32, sampleRate int) Frame {
	if sampleRate != p.sampleRate {
		p.sampleRate = sampleRate
		p.rebuildFreqs(sampleRate)
	}

	frame := Frame{}

	if p.spectral.Process(samples, sampleRate) {
		latest := p.spectral.LatestBands()
		frame.Spectral = append([]float32(nil), latest...)
	}

	n := len(samples)
	if n > FFTSize {
		n = FFTSize
	}
	for i := 0; i < FFTSize; i++ {
		if i < n {
			p.fftInput[i] = float64(samples[i]) * p.window[i]
		} else {
			p.fftInput[i] = 0
		}
	}
	coeffs := p.fft.Coefficients(nil, p.fftInput)
	for i := range p.magnitudes {
		if i < len(coeffs) {
			p.magnitudes[i] = cmplxAbs(coeffs[i])
		}
	}

	p.mapToLogBars()
	for i := 0; i < NumBars; i++ {
		newVal := p.barsOut[i]
		if newVal > p.smoothed[i] {
			p.smoothed[i] = p.smoothed[i]*0.3 + newVal*0.7
		} else {
			p.smoothed[i] = p.smoothed[i]*barSmoothing + newVal*(1-barSmoothing)
		}
		p.barsOut[i] = p.smoothed[i]
	}
	frame.Bars = append([]float32(nil), p.barsOut...)

	rawBandRMS := [NumEnergyBands]float64{}
	for i, band := range energyBandRanges {
		rawBandRMS[i] = p.bandRMS(band.lo, band.hi)
	}
	for i, rms := range rawBandRMS {
		compressed := clampFloat(math.Pow(rms*6.0, 0.5), 0.0, 1.0)
		if float32(compressed) > p.smoothedEnergy[i] {
			p.smoothedEnergy[i] = p.smoothedEnergy[i]*0.2 + float32(compressed)*0.8
		} else {
			p.smoothedEnergy[i] = p.smoothedEnergy[i]*0.85 + float32(compressed)*0.15
		}
		p.energy[i] = p.smoothedEnergy[i]
	}
	frame.Energy = append([]float32(nil), p.energy...)

	var rawSum float64
	for i, rms := range rawBandRMS {
		weight := 1.0
		if i < 2 {
			weight = 2.0
		}
		rawSum += clampFloat(math.Pow(rms*6.0, 0.5), 0.0, 1.0) * weight
	}
	rawRMS := float32(rawSum / (float64(NumEnergyBands) + 2.0))
	delta := rawRMS - p.prevRMS

	if p.cooldown > 0 {
		p.cooldown--
	}
	if delta > transientThreshold && p.cooldown == 0 {
		frame.HasTransient = true
		frame.TransientIntensity = float32(clampFloat(float64(delta)*5.0, 0.0, 1.0))
		p.cooldown = transientCooldownFrames
	}
	p.prevRMS = rawRMS

	frame.Waveform = extractWaveform(samples)

	return frame
}

func (p *Processor) bandRMS(loHz, hiHz float64) float64 {
	var sumSq float64
	var count int
	for i, f := range p.freqForBin {
		if f >= loHz && f < hiHz {
			m := p.magnitudes[i]
			sumSq += m * m
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(count))
}

// mapToLogBars buckets magnitudes into NumBars logarithmically-spaced
// bars with perceptual weighting (bass boosted, harsh highs reduced).
func (p *Processor) mapToLogBars() {
	minLog := math.Log(minBarFreqHz)
	maxLog := math.Log(maxBarFreqHz)

	for i := 0; i < NumBars; i++ {
		tLow := float64(i) / float64(NumBars)
		tHigh := float64(i+1) / float64(NumBars)
		freqLow := math.Exp(minLog + (maxLog-minLog)*tLow)
		freqHigh := math.Exp(minLog + (maxLog-minLog)*tHigh)

		var sum float64
		var count int
		for bin, f := range p.freqForBin {
			if f >= freqLow && f < freqHigh {
				weight := 1.0
				switch {
				case f < 200.0:
					weight = 1.5
				case f < 2000.0:
					weight = 1.0
				default:
					weight = 0.8
				}
				sum += p.magnitudes[bin] * weight
				count++
			}
		}
		avg := 0.0
		if count > 0 {
			avg = sum / float64(count)
		}
		compressed := clampFloat(math.Pow(avg*4.0, 0.6), 0.0, 1.0)
		p.barsOut[i] = float32(compressed)
	}
}

// extractWaveform downsamples an interleaved-stereo sample block into
// WaveformPoints per channel for an oscilloscope display.
func extractWaveform(samples []float32) []float32 {
	out := make([]float32, WaveformPoints*2)
	stereoPairs := len(samples) / 2
	if stereoPairs < WaveformPoints {
		return out
	}
	step := stereoPairs / WaveformPoints
	if step == 0 {
		step = 1
	}
	for i := 0; i < WaveformPoints; i++ {
		base := i * step * 2
		if base+1 >= len(samples) {
			break
		}
		out[i] = samples[base]
		out[WaveformPoints+i] = samples[base+1]
	}
	return out
}
