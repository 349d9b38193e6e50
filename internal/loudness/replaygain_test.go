package loudness

import (
	"math"
	"testing"
)

func approxEqual(t *testing.T, got, want, tolerance float64) {
	t.Helper()
	if math.Abs(got-want) > tolerance {
		t.Fatalf("got %v, want %v (tolerance %v)", got, want, tolerance)
	}
}

func TestDBToLinear(t *testing.T) {
	approxEqual(t, DBToLinear(0), 1.0, 0.001)
	approxEqual(t, DBToLinear(-6), 0.501, 0.01)
	approxEqual(t, DBToLinear(6), 1.995, 0.01)
	approxEqual(t, DBToLinear(-20), 0.1, 0.001)
}

func TestCalculateGainFactorAtReference(t *testing.T) {
	peak := 0.9
	rg := ReplayGainData{GainDB: -3.0, Peak: &peak}
	got := CalculateGainFactor(rg, -18.0)
	approxEqual(t, got, 0.708, 0.01)
}

func TestCalculateGainFactorWithTargetAdjustment(t *testing.T) {
	peak := 0.5
	rg := ReplayGainData{GainDB: -3.0, Peak: &peak}
	got := CalculateGainFactor(rg, -14.0)
	approxEqual(t, got, 1.122, 0.01)
}

func TestClippingPreventionWithPeak(t *testing.T) {
	peak := 0.95
	rg := ReplayGainData{GainDB: 10.0, Peak: &peak}
	got := CalculateGainFactor(rg, -18.0)
	approxEqual(t, got, 1.0/0.95, 0.01)
}

func TestClippingPreventionWithoutPeak(t *testing.T) {
	rg := ReplayGainData{GainDB: 12.0}
	got := CalculateGainFactor(rg, -18.0)
	approxEqual(t, got, DBToLinear(MaxGainDB), 0.01)
}

func TestParseGainValueFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"-6.54 dB", -6.54},
		{"-6.54", -6.54},
		{"+3.21 dB", 3.21},
	}
	for _, c := range cases {
		got, ok := ParseGainValue(c.raw)
		if !ok {
			t.Fatalf("ParseGainValue(%q) failed to parse", c.raw)
		}
		approxEqual(t, got, c.want, 0.001)
	}
}

func TestParsePeakValue(t *testing.T) {
	got, ok := ParsePeakValue("0.988553")
	if !ok {
		t.Fatal("ParsePeakValue failed to parse")
	}
	approxEqual(t, got, 0.988553, 0.0001)
}
