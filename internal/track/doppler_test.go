package track

import (
	"math"
	"testing"
)

func TestDopplerShift(t *testing.T) {
	tests := []struct {
		name        string
		freqHz      float64
		rangeRateMS float64
		wantHz      float64
		tolHz       float64
	}{
		{
			// Closest approach: no radial motion means no shift.
			name:        "zero range-rate",
			freqHz:      145_800_000,
			rangeRateMS: 0,
			wantHz:      0,
			tolHz:       1e-9,
		},
		{
			// 70cm downlink, satellite receding at 7 km/s near LOS.
			name:        "receding UHF",
			freqHz:      435_850_000,
			rangeRateMS: 7000,
			wantHz:      -10176.9,
			tolHz:       0.1,
		},
		{
			// Same geometry approaching: equal magnitude, opposite sign.
			name:        "approaching UHF",
			freqHz:      435_850_000,
			rangeRateMS: -7000,
			wantHz:      10176.9,
			tolHz:       0.1,
		},
		{
			// 2m downlink shifts proportionally less than 70cm.
			name:        "receding VHF",
			freqHz:      145_800_000,
			rangeRateMS: 7000,
			wantHz:      -3404.4,
			tolHz:       0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DopplerShift(tt.freqHz, tt.rangeRateMS)
			if math.Abs(got-tt.wantHz) > tt.tolHz {
				t.Errorf("DopplerShift(%v, %v) = %.3f Hz, want %.1f Hz", tt.freqHz, tt.rangeRateMS, got, tt.wantHz)
			}
		})
	}
}

func TestDownlinkUplinkSymmetry(t *testing.T) {
	const freq = 435_850_000.0
	const rr = 5500.0 // receding

	down := DownlinkFreq(freq, rr)
	up := UplinkFreq(freq, rr)

	if down >= freq {
		t.Errorf("receding downlink = %.2f Hz, want below %.0f", down, freq)
	}
	if up <= freq {
		t.Errorf("receding uplink = %.2f Hz, want above %.0f", up, freq)
	}

	// The two corrections are mirror images around the nominal frequency.
	if diff := math.Abs((freq - down) - (up - freq)); diff > 1e-6 {
		t.Errorf("asymmetric corrections: down offset %.6f, up offset %.6f", freq-down, up-freq)
	}
}

// TestInvertDownlink verifies the export validation inverse recovers the
// transmitted frequency from the corrected one.
func TestInvertDownlink(t *testing.T) {
	for _, rr := range []float64{-7200, -100, 0, 3500, 7200} {
		for _, freq := range []float64{145_800_000, 435_850_000, 2_400_000_000} {
			rx := DownlinkFreq(freq, rr)
			got := InvertDownlink(rx, rr)
			if math.Abs(got-freq) > 1e-5 {
				t.Errorf("InvertDownlink(DownlinkFreq(%v, %v)) = %.8f, want %.0f", freq, rr, got, freq)
			}
		}
	}
}
