package track

// SpeedOfLight in m/s.
const SpeedOfLight = 299792458.0

// DopplerShift returns the frequency shift in Hz observed at the receiving end
// of a link for a given transmitted frequency and range-rate.
//
// Sign convention: rangeRate > 0 means the satellite is receding, so the
// downlink shift is negative (received frequency decreases).
func DopplerShift(freqHz, rangeRateMS float64) float64 {
	return -freqHz * rangeRateMS / SpeedOfLight
}

// DownlinkFreq returns the frequency a ground receiver must tune to hear a
// satellite transmitting at freqHz, given the current range-rate.
func DownlinkFreq(freqHz, rangeRateMS float64) float64 {
	return freqHz + DopplerShift(freqHz, rangeRateMS)
}

// UplinkFreq returns the frequency a ground station must transmit so the
// satellite receives freqHz after its own Doppler shift. The correction has
// the opposite sign of the downlink leg: a receding satellite hears a lower
// frequency, so the ground station must transmit higher.
func UplinkFreq(freqHz, rangeRateMS float64) float64 {
	return freqHz - DopplerShift(freqHz, rangeRateMS)
}

// InvertDownlink recovers the transmitted frequency from an observed downlink
// frequency and the range-rate at observation time. Algebraic inverse of
// DownlinkFreq; used by validation tooling to cross-check exported data.
func InvertDownlink(freqRxHz, rangeRateMS float64) float64 {
	return freqRxHz * SpeedOfLight / (SpeedOfLight - rangeRateMS)
}
