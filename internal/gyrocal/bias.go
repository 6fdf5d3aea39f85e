package gyrocal

// MaxGyroBias is the acceptance envelope for a newly computed bias
// estimate: each axis must fall strictly within (-MaxGyroBias,
// +MaxGyroBias) rad/sec or the estimate is rejected outright.
const MaxGyroBias = 0.1

// computeGyroCal evaluates the just-closed stillness window's gyro mean
// against the acceptance envelope and, if it passes, records it as the new
// bias. On rejection it returns without mutating anything, including
// NewGyroCalAvailable.
func (s *State) computeGyroCal(calibrationTimeNanos int64) {
	mx, my, mz := s.GyroDet.PrevMean()
	if !(mx < MaxGyroBias && mx > -MaxGyroBias &&
		my < MaxGyroBias && my > -MaxGyroBias &&
		mz < MaxGyroBias && mz > -MaxGyroBias) {
		return
	}

	s.BiasX, s.BiasY, s.BiasZ = mx, my, mz
	s.BiasTemperatureCelsius = s.TemperatureMeanCelsius
	s.CalibrationTimeNanos = calibrationTimeNanos
	s.StillnessConfidence = s.GyroDet.PrevConfidence() * s.AccelDet.PrevConfidence() * s.MagDet.PrevConfidence()
	s.NewGyroCalAvailable = true
}

// GetBias returns the most recent bias calibration and the temperature it
// was captured at.
func (s *State) GetBias() (biasX, biasY, biasZ, temperatureCelsius float64) {
	return s.BiasX, s.BiasY, s.BiasZ, s.BiasTemperatureCelsius
}

// SetBias loads an initial or externally-supplied bias calibration value,
// as if recalled from persisted storage.
func (s *State) SetBias(biasX, biasY, biasZ float64, calibrationTimeNanos int64) {
	s.BiasX, s.BiasY, s.BiasZ = biasX, biasY, biasZ
	s.CalibrationTimeNanos = calibrationTimeNanos
}

// NewBiasAvailable reports whether a new calibration has been produced
// since the last call, clearing the flag as it does (read-and-clear,
// single-consumer, edge-triggered). Always false when calibration is
// disabled, regardless of whether one was internally produced.
func (s *State) NewBiasAvailable() bool {
	available := s.GyroCalibrationEnable && s.NewGyroCalAvailable
	s.NewGyroCalAvailable = false
	return available
}

// RemoveBias subtracts the current bias from a raw gyro sample when
// calibration is enabled. When disabled it passes the sample through
// unchanged: unlike the original, where the outputs are left unwritten in
// that case, Go has no uninitialized-variable equivalent to lean on, so
// identity passthrough is the well-defined choice.
func (s *State) RemoveBias(xi, yi, zi float64) (xo, yo, zo float64) {
	if !s.GyroCalibrationEnable {
		return xi, yi, zi
	}
	return xi - s.BiasX, yi - s.BiasY, zi - s.BiasZ
}
