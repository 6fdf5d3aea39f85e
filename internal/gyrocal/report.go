package gyrocal

// The Report* methods below give State the method set debugfsm.DataSource
// expects, so a debugfsm.Reporter can be driven directly off a *State with
// no adapter type. They mirror the fields gyroCalDebugPrintData reads for
// each of its OFFSET/STILLNESS_DATA/... sections.

func (s *State) ReportOffset() (x, y, z, temperatureCelsius float64) {
	return s.BiasX, s.BiasY, s.BiasZ, s.BiasTemperatureCelsius
}

func (s *State) ReportStillness() float64 {
	return s.StillnessConfidence
}

func (s *State) ReportSampleRateAndTemperature() (meanCelsius float64, minMax [2]float64) {
	return s.TemperatureMeanCelsius, s.TemperatureMinMaxCelsius
}

func (s *State) ReportGyroMinMaxStillnessMean() (min, max [3]float64) {
	return s.GyroWinMeanMin, s.GyroWinMeanMax
}

func (s *State) ReportAccelStats() (varX, varY, varZ float64) {
	return s.AccelDet.WindowVariance()
}

func (s *State) ReportGyroStats() (varX, varY, varZ float64) {
	return s.GyroDet.WindowVariance()
}

func (s *State) ReportMagStats() (varX, varY, varZ float64, using bool) {
	x, y, z := s.MagDet.WindowVariance()
	return x, y, z, s.UsingMagSensor
}
