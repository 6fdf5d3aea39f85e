package gyrocal

import "log"

// deviceStillnessCheck runs after every sensor sample: it services the
// watchdog, and once every required sub-detector's window has closed, it
// combines their confidences into a still/not-still decision and drives
// the stillness-period state machine, emitting a calibration when a
// qualifying period ends.
func (s *State) deviceStillnessCheck(sampleTimeNanos int64) {
	s.checkWatchdog(sampleTimeNanos)

	magRequired := s.UsingMagSensor
	if (magRequired && !s.MagDet.WindowReady()) || !s.AccelDet.WindowReady() || !s.GyroDet.WindowReady() {
		return
	}

	s.StillnessWinEndtimeNanos = sampleTimeNanos + s.WindowTimeDurationNanos

	s.AccelDet.Compute()
	s.GyroDet.Compute()
	magConf := 1.0
	if s.UsingMagSensor {
		s.MagDet.Compute()
		magConf = s.MagDet.Confidence()
	}

	mx, my, mz := s.GyroDet.WindowMean()
	s.MeanTracker.Update(mx, my, mz)

	confNotRot := s.GyroDet.Confidence() * magConf
	confNotAccel := s.AccelDet.Confidence()
	confStill := confNotRot * confNotAccel

	meanNotStable := s.MeanTracker.Evaluate(s.StillnessMeanDeltaLimit)
	minMaxTempExceeded := s.TempTracker.Evaluate(s.TemperatureDeltaLimitCelsius)

	deviceIsStill := confStill > s.StillnessThreshold && !meanNotStable && !minMaxTempExceeded

	if deviceIsStill {
		s.handleStill(sampleTimeNanos)
	} else {
		s.handleNotStill()
	}

	s.GyroWatchdogStartNanos = sampleTimeNanos
}

func (s *State) handleStill(sampleTimeNanos int64) {
	if !s.PrevStill {
		s.StartStillTimeNanos = s.GyroDet.WindowStartTime()
	}
	stillnessDurationExceeded := (s.GyroDet.LastSampleTime() - s.StartStillTimeNanos) > s.MaxStillDurationNanos

	s.MeanTracker.Store(&s.GyroWinMeanMin, &s.GyroWinMeanMax)
	s.TempTracker.Store(&s.TemperatureMeanCelsius, &s.TemperatureMinMaxCelsius)

	if stillnessDurationExceeded {
		// computeGyroCal reads the Prev* values Compute just latched, so it
		// must run before the stats-clearing Reset(true) below.
		s.computeGyroCal(s.GyroDet.LastSampleTime())

		s.AccelDet.Reset(true)
		s.GyroDet.Reset(true)
		s.MagDet.Reset(true)
		s.MeanTracker.Reset()
		s.TempTracker.Reset()

		s.PrevStill = false
		return
	}

	// Continue collecting: extend the stillness period.
	s.AccelDet.Reset(false)
	s.GyroDet.Reset(false)
	s.MagDet.Reset(false)
	s.PrevStill = true
}

func (s *State) handleNotStill() {
	stillnessDurationTooShort := (s.GyroDet.WindowStartTime() - s.StartStillTimeNanos) < s.MinStillDurationNanos

	if s.PrevStill && !stillnessDurationTooShort {
		s.computeGyroCal(s.GyroDet.WindowStartTime())
	}

	s.AccelDet.Reset(true)
	s.GyroDet.Reset(true)
	s.MagDet.Reset(true)
	s.TempTracker.Reset()
	s.MeanTracker.Reset()

	s.PrevStill = false
}

// checkWatchdog forces a full reset to a known-good state if no gyro
// sample has arrived for the watchdog timeout duration. Mirrors the
// original's ordering exactly: the reset runs first, so the mag-window
// readiness check that follows sees the just-cleared state — meaning any
// watchdog fault while mag participation is on drops it.
func (s *State) checkWatchdog(sampleTimeNanos int64) {
	if s.GyroWatchdogStartNanos <= 0 {
		return
	}
	if sampleTimeNanos <= s.WatchdogTimeoutDurationNanos+s.GyroWatchdogStartNanos {
		return
	}

	s.AccelDet.Reset(true)
	s.GyroDet.Reset(true)
	s.MagDet.Reset(true)
	s.TempTracker.Reset()
	s.MeanTracker.Reset()
	s.StillnessConfidence = 0

	s.StillnessWinEndtimeNanos = 0
	s.PrevStill = false

	if !s.MagDet.WindowReady() && s.UsingMagSensor {
		s.UsingMagSensor = false
	}

	s.GyroWatchdogTimeout = true
	s.GyroWatchdogStartNanos = 0
	log.Printf("gyrocal: watchdog timeout; stillness detection reset")
}
