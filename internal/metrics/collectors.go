package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ServoMode       = promauto.NewGauge(prometheus.GaugeOpts{Name: ServoModeN, Help: ServoModeH})
	ServoAppliedPPM = promauto.NewGauge(prometheus.GaugeOpts{Name: ServoAppliedPPMN, Help: ServoAppliedPPMH})
	ServoDriftRate  = promauto.NewGauge(prometheus.GaugeOpts{Name: ServoDriftRateN, Help: ServoDriftRateH})
	ServoResets     = promauto.NewCounter(prometheus.CounterOpts{Name: ServoResetsN, Help: ServoResetsH})
	ServoLocked     = promauto.NewGauge(prometheus.GaugeOpts{Name: ServoLockedN, Help: ServoLockedH})

	FilterWindowsEmitted  = promauto.NewCounter(prometheus.CounterOpts{Name: FilterWindowsEmittedN, Help: FilterWindowsEmittedH})
	FilterWindowsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: FilterWindowsRejectedN, Help: FilterWindowsRejectedH})

	EstimatorAlpha  = promauto.NewGauge(prometheus.GaugeOpts{Name: EstimatorAlphaN, Help: EstimatorAlphaH})
	EstimatorJitter = promauto.NewGauge(prometheus.GaugeOpts{Name: EstimatorJitterN, Help: EstimatorJitterH})

	ReceiverPktsReceived  = promauto.NewCounter(prometheus.CounterOpts{Name: ReceiverPktsReceivedN, Help: ReceiverPktsReceivedH})
	ReceiverPktsMalformed = promauto.NewCounter(prometheus.CounterOpts{Name: ReceiverPktsMalformedN, Help: ReceiverPktsMalformedH})

	MatcherHits    = promauto.NewCounter(prometheus.CounterOpts{Name: MatcherHitsN, Help: MatcherHitsH})
	MatcherMisses  = promauto.NewCounter(prometheus.CounterOpts{Name: MatcherMissesN, Help: MatcherMissesH})

	NTPOffset    = promauto.NewGauge(prometheus.GaugeOpts{Name: NTPOffsetN, Help: NTPOffsetH})
	NTPFailures  = promauto.NewGauge(prometheus.GaugeOpts{Name: NTPFailuresN, Help: NTPFailuresH})
	NTPSteps     = promauto.NewCounter(prometheus.CounterOpts{Name: NTPStepsN, Help: NTPStepsH})

	StatusReqsServed        = promauto.NewCounter(prometheus.CounterOpts{Name: StatusReqsServedN, Help: StatusReqsServedH})
	StatusPoisonRecoveries  = promauto.NewCounter(prometheus.CounterOpts{Name: StatusPoisonRecoveriesN, Help: StatusPoisonRecoveriesH})

	ClockAdjustFailures = promauto.NewCounter(prometheus.CounterOpts{Name: ClockAdjustFailuresN, Help: ClockAdjustFailuresH})
)
