// Package metrics centralizes the Prometheus metric names and help strings
// used across the synchronization core, following the same paired
// Name/Help constant convention as the flashptpd-inspired reference
// implementation this service is descended from.
package metrics

const (
	ServoModeH = "The current servo mode (0=ACQ, 1=PROD, 2=LOCK, 3=NANO, 4=NTP_ONLY)"
	ServoModeN = "dantesync_servo_mode"

	ServoAppliedPPMH = "The frequency correction, in PPM, currently applied to the system clock"
	ServoAppliedPPMN = "dantesync_servo_applied_ppm"

	ServoDriftRateH = "The smoothed drift-rate estimate, in nanoseconds per second"
	ServoDriftRateN = "dantesync_servo_drift_rate_ns_per_s"

	ServoResetsH = "The number of soft resets performed on grandmaster switch"
	ServoResetsN = "dantesync_servo_resets_total"

	ServoLockedH = "1 if the servo is in LOCK or NANO mode, 0 otherwise"
	ServoLockedN = "dantesync_servo_locked"

	FilterWindowsEmittedH = "The number of lucky-packet filter windows emitted"
	FilterWindowsEmittedN = "dantesync_filter_windows_emitted_total"

	FilterWindowsRejectedH = "The number of lucky-packet filter windows rejected for insufficient spread"
	FilterWindowsRejectedN = "dantesync_filter_windows_rejected_total"

	EstimatorAlphaH = "The current adaptive EMA smoothing coefficient"
	EstimatorAlphaN = "dantesync_estimator_alpha"

	EstimatorJitterH = "The jitter estimate (stddev of instantaneous rate), in nanoseconds per second"
	EstimatorJitterN = "dantesync_estimator_jitter_ns_per_s"

	ReceiverPktsReceivedH = "The number of PTP packets received on the multicast socket"
	ReceiverPktsReceivedN = "dantesync_receiver_pkts_received_total"

	ReceiverPktsMalformedH = "The number of PTP packets dropped for malformed content"
	ReceiverPktsMalformedN = "dantesync_receiver_pkts_malformed_total"

	MatcherHitsH = "The number of Sync/FollowUp pairs matched within the matching window"
	MatcherHitsN = "dantesync_matcher_hits_total"

	MatcherMissesH = "The number of FollowUps dropped for a missing or stale Sync"
	MatcherMissesN = "dantesync_matcher_misses_total"

	NTPOffsetH = "The most recent NTP-measured UTC offset, in nanoseconds"
	NTPOffsetN = "dantesync_ntp_offset_ns"

	NTPFailuresH = "The number of consecutive NTP query failures"
	NTPFailuresN = "dantesync_ntp_consecutive_failures"

	NTPStepsH = "The number of wall-clock steps applied by the NTP tracker"
	NTPStepsN = "dantesync_ntp_steps_total"

	StatusReqsServedH = "The number of status requests served over the IPC channel"
	StatusReqsServedN = "dantesync_status_reqs_served_total"

	StatusPoisonRecoveriesH = "The number of times the status publisher recovered from a poisoned lock"
	StatusPoisonRecoveriesN = "dantesync_status_poison_recoveries_total"

	ClockAdjustFailuresH = "The number of times the OS refused a frequency adjustment"
	ClockAdjustFailuresN = "dantesync_clock_adjust_failures_total"
)
