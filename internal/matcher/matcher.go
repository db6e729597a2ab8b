// Package matcher pairs each PTPv1 FollowUp with the Sync message it
// refers to and turns the pair into a single offset measurement.
package matcher

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zbynekdrlik/dantetimesync/internal/measurement"
	"github.com/zbynekdrlik/dantetimesync/internal/metrics"
	"github.com/zbynekdrlik/dantetimesync/internal/ptp"
)

const defaultMaxPending = 64

type key struct {
	gm  ptp.UUID
	seq uint16
}

type pendingSync struct {
	rxTime time.Time
	seenAt time.Time
}

// Matcher keys pending Sync messages by (grandmaster, sequence) and pairs
// them with the matching FollowUp within Window. A FollowUp that arrives
// with no pending Sync, or after Window has elapsed, is dropped.
type Matcher struct {
	Log    *zap.Logger
	Window time.Duration

	mu         sync.Mutex
	maxPending int
	pending    map[key]pendingSync
	order      []key
}

func New(log *zap.Logger, window time.Duration) *Matcher {
	return &Matcher{
		Log:        log,
		Window:     window,
		maxPending: defaultMaxPending,
		pending:    make(map[key]pendingSync),
	}
}

// OnSync records a Sync message's receive timestamp, to be matched against
// a later FollowUp carrying the same grandmaster and sequence id.
func (m *Matcher) OnSync(pkt ptp.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictStaleLocked(pkt.RxTime)

	k := key{gm: pkt.Header.SourceUUID, seq: pkt.Header.SequenceID}
	if _, exists := m.pending[k]; !exists {
		if len(m.order) >= m.maxPending {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.pending, oldest)
		}
		m.order = append(m.order, k)
	}
	m.pending[k] = pendingSync{rxTime: pkt.RxTime, seenAt: pkt.RxTime}
}

// OnFollowUp matches pkt against a pending Sync and, on success, returns
// the resulting offset sample: the Sync's host receive time minus the
// FollowUp's precise origin timestamp.
func (m *Matcher) OnFollowUp(pkt ptp.Packet) (measurement.Sample, bool) {
	if pkt.FollowUp == nil {
		return measurement.Sample{}, false
	}

	m.mu.Lock()
	m.evictStaleLocked(pkt.RxTime)
	k := key{gm: pkt.Header.SourceUUID, seq: pkt.FollowUp.AssociatedSequenceID}
	ps, ok := m.pending[k]
	if ok {
		delete(m.pending, k)
		m.removeFromOrderLocked(k)
	}
	m.mu.Unlock()

	if !ok {
		metrics.MatcherMisses.Inc()
		return measurement.Sample{}, false
	}
	if pkt.RxTime.Sub(ps.seenAt) > m.Window {
		metrics.MatcherMisses.Inc()
		return measurement.Sample{}, false
	}

	origin := time.Unix(int64(pkt.FollowUp.PreciseOriginTimestamp.Seconds), int64(pkt.FollowUp.PreciseOriginTimestamp.Nanoseconds)).UTC()
	metrics.MatcherHits.Inc()
	return measurement.Sample{
		Timestamp: ps.rxTime,
		Offset:    ps.rxTime.Sub(origin),
	}, true
}

// NotifyStep discards all pending Syncs: a wall-clock step invalidates any
// in-flight offset computation still waiting on its FollowUp.
func (m *Matcher) NotifyStep(delta time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[key]pendingSync)
	m.order = m.order[:0]
}

func (m *Matcher) evictStaleLocked(now time.Time) {
	cut := 0
	for _, k := range m.order {
		ps, ok := m.pending[k]
		if !ok || now.Sub(ps.seenAt) > m.Window {
			delete(m.pending, k)
			cut++
			continue
		}
		break
	}
	m.order = m.order[cut:]
}

func (m *Matcher) removeFromOrderLocked(k key) {
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
