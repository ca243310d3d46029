// package netmon classifies connectivity signals into the discrete
// quality levels the sync layer uses to decide between trusting the
// network and falling back to cache or queue.
//
// The monitor itself measures nothing: the embedding platform feeds it
// connection snapshots and online/offline transitions, and subscribers
// are notified on every recomputation.
package netmon

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/shared"
)

// Signal mirrors the platform's connection hints. Zero values mean the
// hint is unavailable; classification falls through to the next source.
type Signal struct {
	// EffectiveType is the measured speed class: "slow-2g", "2g", "3g", "4g".
	EffectiveType string

	// Downlink is the estimated bandwidth in Mbps; 0 means unknown.
	Downlink float64

	// RTT is the estimated round-trip time in milliseconds.
	RTT int

	// Type is the transport: "wifi", "ethernet", "cellular", "none".
	Type string

	// SaveData is the user's reduce-data-usage preference.
	SaveData bool
}

// Classify buckets a signal into a [models.SlowLevel].
//
// Precedence: save-data preference, then numeric downlink, then the
// effective-type class, then the coarse transport type. With no signal
// at all the connection is assumed good; pessimism without evidence
// would disable optimistic writes for every well-connected user.
func Classify(sig Signal) models.SlowLevel {
	if sig.SaveData {
		return models.SlowVery
	}

	if sig.Downlink > 0 {
		switch {
		case sig.Downlink < 5:
			return models.SlowVery
		case sig.Downlink < 6:
			return models.SlowModerate
		case sig.Downlink < 8:
			return models.SlowSlight
		default:
			return models.SlowNone
		}
	}

	switch sig.EffectiveType {
	case "slow-2g", "2g":
		return models.SlowVery
	case "3g":
		return models.SlowModerate
	case "4g":
		return models.SlowNone
	}

	switch sig.Type {
	case "cellular":
		return models.SlowModerate
	case "wifi", "ethernet":
		return models.SlowNone
	}

	return models.SlowNone
}

// Monitor tracks the current connectivity classification.
//
// Offline state is tracked independently of measured quality and OR'd
// with it for the cache/warning decisions. A manual override forces
// offline treatment regardless of measurement, letting upstream code
// degrade proactively (for example after an auth timeout).
type Monitor struct {
	mu          sync.Mutex
	logger      *log.Logger
	signal      Signal
	level       models.SlowLevel
	offline     bool
	override    bool
	subscribers []func(models.NetworkQualitySnapshot)
}

// New creates a Monitor with an optimistic initial state: online, good
// connection.
func New(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Monitor{logger: shared.WithLogger(logger, "component", "netmon")}
}

// Update recomputes the classification from a fresh signal.
func (m *Monitor) Update(sig Signal) {
	m.mu.Lock()
	m.signal = sig
	m.level = Classify(sig)
	snap := m.snapshotLocked()
	subs := append([]func(models.NetworkQualitySnapshot){}, m.subscribers...)
	m.mu.Unlock()

	m.logger.Debug("connectivity updated", "level", snap.SlowLevel, "offline", snap.IsOffline)
	m.notify(subs, snap)
}

// SetOnline records an online/offline transition from the platform's
// binary event source.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.offline == online
	m.offline = !online
	snap := m.snapshotLocked()
	subs := append([]func(models.NetworkQualitySnapshot){}, m.subscribers...)
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity transition", "online", online)
		m.notify(subs, snap)
	}
}

// SetOverride forces offline treatment regardless of measured quality.
func (m *Monitor) SetOverride(on bool) {
	m.mu.Lock()
	m.override = on
	snap := m.snapshotLocked()
	subs := append([]func(models.NetworkQualitySnapshot){}, m.subscribers...)
	m.mu.Unlock()

	m.notify(subs, snap)
}

// Subscribe registers fn to run on every recomputation. Callbacks run
// synchronously on the updating goroutine; keep them short.
func (m *Monitor) Subscribe(fn func(models.NetworkQualitySnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Snapshot returns the current classification.
func (m *Monitor) Snapshot() models.NetworkQualitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// ShouldUseCache reports whether reads should prefer cached data.
func (m *Monitor) ShouldUseCache() bool {
	snap := m.Snapshot()
	return snap.IsOffline || snap.IsSlow
}

// ShouldShowWarning reports whether a degraded-connectivity advisory is
// warranted. Same condition as ShouldUseCache; named separately because
// callers treat them as independent decisions.
func (m *Monitor) ShouldShowWarning() bool {
	return m.ShouldUseCache()
}

// Usable reports whether the network is worth attempting at all; the
// drain routine replays the queue only when this is true. A slow
// connection is still usable.
func (m *Monitor) Usable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.offline && !m.override
}

func (m *Monitor) snapshotLocked() models.NetworkQualitySnapshot {
	level := m.level
	offline := m.offline
	if m.override {
		level = models.SlowVery
		offline = true
	}
	return models.NetworkQualitySnapshot{
		IsOffline:     offline,
		IsSlow:        level != models.SlowNone,
		SlowLevel:     level,
		EffectiveType: m.signal.EffectiveType,
		Downlink:      m.signal.Downlink,
		RTT:           m.signal.RTT,
		Type:          m.signal.Type,
		SaveData:      m.signal.SaveData,
	}
}

func (m *Monitor) notify(subs []func(models.NetworkQualitySnapshot), snap models.NetworkQualitySnapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
