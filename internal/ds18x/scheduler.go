package ds18x

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/timer"
)

// MinPeriod is the shortest sampling period accepted.
const MinPeriod = 5 * time.Second

// Timers arms callbacks on a timer queue. Implemented by *timer.Queue.
type Timers interface {
	Set(period time.Duration, flags timer.Flags, cb timer.Callback) (timer.ID, error)
}

// Observer is notified of every stored reading, after the bus is released.
type Observer func(rec Record)

// EffectivePeriod converts a configured period in whole seconds to the
// sampling period, floored to MinPeriod.
func EffectivePeriod(seconds int) time.Duration {
	period := time.Duration(seconds) * time.Second
	if period < MinPeriod {
		return MinPeriod
	}
	return period
}

// Scheduler runs the two-phase sampling cycle.
//
// Both phases are timer callbacks. They hold the bus lock only for one
// bounded bus operation each and never return errors to the timer queue:
// failures are logged and the cycle continues.
type Scheduler struct {
	bus      onewire.Bus
	timers   Timers
	registry *Registry
	period   time.Duration

	observersMu sync.RWMutex
	observers   []Observer

	logger   Logger
	loggerMu sync.RWMutex
}

// NewScheduler creates a scheduler sampling bus every EffectivePeriod(periodSeconds).
func NewScheduler(bus onewire.Bus, timers Timers, registry *Registry, periodSeconds int) *Scheduler {
	return &Scheduler{
		bus:      bus,
		timers:   timers,
		registry: registry,
		period:   EffectivePeriod(periodSeconds),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Scheduler) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// Period returns the effective sampling period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// AddObserver registers fn to receive every stored reading.
func (s *Scheduler) AddObserver(fn Observer) {
	s.observersMu.Lock()
	s.observers = append(s.observers, fn)
	s.observersMu.Unlock()
}

// Start arms the repeating sampling timer. The first cycle runs as soon as
// the timer queue runs.
func (s *Scheduler) Start() error {
	if _, err := s.timers.Set(s.period, timer.Repeat|timer.RunNow, s.requestConversion); err != nil {
		return fmt.Errorf("arming %v sampling timer: %w", s.period, err)
	}
	s.getLogger().Info("ds18x sampling started", "period", s.period)
	return nil
}

// requestConversion is phase 1: broadcast a conversion and arm the read.
func (s *Scheduler) requestConversion() {
	defer s.recoverPanic("request conversion")

	latency, err := s.issueConversion()
	if err != nil {
		s.getLogger().Warn("conversion request failed, skipping cycle", "error", err)
		return
	}

	if _, err := s.timers.Set(latency, 0, s.readAll); err != nil {
		s.getLogger().Error("arming read timer failed, skipping cycle", "latency", latency, "error", err)
	}
}

// issueConversion broadcasts convert T without waiting for completion and
// returns the time to wait before reading.
func (s *Scheduler) issueConversion() (time.Duration, error) {
	s.bus.Lock()
	defer s.bus.Unlock()

	wait := s.bus.WaitForConversion()
	if wait {
		s.bus.SetWaitForConversion(false)
	}
	err := s.bus.RequestConversion()
	if wait {
		s.bus.SetWaitForConversion(true)
	}
	if err != nil {
		return 0, err
	}
	return s.bus.ConversionLatency(), nil
}

// readAll is phase 2: read every device in enumeration order and store the
// readings. A failing device is logged and skipped.
func (s *Scheduler) readAll() {
	defer s.recoverPanic("read devices")

	created, updated := s.readDevices()

	// Create hooks write to the inventory, so they wait for the bus.
	for _, rec := range created {
		s.announce(rec)
	}

	s.observersMu.RLock()
	observers := s.observers
	s.observersMu.RUnlock()

	for _, rec := range updated {
		for _, fn := range observers {
			s.notify(fn, rec)
		}
	}
}

// readDevices holds the bus lock for one pass over all devices. It returns
// the records it created and the readings it stored; hooks and observers
// for both run after the lock is released.
func (s *Scheduler) readDevices() (created, updated []Record) {
	logger := s.getLogger()

	s.bus.Lock()
	defer s.bus.Unlock()

	count := s.bus.DeviceCount()
	updated = make([]Record, 0, count)

	for i := 0; i < count; i++ {
		addr, err := s.bus.AddressAt(i)
		if err != nil {
			logger.Warn("reading device address failed", "index", i, "error", err)
			continue
		}

		celsius := s.bus.ReadTemperature(addr)
		if celsius == onewire.DisconnectedC {
			logger.Warn("sensor disconnected", "index", i, "address", addr.String())
			continue
		}

		rec, isNew, err := s.registry.getOrCreate(addr, SourceDiscovered)
		if err != nil {
			logger.Warn("sensor unavailable this cycle", "address", addr.String(), "error", err)
			continue
		}
		if isNew {
			created = append(created, rec)
		}

		if rec, ok := s.registry.UpdateReading(addr, celsius); ok {
			updated = append(updated, rec)
		}
	}

	logger.Debug("ds18x read pass complete", "devices", count, "created", len(created), "updated", len(updated))
	return created, updated
}

// announce runs the create hooks for rec, isolating their panics.
func (s *Scheduler) announce(rec Record) {
	defer s.recoverPanic("create hook")
	s.registry.fireCreated(rec)
}

// notify calls one observer, isolating its panics.
func (s *Scheduler) notify(fn Observer, rec Record) {
	defer s.recoverPanic("reading observer")
	fn(rec)
}

// recoverPanic keeps a failing callback from reaching the timer queue.
func (s *Scheduler) recoverPanic(where string) {
	if r := recover(); r != nil {
		s.getLogger().Error("ds18x panic recovered",
			"in", where,
			"panic", r,
			"stack", string(debug.Stack()),
		)
	}
}
