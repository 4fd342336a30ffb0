package ds18x

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/homeassistant"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// Measurement class attached to every sensor object.
const (
	temperatureClass = "temperature"
	temperatureUnit  = "°C"
)

// DefaultNamePrefix is prepended to derived sensor names.
const DefaultNamePrefix = "ds18x_"

// Source records how a sensor came to exist.
type Source string

// Sensor sources.
const (
	SourceConfig     Source = "config"
	SourceDiscovered Source = "discovered"
)

// Automation is the automation layer sensors are published through.
// Implemented by *homeassistant.Registry.
type Automation interface {
	AddObject(name string, component homeassistant.Component) (*homeassistant.Object, error)
	AddClass(o *homeassistant.Object, class string, attrs map[string]string) error
	RemoveObject(o *homeassistant.Object) error
	SendStatus(o *homeassistant.Object, values map[string]string) error
	GetObject(name string) (*homeassistant.Object, bool)
	RegisterProvider(name string, fn homeassistant.ProviderFunc) error
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Record is one sensor known to the registry.
type Record struct {
	Address     onewire.Address
	Name        string
	Temperature float64
	Object      *homeassistant.Object
	Source      Source
	CreatedAt   time.Time
	UpdatedAt   time.Time // zero until the first reading
}

// Formatted returns the temperature as published, or "" if never read.
func (r Record) Formatted() string {
	return FormatTemperature(r.Temperature)
}

// Registry maps device addresses to sensor records.
//
// Records are created on the timer goroutine and during startup; the map is
// guarded so status surfaces can read snapshots concurrently.
type Registry struct {
	automation Automation
	prefix     string

	// createMu serialises creation so an address gets one object.
	createMu sync.Mutex

	mu       sync.RWMutex
	records  map[onewire.Address]*Record
	bindings []Binding

	hooksMu  sync.RWMutex
	onCreate []func(Record)

	logger   Logger
	loggerMu sync.RWMutex
	now      func() time.Time
}

// NewRegistry creates an empty registry publishing through automation.
// An empty prefix selects DefaultNamePrefix.
func NewRegistry(automation Automation, namePrefix string) *Registry {
	if namePrefix == "" {
		namePrefix = DefaultNamePrefix
	}
	return &Registry{
		automation: automation,
		prefix:     namePrefix,
		records:    make(map[onewire.Address]*Record),
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Registry) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// OnCreate registers fn to be called with every newly created record.
func (r *Registry) OnCreate(fn func(Record)) {
	r.hooksMu.Lock()
	r.onCreate = append(r.onCreate, fn)
	r.hooksMu.Unlock()
}

// Get returns the record for addr. It never creates one.
func (r *Registry) Get(addr onewire.Address) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[addr]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Records returns a snapshot of all records sorted by name.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Bindings returns a copy of the configured bindings in the order added.
func (r *Registry) Bindings() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Binding(nil), r.bindings...)
}

// AddBinding stores a configured name for an address. It fails with
// ErrDuplicateBinding if the address is already bound or already has a
// sensor, since an existing sensor is never renamed.
func (r *Registry) AddBinding(b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := ResolveName(b.Address, r.bindings); bound {
		return fmt.Errorf("%w: %s is already bound", ErrDuplicateBinding, b.Address)
	}
	if _, exists := r.records[b.Address]; exists {
		return fmt.Errorf("%w: %s is already registered", ErrDuplicateBinding, b.Address)
	}
	r.bindings = append(r.bindings, b)
	return nil
}

// ResolveName returns the configured name for addr, or the name derived from
// the address and the registry's prefix.
func (r *Registry) ResolveName(addr onewire.Address) string {
	r.mu.RLock()
	name, ok := ResolveName(addr, r.bindings)
	r.mu.RUnlock()

	if ok {
		return name
	}
	return onewire.DefaultName(addr, r.prefix)
}

// GetOrCreate returns the record for addr, creating the sensor if needed.
//
// Creation resolves the name, refuses a name already used by another
// object (ErrNameCollision), creates the automation object and attaches the
// temperature class. If any step fails the partial object is removed and an
// error wrapping ErrObjectCreate or ErrNameCollision is returned. The new
// record starts with the disconnected sentinel as its reading.
//
// OnCreate hooks run before GetOrCreate returns. Callers holding the bus lock
// use getOrCreate instead and fire the hooks once the lock is released.
func (r *Registry) GetOrCreate(addr onewire.Address, source Source) (Record, error) {
	rec, created, err := r.getOrCreate(addr, source)
	if created {
		r.fireCreated(rec)
	}
	return rec, err
}

// getOrCreate is GetOrCreate without the hooks. created reports whether
// this call made the record.
func (r *Registry) getOrCreate(addr onewire.Address, source Source) (rec Record, created bool, err error) {
	if rec, ok := r.Get(addr); ok {
		return rec, false, nil
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if rec, ok := r.Get(addr); ok {
		return rec, false, nil
	}

	name := r.ResolveName(addr)

	// No record exists for addr, so any object already holding the name is
	// bound to something else.
	if _, taken := r.automation.GetObject(name); taken {
		return Record{}, false, fmt.Errorf("%w: %q for %s", ErrNameCollision, name, addr)
	}

	obj, err := r.automation.AddObject(name, homeassistant.ComponentSensor)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: adding object %q: %w", ErrObjectCreate, name, err)
	}

	attrs := map[string]string{"unit_of_meas": temperatureUnit}
	if err := r.automation.AddClass(obj, temperatureClass, attrs); err != nil {
		if rmErr := r.automation.RemoveObject(obj); rmErr != nil {
			r.getLogger().Error("rollback of sensor object failed", "name", name, "error", rmErr)
		}
		return Record{}, false, fmt.Errorf("%w: adding %s class to %q: %w", ErrObjectCreate, temperatureClass, name, err)
	}

	stored := &Record{
		Address:     addr,
		Name:        name,
		Temperature: onewire.DisconnectedC,
		Object:      obj,
		Source:      source,
		CreatedAt:   r.now(),
	}

	r.mu.Lock()
	r.records[addr] = stored
	rec = *stored
	r.mu.Unlock()

	r.getLogger().Info("added sensor", "name", name, "address", addr.String(), "source", string(source))
	return rec, true, nil
}

// fireCreated runs the OnCreate hooks for rec.
func (r *Registry) fireCreated(rec Record) {
	r.hooksMu.RLock()
	hooks := r.onCreate
	r.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(rec)
	}
}

// UpdateReading stores a new reading for addr and publishes the sensor's
// status. It is a no-op returning false when addr has no record. A failed
// publish is logged; the stored reading is kept.
func (r *Registry) UpdateReading(addr onewire.Address, celsius float64) (Record, bool) {
	r.mu.Lock()
	rec, ok := r.records[addr]
	if !ok {
		r.mu.Unlock()
		return Record{}, false
	}
	rec.Temperature = celsius
	rec.UpdatedAt = r.now()
	snapshot := *rec
	r.mu.Unlock()

	values := map[string]string{temperatureClass: snapshot.Formatted()}
	if err := r.automation.SendStatus(snapshot.Object, values); err != nil {
		r.getLogger().Warn("status publish failed", "name", snapshot.Name, "error", err)
	}
	return snapshot, true
}
