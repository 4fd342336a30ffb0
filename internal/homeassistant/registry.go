package homeassistant

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
)

// Publisher sends MQTT messages. Implemented by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Logger defines the logging interface used by the registry.
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

// ProviderFunc handles one configuration payload for a feature.
// A returned error rejects that payload only.
type ProviderFunc func(payload json.RawMessage) error

// RegistryConfig holds configuration for a Registry.
type RegistryConfig struct {
	// Topics builds discovery, state and availability topics.
	Topics mqtt.Topics

	// Publisher sends discovery and state messages. May be nil, in which
	// case nothing is published.
	Publisher Publisher

	// QoS is used for state messages. Discovery is always QoS 1, retained.
	QoS byte

	// DeviceName and Version describe the bridge in discovery configs.
	DeviceName string
	Version    string
}

// Registry holds the automation objects exposed to Home Assistant.
type Registry struct {
	topics     mqtt.Topics
	publisher  Publisher
	qos        byte
	deviceName string
	version    string

	mu        sync.RWMutex
	objects   map[string]*Object
	providers map[string]ProviderFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	deviceName := cfg.DeviceName
	if deviceName == "" {
		deviceName = cfg.Topics.NodeID
	}
	return &Registry{
		topics:     cfg.Topics,
		publisher:  cfg.Publisher,
		qos:        cfg.QoS,
		deviceName: deviceName,
		version:    cfg.Version,
		objects:    make(map[string]*Object),
		providers:  make(map[string]ProviderFunc),
		logger:     noopLogger{},
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

// AddObject creates a named object. Names are unique across the registry.
func (r *Registry) AddObject(name string, component Component) (*Object, error) {
	if err := validateName("object", name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrObjectExists, name)
	}

	o := &Object{name: name, component: component}
	r.objects[name] = o
	return o, nil
}

// AddClass attaches a measurement class to o and publishes its discovery
// config. A failed discovery publish is logged, not returned: the broker
// may be down, and discovery is republished on reconnect.
func (r *Registry) AddClass(o *Object, class string, attrs map[string]string) error {
	if err := validateName("class", class); err != nil {
		return err
	}
	if err := r.checkOwned(o); err != nil {
		return err
	}

	o.mu.Lock()
	if o.removed {
		o.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrObjectNotFound, o.name)
	}
	if o.hasClassLocked(class) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %q on %q", ErrClassExists, class, o.name)
	}
	c := Class{Name: class, Attributes: maps.Clone(attrs)}
	o.classes = append(o.classes, c)
	o.mu.Unlock()

	if err := r.publishClassDiscovery(o, c); err != nil {
		r.getLogger().Warn("discovery publish failed",
			"object", o.name,
			"class", class,
			"error", err,
		)
	}
	return nil
}

// RemoveObject deletes o and clears its retained discovery configs so Home
// Assistant drops the entities.
func (r *Registry) RemoveObject(o *Object) error {
	if err := r.checkOwned(o); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.objects, o.name)
	r.mu.Unlock()

	o.mu.Lock()
	o.removed = true
	classes := o.classes
	o.mu.Unlock()

	for _, c := range classes {
		if err := r.publishRetained(r.topics.Discovery(string(o.component), objectID(o, c)), nil); err != nil {
			r.getLogger().Debug("discovery clear failed", "object", o.name, "class", c.Name, "error", err)
		}
	}
	return nil
}

// GetObject looks up an object by name.
func (r *Registry) GetObject(name string) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[name]
	return o, ok
}

// Objects returns all objects sorted by name.
func (r *Registry) Objects() []*Object {
	r.mu.RLock()
	out := make([]*Object, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// SendStatus publishes o's current values as a JSON object keyed by class.
// Empty values are left out, so an object that has never been read
// publishes {}.
func (r *Registry) SendStatus(o *Object, values map[string]string) error {
	if err := r.checkOwned(o); err != nil {
		return err
	}

	payload, err := statusPayload(values)
	if err != nil {
		return err
	}

	if r.publisher == nil {
		return nil
	}
	if err := r.publisher.Publish(r.topics.State(o.name), payload, r.qos, false); err != nil {
		return fmt.Errorf("publishing status for %q: %w", o.name, err)
	}
	return nil
}

// statusPayload encodes the non-empty values.
func statusPayload(values map[string]string) ([]byte, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			out[k] = v
		}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding status: %w", err)
	}
	return payload, nil
}

// RegisterProvider registers a config provider under name.
func (r *Registry) RegisterProvider(name string, fn ProviderFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: provider needs a name and a function", ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %q", ErrProviderExists, name)
	}
	r.providers[name] = fn
	return nil
}

// provider returns the provider registered under name.
func (r *Registry) provider(name string) (ProviderFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.providers[name]
	return fn, ok
}

// checkOwned verifies o is a live object of this registry.
func (r *Registry) checkOwned(o *Object) error {
	if o == nil {
		return fmt.Errorf("%w: nil object", ErrObjectNotFound)
	}
	r.mu.RLock()
	current, ok := r.objects[o.name]
	r.mu.RUnlock()
	if !ok || current != o {
		return fmt.Errorf("%w: %q", ErrObjectNotFound, o.name)
	}
	return nil
}
