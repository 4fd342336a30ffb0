package mdns

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
)

// DNS-SD naming.
const (
	ServiceType = "_graylogic-onewire._tcp"
	Domain      = "local."

	// maxInstanceNameLen is the DNS label limit.
	maxInstanceNameLen = 63
)

// Info describes the advertised API.
type Info struct {
	// Instance is used when the config does not name the instance.
	Instance string
	Port     int
	Version  string
	NodeID   string
	APIPath  string
	WSPath   string
	Auth     bool
}

// registerFunc matches zeroconf.Register; tests replace it.
type registerFunc func(instance, service, domain string, port int, text []string,
	ifaces []net.Interface, opts ...zeroconf.ServerOption) (*zeroconf.Server, error)

var register registerFunc = zeroconf.Register

// Advertiser owns one registered DNS-SD service.
type Advertiser struct {
	mu       sync.Mutex
	server   *zeroconf.Server
	instance string
}

// Advertise registers the API service and keeps answering queries until
// Shutdown. It returns ErrDisabled when cfg.Enabled is false.
func Advertise(cfg config.MDNSConfig, info Info) (*Advertiser, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if info.Port < 1 || info.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, info.Port)
	}

	ifaces, err := interfaces(cfg.Interface)
	if err != nil {
		return nil, err
	}

	var opts []zeroconf.ServerOption
	if cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(cfg.TTL))) //nolint:gosec // validated non-negative
	}

	instance := InstanceName(cfg, info)
	server, err := register(instance, ServiceType, Domain, info.Port, TXTRecords(info), ifaces, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}

	return &Advertiser{server: server, instance: instance}, nil
}

// Instance returns the registered instance name.
func (a *Advertiser) Instance() string {
	return a.instance
}

// Shutdown withdraws the service. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// InstanceName picks the configured instance name, falling back to
// info.Instance and then the node ID, truncated to one DNS label.
func InstanceName(cfg config.MDNSConfig, info Info) string {
	name := cfg.Instance
	if name == "" {
		name = info.Instance
	}
	if name == "" {
		name = info.NodeID
	}
	if len(name) > maxInstanceNameLen {
		name = name[:maxInstanceNameLen]
	}
	return name
}

// TXTRecords encodes info as key=value strings. Empty values are omitted.
func TXTRecords(info Info) []string {
	txt := make([]string, 0, 5)
	add := func(k, v string) {
		if v != "" {
			txt = append(txt, k+"="+v)
		}
	}
	add("ver", info.Version)
	add("node", info.NodeID)
	add("api", info.APIPath)
	add("ws", info.WSPath)
	txt = append(txt, "auth="+strconv.FormatBool(info.Auth))
	return txt
}

// interfaces resolves the configured interface; nil means all interfaces.
func interfaces(name string) ([]net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("mdns: interface %q: %w", name, err)
	}
	return []net.Interface{*iface}, nil
}
