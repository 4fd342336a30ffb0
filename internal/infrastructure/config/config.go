package config

// One-wire driver names.
const (
	DriverSysfs     = "sysfs"
	DriverSimulated = "simulated"
)

// Config is the whole bridge configuration, one field per YAML section.
type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	OneWire       OneWireConfig       `yaml:"onewire"`
	DS18xHA       DS18xHAConfig       `yaml:"ds18x_ha"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
}

// SiteConfig names the installation. Name is the Home Assistant device name.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig locates the SQLite inventory. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig is the broker session used for discovery and state.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig is the reconnect backoff in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig is the local read-only HTTP API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`
	MDNS     MDNSConfig       `yaml:"mdns"`
}

// MDNSConfig controls DNS-SD advertisement of the API on the local network.
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`

	// Instance is the advertised instance name. Default: the site name.
	Instance string `yaml:"instance"`

	// Interface limits advertisement to one network interface. Empty means all.
	Interface string `yaml:"interface"`

	// TTL is the record time-to-live in seconds. Zero uses the library default.
	TTL int `yaml:"ttl"`
}

// APIAuthConfig controls bearer-token authentication of the API.
// Authentication is off when JWTSecret is empty.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime of minted tokens in hours. Default: 24.
	TokenTTL int `yaml:"token_ttl"`
}

// APITimeoutConfig holds HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists browser origins allowed to call the API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig shapes the reading stream. Intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig is the optional reading telemetry sink.
// FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level (debug, info, warn, error), format (json,
// text) and output (stdout, stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OneWireConfig selects and configures the bus driver.
type OneWireConfig struct {
	// Driver is "sysfs" (Linux w1 subsystem) or "simulated".
	Driver string `yaml:"driver"`

	// SysfsPath is the w1 devices directory.
	// Default: "/sys/bus/w1/devices"
	SysfsPath string `yaml:"sysfs_path"`

	Simulated SimulatedBusConfig `yaml:"simulated"`
}

// SimulatedBusConfig configures the simulated driver.
type SimulatedBusConfig struct {
	Devices int    `yaml:"devices"`
	Seed    uint64 `yaml:"seed"`
}

// DS18xHAConfig controls the DS18x sensor feature.
type DS18xHAConfig struct {
	Enable bool `yaml:"enable"`

	// Period is the sampling period in seconds. Values below 5 are raised to 5.
	Period int `yaml:"period"`

	// NamePrefix is prepended to the hex address for unconfigured sensors.
	NamePrefix string `yaml:"name_prefix"`
}

// HomeAssistantConfig places the bridge in Home Assistant's MQTT namespace.
type HomeAssistantConfig struct {
	// DiscoveryPrefix is the Home Assistant MQTT discovery prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// NodeID identifies this bridge in topics and unique IDs.
	NodeID string `yaml:"node_id"`

	// ConfigFile is an optional JSON or YAML file of provider payloads.
	ConfigFile string `yaml:"config_file"`
}
