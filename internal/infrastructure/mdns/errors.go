package mdns

import "errors"

var (
	// ErrDisabled indicates mDNS advertisement is disabled in config.
	ErrDisabled = errors.New("mdns: disabled in configuration")

	// ErrInvalidPort indicates the advertised port is outside 1-65535.
	ErrInvalidPort = errors.New("mdns: invalid port")

	// ErrRegisterFailed indicates the service could not be registered.
	ErrRegisterFailed = errors.New("mdns: register failed")
)
