package onewire

import "errors"

// Domain errors for the onewire package.
var (
	// ErrInvalidAddress is returned when an address is not exactly 8 bytes.
	ErrInvalidAddress = errors.New("onewire: invalid address")

	// ErrDeviceNotFound is returned when no device exists at an enumeration index.
	ErrDeviceNotFound = errors.New("onewire: device not found")

	// ErrBusUnavailable is returned when the bus driver cannot be opened.
	ErrBusUnavailable = errors.New("onewire: bus unavailable")

	// ErrConversionFailed is returned when a conversion request cannot be issued.
	ErrConversionFailed = errors.New("onewire: conversion request failed")
)
