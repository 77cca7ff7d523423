package slo

import "errors"

var (
	// ErrConfigParse is returned when the SLO file is not valid YAML.
	ErrConfigParse = errors.New("invalid SLO configuration syntax")

	// ErrConfigFormat is returned when the SLO file is valid YAML but misses
	// a required field or holds a value of the wrong type.
	ErrConfigFormat = errors.New("invalid SLO configuration format")

	// ErrStoreUnavailable is returned when counters cannot be read or committed.
	ErrStoreUnavailable = errors.New("SLI store unavailable")

	// ErrDivisionUndefined is returned when rates are requested for a counters
	// row with a zero total.
	ErrDivisionUndefined = errors.New("rate is undefined for zero total responses")

	ErrDaemonNotImplemented = errors.New("daemon mode is not implemented")
)
