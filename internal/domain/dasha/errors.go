package dasha

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the period engine. These allow errors.Is from callers.
var (
	// ErrConfiguration marks a malformed period-system definition. It is only
	// ever returned while constructing a System or Registry.
	ErrConfiguration = errors.New("invalid period system configuration")

	// ErrInputDomain marks a call whose inputs fall outside the engine's domain.
	ErrInputDomain = errors.New("input outside domain")

	// ErrUnknownSystem is returned by Registry.Lookup. It wraps ErrInputDomain.
	ErrUnknownSystem = fmt.Errorf("%w: unknown period system", ErrInputDomain)
)
