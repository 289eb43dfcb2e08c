package registry

import (
	"errors"
	"fmt"
)

// ErrConfig marks coordinate-file failures. Fatal at startup: the system must
// not proceed to any delivery attempt without a valid registry.
var ErrConfig = errors.New("registry: config error")

// ConfigError reports a missing or malformed coordinate file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("registry: coordinate file %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// UnknownAgentError reports a send targeting an agent not present in the
// registry. Rejected synchronously, never retried.
type UnknownAgentError struct {
	AgentID string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("registry: unknown agent %q", e.AgentID)
}

// IsUnknownAgent reports whether err is an UnknownAgentError.
func IsUnknownAgent(err error) bool {
	var ua *UnknownAgentError
	return errors.As(err, &ua)
}
