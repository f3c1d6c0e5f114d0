package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/hotsteps/steps"
)

// ErrInvalidConfig is matched by every ValidationErrors value.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "journal.driver")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Is reports ErrInvalidConfig for any collection of validation errors.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the configuration and returns every problem found.
// A nil result means the configuration is usable.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Script.DebounceMs < 0 {
		add("script.debounce_ms", c.Script.DebounceMs, "must be non-negative")
	}

	if _, ok := steps.ParseOverlapPolicy(c.Engine.OverlapPolicy); !ok {
		add("engine.overlap_policy", c.Engine.OverlapPolicy, "must be one of: allow, clamp")
	}
	if c.Engine.MaxCompareDepth < 0 {
		add("engine.max_compare_depth", c.Engine.MaxCompareDepth, "must be non-negative")
	}

	switch c.Journal.Driver {
	case JournalMemory, JournalNone:
	case JournalSQLite, JournalMySQL:
		if c.Journal.DSN == "" {
			add("journal.dsn", c.Journal.DSN, "required for the "+c.Journal.Driver+" driver")
		}
	default:
		add("journal.driver", c.Journal.Driver, "must be one of: memory, sqlite, mysql, none")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		add("logging.level", c.Logging.Level, "must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format", c.Logging.Format, "must be one of: text, json")
	}

	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		add("tracing.service_name", c.Tracing.ServiceName, "required when tracing is enabled")
	}

	return errs
}
