package domain

import (
	"fmt"
	"strings"
)

// SchemaError indicates required columns are absent under the strict policy,
// or that no usable feature column exists at all.
type SchemaError struct {
	Missing []string
	Reason  string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema error: %s", e.Reason)
}

// ConfigurationError indicates a mismatch between how a model was fitted and how it is used.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Reason)
}

// InsufficientDataError indicates too few distinct time points to forecast.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d distinct time points, need at least %d", e.Have, e.Need)
}

// ModelLoadError indicates persisted model state is unreadable or incompatible.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("load model: %v", e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
