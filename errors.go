// Copyright 2026 Humberto Gesser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emojify

import "fmt"

// ConfigurationError describes invalid input to the mosaic pipeline, for
// example an empty tile library or a non-positive tile size. Errors of this
// kind are fatal, a caller should surface them immediately and not retry.
type ConfigurationError struct {
	Reason string
}

// NewConfigurationError returns a new ConfigurationError, the arguments are
// passed to fmt.Sprintf.
func NewConfigurationError(format string, a ...interface{}) ConfigurationError {
	return ConfigurationError{Reason: fmt.Sprintf(format, a...)}
}

func (err ConfigurationError) Error() string {
	return "Invalid configuration: " + err.Reason
}

// DecodeError describes a source image (or frame) that could not be decoded.
// In a sequence context the caller decides whether to skip the item or abort
// the whole run.
type DecodeError struct {
	Path string
	Err  error
}

// NewDecodeError returns a new DecodeError for the given file and cause.
func NewDecodeError(path string, err error) DecodeError {
	return DecodeError{Path: path, Err: err}
}

func (err DecodeError) Error() string {
	return fmt.Sprintf("Can't decode image %s: %v", err.Path, err.Err)
}

// Unwrap returns the underlying decoder error.
func (err DecodeError) Unwrap() error {
	return err.Err
}

// ConsistencyError signals a violated internal invariant, for example a
// placement plan that does not cover the grid exactly once. It indicates a
// defect in the library, not bad input.
type ConsistencyError struct {
	Reason string
}

// NewConsistencyError returns a new ConsistencyError, the arguments are
// passed to fmt.Sprintf.
func NewConsistencyError(format string, a ...interface{}) ConsistencyError {
	return ConsistencyError{Reason: fmt.Sprintf(format, a...)}
}

func (err ConsistencyError) Error() string {
	return "Internal consistency error: " + err.Reason
}
