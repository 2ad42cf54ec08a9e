// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"fmt"
	"time"
)

type (
	// Config contains the session settings
	Config struct {
		// Retries is how many times a request is re-sent after the first
		// attempt timed out, so a request makes Retries+1 attempts at most
		Retries *int

		// TimeoutMs is the timeout of every attempt in milliseconds
		TimeoutMs int

		// MaxRepetitions is how many rows a walker asks for in one batch
		MaxRepetitions int

		// AllowTruncated allows a walker to continue with less columns when
		// a batch contains less columns than requested. When it is false,
		// such a batch fails the walk.
		AllowTruncated *bool
	}

	// RuntimeConfig contains the Runtime settings
	RuntimeConfig struct {
		// CallbackWorkers limits number of go-routines running async callbacks
		CallbackWorkers int
	}
)

// NewDefaultConfig returns the session Config with default values
func NewDefaultConfig() *Config {
	c := new(Config)
	retries := 1
	c.Retries = &retries
	c.TimeoutMs = 1000
	c.MaxRepetitions = 10
	allow := false
	c.AllowTruncated = &allow
	return c
}

// NewDefaultRuntimeConfig returns the RuntimeConfig with default values
func NewDefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{CallbackWorkers: 4}
}

// Apply overrides c's properties by the ones set in other
func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	if other.Retries != nil {
		r := *other.Retries
		c.Retries = &r
	}
	if other.TimeoutMs > 0 {
		c.TimeoutMs = other.TimeoutMs
	}
	if other.MaxRepetitions > 0 {
		c.MaxRepetitions = other.MaxRepetitions
	}
	if other.AllowTruncated != nil {
		b := *other.AllowTruncated
		c.AllowTruncated = &b
	}
}

// Check returns an error if the config is not valid
func (c *Config) Check() error {
	if c.Retries == nil || *c.Retries < 0 {
		return fmt.Errorf("Retries must be non-negative")
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("TimeoutMs=%d must be positive", c.TimeoutMs)
	}
	if c.MaxRepetitions <= 0 {
		return fmt.Errorf("MaxRepetitions=%d must be positive", c.MaxRepetitions)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprint(
		"\n\tRetries=", c.retries(),
		"\n\tTimeoutMs=", c.TimeoutMs,
		"\n\tMaxRepetitions=", c.MaxRepetitions,
		"\n\tAllowTruncated=", c.allowTruncated(),
	)
}

func (c *Config) retries() int {
	if c.Retries == nil {
		return 0
	}
	return *c.Retries
}

func (c *Config) allowTruncated() bool {
	return c.AllowTruncated != nil && *c.AllowTruncated
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Apply overrides c's properties by the ones set in other
func (c *RuntimeConfig) Apply(other *RuntimeConfig) {
	if other != nil && other.CallbackWorkers > 0 {
		c.CallbackWorkers = other.CallbackWorkers
	}
}

// Check returns an error if the config is not valid
func (c *RuntimeConfig) Check() error {
	if c.CallbackWorkers <= 0 {
		return fmt.Errorf("CallbackWorkers=%d must be positive", c.CallbackWorkers)
	}
	return nil
}
