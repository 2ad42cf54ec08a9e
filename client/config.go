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
package client

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/session"
	"github.com/mohae/deepcopy"
)

// Config struct just aggregate different types of configs in one place
type Config struct {
	Engine  *engine.Config         `json:"engine"`
	Session *session.Config        `json:"session"`
	Runtime *session.RuntimeConfig `json:"runtime"`
	Target  *engine.Target         `json:"target"`

	// CatalogFiles contains definition files loaded into the catalog in
	// addition to the built-in definitions
	CatalogFiles []string `json:"catalogFiles"`
}

//===================== config =====================

// NewDefaultConfig returns the client config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Engine:  &engine.Config{Type: engine.TypeRemote},
		Session: session.NewDefaultConfig(),
		Runtime: session.NewDefaultRuntimeConfig(),
		Target:  &engine.Target{Address: "127.0.0.1:10161", Community: "public"},
	}
}

// LoadCfgFromFile reads the JSON config from the file
func LoadCfgFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	err = json.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overrides c's properties by the ones set in other
func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}

	if other.Engine != nil {
		if c.Engine == nil {
			c.Engine = &engine.Config{}
		}
		if other.Engine.Type != "" {
			c.Engine.Type = other.Engine.Type
		}
		if other.Engine.Params != nil {
			c.Engine.Params = deepcopy.Copy(other.Engine.Params).(map[string]interface{})
		}
	}
	if other.Session != nil {
		if c.Session == nil {
			c.Session = session.NewDefaultConfig()
		}
		c.Session.Apply(other.Session)
	}
	if other.Runtime != nil {
		if c.Runtime == nil {
			c.Runtime = session.NewDefaultRuntimeConfig()
		}
		c.Runtime.Apply(other.Runtime)
	}
	if other.Target != nil {
		if c.Target == nil {
			c.Target = &engine.Target{}
		}
		if other.Target.Address != "" {
			c.Target.Address = other.Target.Address
		}
		if other.Target.Community != "" {
			c.Target.Community = other.Target.Community
		}
	}
	if len(other.CatalogFiles) > 0 {
		c.CatalogFiles = deepcopy.Copy(other.CatalogFiles).([]string)
	}
}

// Check returns an error if the config could not be used for building a client
func (c *Config) Check() error {
	if c.Engine == nil {
		return fmt.Errorf("invalid config; engine=%v, must be non-nil", c.Engine)
	}
	if c.Session == nil {
		return fmt.Errorf("invalid config; session=%v, must be non-nil", c.Session)
	}
	if c.Runtime == nil {
		return fmt.Errorf("invalid config; runtime=%v, must be non-nil", c.Runtime)
	}
	if c.Target == nil || c.Target.Address == "" {
		return fmt.Errorf("invalid config; target=%v, must be non-nil with non-empty Address", c.Target)
	}
	if err := c.Engine.Check(); err != nil {
		return err
	}
	if err := c.Session.Check(); err != nil {
		return err
	}
	if err := c.Runtime.Check(); err != nil {
		return err
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprint(
		"\n\tEngine=", c.Engine,
		"\n\tSession=", c.Session,
		"\n\tRuntime=", c.Runtime,
		"\n\tTarget=", c.Target,
		"\n\tCatalogFiles=", c.CatalogFiles,
	)
}
