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
package server

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/jrivets/log4g"
	"github.com/logrange/range/pkg/transport"
	"github.com/pkg/errors"
)

// Config struct defines the agent daemon settings
type Config struct {
	// Transport contains the RPC listener settings
	Transport transport.Config

	// DataFile is the path to the agent data file. The daemon serves an empty
	// data set if it is not specified.
	DataFile string

	// MaxResponseBindings limits number of variable bindings in one response,
	// 0 means no limit. The agent cuts GetBulk replies to the limit, so the
	// clients see truncated batches.
	MaxResponseBindings int
}

var configLog = log4g.GetLogger("server.config")

// GetDefaultConfig returns the default agent daemon configuration
func GetDefaultConfig() *Config {
	c := new(Config)
	c.Transport.ListenAddr = "127.0.0.1:10161"
	return c
}

// Apply override c's properties by non-default values from cfg
func (c *Config) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	c.Transport.Apply(&cfg.Transport)
	if len(cfg.DataFile) > 0 {
		c.DataFile = cfg.DataFile
	}
	if cfg.MaxResponseBindings > 0 {
		c.MaxResponseBindings = cfg.MaxResponseBindings
	}
}

// Check returns an error if the config could not be used for starting the daemon
func (c *Config) Check() error {
	if err := c.Transport.Check(); err != nil {
		return errors.Wrapf(err, "invalid Transport config")
	}
	if c.MaxResponseBindings < 0 {
		return fmt.Errorf("invalid config; MaxResponseBindings=%d, must be non-negative", c.MaxResponseBindings)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("{Transport: %s, DataFile: %s, MaxResponseBindings: %d}", c.Transport, c.DataFile, c.MaxResponseBindings)
}

// ReadConfigFromFile read config file from filename. It returns nil, if filename
// is empty or not found. It will panic if the file exists, but could not be
// read properly
func ReadConfigFromFile(filename string) *Config {
	if filename == "" {
		return nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		configLog.Warn("There is no file ", filename, " for reading agent config, will use default configuration.")
		return nil
	}

	cfgData, err := ioutil.ReadFile(filename)
	if err != nil {
		configLog.Fatal("Could not read configuration file ", filename, ": ", err)
		panic(errors.Wrapf(err, "Could not read data from config file %s", filename))
	}

	c := &Config{}
	err = json.Unmarshal(cfgData, c)
	if err != nil {
		configLog.Fatal("Could not unmarshal data from ", filename, ", err=", err)
		panic(errors.Wrapf(err, "Could not unmarshal json data from config file %s", filename))
	}

	configLog.Info("Configuration read from ", filename)
	return c
}
