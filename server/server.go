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
// Package server assembles the agent daemon: the data store and the RPC
// server which answers requests of the remote engine.
package server

import (
	"context"

	"github.com/jrivets/log4g"
	"github.com/logrange/linker"
	"github.com/logrange/snmpwalk/pkg/agent"
	"github.com/pkg/errors"
)

// Start starts the agent daemon using the configuration provided. It will
// stop it as soon as ctx is closed
func Start(ctx context.Context, cfg *Config) error {
	log := log4g.GetLogger("server")
	log.Info("Start with config:", cfg)

	injector, _, err := newInjector(cfg)
	if err != nil {
		return err
	}
	injector.Init(ctx)

	<-ctx.Done()
	injector.Shutdown()

	return nil
}

func newInjector(cfg *Config) (*linker.Injector, *agent.Server, error) {
	if err := cfg.Check(); err != nil {
		return nil, nil, errors.Wrapf(err, "could not start the agent")
	}

	st, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	srv := agent.NewServer()
	injector := linker.New()
	injector.SetLogger(log4g.GetLogger("injector"))
	injector.Register(
		linker.Component{Name: "agentRpcTransport", Value: cfg.Transport},
		linker.Component{Name: "", Value: st},
		linker.Component{Name: "", Value: agent.NewEndpoint()},
		linker.Component{Name: "", Value: srv},
	)
	return injector, srv, nil
}

func newStore(cfg *Config) (*agent.Store, error) {
	st := agent.NewStore()
	if len(cfg.DataFile) > 0 {
		vbs, err := agent.LoadFile(cfg.DataFile)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load agent data")
		}
		st.Put(vbs...)
	}
	st.SetMaxResponseBindings(cfg.MaxResponseBindings)
	return st, nil
}
