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
// Package client assembles everything a command needs for talking to agents:
// the runtime, the engine selected by the config, the session to the target
// and the catalog for names and display rules.
package client

import (
	"context"
	"fmt"

	"github.com/jrivets/log4g"
	"github.com/logrange/snmpwalk/pkg/catalog"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/engine/inmem"
	"github.com/logrange/snmpwalk/pkg/engine/remote"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/logrange/snmpwalk/pkg/session"
	"github.com/pkg/errors"
)

// Client holds the session to the configured target. Close must be called
// when the client is not needed anymore.
type Client struct {
	Runtime *session.Runtime
	Engine  engine.Engine
	Session *session.Session
	Catalog *catalog.Registry
	logger  log4g.Logger
}

// NewEngine creates the engine described by cfg
func NewEngine(cfg *engine.Config) (engine.Engine, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case engine.TypeInMem:
		e, err := inmem.NewEngine(cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine, err=%v", err)
		}
		return e, nil
	case engine.TypeRemote:
		e, err := remote.NewEngine(cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine, err=%v", err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unsupported engine type %s", cfg.Type)
}

// New creates the Client. Defaults are used for the settings not set in cfg.
func New(cfg *Config) (*Client, error) {
	c := NewDefaultConfig()
	c.Apply(cfg)
	if err := c.Check(); err != nil {
		return nil, err
	}

	cat := catalog.New()
	for _, fn := range c.CatalogFiles {
		if err := cat.LoadFile(fn); err != nil {
			return nil, err
		}
	}

	eng, err := NewEngine(c.Engine)
	if err != nil {
		return nil, err
	}

	rt := session.NewRuntime(c.Runtime)
	if err := rt.Init(context.Background()); err != nil {
		eng.Close()
		return nil, err
	}

	s, err := session.New(rt, eng, *c.Target, c.Session)
	if err != nil {
		rt.Shutdown()
		eng.Close()
		return nil, err
	}

	cli := new(Client)
	cli.Runtime = rt
	cli.Engine = eng
	cli.Session = s
	cli.Catalog = cat
	cli.logger = log4g.GetLogger("client").WithId("{" + c.Target.Address + "}").(log4g.Logger)
	cli.logger.Info("New client, config=", c)
	return cli, nil
}

// Get requests values of the objects names. A name could be an object
// name known to the catalog, optionally with the instance suffix, or an
// object identifier in the dotted form.
func (c *Client) Get(ctx context.Context, names ...string) ([]pdu.VarBind, error) {
	oids, err := c.Catalog.ResolveAll(names...)
	if err != nil {
		return nil, err
	}
	return c.Session.Get(oids...).Invoke(ctx).Get()
}

// GetEach requests every object of names in its own request. The requests
// are sent at once and the result contains the bindings in the order the
// responses came.
func (c *Client) GetEach(ctx context.Context, names ...string) ([]pdu.VarBind, error) {
	oids, err := c.Catalog.ResolveAll(names...)
	if err != nil {
		return nil, err
	}

	q := session.NewCompletionQueue[[]pdu.VarBind]()
	for _, o := range oids {
		q.Submit(c.Session.Get(o))
	}

	res := make([]pdu.VarBind, 0, len(oids))
	for !q.IsIdle() {
		cmpl, err := q.Take(ctx)
		if err != nil {
			return res, errors.Wrapf(err, "interrupted with %d requests pending", q.Pending())
		}
		vbs, err := cmpl.Result.Get()
		if err != nil {
			return res, errors.Wrapf(err, "request for %s failed", cmpl.Op.Items()[0].Oid)
		}
		res = append(res, vbs...)
	}
	return res, nil
}

// Set assigns value of type tp to the object name
func (c *Client) Set(ctx context.Context, name, tp, value string) ([]pdu.VarBind, error) {
	o, err := c.Catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	vt, err := pdu.ParseValueType(tp)
	if err != nil {
		return nil, err
	}
	vb, err := pdu.ParseValue(o, vt, value)
	if err != nil {
		return nil, err
	}
	return c.Session.Set(vb).Invoke(ctx).Get()
}

// Walk reads the table with the columns provided. Objects nonRepeaters are
// requested along with every batch and returned in every row.
func (c *Client) Walk(ctx context.Context, nonRepeaters, columns []string) ([]*session.Row, error) {
	nr, err := c.Catalog.ResolveAll(nonRepeaters...)
	if err != nil {
		return nil, err
	}
	cols, err := c.Catalog.ResolveAll(columns...)
	if err != nil {
		return nil, err
	}

	w, err := c.Session.SyncWalk(nr, cols)
	if err != nil {
		return nil, err
	}
	return w.Rows(ctx)
}

// Format returns the text form of vb, which is "name = value"
func (c *Client) Format(vb pdu.VarBind) string {
	return fmt.Sprintf("%s = %s", c.Catalog.Name(vb.Oid), c.Catalog.Format(vb))
}

// Close releases the client resources
func (c *Client) Close() error {
	c.Runtime.Shutdown()
	return c.Engine.Close()
}
