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

// Package inmem provides the engine which serves requests by an in-process
// handler, normally agent.Store. It allows to inject latency and to drop or
// fail requests, what makes it the engine of choice for tests and offline runs.
package inmem

import (
	"sync"
	"time"

	"github.com/jrivets/log4g"
	"github.com/logrange/range/pkg/utils/errors"
	"github.com/logrange/snmpwalk/pkg/agent"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/mitchellh/mapstructure"
	perrors "github.com/pkg/errors"
)

type (
	// Handler produces the response for the request. Must be safe for concurrent use.
	Handler interface {
		Handle(req *pdu.Request) *pdu.Response
	}

	// HandlerFunc allows to use a function as Handler
	HandlerFunc func(req *pdu.Request) *pdu.Response

	// Config contains the engine parameters, which can be provided via engine.Config.Params
	Config struct {
		// DataFile is the agent data file, see agent.Load for the format
		DataFile string
		// LatencyMs is the delay of every response in milliseconds
		LatencyMs int
		// MaxResponseBindings limits number of bindings the agent returns in one response
		MaxResponseBindings int
	}

	// Engine implements engine.Engine
	Engine struct {
		h      Handler
		logger log4g.Logger

		lock    sync.Mutex
		calls   map[engine.Ticket]*call
		ticket  engine.Ticket
		closed  bool
		latency time.Duration
		drop    func(req *pdu.Request) bool
		fail    func(req *pdu.Request) error
		sent    int
	}

	call struct {
		cb    engine.Callback
		timer *time.Timer
	}
)

// New creates the Engine which serves requests by h
func New(h Handler) *Engine {
	e := new(Engine)
	e.h = h
	e.logger = log4g.GetLogger("engine.inmem")
	e.calls = make(map[engine.Ticket]*call)
	return e
}

// NewEngine creates the Engine over agent.Store built by params, which are decoded into Config
func NewEngine(params map[string]interface{}) (*Engine, error) {
	var cfg Config
	if err := mapstructure.Decode(params, &cfg); err != nil {
		return nil, perrors.Wrapf(err, "unable to decode Params=%v", params)
	}

	st := agent.NewStore()
	if cfg.DataFile != "" {
		vbs, err := agent.LoadFile(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		st.Put(vbs...)
	}
	st.SetMaxResponseBindings(cfg.MaxResponseBindings)

	e := New(st)
	e.SetLatency(time.Duration(cfg.LatencyMs) * time.Millisecond)
	e.logger.Info("New engine with ", st.Len(), " bindings, latency=", e.latency)
	return e, nil
}

// Handle is part of Handler
func (hf HandlerFunc) Handle(req *pdu.Request) *pdu.Response {
	return hf(req)
}

// SetLatency sets the delay for every response
func (e *Engine) SetLatency(d time.Duration) {
	e.lock.Lock()
	e.latency = d
	e.lock.Unlock()
}

// SetDropper sets the function which is asked for every request whether it
// must be lost. Lost requests are never answered.
func (e *Engine) SetDropper(f func(req *pdu.Request) bool) {
	e.lock.Lock()
	e.drop = f
	e.lock.Unlock()
}

// SetFailer sets the function which can fail the request delivery. The
// returned error, if not nil, is passed to the request callback.
func (e *Engine) SetFailer(f func(req *pdu.Request) error) {
	e.lock.Lock()
	e.fail = f
	e.lock.Unlock()
}

// Sent returns number of requests accepted by the engine
func (e *Engine) Sent() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.sent
}

// Pending returns number of requests which are neither completed nor cancelled
func (e *Engine) Pending() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.calls)
}

// Send is part of engine.Engine
func (e *Engine) Send(req *pdu.Request, target engine.Target, cb engine.Callback) (engine.Ticket, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return 0, errors.ClosedState
	}

	e.ticket++
	e.sent++
	t := e.ticket
	c := &call{cb: cb}
	e.calls[t] = c

	if e.drop != nil && e.drop(req) {
		e.logger.Debug("Send(): dropping ", req, " to ", target)
		return t, nil
	}

	c.timer = time.AfterFunc(e.latency, func() {
		e.deliver(t, req)
	})
	return t, nil
}

// Cancel is part of engine.Engine
func (e *Engine) Cancel(t engine.Ticket) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if c, ok := e.calls[t]; ok {
		delete(e.calls, t)
		if c.timer != nil {
			c.timer.Stop()
		}
	}
}

// Close cancels all pending requests. Send returns errors.ClosedState after that.
func (e *Engine) Close() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return errors.ClosedState
	}
	e.closed = true
	for t, c := range e.calls {
		if c.timer != nil {
			c.timer.Stop()
		}
		delete(e.calls, t)
	}
	return nil
}

func (e *Engine) deliver(t engine.Ticket, req *pdu.Request) {
	e.lock.Lock()
	c, ok := e.calls[t]
	if ok {
		delete(e.calls, t)
	}
	fail := e.fail
	e.lock.Unlock()

	if !ok {
		return
	}

	if fail != nil {
		if err := fail(req); err != nil {
			c.cb(nil, err)
			return
		}
	}
	c.cb(e.h.Handle(req), nil)
}
