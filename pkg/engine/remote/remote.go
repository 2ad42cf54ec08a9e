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

// Package remote provides the engine which sends requests to agents over RPC
// connections. One connection per agent address is kept and re-established
// after a failure.
package remote

import (
	"context"
	"net"
	"sync"

	"github.com/jrivets/log4g"
	rrpc "github.com/logrange/range/pkg/rpc"
	"github.com/logrange/range/pkg/transport"
	"github.com/logrange/range/pkg/utils/errors"
	"github.com/logrange/snmpwalk/pkg/agent"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/mitchellh/mapstructure"
	perrors "github.com/pkg/errors"
)

type (
	// Config contains the engine parameters. The transport settings apply to
	// every connection, ListenAddr is replaced by the target address.
	Config struct {
		transport.Config `mapstructure:",squash"`
		// ConnectAttempts is how many times a connection is tried before the request fails
		ConnectAttempts int
	}

	// Engine implements engine.Engine
	Engine struct {
		cfg    Config
		logger log4g.Logger

		lock   sync.Mutex
		conns  map[string]rrpc.Client
		calls  map[engine.Ticket]context.CancelFunc
		ticket engine.Ticket
		closed bool
		wg     sync.WaitGroup
	}
)

const defaultConnectAttempts = 3

// New creates the new Engine
func New(cfg Config) *Engine {
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = defaultConnectAttempts
	}
	e := new(Engine)
	e.cfg = cfg
	e.logger = log4g.GetLogger("engine.remote")
	e.conns = make(map[string]rrpc.Client)
	e.calls = make(map[engine.Ticket]context.CancelFunc)
	return e
}

// NewEngine creates the Engine with the config decoded from params
func NewEngine(params map[string]interface{}) (*Engine, error) {
	var cfg Config
	if err := mapstructure.Decode(params, &cfg); err != nil {
		return nil, perrors.Wrapf(err, "unable to decode Params=%v", params)
	}
	return New(cfg), nil
}

// Send is part of engine.Engine. The request is sent from a separate
// go-routine, connection errors are reported via cb.
func (e *Engine) Send(req *pdu.Request, target engine.Target, cb engine.Callback) (engine.Ticket, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return 0, errors.ClosedState
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.ticket++
	t := e.ticket
	e.calls[t] = cancel
	e.wg.Add(1)
	go e.call(ctx, t, req, target, cb)
	return t, nil
}

// Cancel is part of engine.Engine
func (e *Engine) Cancel(t engine.Ticket) {
	e.lock.Lock()
	cancel, ok := e.calls[t]
	delete(e.calls, t)
	e.lock.Unlock()

	if ok {
		cancel()
	}
}

// Close cancels all pending requests and closes the connections
func (e *Engine) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return errors.ClosedState
	}
	e.closed = true
	for t, cancel := range e.calls {
		cancel()
		delete(e.calls, t)
	}
	conns := e.conns
	e.conns = nil
	e.lock.Unlock()

	e.wg.Wait()
	for addr, rc := range conns {
		if err := rc.Close(); err != nil {
			e.logger.Warn("Close(): could not close connection to ", addr, " err=", err)
		}
	}
	return nil
}

func (e *Engine) call(ctx context.Context, t engine.Ticket, req *pdu.Request, target engine.Target, cb engine.Callback) {
	defer e.wg.Done()

	rc, err := e.getClient(target.Address)
	if err != nil {
		if e.complete(t) {
			cb(nil, perrors.Wrapf(err, "could not connect to %s", target))
		}
		return
	}

	buf, opErr, err := rc.Call(ctx, agent.RpcEpRequest, (*pdu.WritableRequest)(req))
	if !e.complete(t) {
		if err == nil {
			rc.Collect(buf)
		}
		return
	}

	if err != nil {
		e.logger.Warn("call(): request to ", target, " failed, dropping the connection err=", err)
		e.dropClient(target.Address, rc)
		cb(nil, perrors.Wrapf(err, "request to %s failed", target))
		return
	}

	if opErr != nil {
		rc.Collect(buf)
		cb(nil, opErr)
		return
	}

	var resp pdu.Response
	_, err = pdu.UnmarshalResponse(buf, &resp, true)
	rc.Collect(buf)
	if err != nil {
		cb(nil, perrors.Wrapf(err, "malformed response from %s", target))
		return
	}
	cb(&resp, nil)
}

// complete removes the ticket and returns whether it was still active
func (e *Engine) complete(t engine.Ticket) bool {
	e.lock.Lock()
	cancel, ok := e.calls[t]
	delete(e.calls, t)
	e.lock.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (e *Engine) getClient(addr string) (rrpc.Client, error) {
	e.lock.Lock()
	rc, ok := e.conns[addr]
	closed := e.closed
	e.lock.Unlock()
	if closed {
		return nil, errors.ClosedState
	}
	if ok {
		return rc, nil
	}

	tcfg := e.cfg.Config
	tcfg.ListenAddr = addr
	if err := tcfg.Check(); err != nil {
		return nil, perrors.Wrapf(err, "invalid transport config")
	}

	var (
		conn net.Conn
		err  error
	)
	for i := 0; i < e.cfg.ConnectAttempts; i++ {
		conn, err = transport.NewClientConn(tcfg)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		conn.Close()
		return nil, errors.ClosedState
	}
	if rc, ok := e.conns[addr]; ok {
		// somebody has connected in the meantime
		conn.Close()
		return rc, nil
	}

	e.logger.Info("getClient(): connected to ", addr)
	rc = rrpc.NewClient(conn)
	e.conns[addr] = rc
	return rc, nil
}

func (e *Engine) dropClient(addr string, rc rrpc.Client) {
	e.lock.Lock()
	if e.conns[addr] == rc {
		delete(e.conns, addr)
	}
	e.lock.Unlock()
	rc.Close()
}
