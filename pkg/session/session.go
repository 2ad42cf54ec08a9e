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

// Package session sends requests to an agent with per-attempt timeouts and
// bounded retries, and walks the agent tables row by row. Every request is an
// Operation, which could be invoked blocking or asynchronously, and its
// outcome is a Result. Asynchronous results could be collected in a
// CompletionQueue.
package session

import (
	"sync/atomic"

	"github.com/jrivets/log4g"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/pkg/errors"
)

type (
	// Session sends requests to one target via the engine. It is safe for concurrent use.
	Session struct {
		cfg    Config
		rt     *Runtime
		eng    engine.Engine
		target engine.Target
		logger log4g.Logger
		reqId  int32
	}
)

// New creates the new Session. Defaults are used for the settings which are not set in cfg.
func New(rt *Runtime, eng engine.Engine, target engine.Target, cfg *Config) (*Session, error) {
	c := NewDefaultConfig()
	c.Apply(cfg)
	if err := c.Check(); err != nil {
		return nil, errors.Wrapf(err, "invalid session config")
	}

	s := new(Session)
	s.cfg = *c
	s.rt = rt
	s.eng = eng
	s.target = target
	s.logger = log4g.GetLogger("session").WithId("{" + target.Address + "}").(log4g.Logger)
	s.logger.Debug("New session, config=", c)
	return s, nil
}

// Target returns the session target
func (s *Session) Target() engine.Target {
	return s.target
}

// Get returns the operation, which reads values of oids
func (s *Session) Get(oids ...oid.OID) *Operation[[]pdu.VarBind] {
	return newOperation(s, pdu.TypeGet, pdu.NullsOf(oids), bindings)
}

// GetNext returns the operation, which reads the bindings following oids
func (s *Session) GetNext(oids ...oid.OID) *Operation[[]pdu.VarBind] {
	return newOperation(s, pdu.TypeGetNext, pdu.NullsOf(oids), bindings)
}

// GetBulk returns the operation, which reads the bindings following the first
// nonRepeaters of oids once, and up to maxRepetitions bindings following every
// other address
func (s *Session) GetBulk(nonRepeaters, maxRepetitions int, oids ...oid.OID) *Operation[[]pdu.VarBind] {
	op := newOperation(s, pdu.TypeGetBulk, pdu.NullsOf(oids), bindings)
	op.nonRep = nonRepeaters
	op.maxRep = maxRepetitions
	return op
}

// Set returns the operation, which writes vbs
func (s *Session) Set(vbs ...pdu.VarBind) *Operation[[]pdu.VarBind] {
	return newOperation(s, pdu.TypeSet, append([]pdu.VarBind(nil), vbs...), bindings)
}

// Walk returns the walker over the table columns. Values of nonRepeaters are
// read along with every batch and returned with every row.
func (s *Session) Walk(nonRepeaters []oid.OID, columns []oid.OID) (*AsyncWalker, error) {
	if len(columns) == 0 {
		return nil, errors.Errorf("at least one column must be provided for walking")
	}
	return newAsyncWalker(s, nonRepeaters, columns), nil
}

// SyncWalk is the same as Walk, but returns the blocking walker
func (s *Session) SyncWalk(nonRepeaters []oid.OID, columns []oid.OID) (*SyncWalker, error) {
	w, err := s.Walk(nonRepeaters, columns)
	if err != nil {
		return nil, err
	}
	return &SyncWalker{w: w}, nil
}

func (s *Session) nextRequestId() int32 {
	return atomic.AddInt32(&s.reqId, 1)
}
