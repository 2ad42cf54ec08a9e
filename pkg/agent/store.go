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

// Package agent contains the remote side of the protocol: an ordered store of
// variable bindings, which answers Get, GetNext, GetBulk and Set requests,
// and the RPC endpoint which exposes the store to remote engines.
package agent

import (
	"sort"
	"sync"

	"github.com/jrivets/log4g"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
)

type (
	// Store keeps bindings sorted by their addresses. It is safe for concurrent use.
	Store struct {
		logger log4g.Logger

		lock sync.RWMutex
		vbs  []pdu.VarBind
		// maxBindings caps number of bindings in a response, 0 means no limit.
		// GetBulk responses are cut to the limit, other requests get TooBig.
		maxBindings int
	}
)

// NewStore creates the new Store filled by vbs
func NewStore(vbs ...pdu.VarBind) *Store {
	s := new(Store)
	s.logger = log4g.GetLogger("agent.store")
	s.Put(vbs...)
	return s
}

// Put inserts the bindings into the store, or replaces the ones with same addresses
func (s *Store) Put(vbs ...pdu.VarBind) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, vb := range vbs {
		idx, ok := s.find(vb.Oid)
		if ok {
			s.vbs[idx] = vb
			continue
		}
		s.vbs = append(s.vbs, pdu.VarBind{})
		copy(s.vbs[idx+1:], s.vbs[idx:])
		s.vbs[idx] = vb
	}
}

// Len returns number of bindings in the store
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.vbs)
}

// SetMaxResponseBindings sets maximum number of bindings in one response.
// Zero or negative value removes the limit.
func (s *Store) SetMaxResponseBindings(n int) {
	s.lock.Lock()
	s.maxBindings = n
	s.lock.Unlock()
}

// Handle processes the request and returns the response for it. It is the
// store part of the inmem.Handler interface.
func (s *Store) Handle(req *pdu.Request) *pdu.Response {
	resp := &pdu.Response{RequestId: req.RequestId}
	switch req.Type {
	case pdu.TypeGet:
		s.get(req, resp)
	case pdu.TypeGetNext:
		s.getNext(req, resp)
	case pdu.TypeGetBulk:
		s.getBulk(req, resp)
	case pdu.TypeSet:
		s.set(req, resp)
	default:
		s.logger.Warn("Handle(): unsupported request type ", req.Type)
		resp.ErrorStatus = pdu.GenErr
	}
	return resp
}

func (s *Store) get(req *pdu.Request, resp *pdu.Response) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.tooBig(len(req.VarBinds), resp) {
		return
	}

	resp.VarBinds = make([]pdu.VarBind, len(req.VarBinds))
	for i, vb := range req.VarBinds {
		if idx, ok := s.find(vb.Oid); ok {
			resp.VarBinds[i] = s.vbs[idx]
			continue
		}
		resp.VarBinds[i] = pdu.ExceptionOf(vb.Oid, s.missingKind(vb.Oid))
	}
}

func (s *Store) getNext(req *pdu.Request, resp *pdu.Response) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.tooBig(len(req.VarBinds), resp) {
		return
	}

	resp.VarBinds = make([]pdu.VarBind, len(req.VarBinds))
	for i, vb := range req.VarBinds {
		resp.VarBinds[i] = s.next(vb.Oid)
	}
}

func (s *Store) getBulk(req *pdu.Request, resp *pdu.Response) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	n := req.NonRepeaters
	if n < 0 {
		n = 0
	}
	if n > len(req.VarBinds) {
		n = len(req.VarBinds)
	}
	m := req.MaxRepetitions
	if m < 0 {
		m = 0
	}
	r := len(req.VarBinds) - n

	res := make([]pdu.VarBind, 0, n+r*m)
	for i := 0; i < n; i++ {
		res = append(res, s.next(req.VarBinds[i].Oid))
	}

	cur := pdu.Oids(req.VarBinds[n:])
	for rep := 0; rep < m && r > 0; rep++ {
		ends := 0
		for j := 0; j < r; j++ {
			vb := s.next(cur[j])
			if vb.Type == pdu.EndOfMibView {
				ends++
			}
			cur[j] = vb.Oid
			res = append(res, vb)
		}
		if ends == r {
			break
		}
	}

	if s.maxBindings > 0 && len(res) > s.maxBindings {
		s.logger.Debug("getBulk(): cutting response from ", len(res), " to ", s.maxBindings, " bindings")
		res = res[:s.maxBindings]
	}
	resp.VarBinds = res
}

func (s *Store) set(req *pdu.Request, resp *pdu.Response) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.tooBig(len(req.VarBinds), resp) {
		return
	}

	idxs := make([]int, len(req.VarBinds))
	for i, vb := range req.VarBinds {
		idx, ok := s.find(vb.Oid)
		if !ok {
			resp.ErrorStatus = pdu.NoCreation
			resp.ErrorIndex = i + 1
			resp.VarBinds = req.VarBinds
			return
		}
		if s.vbs[idx].Type != vb.Type {
			resp.ErrorStatus = pdu.WrongType
			resp.ErrorIndex = i + 1
			resp.VarBinds = req.VarBinds
			return
		}
		idxs[i] = idx
	}

	for i, idx := range idxs {
		s.vbs[idx] = req.VarBinds[i]
	}
	resp.VarBinds = req.VarBinds
}

func (s *Store) tooBig(n int, resp *pdu.Response) bool {
	if s.maxBindings > 0 && n > s.maxBindings {
		resp.ErrorStatus = pdu.TooBig
		return true
	}
	return false
}

// next returns the first binding which goes after o, or EndOfMibView for o
func (s *Store) next(o oid.OID) pdu.VarBind {
	idx := sort.Search(len(s.vbs), func(i int) bool {
		return o.Less(s.vbs[i].Oid)
	})
	if idx == len(s.vbs) {
		return pdu.ExceptionOf(o, pdu.EndOfMibView)
	}
	return s.vbs[idx]
}

// missingKind returns NoSuchInstance if there are entries under the parent of o
func (s *Store) missingKind(o oid.OID) pdu.ValueType {
	if len(o) > 1 {
		vb := s.next(o[:len(o)-1])
		if vb.Type != pdu.EndOfMibView && vb.Oid.Under(o[:len(o)-1]) {
			return pdu.NoSuchInstance
		}
	}
	return pdu.NoSuchObject
}

// find returns index of o in the store, or the index where it could be inserted
func (s *Store) find(o oid.OID) (int, bool) {
	idx := sort.Search(len(s.vbs), func(i int) bool {
		return s.vbs[i].Oid.Compare(o) >= 0
	})
	return idx, idx < len(s.vbs) && s.vbs[idx].Oid.Equal(o)
}
