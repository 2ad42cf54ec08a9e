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
	"context"

	"github.com/logrange/snmpwalk/pkg/pdu"
)

type (
	// Operation is a request bound to a session. It could be invoked any
	// number of times, every invocation sends a new request built from the
	// same bindings and waits for its own response.
	Operation[T any] struct {
		s      *Session
		tp     pdu.Type
		nonRep int
		maxRep int
		items  []pdu.VarBind
		build  func(req *pdu.Request, resp *pdu.Response) (T, error)
	}
)

func newOperation[T any](s *Session, tp pdu.Type, items []pdu.VarBind,
	build func(req *pdu.Request, resp *pdu.Response) (T, error)) *Operation[T] {
	return &Operation[T]{s: s, tp: tp, items: items, build: build}
}

// Invoke sends the request and blocks until the result is known or ctx is
// closed. Failures are returned in the Result.
func (op *Operation[T]) Invoke(ctx context.Context) Result[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	req := op.request()
	resp, err := newTimedRequest(op.s, req, nil).call(ctx)
	if err != nil {
		return Failure[T](err)
	}
	return op.complete(req, resp)
}

// InvokeAsync sends the request and returns immediately. cb is called once
// with the result by a callback worker of the session runtime.
func (op *Operation[T]) InvokeAsync(cb func(Result[T])) {
	req := op.request()
	tr := newTimedRequest(op.s, req, func(resp *pdu.Response, err error) {
		f := func() {
			if err != nil {
				cb(Failure[T](err))
				return
			}
			cb(op.complete(req, resp))
		}
		if derr := op.s.rt.Dispatch(f); derr != nil {
			op.s.logger.Warn("InvokeAsync(): could not dispatch the result of request ", req.RequestId, ", err=", derr)
			op.s.rt.run(func() { cb(Failure[T](derr)) })
		}
	})
	tr.send()
}

// Items returns the bindings the operation sends
func (op *Operation[T]) Items() []pdu.VarBind {
	return op.items
}

func (op *Operation[T]) request() *pdu.Request {
	vbs := make([]pdu.VarBind, len(op.items))
	copy(vbs, op.items)
	return &pdu.Request{
		Type:           op.tp,
		RequestId:      op.s.nextRequestId(),
		NonRepeaters:   op.nonRep,
		MaxRepetitions: op.maxRep,
		VarBinds:       vbs,
	}
}

func (op *Operation[T]) complete(req *pdu.Request, resp *pdu.Response) Result[T] {
	if err := validate(req, resp); err != nil {
		return Failure[T](err)
	}
	v, err := op.build(req, resp)
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// validate checks the response against the request
func validate(req *pdu.Request, resp *pdu.Response) error {
	if resp == nil {
		return newError(KindMalformed, nil, "no response for request %d", req.RequestId)
	}
	if resp.ErrorStatus != pdu.NoError {
		return statusError(resp)
	}
	if req.Type != pdu.TypeGetBulk && len(resp.VarBinds) != len(req.VarBinds) {
		return newError(KindMalformed, nil, "response to request %d contains %d binding(s), but %d expected",
			req.RequestId, len(resp.VarBinds), len(req.VarBinds))
	}
	return nil
}

func bindings(req *pdu.Request, resp *pdu.Response) ([]pdu.VarBind, error) {
	return resp.VarBinds, nil
}
