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
	"sync"
	"time"

	"github.com/logrange/range/pkg/utils/errors"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/pdu"
)

type (
	// timedRequest sends the request via engine and waits for its response
	// no longer than the timeout. When the timeout fires, the request is
	// re-sent while there are retries left, otherwise it is completed with
	// KindTimeout failure. onDone is called exactly once.
	timedRequest struct {
		s       *Session
		req     *pdu.Request
		timeout time.Duration
		onDone  func(resp *pdu.Response, err error)

		lock    sync.Mutex
		retries int
		attempt int
		timer   Timer
		ticket  engine.Ticket
		done    bool
	}

	reqResult struct {
		resp *pdu.Response
		err  error
	}
)

func newTimedRequest(s *Session, req *pdu.Request, onDone func(resp *pdu.Response, err error)) *timedRequest {
	tr := new(timedRequest)
	tr.s = s
	tr.req = req
	tr.timeout = s.cfg.timeout()
	tr.retries = s.cfg.retries()
	tr.onDone = onDone
	return tr
}

// call sends the request and waits for its completion. If ctx is closed
// before, the request is cancelled and KindTimeout failure is returned.
func (tr *timedRequest) call(ctx context.Context) (*pdu.Response, error) {
	ch := make(chan reqResult, 1)
	tr.onDone = func(resp *pdu.Response, err error) {
		ch <- reqResult{resp, err}
	}
	tr.send()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		tr.abort(newError(KindTimeout, ctx.Err(), "request %d is interrupted", tr.req.RequestId))
	}
	r := <-ch
	return r.resp, r.err
}

// send makes the next attempt
func (tr *timedRequest) send() {
	tr.lock.Lock()
	if tr.done {
		tr.lock.Unlock()
		return
	}
	tr.attempt++
	attempt := tr.attempt
	t, err := tr.s.rt.Schedule(tr.timeout, func() {
		tr.onTimeout(attempt)
	})
	if err != nil {
		tr.done = true
		tr.lock.Unlock()
		tr.onDone(nil, err)
		return
	}
	tr.timer = t
	tr.lock.Unlock()

	// the callback could be called before Send returns, so no lock here
	ticket, err := tr.s.eng.Send(tr.req, tr.s.target, func(resp *pdu.Response, err error) {
		tr.onComplete(attempt, resp, err)
	})

	tr.lock.Lock()
	stale := tr.done || tr.attempt != attempt
	if err == nil && !stale {
		tr.ticket = ticket
	}
	tr.lock.Unlock()

	if err == nil {
		if stale {
			tr.s.eng.Cancel(ticket)
		}
		return
	}
	if !stale {
		tr.onComplete(attempt, nil, err)
	}
}

func (tr *timedRequest) onComplete(attempt int, resp *pdu.Response, err error) {
	tr.lock.Lock()
	if tr.done || attempt != tr.attempt {
		tr.lock.Unlock()
		tr.s.logger.Debug("onComplete(): dropping stale completion of request ", tr.req.RequestId, " attempt ", attempt)
		return
	}
	if err == nil && resp != nil && resp.RequestId != tr.req.RequestId {
		tr.lock.Unlock()
		tr.s.logger.Warn("onComplete(): dropping response with requestId=", resp.RequestId, ", expected ", tr.req.RequestId)
		return
	}
	tr.done = true
	timer := tr.timer
	tr.timer = nil
	tr.lock.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		err = newError(KindEngine, err, "request %d failed", tr.req.RequestId)
	}
	tr.onDone(resp, err)
}

func (tr *timedRequest) onTimeout(attempt int) {
	tr.lock.Lock()
	if tr.done || attempt != tr.attempt {
		tr.lock.Unlock()
		return
	}
	ticket := tr.ticket
	tr.timer = nil
	if tr.s.rt.Closed() {
		tr.done = true
		tr.lock.Unlock()

		tr.s.eng.Cancel(ticket)
		tr.s.logger.Debug("onTimeout(): request ", tr.req.RequestId, " is abandoned, the runtime is shut down")
		tr.onDone(nil, errors.ClosedState)
		return
	}
	if tr.retries > 0 {
		tr.retries--
		tr.lock.Unlock()

		tr.s.eng.Cancel(ticket)
		tr.s.logger.Debug("onTimeout(): request ", tr.req.RequestId, " attempt ", attempt, " timed out, re-sending")
		tr.send()
		return
	}
	tr.done = true
	tr.lock.Unlock()

	tr.s.eng.Cancel(ticket)
	tr.onDone(nil, newError(KindTimeout, nil, "no response to request %d from %s after %d attempt(s)",
		tr.req.RequestId, tr.s.target, attempt))
}

// abort completes the request with err, unless it is done already
func (tr *timedRequest) abort(err error) {
	tr.lock.Lock()
	if tr.done {
		tr.lock.Unlock()
		return
	}
	tr.done = true
	timer := tr.timer
	tr.timer = nil
	ticket := tr.ticket
	tr.lock.Unlock()

	if timer != nil {
		timer.Stop()
	}
	tr.s.eng.Cancel(ticket)
	tr.onDone(nil, err)
}
