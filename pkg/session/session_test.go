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
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/logrange/range/pkg/utils/errors"
	"github.com/logrange/snmpwalk/pkg/agent"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/engine/inmem"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/stretchr/testify/assert"
)

const (
	scalarOid = "1.3.6.1.2.1.1.3.0"
	tableOid  = "1.3.6.1.2.1.2.2.1"
)

func testConfig(retries, timeoutMs, maxRep int, allowTruncated bool) *Config {
	return &Config{Retries: &retries, TimeoutMs: timeoutMs, MaxRepetitions: maxRep, AllowTruncated: &allowTruncated}
}

// columnOid returns the base address of the column col, starting from 0
func columnOid(col int) oid.OID {
	return oid.MustParse(tableOid).Append(uint32(col + 2))
}

// newTableStore returns the store with the table of rows x cols, the scalar
// and some bindings before and after the table. Cell values are row*100+col.
func newTableStore(rows, cols int) *agent.Store {
	st := agent.NewStore(
		pdu.StringOf(oid.MustParse("1.3.6.1.2.1.1.1.0"), "test agent"),
		pdu.UnsignedOf(oid.MustParse(scalarOid), pdu.TimeTicks, 4242),
		pdu.IntegerOf(oid.MustParse("1.3.6.1.2.1.2.1.0"), int64(rows)),
		pdu.IntegerOf(oid.MustParse("1.3.6.1.2.1.4.1.0"), 1),
	)
	for r := 1; r <= rows; r++ {
		for c := 0; c < cols; c++ {
			st.Put(pdu.IntegerOf(columnOid(c).Append(uint32(r)), int64(r*100+c)))
		}
	}
	return st
}

func columns(cols int) []oid.OID {
	res := make([]oid.OID, cols)
	for c := 0; c < cols; c++ {
		res[c] = columnOid(c)
	}
	return res
}

type testEnv struct {
	rt  *Runtime
	eng *inmem.Engine
	s   *Session
}

func newTestEnv(t *testing.T, h inmem.Handler, cfg *Config) *testEnv {
	te := new(testEnv)
	te.rt = NewRuntime(&RuntimeConfig{CallbackWorkers: 2})
	te.eng = inmem.New(h)
	s, err := New(te.rt, te.eng, engine.Target{Address: "test"}, cfg)
	if err != nil {
		t.Fatal("could not create session, err=", err)
	}
	te.s = s
	return te
}

func (te *testEnv) close() {
	te.eng.Close()
	te.rt.Shutdown()
}

func TestNewSession(t *testing.T) {
	rt := NewRuntime(nil)
	defer rt.Shutdown()

	_, err := New(rt, inmem.New(agent.NewStore()), engine.Target{}, &Config{TimeoutMs: -1})
	assert.Nil(t, err)

	_, err = New(rt, inmem.New(agent.NewStore()), engine.Target{}, testConfig(-1, 100, 10, false))
	assert.Error(t, err)

	s, err := New(rt, inmem.New(agent.NewStore()), engine.Target{Address: "a:1"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, "a:1", s.Target().Address)
	assert.Equal(t, 1, s.cfg.retries())
}

func TestGet(t *testing.T) {
	te := newTestEnv(t, newTableStore(2, 2), testConfig(0, 1000, 10, false))
	defer te.close()

	res := te.s.Get(oid.MustParse(scalarOid), columnOid(1).Append(2)).Invoke(context.Background())
	vbs, err := res.Get()
	if err != nil {
		t.Fatal("expected no error, but err=", err)
	}
	assert.True(t, res.OK())
	assert.Equal(t, 2, len(vbs))
	v, _ := vbs[0].Uint()
	assert.Equal(t, uint64(4242), v)
	i, _ := vbs[1].Int()
	assert.Equal(t, int64(201), i)
}

func TestGetNextAndBulk(t *testing.T) {
	te := newTestEnv(t, newTableStore(3, 2), testConfig(0, 1000, 10, false))
	defer te.close()

	vbs, err := te.s.GetNext(columnOid(0)).Invoke(nil).Get()
	assert.Nil(t, err)
	assert.Equal(t, columnOid(0).Append(1), vbs[0].Oid)

	vbs, err = te.s.GetBulk(1, 2, oid.MustParse("1.3.6.1.2.1.1.3"), columnOid(0), columnOid(1)).Invoke(nil).Get()
	assert.Nil(t, err)
	assert.Equal(t, 5, len(vbs))
	assert.Equal(t, columnOid(1).Append(2), vbs[4].Oid)
}

func TestSet(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(0, 1000, 10, false))
	defer te.close()

	o := columnOid(0).Append(1)
	res := te.s.Set(pdu.IntegerOf(o, 7)).Invoke(nil)
	assert.True(t, res.OK())

	vbs, _ := te.s.Get(o).Invoke(nil).Get()
	v, _ := vbs[0].Int()
	assert.Equal(t, int64(7), v)

	res = te.s.Set(pdu.IntegerOf(o, 1), pdu.IntegerOf(o.Append(5), 1)).Invoke(nil)
	assert.False(t, res.OK())
	assert.True(t, IsStatus(res.Err(), pdu.NoCreation))
	e := res.Err().(*Error)
	assert.Equal(t, 2, e.Index)
}

func TestMalformedResponse(t *testing.T) {
	h := inmem.HandlerFunc(func(req *pdu.Request) *pdu.Response {
		return &pdu.Response{RequestId: req.RequestId}
	})
	te := newTestEnv(t, h, testConfig(0, 1000, 10, false))
	defer te.close()

	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(nil)
	assert.True(t, IsMalformed(res.Err()))
}

func TestEngineError(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(3, 1000, 10, false))
	defer te.close()
	te.eng.SetFailer(func(req *pdu.Request) error { return fmt.Errorf("unreachable") })

	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(nil)
	k, ok := KindOf(res.Err())
	assert.True(t, ok)
	assert.Equal(t, KindEngine, k)
	// engine errors are not retried
	assert.Equal(t, 1, te.eng.Sent())
}

func TestRetriesExhausted(t *testing.T) {
	for retries := 0; retries <= 3; retries++ {
		te := newTestEnv(t, newTableStore(1, 1), testConfig(retries, 50, 10, false))
		var ids sync.Map
		te.eng.SetDropper(func(req *pdu.Request) bool {
			ids.Store(req.RequestId, true)
			return true
		})

		start := time.Now()
		res := te.s.Get(oid.MustParse(scalarOid)).Invoke(context.Background())
		elapsed := time.Now().Sub(start)
		if !IsTimeout(res.Err()) {
			t.Fatal("expected timeout, but got ", res)
		}
		assert.Equal(t, retries+1, te.eng.Sent())
		assert.True(t, elapsed >= time.Duration(retries+1)*50*time.Millisecond, "elapsed=%v", elapsed)
		assert.Equal(t, 0, te.eng.Pending())

		cnt := 0
		ids.Range(func(k, v interface{}) bool {
			cnt++
			return true
		})
		// all attempts carry the same request id
		assert.Equal(t, 1, cnt)
		te.close()
	}
}

func TestTimeoutScenario(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(2, 100, 10, false))
	defer te.close()
	te.eng.SetDropper(func(req *pdu.Request) bool { return true })

	start := time.Now()
	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(context.Background())
	assert.True(t, IsTimeout(res.Err()))
	assert.True(t, time.Now().Sub(start) >= 300*time.Millisecond)
}

func TestRetrySucceeds(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(2, 50, 10, false))
	defer te.close()
	var cnt int32
	te.eng.SetDropper(func(req *pdu.Request) bool {
		return atomic.AddInt32(&cnt, 1) == 1
	})

	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(context.Background())
	assert.True(t, res.OK())
	assert.Equal(t, 2, te.eng.Sent())
}

func TestResponseBeatsTimer(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(2, 60, 10, false))
	defer te.close()
	te.eng.SetLatency(10 * time.Millisecond)

	var calls int32
	done := make(chan Result[[]pdu.VarBind], 3)
	te.s.Get(oid.MustParse(scalarOid)).InvokeAsync(func(r Result[[]pdu.VarBind]) {
		atomic.AddInt32(&calls, 1)
		done <- r
	})

	select {
	case r := <-done:
		assert.True(t, r.OK())
	case <-time.After(time.Second):
		t.Fatal("no result in 1 second")
	}

	// let the stale timers fire, if any
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, te.eng.Sent())
}

func TestAsyncTimeout(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(1, 50, 10, false))
	defer te.close()
	te.eng.SetDropper(func(req *pdu.Request) bool { return true })

	var calls int32
	done := make(chan Result[[]pdu.VarBind], 2)
	start := time.Now()
	te.s.Get(oid.MustParse(scalarOid)).InvokeAsync(func(r Result[[]pdu.VarBind]) {
		atomic.AddInt32(&calls, 1)
		done <- r
	})

	r := <-done
	assert.True(t, IsTimeout(r.Err()))
	assert.True(t, time.Now().Sub(start) >= 100*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, te.eng.Sent())
}

func TestMismatchedRequestId(t *testing.T) {
	st := newTableStore(1, 1)
	h := inmem.HandlerFunc(func(req *pdu.Request) *pdu.Response {
		resp := st.Handle(req)
		resp.RequestId++
		return resp
	})
	te := newTestEnv(t, h, testConfig(1, 50, 10, false))
	defer te.close()

	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(nil)
	assert.True(t, IsTimeout(res.Err()))
	assert.Equal(t, 2, te.eng.Sent())
}

func TestInvokeInterrupted(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(5, 1000, 10, false))
	defer te.close()
	te.eng.SetDropper(func(req *pdu.Request) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(ctx)
	assert.True(t, IsTimeout(res.Err()))
	assert.True(t, time.Now().Sub(start) < 900*time.Millisecond)
	assert.Equal(t, 0, te.eng.Pending())
}

func TestCallbackPanic(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(0, 1000, 10, false))
	defer te.close()

	op := te.s.Get(oid.MustParse(scalarOid))
	op.InvokeAsync(func(r Result[[]pdu.VarBind]) {
		panic("misbehaving callback")
	})

	done := make(chan bool, 1)
	op.InvokeAsync(func(r Result[[]pdu.VarBind]) {
		done <- r.OK()
	})
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("the runtime must survive the callback panic")
	}
}

func TestClosedRuntime(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(0, 1000, 10, false))
	te.close()

	res := te.s.Get(oid.MustParse(scalarOid)).Invoke(nil)
	assert.False(t, res.OK())

	done := make(chan error, 1)
	te.s.Get(oid.MustParse(scalarOid)).InvokeAsync(func(r Result[[]pdu.VarBind]) {
		done <- r.Err()
	})
	assert.Error(t, <-done)
}

func TestShutdownCompletesInFlight(t *testing.T) {
	te := newTestEnv(t, newTableStore(1, 1), testConfig(2, 5000, 10, false))
	defer te.eng.Close()
	te.eng.SetLatency(time.Hour)

	syncRes := make(chan Result[[]pdu.VarBind], 1)
	go func() {
		syncRes <- te.s.Get(oid.MustParse(scalarOid)).Invoke(context.Background())
	}()

	asyncRes := make(chan Result[[]pdu.VarBind], 1)
	te.s.Get(oid.MustParse(scalarOid)).InvokeAsync(func(r Result[[]pdu.VarBind]) {
		asyncRes <- r
	})

	q := NewCompletionQueue[[]pdu.VarBind]()
	q.Submit(te.s.Get(oid.MustParse(scalarOid)))

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	te.rt.Shutdown()

	for _, ch := range []chan Result[[]pdu.VarBind]{syncRes, asyncRes} {
		select {
		case r := <-ch:
			assert.Equal(t, errors.ClosedState, r.Err())
		case <-time.After(2 * time.Second):
			t.Fatal("the request must be completed when the runtime is shut down")
		}
	}
	c, ok := q.PollTimeout(2 * time.Second)
	if !ok {
		t.Fatal("the queue must get the completion when the runtime is shut down")
	}
	assert.Equal(t, errors.ClosedState, c.Result.Err())
	assert.True(t, q.IsIdle())
	assert.True(t, time.Since(start) < 4*time.Second, "elapsed=%v", time.Since(start))
}
