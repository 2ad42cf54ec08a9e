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

package inmem

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"testing"
	"time"

	"github.com/logrange/range/pkg/utils/errors"
	"github.com/logrange/snmpwalk/pkg/agent"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/stretchr/testify/assert"
)

type result struct {
	resp *pdu.Response
	err  error
}

func sendAndWait(t *testing.T, e *Engine, req *pdu.Request, to time.Duration) (result, bool) {
	ch := make(chan result, 1)
	_, err := e.Send(req, engine.Target{Address: "test"}, func(resp *pdu.Response, err error) {
		ch <- result{resp, err}
	})
	if err != nil {
		t.Fatal("Send must accept the request, but err=", err)
	}
	select {
	case r := <-ch:
		return r, true
	case <-time.After(to):
		return result{}, false
	}
}

func getReq(id int32, oids ...string) *pdu.Request {
	return &pdu.Request{Type: pdu.TypeGet, RequestId: id, VarBinds: pdu.NullsOf(oid.MustParseAll(oids...))}
}

func TestSend(t *testing.T) {
	e := New(agent.NewStore(pdu.IntegerOf(oid.MustParse("1.2.3"), 5)))
	r, ok := sendAndWait(t, e, getReq(3, "1.2.3"), time.Second)
	if !ok || r.err != nil {
		t.Fatal("expected response, but got ", r, ok)
	}
	assert.Equal(t, int32(3), r.resp.RequestId)
	v, _ := r.resp.VarBinds[0].Int()
	assert.Equal(t, int64(5), v)
	assert.Equal(t, 1, e.Sent())
	assert.Equal(t, 0, e.Pending())
}

func TestLatency(t *testing.T) {
	e := New(agent.NewStore())
	e.SetLatency(50 * time.Millisecond)
	start := time.Now()
	_, ok := sendAndWait(t, e, getReq(1, "1.2"), time.Second)
	assert.True(t, ok)
	assert.True(t, time.Now().Sub(start) >= 50*time.Millisecond)
}

func TestDropAndCancel(t *testing.T) {
	e := New(agent.NewStore())
	e.SetDropper(func(req *pdu.Request) bool { return req.RequestId == 1 })

	called := make(chan struct{}, 1)
	tk, err := e.Send(getReq(1, "1.2"), engine.Target{}, func(resp *pdu.Response, err error) {
		called <- struct{}{}
	})
	assert.Nil(t, err)
	assert.Equal(t, 1, e.Pending())

	e.Cancel(tk)
	e.Cancel(tk)
	assert.Equal(t, 0, e.Pending())

	select {
	case <-called:
		t.Fatal("dropped request must not be answered")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := sendAndWait(t, e, getReq(2, "1.2"), time.Second)
	assert.True(t, ok)
}

func TestCancelBeforeDelivery(t *testing.T) {
	e := New(agent.NewStore())
	e.SetLatency(30 * time.Millisecond)
	called := make(chan struct{}, 1)
	tk, _ := e.Send(getReq(1, "1.2"), engine.Target{}, func(resp *pdu.Response, err error) {
		called <- struct{}{}
	})
	e.Cancel(tk)
	select {
	case <-called:
		t.Fatal("cancelled request must not be answered")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestFail(t *testing.T) {
	e := New(agent.NewStore())
	e.SetFailer(func(req *pdu.Request) error { return fmt.Errorf("unreachable") })
	r, ok := sendAndWait(t, e, getReq(1, "1.2"), time.Second)
	assert.True(t, ok)
	assert.Nil(t, r.resp)
	assert.Error(t, r.err)
}

func TestClose(t *testing.T) {
	e := New(agent.NewStore())
	e.SetDropper(func(req *pdu.Request) bool { return true })
	e.Send(getReq(1, "1.2"), engine.Target{}, func(resp *pdu.Response, err error) {})
	assert.Nil(t, e.Close())
	assert.Equal(t, 0, e.Pending())
	assert.Equal(t, errors.ClosedState, e.Close())

	_, err := e.Send(getReq(1, "1.2"), engine.Target{}, func(resp *pdu.Response, err error) {})
	assert.Equal(t, errors.ClosedState, err)
}

func TestNewEngine(t *testing.T) {
	dir, err := ioutil.TempDir("", "inmemTest")
	if err != nil {
		t.Fatal("Could not create new temporary dir ", dir, " err=", err)
	}
	defer os.RemoveAll(dir)

	fn := path.Join(dir, "agent.dat")
	ioutil.WriteFile(fn, []byte("oid=1.2.3 type=integer value=7\noid=1.2.4 value=abc\n"), 0640)

	e, err := NewEngine(map[string]interface{}{"DataFile": fn, "LatencyMs": 1, "MaxResponseBindings": 1})
	if err != nil {
		t.Fatal("NewEngine must succeed, but err=", err)
	}
	assert.Equal(t, time.Millisecond, e.latency)

	r, ok := sendAndWait(t, e, getReq(1, "1.2.3"), time.Second)
	assert.True(t, ok)
	assert.Equal(t, pdu.NoError, r.resp.ErrorStatus)

	r, ok = sendAndWait(t, e, getReq(1, "1.2.3", "1.2.4"), time.Second)
	assert.True(t, ok)
	assert.Equal(t, pdu.TooBig, r.resp.ErrorStatus)

	_, err = NewEngine(map[string]interface{}{"DataFile": path.Join(dir, "absent.dat")})
	assert.Error(t, err)
	_, err = NewEngine(map[string]interface{}{"LatencyMs": "abc"})
	assert.Error(t, err)
}
