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

	"github.com/jrivets/log4g"
	rcontext "github.com/logrange/range/pkg/context"
	"github.com/logrange/range/pkg/utils/errors"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

type (
	// Timer is a scheduled function, which could be stopped before it runs
	Timer interface {
		// Stop prevents the function from running. It returns false if the
		// function has already run or the timer has been stopped.
		Stop() bool
	}

	// Runtime is shared by sessions. It schedules timers and runs async
	// callbacks on a bounded set of go-routines. Dispatch never blocks the
	// caller: the functions are queued and fed to the workers in order.
	//
	// Runtime starts on first use, or by Init, and stops by Shutdown. After
	// Shutdown, Schedule and Dispatch return errors.ClosedState. Timers which
	// are pending when Shutdown is called fire right away.
	Runtime struct {
		cfg    RuntimeConfig
		logger log4g.Logger

		lock      sync.Mutex
		started   bool
		closed    bool
		queue     []func()
		notify    chan struct{}
		closedCh  chan struct{}
		closedCtx context.Context
		feederCh  chan struct{}
		workers   *pool.Pool
		timers    map[*rtTimer]func()
	}

	rtTimer struct {
		r *Runtime
		t *time.Timer
	}
)

// NewRuntime creates the new Runtime. Defaults are used for the settings which are not set in cfg.
func NewRuntime(cfg *RuntimeConfig) *Runtime {
	r := new(Runtime)
	r.cfg = *NewDefaultRuntimeConfig()
	r.cfg.Apply(cfg)
	r.logger = log4g.GetLogger("session.runtime")
	r.notify = make(chan struct{}, 1)
	r.closedCh = make(chan struct{})
	r.closedCtx = rcontext.WrapChannel(r.closedCh)
	r.feederCh = make(chan struct{})
	r.timers = make(map[*rtTimer]func())
	return r
}

// Init is part of linker.Initializer. It starts the runtime.
func (r *Runtime) Init(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.start()
}

// Shutdown is part of linker.Shutdowner. It waits until the queued callbacks are run.
func (r *Runtime) Shutdown() {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return
	}
	r.closed = true
	started := r.started
	close(r.closedCh)
	timers := r.timers
	r.timers = nil
	r.lock.Unlock()

	if len(timers) > 0 {
		r.logger.Info("Shutdown(): firing ", len(timers), " pending timer(s)")
	}
	for tm, f := range timers {
		tm.t.Stop()
		r.run(f)
	}

	if !started {
		return
	}
	r.logger.Info("Shutdown(): waiting for callbacks")
	<-r.feederCh
	r.workers.Wait()
	r.logger.Info("Shutdown(): done")
}

// Context returns the context which is closed when the runtime is shut down
func (r *Runtime) Context() context.Context {
	return r.closedCtx
}

// Schedule runs f after d elapses. f is run by the timer go-routine, so it
// must not block.
func (r *Runtime) Schedule(d time.Duration, f func()) (Timer, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if err := r.start(); err != nil {
		return nil, err
	}
	tm := &rtTimer{r: r}
	r.timers[tm] = f
	tm.t = time.AfterFunc(d, func() {
		if r.forget(tm) {
			r.run(f)
		}
	})
	return tm, nil
}

// forget removes tm from the pending timers. It returns false if tm is not
// pending anymore, so its function must not be run by the caller.
func (r *Runtime) forget(tm *rtTimer) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.timers[tm]; !ok {
		return false
	}
	delete(r.timers, tm)
	return true
}

// Closed returns true if the runtime is shut down
func (r *Runtime) Closed() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.closed
}

func (tm *rtTimer) Stop() bool {
	if !tm.r.forget(tm) {
		return false
	}
	tm.t.Stop()
	return true
}

// Dispatch queues f to be run by a callback worker. Panics in f are logged
// and never propagated.
func (r *Runtime) Dispatch(f func()) error {
	r.lock.Lock()
	if err := r.start(); err != nil {
		r.lock.Unlock()
		return err
	}
	r.queue = append(r.queue, f)
	r.lock.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// start must be called under the lock
func (r *Runtime) start() error {
	if r.closed {
		return errors.ClosedState
	}
	if r.started {
		return nil
	}
	r.logger.Info("start(): ", r.cfg.CallbackWorkers, " callback worker(s)")
	r.workers = pool.New().WithMaxGoroutines(r.cfg.CallbackWorkers)
	r.started = true
	go r.feed()
	return nil
}

// feed moves queued functions to the workers. It exits when the runtime is
// closed and the queue is empty.
func (r *Runtime) feed() {
	defer close(r.feederCh)
	for {
		r.lock.Lock()
		q := r.queue
		r.queue = nil
		closed := r.closed
		r.lock.Unlock()

		for _, f := range q {
			f := f
			r.workers.Go(func() { r.run(f) })
		}
		if len(q) > 0 {
			continue
		}
		if closed {
			return
		}

		select {
		case <-r.notify:
		case <-r.closedCh:
		}
	}
}

func (r *Runtime) run(f func()) {
	var pc panics.Catcher
	pc.Try(f)
	if rc := pc.Recovered(); rc != nil {
		r.logger.Error("run(): callback panicked, recovered=", rc.Value, "\n", string(rc.Stack))
	}
}
