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
)

type (
	// Completion is an operation submitted to CompletionQueue along with its result
	Completion[T any] struct {
		Op     *Operation[T]
		Result Result[T]
	}

	// CompletionQueue invokes submitted operations asynchronously and collects
	// their results in the order the operations are completed.
	CompletionQueue[T any] struct {
		lock    sync.Mutex
		pending int
		buf     []Completion[T]
		notify  chan struct{}
	}
)

// NewCompletionQueue creates the new empty CompletionQueue
func NewCompletionQueue[T any]() *CompletionQueue[T] {
	q := new(CompletionQueue[T])
	q.notify = make(chan struct{}, 1)
	return q
}

// Submit invokes op asynchronously. Its completion will be available via Poll or Take.
func (q *CompletionQueue[T]) Submit(op *Operation[T]) {
	q.lock.Lock()
	q.pending++
	q.lock.Unlock()

	op.InvokeAsync(func(r Result[T]) {
		q.lock.Lock()
		q.pending--
		q.buf = append(q.buf, Completion[T]{Op: op, Result: r})
		q.lock.Unlock()
		q.signal()
	})
}

// Poll returns the earliest completion, if there is one
func (q *CompletionQueue[T]) Poll() (Completion[T], bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.buf) == 0 {
		return Completion[T]{}, false
	}

	c := q.buf[0]
	q.buf[0] = Completion[T]{}
	q.buf = q.buf[1:]
	if len(q.buf) > 0 {
		// there could be other waiters
		q.signal()
	}
	return c, true
}

// PollTimeout waits for a completion no longer than d
func (q *CompletionQueue[T]) PollTimeout(d time.Duration) (Completion[T], bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	c, err := q.Take(ctx)
	return c, err == nil
}

// Take waits for a completion until ctx is closed. It returns ctx.Err() if
// ctx is closed before any completion is available.
func (q *CompletionQueue[T]) Take(ctx context.Context) (Completion[T], error) {
	for {
		if c, ok := q.Poll(); ok {
			return c, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			// the completion could come along with ctx
			if c, ok := q.Poll(); ok {
				return c, nil
			}
			return Completion[T]{}, ctx.Err()
		}
	}
}

// IsIdle returns true if there are neither pending operations nor completions to be polled
func (q *CompletionQueue[T]) IsIdle() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.pending == 0 && len(q.buf) == 0
}

// Pending returns number of submitted operations, which are not completed yet
func (q *CompletionQueue[T]) Pending() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.pending
}

func (q *CompletionQueue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
