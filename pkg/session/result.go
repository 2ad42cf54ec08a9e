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
	"fmt"

	"github.com/pkg/errors"
)

// Result is the outcome of an operation: either a value or the failure,
// which prevented the value from being produced. It is immutable.
type Result[T any] struct {
	v   T
	err error
}

// Success returns the Result holding v
func Success[T any](v T) Result[T] {
	return Result[T]{v: v}
}

// Failure returns the Result holding err. Nil err is replaced by a generic error.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Result[T]{err: err}
}

// Get returns the value, or the failure if the result has no value
func (r Result[T]) Get() (T, error) {
	return r.v, r.err
}

// Err returns the failure, or nil if the result holds a value
func (r Result[T]) Err() error {
	return r.err
}

// OK returns true if the result holds a value
func (r Result[T]) OK() bool {
	return r.err == nil
}

func (r Result[T]) String() string {
	if r.err != nil {
		return fmt.Sprintf("{Failure: %v}", r.err)
	}
	return fmt.Sprintf("{Success: %v}", r.v)
}
