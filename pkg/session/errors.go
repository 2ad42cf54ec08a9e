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

	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/pkg/errors"
)

type (
	// Kind classifies failures reported by operations and walkers
	Kind int

	// Error is the failure reported by operations and walkers. End of table
	// is not a failure and never reported by Error.
	Error struct {
		Kind Kind
		// Status and Index are set for KindStatus only. Index is 1-based
		// index of the binding the remote side complained about.
		Status pdu.ErrorStatus
		Index  int
		// Cause is the underlying error, if any
		Cause error
		Msg   string
	}
)

const (
	// KindEngine is a failure reported by the protocol engine
	KindEngine Kind = iota + 1
	// KindStatus is the non-zero error status in the response
	KindStatus
	// KindTimeout means no response was received after all attempts
	KindTimeout
	// KindTruncated means a batch contained less bindings than requested
	KindTruncated
	// KindMalformed means the response could not be interpreted
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindEngine:
		return "engine"
	case KindStatus:
		return "status"
	case KindTimeout:
		return "timeout"
	case KindTruncated:
		return "truncated"
	case KindMalformed:
		return "malformed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Kind == KindStatus {
		msg = fmt.Sprintf("%s (status=%s, index=%d)", msg, e.Status, e.Index)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: cause, Msg: fmt.Sprintf(format, args...)}
}

func statusError(resp *pdu.Response) *Error {
	return &Error{Kind: KindStatus, Status: resp.ErrorStatus, Index: resp.ErrorIndex,
		Msg: fmt.Sprintf("request %d is rejected", resp.RequestId)}
}

// KindOf returns the kind of err, if it is (or is caused by) *Error
func KindOf(err error) (Kind, bool) {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind, true
	}
	return 0, false
}

// IsTimeout returns true if err is the KindTimeout failure
func IsTimeout(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTimeout
}

// IsTruncated returns true if err is the KindTruncated failure
func IsTruncated(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTruncated
}

// IsMalformed returns true if err is the KindMalformed failure
func IsMalformed(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindMalformed
}

// IsStatus returns true if err reports the error status st
func IsStatus(err error, st pdu.ErrorStatus) bool {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind == KindStatus && e.Status == st
	}
	return false
}
