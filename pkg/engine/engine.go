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

// Package engine defines the transport contract the session layer sends its
// requests through. An engine delivers requests to targets and reports every
// accepted request back exactly once, either with a response or an error,
// unless the request was cancelled before.
package engine

import (
	"fmt"
	"io"

	"github.com/logrange/snmpwalk/pkg/pdu"
)

type (
	// Target describes the remote agent a request is addressed to
	Target struct {
		// Address is the agent network address in host:port form
		Address string
		// Community is the access community, it is passed through as is
		Community string
	}

	// Ticket identifies an accepted request within the engine which accepted it
	Ticket uint64

	// Callback is notified when the request is completed. Only one of resp
	// and err is not nil.
	Callback func(resp *pdu.Response, err error)

	// Engine sends requests to remote agents. All methods must be safe for
	// concurrent use, and Callback could be called from any go-routine,
	// including the one which calls Send.
	Engine interface {
		io.Closer

		// Send accepts the request for delivering to the target. The
		// returned error means the request was not accepted and cb will
		// never be called.
		Send(req *pdu.Request, target Target, cb Callback) (Ticket, error)

		// Cancel withdraws the request. The callback of the request will not
		// be called, unless its delivery is already started. Unknown or
		// completed tickets are ignored.
		Cancel(t Ticket)
	}

	// Config describes an engine to be built. Type selects the engine
	// implementation and Params are specific to the implementation.
	Config struct {
		Type   string
		Params map[string]interface{}
	}
)

const (
	// TypeInMem is the engine which serves requests from an in-process agent store
	TypeInMem = "inmem"
	// TypeRemote is the engine which sends requests to remote agents via RPC
	TypeRemote = "remote"
)

func (t Target) String() string {
	return t.Address
}

func (c *Config) String() string {
	return fmt.Sprintf("{Type: %s, Params: %v}", c.Type, c.Params)
}

// Check returns an error if the config could not be used for building an engine
func (c *Config) Check() error {
	switch c.Type {
	case TypeInMem, TypeRemote:
		return nil
	case "":
		return fmt.Errorf("engine Type must be specified")
	}
	return fmt.Errorf("unknown engine type=%v, expected %s or %s", c.Type, TypeInMem, TypeRemote)
}
