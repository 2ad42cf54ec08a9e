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

package agent

import (
	"context"
	"net"

	"github.com/jrivets/log4g"
	rrpc "github.com/logrange/range/pkg/rpc"
	"github.com/logrange/range/pkg/transport"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/pkg/errors"
)

type (
	// Endpoint serves the agent requests received over RPC connections
	Endpoint struct {
		Store  *Store `inject:""`
		logger log4g.Logger
	}

	// Server accepts RPC connections and routes the requests to the Endpoint
	Server struct {
		ConnConfig transport.Config `inject:"agentRpcTransport"`
		Endpoint   *Endpoint        `inject:""`
		rs         rrpc.Server
		ln         net.Listener
		logger     log4g.Logger
	}
)

// RPC endpoints
const (
	// RpcEpRequest is the function id for sending pdu.Request and getting pdu.Response back
	RpcEpRequest = 1
)

// NewEndpoint creates new Endpoint instance
func NewEndpoint() *Endpoint {
	ep := new(Endpoint)
	ep.logger = log4g.GetLogger("agent.endpoint")
	return ep
}

func (ep *Endpoint) request(reqId int32, reqBody []byte, sc *rrpc.ServerConn) {
	var req pdu.Request
	_, err := pdu.UnmarshalRequest(reqBody, &req, true)
	sc.Collect(reqBody)
	if err != nil {
		ep.logger.Error("request(): could not unmarshal the request body, err=", err)
		sc.SendResponse(reqId, err, &pdu.WritableResponse{})
		return
	}

	resp := ep.Store.Handle(&req)
	if resp.ErrorStatus != pdu.NoError {
		ep.logger.Debug("request(): ", &req, " completed with ", resp.ErrorStatus)
	}
	sc.SendResponse(reqId, nil, (*pdu.WritableResponse)(resp))
}

// NewServer creates new Server instance
func NewServer() *Server {
	return new(Server)
}

// Init is part of linker.Initializer interface
func (s *Server) Init(ctx context.Context) error {
	l, err := transport.NewServerListener(s.ConnConfig)
	if err != nil {
		return errors.Wrapf(err, "could not create transport listener for %s", s.ConnConfig)
	}
	s.logger = log4g.GetLogger("agent.server").WithId("{" + s.ConnConfig.ListenAddr + "}").(log4g.Logger)
	s.rs = rrpc.NewServer()
	s.ln = l

	s.rs.Register(RpcEpRequest, s.Endpoint.request)

	go s.listen()
	return nil
}

// Shutdown is part of linker.Shutdowner interface
func (s *Server) Shutdown() {
	s.ln.Close()
	s.rs.Close()
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) listen() {
	s.logger.Info("listen(): start")
	defer s.logger.Info("listen(): stop")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.logger.Warn("listen(): got the error when listen socket err=", err)
			return
		}

		err = s.rs.Serve(conn.RemoteAddr().String(), conn)
		if err != nil {
			s.logger.Warn("listen(): could not create new server connection for ", conn.RemoteAddr(), " err=", err)
			conn.Close()
		}
	}
}
