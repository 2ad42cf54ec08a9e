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

package pdu

import (
	"fmt"
	"net"

	"github.com/logrange/range/pkg/utils/encoding/xbinary"
	"github.com/logrange/snmpwalk/pkg/oid"
)

type (
	// WritableRequest allows to send Request as xbinary.Writable
	WritableRequest Request

	// WritableResponse allows to send Response as xbinary.Writable
	WritableResponse Response
)

func (wr *WritableRequest) WritableSize() int {
	return getRequestSize((*Request)(wr))
}

func (wr *WritableRequest) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return writeRequest((*Request)(wr), ow)
}

func (wr *WritableResponse) WritableSize() int {
	return getResponseSize((*Response)(wr))
}

func (wr *WritableResponse) WriteTo(ow *xbinary.ObjectsWriter) (int, error) {
	return writeResponse((*Response)(wr), ow)
}

// oid.OID

func writeOid(o oid.OID, ow *xbinary.ObjectsWriter) (int, error) {
	nn, err := ow.WriteUint32(uint32(len(o)))
	if err != nil {
		return nn, err
	}
	for _, v := range o {
		n, err := ow.WriteUint32(v)
		nn += n
		if err != nil {
			return nn, err
		}
	}
	return nn, nil
}

func getOidSize(o oid.OID) int {
	return 4 * (len(o) + 1)
}

func unmarshalOid(buf []byte) (int, oid.OID, error) {
	nn, ln, err := xbinary.UnmarshalUint32(buf)
	if err != nil {
		return nn, nil, err
	}
	if int(ln) > (len(buf)-nn)/4 {
		return nn, nil, fmt.Errorf("oid of %d sub-identifiers does not fit the buffer of %d bytes", ln, len(buf)-nn)
	}
	res := make(oid.OID, int(ln))
	for i := range res {
		n, v, err := xbinary.UnmarshalUint32(buf[nn:])
		nn += n
		if err != nil {
			return nn, nil, err
		}
		res[i] = v
	}
	return nn, res, nil
}

// VarBind

func writeVarBind(vb *VarBind, ow *xbinary.ObjectsWriter) (int, error) {
	nn, err := writeOid(vb.Oid, ow)
	if err != nil {
		return nn, err
	}

	n, err := ow.WriteByte(byte(vb.Type))
	nn += n
	if err != nil {
		return nn, err
	}

	switch vb.Type {
	case Integer:
		v, _ := vb.Int()
		n, err = ow.WriteUint64(uint64(v))
	case Counter32, Gauge32, TimeTicks, Counter64:
		v, _ := vb.Uint()
		n, err = ow.WriteUint64(v)
	case OctetString, IPAddress:
		n, err = ow.WriteBytes(vb.Bytes())
	case ObjectIdentifier:
		o, _ := vb.Value.(oid.OID)
		n, err = writeOid(o, ow)
	default:
		n = 0
	}
	nn += n
	return nn, err
}

func getVarBindSize(vb *VarBind) int {
	res := getOidSize(vb.Oid) + 1
	switch vb.Type {
	case Integer, Counter32, Gauge32, TimeTicks, Counter64:
		res += 8
	case OctetString, IPAddress:
		res += xbinary.WritebleBytesSize(vb.Bytes())
	case ObjectIdentifier:
		o, _ := vb.Value.(oid.OID)
		res += getOidSize(o)
	}
	return res
}

func unmarshalVarBind(buf []byte, vb *VarBind, newBuf bool) (int, error) {
	nn, o, err := unmarshalOid(buf)
	if err != nil {
		return nn, err
	}
	vb.Oid = o

	n, t, err := xbinary.UnmarshalByte(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	vb.Type = ValueType(t)
	vb.Value = nil

	switch vb.Type {
	case Integer:
		n, v, err := xbinary.UnmarshalUint64(buf[nn:])
		nn += n
		if err != nil {
			return nn, err
		}
		vb.Value = int64(v)
	case Counter32, Gauge32, TimeTicks, Counter64:
		n, v, err := xbinary.UnmarshalUint64(buf[nn:])
		nn += n
		if err != nil {
			return nn, err
		}
		vb.Value = v
	case OctetString:
		n, bs, err := xbinary.UnmarshalBytes(buf[nn:], newBuf)
		nn += n
		if err != nil {
			return nn, err
		}
		vb.Value = bs
	case IPAddress:
		n, bs, err := xbinary.UnmarshalBytes(buf[nn:], true)
		nn += n
		if err != nil {
			return nn, err
		}
		vb.Value = net.IP(bs)
	case ObjectIdentifier:
		n, v, err := unmarshalOid(buf[nn:])
		nn += n
		if err != nil {
			return nn, err
		}
		vb.Value = v
	case Null, NoSuchObject, NoSuchInstance, EndOfMibView:
	default:
		return nn, fmt.Errorf("unknown value type 0x%X for %s", t, o)
	}
	return nn, nil
}

func writeVarBinds(vbs []VarBind, ow *xbinary.ObjectsWriter) (int, error) {
	nn, err := ow.WriteUint32(uint32(len(vbs)))
	if err != nil {
		return nn, err
	}
	for i := range vbs {
		n, err := writeVarBind(&vbs[i], ow)
		nn += n
		if err != nil {
			return nn, err
		}
	}
	return nn, nil
}

func getVarBindsSize(vbs []VarBind) int {
	res := 4
	for i := range vbs {
		res += getVarBindSize(&vbs[i])
	}
	return res
}

func unmarshalVarBinds(buf []byte, newBuf bool) (int, []VarBind, error) {
	nn, ln, err := xbinary.UnmarshalUint32(buf)
	if err != nil {
		return nn, nil, err
	}
	if ln == 0 {
		return nn, nil, nil
	}
	// every binding takes 5 bytes at least
	if int(ln) > (len(buf)-nn)/5 {
		return nn, nil, fmt.Errorf("%d bindings could not fit the buffer of %d bytes", ln, len(buf)-nn)
	}

	res := make([]VarBind, int(ln))
	for i := range res {
		n, err := unmarshalVarBind(buf[nn:], &res[i], newBuf)
		nn += n
		if err != nil {
			return nn, nil, err
		}
	}
	return nn, res, nil
}

// Request

func writeRequest(r *Request, ow *xbinary.ObjectsWriter) (int, error) {
	nn, err := ow.WriteByte(byte(r.Type))
	if err != nil {
		return nn, err
	}

	for _, v := range []uint32{uint32(r.RequestId), uint32(r.NonRepeaters), uint32(r.MaxRepetitions)} {
		n, err := ow.WriteUint32(v)
		nn += n
		if err != nil {
			return nn, err
		}
	}

	n, err := writeVarBinds(r.VarBinds, ow)
	nn += n
	return nn, err
}

func getRequestSize(r *Request) int {
	return 13 + getVarBindsSize(r.VarBinds)
}

// UnmarshalRequest reads a request from buf. If newBuf is false, values of
// string bindings will refer to buf.
func UnmarshalRequest(buf []byte, r *Request, newBuf bool) (int, error) {
	nn, t, err := xbinary.UnmarshalByte(buf)
	if err != nil {
		return nn, err
	}
	r.Type = Type(t)

	var vals [3]uint32
	for i := range vals {
		n, v, err := xbinary.UnmarshalUint32(buf[nn:])
		nn += n
		if err != nil {
			return nn, err
		}
		vals[i] = v
	}
	r.RequestId = int32(vals[0])
	r.NonRepeaters = int(vals[1])
	r.MaxRepetitions = int(vals[2])

	n, vbs, err := unmarshalVarBinds(buf[nn:], newBuf)
	nn += n
	r.VarBinds = vbs
	return nn, err
}

// Response

func writeResponse(r *Response, ow *xbinary.ObjectsWriter) (int, error) {
	nn, err := ow.WriteUint32(uint32(r.RequestId))
	if err != nil {
		return nn, err
	}

	n, err := ow.WriteByte(byte(r.ErrorStatus))
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = ow.WriteUint32(uint32(r.ErrorIndex))
	nn += n
	if err != nil {
		return nn, err
	}

	n, err = writeVarBinds(r.VarBinds, ow)
	nn += n
	return nn, err
}

func getResponseSize(r *Response) int {
	return 9 + getVarBindsSize(r.VarBinds)
}

// UnmarshalResponse reads a response from buf. If newBuf is false, values of
// string bindings will refer to buf.
func UnmarshalResponse(buf []byte, r *Response, newBuf bool) (int, error) {
	nn, id, err := xbinary.UnmarshalUint32(buf)
	if err != nil {
		return nn, err
	}
	r.RequestId = int32(id)

	n, st, err := xbinary.UnmarshalByte(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	r.ErrorStatus = ErrorStatus(st)

	n, idx, err := xbinary.UnmarshalUint32(buf[nn:])
	nn += n
	if err != nil {
		return nn, err
	}
	r.ErrorIndex = int(idx)

	n, vbs, err := unmarshalVarBinds(buf[nn:], newBuf)
	nn += n
	r.VarBinds = vbs
	return nn, err
}
