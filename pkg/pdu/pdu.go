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

// Package pdu contains the request and response payloads exchanged with the
// protocol engine, and the variable bindings they carry.
package pdu

import (
	"fmt"
	"net"
	"strings"

	"github.com/logrange/snmpwalk/pkg/oid"
)

type (
	// Type defines the kind of a protocol data unit
	Type byte

	// ValueType defines the type of value a variable binding holds
	ValueType byte

	// ErrorStatus is the logical error reported by the remote party in a response
	ErrorStatus int

	// VarBind is an address and value pair. Requests carry bindings with Null
	// values (except Set), responses carry the values found on the remote side.
	VarBind struct {
		Oid   oid.OID
		Type  ValueType
		Value interface{}
	}

	// Request is the payload sent to the remote party. NonRepeaters and
	// MaxRepetitions make sense for TypeGetBulk only.
	Request struct {
		Type           Type
		RequestId      int32
		NonRepeaters   int
		MaxRepetitions int
		VarBinds       []VarBind
	}

	// Response is the remote party reply. ErrorIndex is 1-based and refers to the
	// request binding which caused ErrorStatus, 0 means no specific binding.
	Response struct {
		RequestId   int32
		ErrorStatus ErrorStatus
		ErrorIndex  int
		VarBinds    []VarBind
	}
)

const (
	TypeGet      Type = 0xA0
	TypeGetNext  Type = 0xA1
	TypeResponse Type = 0xA2
	TypeSet      Type = 0xA3
	TypeGetBulk  Type = 0xA5
)

const (
	Integer          ValueType = 0x02
	OctetString      ValueType = 0x04
	Null             ValueType = 0x05
	ObjectIdentifier ValueType = 0x06
	IPAddress        ValueType = 0x40
	Counter32        ValueType = 0x41
	Gauge32          ValueType = 0x42
	TimeTicks        ValueType = 0x43
	Counter64        ValueType = 0x46
	NoSuchObject     ValueType = 0x80
	NoSuchInstance   ValueType = 0x81
	EndOfMibView     ValueType = 0x82
)

const (
	NoError             ErrorStatus = 0
	TooBig              ErrorStatus = 1
	NoSuchName          ErrorStatus = 2
	BadValue            ErrorStatus = 3
	ReadOnly            ErrorStatus = 4
	GenErr              ErrorStatus = 5
	NoAccess            ErrorStatus = 6
	WrongType           ErrorStatus = 7
	WrongLength         ErrorStatus = 8
	WrongEncoding       ErrorStatus = 9
	WrongValue          ErrorStatus = 10
	NoCreation          ErrorStatus = 11
	InconsistentValue   ErrorStatus = 12
	ResourceUnavailable ErrorStatus = 13
	CommitFailed        ErrorStatus = 14
	UndoFailed          ErrorStatus = 15
	AuthorizationError  ErrorStatus = 16
	NotWritable         ErrorStatus = 17
	InconsistentName    ErrorStatus = 18
)

var statusNames = []string{"noError", "tooBig", "noSuchName", "badValue", "readOnly", "genErr",
	"noAccess", "wrongType", "wrongLength", "wrongEncoding", "wrongValue", "noCreation",
	"inconsistentValue", "resourceUnavailable", "commitFailed", "undoFailed",
	"authorizationError", "notWritable", "inconsistentName"}

func (es ErrorStatus) String() string {
	if es >= 0 && int(es) < len(statusNames) {
		return statusNames[es]
	}
	return fmt.Sprintf("status(%d)", int(es))
}

func (t Type) String() string {
	switch t {
	case TypeGet:
		return "Get"
	case TypeGetNext:
		return "GetNext"
	case TypeResponse:
		return "Response"
	case TypeSet:
		return "Set"
	case TypeGetBulk:
		return "GetBulk"
	}
	return fmt.Sprintf("pdu(0x%X)", byte(t))
}

func (vt ValueType) String() string {
	switch vt {
	case Integer:
		return "integer"
	case OctetString:
		return "string"
	case Null:
		return "null"
	case ObjectIdentifier:
		return "oid"
	case IPAddress:
		return "ipaddress"
	case Counter32:
		return "counter32"
	case Gauge32:
		return "gauge32"
	case TimeTicks:
		return "timeticks"
	case Counter64:
		return "counter64"
	case NoSuchObject:
		return "noSuchObject"
	case NoSuchInstance:
		return "noSuchInstance"
	case EndOfMibView:
		return "endOfMibView"
	}
	return fmt.Sprintf("type(0x%X)", byte(vt))
}

// ParseValueType returns the value type by its name (see ValueType.String())
func ParseValueType(name string) (ValueType, error) {
	switch strings.ToLower(name) {
	case "integer", "int":
		return Integer, nil
	case "string", "octetstring":
		return OctetString, nil
	case "null":
		return Null, nil
	case "oid", "objectidentifier":
		return ObjectIdentifier, nil
	case "ipaddress", "ip":
		return IPAddress, nil
	case "counter32", "counter":
		return Counter32, nil
	case "gauge32", "gauge", "unsigned32":
		return Gauge32, nil
	case "timeticks":
		return TimeTicks, nil
	case "counter64":
		return Counter64, nil
	}
	return 0, fmt.Errorf("unknown value type %q", name)
}

// IsException returns true for the exception types, which the remote side
// returns instead of a value, like EndOfMibView
func (vt ValueType) IsException() bool {
	return vt == NoSuchObject || vt == NoSuchInstance || vt == EndOfMibView
}

func (vt ValueType) isUnsigned() bool {
	return vt == Counter32 || vt == Gauge32 || vt == TimeTicks || vt == Counter64
}

// NullOf returns a binding with Null value, it is used in requests
func NullOf(o oid.OID) VarBind {
	return VarBind{Oid: o, Type: Null}
}

// NullsOf returns Null bindings for every oid in oids
func NullsOf(oids []oid.OID) []VarBind {
	res := make([]VarBind, len(oids))
	for i, o := range oids {
		res[i] = NullOf(o)
	}
	return res
}

// IntegerOf returns an Integer binding
func IntegerOf(o oid.OID, v int64) VarBind {
	return VarBind{Oid: o, Type: Integer, Value: v}
}

// StringOf returns an OctetString binding
func StringOf(o oid.OID, s string) VarBind {
	return VarBind{Oid: o, Type: OctetString, Value: []byte(s)}
}

// UnsignedOf returns a binding for one of the unsigned types (counters, gauge, time ticks)
func UnsignedOf(o oid.OID, vt ValueType, v uint64) VarBind {
	if !vt.isUnsigned() {
		panic(fmt.Sprintf("%s is not unsigned type", vt))
	}
	return VarBind{Oid: o, Type: vt, Value: v}
}

// OIDOf returns an ObjectIdentifier binding
func OIDOf(o oid.OID, v oid.OID) VarBind {
	return VarBind{Oid: o, Type: ObjectIdentifier, Value: v}
}

// IPAddressOf returns an IPAddress binding for IPv4 address ip
func IPAddressOf(o oid.OID, ip net.IP) VarBind {
	return VarBind{Oid: o, Type: IPAddress, Value: ip.To4()}
}

// ExceptionOf returns a binding which reports exception vt for o
func ExceptionOf(o oid.OID, vt ValueType) VarBind {
	return VarBind{Oid: o, Type: vt}
}

// ParseValue makes a binding of type vt from its textual form s
func ParseValue(o oid.OID, vt ValueType, s string) (VarBind, error) {
	var (
		v   interface{}
		err error
	)
	switch vt {
	case Integer:
		var i int64
		_, err = fmt.Sscan(s, &i)
		v = i
	case OctetString:
		v = []byte(s)
	case Null:
	case ObjectIdentifier:
		v, err = oid.Parse(s)
	case IPAddress:
		ip := net.ParseIP(s).To4()
		if ip == nil {
			err = fmt.Errorf("not an IPv4 address %q", s)
		}
		v = ip
	case Counter32, Gauge32, TimeTicks, Counter64:
		var u uint64
		_, err = fmt.Sscan(s, &u)
		v = u
	default:
		err = fmt.Errorf("could not parse value of type %s", vt)
	}
	if err != nil {
		return VarBind{}, fmt.Errorf("wrong value %q for %s %s: %v", s, vt, o, err)
	}
	return VarBind{Oid: o, Type: vt, Value: v}, nil
}

// Int returns the value as a signed integer, if it is numeric
func (vb VarBind) Int() (int64, bool) {
	switch v := vb.Value.(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

// Uint returns the value as an unsigned integer, if it is numeric and not negative
func (vb VarBind) Uint() (uint64, bool) {
	switch v := vb.Value.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	}
	return 0, false
}

// Bytes returns the value of OctetString or IPAddress bindings
func (vb VarBind) Bytes() []byte {
	switch v := vb.Value.(type) {
	case []byte:
		return v
	case net.IP:
		return v
	}
	return nil
}

// ValueString returns the raw textual form of the value, without any display rules
func (vb VarBind) ValueString() string {
	switch vb.Type {
	case OctetString:
		return string(vb.Bytes())
	case IPAddress:
		return net.IP(vb.Bytes()).String()
	case Null:
		return ""
	case ObjectIdentifier:
		if o, ok := vb.Value.(oid.OID); ok {
			return o.String()
		}
	case NoSuchObject, NoSuchInstance, EndOfMibView:
		return vb.Type.String()
	}
	return fmt.Sprint(vb.Value)
}

func (vb VarBind) String() string {
	return fmt.Sprintf("%s = %s: %s", vb.Oid, vb.Type, vb.ValueString())
}

// Oids returns addresses of bindings vbs
func Oids(vbs []VarBind) []oid.OID {
	res := make([]oid.OID, len(vbs))
	for i, vb := range vbs {
		res[i] = vb.Oid
	}
	return res
}

func (r *Request) String() string {
	return fmt.Sprintf("{Type: %s, RequestId: %d, NonRepeaters: %d, MaxRepetitions: %d, VarBinds: %d}",
		r.Type, r.RequestId, r.NonRepeaters, r.MaxRepetitions, len(r.VarBinds))
}

func (r *Response) String() string {
	return fmt.Sprintf("{RequestId: %d, ErrorStatus: %s, ErrorIndex: %d, VarBinds: %d}",
		r.RequestId, r.ErrorStatus, r.ErrorIndex, len(r.VarBinds))
}
