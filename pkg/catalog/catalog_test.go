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

package catalog

import (
	"net"
	"testing"

	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	defs, err := parse(`
-- the comment
a ::= { 1 3 }
b ::= { a 6 } SYNTAX integer HINT "comma" ENUM { up = 1, down = 2 }
`)
	if err != nil {
		t.Fatal("must be parsed, but err=", err)
	}
	assert.Equal(t, 2, len(defs))
	assert.Equal(t, []string{"1", "3"}, defs[0].Subs)
	assert.Equal(t, "a", defs[1].Parent)
	assert.Equal(t, "integer", defs[1].Syntax)
	assert.Equal(t, "comma", defs[1].Hint)
	en, err := defs[1].enums()
	assert.Nil(t, err)
	assert.Equal(t, map[int64]string{1: "up", 2: "down"}, en)

	// keywords are whole words only
	defs, err = parse(`HINTS ::= { 1 } SYNTAX ENUMERATED`)
	if err != nil {
		t.Fatal("must be parsed, but err=", err)
	}
	assert.Equal(t, "HINTS", defs[0].Name)
	assert.Equal(t, "ENUMERATED", defs[0].Syntax)

	for _, txt := range []string{"a ::= 1", "a ::= { 1 } SYNTAX", "a { 1 }", "a ::= { 1 } ENUM { }", "a ::= { 1 } $"} {
		if _, err := parse(txt); err == nil {
			t.Fatal("expected an error for ", txt)
		}
	}
}

func TestLoad(t *testing.T) {
	r := NewEmpty()
	// the child goes before its parent
	err := r.Load(`
c ::= { b 5 }
b ::= { a 2 }
a ::= { 1 3 }
`)
	if err != nil {
		t.Fatal("must be loaded, but err=", err)
	}
	o, err := r.Resolve("c")
	assert.Nil(t, err)
	assert.Equal(t, "1.3.2.5", o.String())

	assert.Error(t, r.Load(`d ::= { unknown 1 }`))
	_, err = r.Resolve("d")
	assert.Error(t, err)

	assert.Error(t, r.Load(`d ::= { 1 } SYNTAX blob`))
	assert.Error(t, r.Load(`d ::= { 99999999999 }`))

	assert.Nil(t, r.Load(`d ::= { c 1 }`))
	assert.Equal(t, 4, len(r.Objects()))
	assert.Equal(t, "a", r.Objects()[0].Name)

	assert.Error(t, r.LoadFile("/nonexisting/definitions.txt"))
}

func TestResolve(t *testing.T) {
	r := New()
	o, err := r.Resolve("ifDescr")
	assert.Nil(t, err)
	assert.Equal(t, "1.3.6.1.2.1.2.2.1.2", o.String())

	o, err = r.Resolve("ifDescr.12")
	assert.Nil(t, err)
	assert.Equal(t, "1.3.6.1.2.1.2.2.1.2.12", o.String())

	o, err = r.Resolve(".1.3.6.1")
	assert.Nil(t, err)
	assert.Equal(t, "1.3.6.1", o.String())

	_, err = r.Resolve("ifUnknown")
	assert.Error(t, err)
	_, err = r.Resolve("ifDescr.x")
	assert.Error(t, err)

	oids, err := r.ResolveAll("ifDescr", "ifOperStatus")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(oids))
}

func TestLookup(t *testing.T) {
	r := New()
	obj, sfx, ok := r.Lookup(oid.MustParse("1.3.6.1.2.1.2.2.1.8.3"))
	assert.True(t, ok)
	assert.Equal(t, "ifOperStatus", obj.Name)
	assert.Equal(t, "3", sfx.String())
	assert.Equal(t, "ifOperStatus.3", r.Name(oid.MustParse("1.3.6.1.2.1.2.2.1.8.3")))
	assert.Equal(t, "sysName", r.Name(oid.MustParse("1.3.6.1.2.1.1.5")))

	_, _, ok = r.Lookup(oid.MustParse("2.1"))
	assert.False(t, ok)
	assert.Equal(t, "2.1", r.Name(oid.MustParse("2.1")))
}

func TestFormat(t *testing.T) {
	r := New()
	f := func(s string) oid.OID {
		o, err := r.Resolve(s)
		if err != nil {
			t.Fatal("could not resolve ", s, " err=", err)
		}
		return o
	}
	assert.Equal(t, "up(1)", r.Format(pdu.IntegerOf(f("ifOperStatus.1"), 1)))
	assert.Equal(t, "9", r.Format(pdu.IntegerOf(f("ifOperStatus.1"), 9)))
	assert.Equal(t, "1.5 kB", r.Format(pdu.UnsignedOf(f("ifInOctets.1"), pdu.Counter32, 1500)))
	assert.Equal(t, "1,500", r.Format(pdu.IntegerOf(f("ifMtu.1"), 1500)))
	assert.Equal(t, "1 Gbps", r.Format(pdu.UnsignedOf(f("ifSpeed.1"), pdu.Gauge32, 1000000000)))
	assert.Equal(t, "1m0s", r.Format(pdu.UnsignedOf(f("sysUpTime.0"), pdu.TimeTicks, 6000)))
	assert.Equal(t, "00:1a:2b:3c:4d:5e", r.Format(pdu.VarBind{Oid: f("ifPhysAddress.1"), Type: pdu.OctetString,
		Value: []byte{0, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}}))
	assert.Equal(t, "eth0", r.Format(pdu.StringOf(f("ifDescr.1"), "eth0")))
	assert.Equal(t, "10.0.0.1", r.Format(pdu.IPAddressOf(oid.MustParse("2.1"), net.ParseIP("10.0.0.1"))))
	assert.Equal(t, "endOfMibView", r.Format(pdu.ExceptionOf(f("ifDescr"), pdu.EndOfMibView)))
}
