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
	"testing"

	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	o := oid.MustParse("1.3.6.1.2.1.1.3.0")
	vb, err := ParseValue(o, TimeTicks, "12345")
	assert.NoError(t, err)
	u, ok := vb.Uint()
	assert.True(t, ok)
	assert.Equal(t, uint64(12345), u)

	vb, err = ParseValue(o, Integer, "-3")
	assert.NoError(t, err)
	i, ok := vb.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(-3), i)
	_, ok = vb.Uint()
	assert.False(t, ok)

	vb, err = ParseValue(o, IPAddress, "192.168.1.1")
	assert.NoError(t, err)
	assert.Equal(t, "192.168.1.1", vb.ValueString())

	vb, err = ParseValue(o, ObjectIdentifier, "1.3.6.1.4")
	assert.NoError(t, err)
	assert.Equal(t, "1.3.6.1.4", vb.ValueString())

	_, err = ParseValue(o, Integer, "abc")
	assert.Error(t, err)
	_, err = ParseValue(o, IPAddress, "::1")
	assert.Error(t, err)
	_, err = ParseValue(o, EndOfMibView, "")
	assert.Error(t, err)
}

func TestParseValueType(t *testing.T) {
	for _, vt := range []ValueType{Integer, OctetString, Null, ObjectIdentifier, IPAddress, Counter32,
		Gauge32, TimeTicks, Counter64} {
		pvt, err := ParseValueType(vt.String())
		assert.NoError(t, err)
		assert.Equal(t, vt, pvt)
	}
	_, err := ParseValueType("float")
	assert.Error(t, err)
	assert.True(t, EndOfMibView.IsException())
	assert.False(t, Integer.IsException())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "noSuchName", NoSuchName.String())
	assert.Equal(t, "status(99)", ErrorStatus(99).String())
	assert.Equal(t, "GetBulk", TypeGetBulk.String())
	vb := StringOf(oid.MustParse("1.3.6.1"), "abc")
	assert.Equal(t, "1.3.6.1 = string: abc", vb.String())
	assert.Equal(t, "endOfMibView", ExceptionOf(oid.MustParse("1.3"), EndOfMibView).ValueString())
}
