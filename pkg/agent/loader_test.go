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
	"strings"
	"testing"

	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	vbs, err := Load(strings.NewReader(`
# interfaces
oid=1.3.6.1.2.1.2.2.1.2.1 type=string value="eth 0"
oid=.1.3.6.1.2.1.2.2.1.5.1 type=gauge32 value=1000000000
oid=1.3.6.1.2.1.4.20.1.1.10.0.0.1 type=ipaddress value=10.0.0.1
oid=1.3.6.1.2.1.1.2.0 type=oid value=1.3.6.1.4.1.8072
oid=1.3.6.1.2.1.1.5.0 value=host
`))
	if err != nil {
		t.Fatal("must be no error, but err=", err)
	}
	assert.Equal(t, 5, len(vbs))
	assert.Equal(t, "eth 0", vbs[0].ValueString())
	assert.Equal(t, pdu.Gauge32, vbs[1].Type)
	assert.Equal(t, "10.0.0.1", vbs[2].ValueString())
	assert.Equal(t, "1.3.6.1.4.1.8072", vbs[3].ValueString())
	assert.Equal(t, pdu.OctetString, vbs[4].Type)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("type=integer value=1"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("oid=1.3.x value=1"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("oid=1.3 type=blob value=1"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("oid=1.3 type=integer value=abc"))
	assert.Error(t, err)

	_, err = LoadFile("/nonexisting/file.dat")
	assert.Error(t, err)
}
