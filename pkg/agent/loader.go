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
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/kr/logfmt"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/pkg/errors"
)

type (
	// dataLine is one parsed line of the data file, like
	//
	// 	oid=1.3.6.1.2.1.2.2.1.2.1 type=string value="eth0"
	dataLine map[string]string
)

const maxDataLineSize = 64 * 1024

func (dl dataLine) HandleLogfmt(key, val []byte) error {
	dl[string(key)] = string(val)
	return nil
}

// LoadFile reads bindings from the data file fn. See Load for the format.
func LoadFile(fn string) ([]pdu.VarBind, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open data file %s", fn)
	}
	defer f.Close()

	vbs, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load data file %s", fn)
	}
	return vbs, nil
}

// Load reads bindings from r. Every non-empty line, which doesn't start from
// '#', describes one binding in logfmt form with the keys oid, type and value.
// The type key is optional and "string" is used when it is omitted.
func Load(r io.Reader) ([]pdu.VarBind, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxDataLineSize)

	var res []pdu.VarBind
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		vb, err := parseDataLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", ln)
		}
		res = append(res, vb)
	}
	return res, sc.Err()
}

func parseDataLine(line string) (pdu.VarBind, error) {
	dl := make(dataLine)
	if err := logfmt.Unmarshal([]byte(line), dl); err != nil {
		return pdu.VarBind{}, err
	}

	addr, ok := dl["oid"]
	if !ok {
		return pdu.VarBind{}, errors.Errorf("no oid key in %q", line)
	}
	o, err := oid.Parse(addr)
	if err != nil {
		return pdu.VarBind{}, err
	}

	tn, ok := dl["type"]
	if !ok {
		tn = "string"
	}
	vt, err := pdu.ParseValueType(tn)
	if err != nil {
		return pdu.VarBind{}, err
	}
	return pdu.ParseValue(o, vt, dl["value"])
}
