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

// Package oid contains the object identifier type, which is the address of
// an entry in the remote data set. Identifiers are ordered lexicographically
// by their sub-identifiers, that is the order the remote side walks them.
package oid

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// OID is an object identifier, like 1.3.6.1.2.1.2.2.1.2.1
type OID []uint32

// Parse parses the dotted form of an object identifier. A leading dot is
// allowed, so ".1.3.6" and "1.3.6" are the same identifier.
func Parse(s string) (OID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, ".")
	if len(s) == 0 {
		return nil, errors.Errorf("empty object identifier")
	}

	parts := strings.Split(s, ".")
	res := make(OID, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "wrong sub-identifier %q at position %d in %s", p, i, s)
		}
		res[i] = uint32(v)
	}
	return res, nil
}

// MustParse is the same as Parse, but panics if s could not be parsed
func MustParse(s string) OID {
	o, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return o
}

// ParseAll parses every string of ss
func ParseAll(ss ...string) ([]OID, error) {
	res := make([]OID, len(ss))
	for i, s := range ss {
		o, err := Parse(s)
		if err != nil {
			return nil, err
		}
		res[i] = o
	}
	return res, nil
}

// MustParseAll is the same as ParseAll, but panics if any of ss could not be parsed
func MustParseAll(ss ...string) []OID {
	res, err := ParseAll(ss...)
	if err != nil {
		panic(err)
	}
	return res
}

// String returns the dotted form of o
func (o OID) String() string {
	if len(o) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, v := range o {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	return sb.String()
}

// Compare returns -1, 0 or 1 if o is less than, equal to or greater than
// other in lexicographical order.
func (o OID) Compare(other OID) int {
	n := len(o)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if o[i] < other[i] {
			return -1
		}
		if o[i] > other[i] {
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

// Equal returns whether o and other are the same identifier
func (o OID) Equal(other OID) bool {
	return o.Compare(other) == 0
}

// Less returns true if o goes before other
func (o OID) Less(other OID) bool {
	return o.Compare(other) < 0
}

// StartsWith returns true if base is a prefix of o, or they are equal
func (o OID) StartsWith(base OID) bool {
	if len(o) < len(base) {
		return false
	}
	for i, v := range base {
		if o[i] != v {
			return false
		}
	}
	return true
}

// Under returns true if o lies strictly below base in the identifiers tree.
// A table column entry is under the column base address, the base itself is not.
func (o OID) Under(base OID) bool {
	return len(o) > len(base) && o.StartsWith(base)
}

// Suffix returns the part of o which follows base, or nil if o is not under base
func (o OID) Suffix(base OID) OID {
	if !o.Under(base) {
		return nil
	}
	return o[len(base):].Copy()
}

// Append returns a new identifier which is o followed by sub
func (o OID) Append(sub ...uint32) OID {
	res := make(OID, len(o), len(o)+len(sub))
	copy(res, o)
	return append(res, sub...)
}

// Copy returns a copy of o, which shares nothing with it
func (o OID) Copy() OID {
	if o == nil {
		return nil
	}
	res := make(OID, len(o))
	copy(res, o)
	return res
}
