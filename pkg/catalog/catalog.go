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

// Package catalog maps object names to addresses and back, and formats
// values of bindings for humans. Objects are described in a small text
// notation, see parser.go, and the built-in definitions cover the system and
// interfaces groups.
package catalog

import (
	"fmt"
	"io/ioutil"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jrivets/log4g"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
	"github.com/pkg/errors"
)

type (
	// Object is a named node of the objects tree
	Object struct {
		Name string
		Oid  oid.OID
		// Syntax is the value type name, could be empty
		Syntax string
		// Hint selects the value formatting, see Registry.Format
		Hint  string
		Enums map[int64]string
	}

	// Registry keeps the known objects. It is safe for concurrent use.
	Registry struct {
		logger log4g.Logger

		lock   sync.RWMutex
		byName map[string]*Object
		byOid  map[string]*Object
	}
)

// Formatting hints
const (
	HintBytes = "bytes"
	HintComma = "comma"
	HintBps   = "bps"
	HintTicks = "ticks"
	HintHex   = "hex"
)

// New returns the Registry with the built-in definitions loaded
func New() *Registry {
	r := NewEmpty()
	if err := r.Load(standard); err != nil {
		panic(fmt.Sprintf("could not load built-in definitions: %v", err))
	}
	return r
}

// NewEmpty returns the Registry with no objects in it
func NewEmpty() *Registry {
	r := new(Registry)
	r.logger = log4g.GetLogger("catalog")
	r.byName = make(map[string]*Object)
	r.byOid = make(map[string]*Object)
	return r
}

// LoadFile loads definitions from the file fn
func (r *Registry) LoadFile(fn string) error {
	buf, err := ioutil.ReadFile(fn)
	if err != nil {
		return errors.Wrapf(err, "could not read definitions from %s", fn)
	}
	if err = r.Load(string(buf)); err != nil {
		return errors.Wrapf(err, "could not load definitions from %s", fn)
	}
	return nil
}

// Load parses text and adds its definitions to the registry. Parents may be
// defined either before or after their children, or be known to the registry
// already. Nothing is added if an error is returned.
func (r *Registry) Load(text string) error {
	defs, err := parse(text)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	added := make(map[string]*Object, len(defs))
	lookup := func(name string) (*Object, bool) {
		if o, ok := added[name]; ok {
			return o, true
		}
		o, ok := r.byName[name]
		return o, ok
	}

	for len(defs) > 0 {
		var rest []*definition
		for _, d := range defs {
			subs, err := d.subs()
			if err != nil {
				return err
			}

			var base oid.OID
			if d.Parent != "" {
				p, ok := lookup(d.Parent)
				if !ok {
					rest = append(rest, d)
					continue
				}
				base = p.Oid
			}

			o := &Object{Name: d.Name, Oid: base.Append(subs...), Syntax: d.Syntax, Hint: d.Hint}
			if len(o.Oid) == 0 {
				return errors.Errorf("object %s has no address", d.Name)
			}
			if o.Enums, err = d.enums(); err != nil {
				return err
			}
			if d.Syntax != "" {
				if _, err := pdu.ParseValueType(d.Syntax); err != nil {
					return errors.Wrapf(err, "wrong syntax of %s", d.Name)
				}
			}
			added[d.Name] = o
		}

		if len(rest) == len(defs) {
			return errors.Errorf("could not resolve parent %s of %s", rest[0].Parent, rest[0].Name)
		}
		defs = rest
	}

	for name, o := range added {
		if _, ok := r.byName[name]; ok {
			r.logger.Debug("Load(): redefining ", name)
		}
		r.byName[name] = o
		r.byOid[o.Oid.String()] = o
	}
	return nil
}

// Resolve returns the address by its name. The name could be the object
// name, followed by the dotted suffix like "ifDescr.2", or the dotted form
// of the address itself.
func (r *Registry) Resolve(name string) (oid.OID, error) {
	if o, err := oid.Parse(name); err == nil {
		return o, nil
	}

	obj, sfx := name, ""
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		obj, sfx = name[:idx], name[idx+1:]
	}

	r.lock.RLock()
	o, ok := r.byName[obj]
	r.lock.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown object %q", obj)
	}
	if sfx == "" {
		return o.Oid.Copy(), nil
	}

	subs, err := oid.Parse(sfx)
	if err != nil {
		return nil, errors.Wrapf(err, "wrong suffix in %q", name)
	}
	return o.Oid.Append(subs...), nil
}

// ResolveAll resolves every name of names
func (r *Registry) ResolveAll(names ...string) ([]oid.OID, error) {
	res := make([]oid.OID, len(names))
	for i, n := range names {
		o, err := r.Resolve(n)
		if err != nil {
			return nil, err
		}
		res[i] = o
	}
	return res, nil
}

// Lookup returns the closest object, which o belongs to, and the rest of o
// after the object address. It returns false if no known object contains o.
func (r *Registry) Lookup(o oid.OID) (*Object, oid.OID, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for i := len(o); i > 0; i-- {
		if obj, ok := r.byOid[o[:i].String()]; ok {
			return obj, o[i:], true
		}
	}
	return nil, nil, false
}

// Name returns the symbolic form of o, like "ifDescr.2", or the dotted form
// if no object is known for o
func (r *Registry) Name(o oid.OID) string {
	obj, sfx, ok := r.Lookup(o)
	if !ok {
		return o.String()
	}
	if len(sfx) == 0 {
		return obj.Name
	}
	return obj.Name + "." + sfx.String()
}

// Objects returns all known objects sorted by their addresses
func (r *Registry) Objects() []*Object {
	r.lock.RLock()
	res := make([]*Object, 0, len(r.byName))
	for _, o := range r.byName {
		res = append(res, o)
	}
	r.lock.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].Oid.Less(res[j].Oid)
	})
	return res
}

// Format returns the value of vb formatted for humans according to the
// object vb belongs to: enumerations are named and hints are applied
func (r *Registry) Format(vb pdu.VarBind) string {
	if vb.Type.IsException() || vb.Type == pdu.Null {
		return vb.ValueString()
	}

	obj, _, ok := r.Lookup(vb.Oid)
	if !ok {
		return vb.ValueString()
	}

	if obj.Enums != nil {
		if v, ok := vb.Int(); ok {
			if n, ok := obj.Enums[v]; ok {
				return fmt.Sprintf("%s(%d)", n, v)
			}
		}
	}

	switch obj.Hint {
	case HintBytes:
		if v, ok := vb.Uint(); ok {
			return humanize.Bytes(v)
		}
	case HintComma:
		if v, ok := vb.Int(); ok {
			return humanize.Comma(v)
		}
	case HintBps:
		if v, ok := vb.Uint(); ok {
			return humanize.SI(float64(v), "bps")
		}
	case HintTicks:
		if v, ok := vb.Uint(); ok {
			return (time.Duration(v) * 10 * time.Millisecond).String()
		}
	case HintHex:
		if b := vb.Bytes(); b != nil {
			return net.HardwareAddr(b).String()
		}
	}
	return vb.ValueString()
}
