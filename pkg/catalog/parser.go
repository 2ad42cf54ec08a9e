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
	"strconv"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/pkg/errors"
)

// The definitions text is a list of object definitions like
//
//	-- comments run till the end of line
//	ifTable ::= { interfaces 2 }
//	ifAdminStatus ::= { ifEntry 7 } SYNTAX integer ENUM { up = 1, down = 2, testing = 3 }
//	ifInOctets ::= { ifEntry 10 } SYNTAX counter32 HINT "bytes"
//
// The parent name is optional, the root objects contain numbers only.
var (
	catLexer = lexer.Must(lexer.Regexp(`(\s+)|(--[^\n]*)` +
		`|(?P<Keyword>\b(SYNTAX|HINT|ENUM)\b)` +
		`|(?P<Ident>[a-zA-Z][a-zA-Z0-9_]*)` +
		`|(?P<Number>[0-9]+)` +
		`|(?P<String>"([^\\"]|\\.)*")` +
		`|(?P<Operator>::=|[{}=,])`,
	))

	parser = participle.MustBuild(
		&definitions{},
		participle.Lexer(catLexer),
		participle.Unquote("String"),
	)
)

type (
	definitions struct {
		Defs []*definition `parser:"{ @@ }"`
	}

	definition struct {
		Name   string      `parser:"@Ident \"::=\" \"{\""`
		Parent string      `parser:"[ @Ident ]"`
		Subs   []string    `parser:"{ @Number } \"}\""`
		Syntax string      `parser:"[ \"SYNTAX\" @Ident ]"`
		Hint   string      `parser:"[ \"HINT\" @String ]"`
		Enums  []*enumItem `parser:"[ \"ENUM\" \"{\" @@ { \",\" @@ } \"}\" ]"`
	}

	enumItem struct {
		Name  string `parser:"@Ident \"=\""`
		Value string `parser:"@Number"`
	}
)

func parse(text string) ([]*definition, error) {
	defs := &definitions{}
	if err := parser.ParseString(text, defs); err != nil {
		return nil, err
	}
	return defs.Defs, nil
}

func (d *definition) subs() ([]uint32, error) {
	res := make([]uint32, len(d.Subs))
	for i, s := range d.Subs {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "wrong sub-identifier of %s", d.Name)
		}
		res[i] = uint32(v)
	}
	return res, nil
}

func (d *definition) enums() (map[int64]string, error) {
	if len(d.Enums) == 0 {
		return nil, nil
	}
	res := make(map[int64]string, len(d.Enums))
	for _, e := range d.Enums {
		v, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "wrong enum value %s of %s", e.Name, d.Name)
		}
		res[v] = e.Name
	}
	return res, nil
}
