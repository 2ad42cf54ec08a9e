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

package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jrivets/log4g"
	"github.com/logrange/snmpwalk/pkg/oid"
	"github.com/logrange/snmpwalk/pkg/pdu"
)

type (
	// Row is one row of the walked table
	Row struct {
		// NonRepeaters contains values of the non-repeating addresses, read
		// with the batch the row came from
		NonRepeaters []pdu.VarBind
		// Columns contains the row cells in the order the columns were requested
		Columns []pdu.VarBind

		index oid.OID
	}

	// Step is what AsyncWalker.Next returns: either a row, or the operation
	// which must be invoked before the next row becomes available, or the end
	// of the table.
	Step struct {
		Row    *Row
		Resume *Operation[[]pdu.VarBind]
		end    bool
	}

	// AsyncWalker walks a table by GetBulk batches and never blocks. When
	// the current batch is exhausted, Next returns the Resume operation,
	// which fetches the next batch. It could be invoked either way, and Next
	// must be called after it is completed. A failed Resume could be invoked
	// again.
	//
	// A batch which contains less columns than requested fails the walk with
	// KindTruncated error, unless the session allows truncated batches. In
	// this case the walk continues with the columns received, and the
	// dropped columns are never requested again.
	AsyncWalker struct {
		s      *Session
		logger log4g.Logger

		lock         sync.Mutex
		nonRepeaters []oid.OID
		bases        []oid.OID
		repeaters    int
		// next contains the last returned address of every column
		next   []oid.OID
		batch  []pdu.VarBind
		offset int
		state  walkerState
		err    error
		// gen is incremented with every fetch, so batches of earlier fetches are dropped
		gen    uint64
		resume *Operation[[]pdu.VarBind]
	}

	// SyncWalker walks a table, blocking the caller while the batches are fetched
	SyncWalker struct {
		w *AsyncWalker
	}

	walkerState int
)

const (
	wsAwaitingFirst walkerState = iota
	wsServing
	wsAwaitingNext
	wsEnd
)

func (ws walkerState) String() string {
	switch ws {
	case wsAwaitingFirst:
		return "awaiting-first-batch"
	case wsServing:
		return "serving-batch"
	case wsAwaitingNext:
		return "awaiting-next-batch"
	case wsEnd:
		return "end-of-table"
	}
	return fmt.Sprintf("state(%d)", int(ws))
}

// Index returns the row index, which is the suffix of the first column address
// after its base
func (r *Row) Index() oid.OID {
	return r.index
}

func (r *Row) String() string {
	return fmt.Sprintf("{Index: %s, Columns: %v}", r.index, r.Columns)
}

// End returns true if the walk reached the end of the table
func (st Step) End() bool {
	return st.end
}

func newAsyncWalker(s *Session, nonRepeaters, columns []oid.OID) *AsyncWalker {
	w := new(AsyncWalker)
	w.s = s
	w.logger = s.logger
	w.nonRepeaters = copyOids(nonRepeaters)
	w.bases = copyOids(columns)
	w.repeaters = len(columns)
	w.next = copyOids(columns)
	w.state = wsAwaitingFirst
	return w
}

// Next returns the next step of the walk. The error is returned if the walk failed.
func (w *AsyncWalker) Next() (Step, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.err != nil {
		return Step{}, w.err
	}

	switch w.state {
	case wsEnd:
		return Step{end: true}, nil
	case wsAwaitingFirst, wsAwaitingNext:
		return Step{Resume: w.resumeOp()}, nil
	}

	row, end := w.nextRow()
	if end {
		w.logger.Debug("Next(): end of table")
		w.state = wsEnd
		w.batch = nil
		return Step{end: true}, nil
	}
	if row != nil {
		return Step{Row: row}, nil
	}

	w.state = wsAwaitingNext
	w.batch = nil
	return Step{Resume: w.resumeOp()}, nil
}

// Columns returns number of columns the walker requests now
func (w *AsyncWalker) Columns() int {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.repeaters
}

// nextRow returns the next complete row of the batch, or nil if there is no
// complete row left. The partial row at the end of batch is not returned,
// it will be fetched with the next batch.
func (w *AsyncWalker) nextRow() (*Row, bool) {
	if w.offset+w.repeaters > len(w.batch) {
		return nil, false
	}

	cols := w.batch[w.offset : w.offset+w.repeaters]
	for j, vb := range cols {
		if vb.Type == pdu.EndOfMibView || !vb.Oid.Under(w.bases[j]) {
			return nil, true
		}
	}

	row := new(Row)
	row.NonRepeaters = make([]pdu.VarBind, len(w.nonRepeaters))
	copy(row.NonRepeaters, w.batch)
	row.Columns = make([]pdu.VarBind, len(cols))
	copy(row.Columns, cols)
	row.index = cols[0].Oid.Suffix(w.bases[0])
	for j, vb := range cols {
		w.next[j] = vb.Oid
	}
	w.offset += w.repeaters
	return row, false
}

// resumeOp returns the fetch operation for the current generation, must be called under the lock
func (w *AsyncWalker) resumeOp() *Operation[[]pdu.VarBind] {
	if w.resume != nil {
		return w.resume
	}

	w.gen++
	gen := w.gen
	items := make([]oid.OID, 0, len(w.nonRepeaters)+w.repeaters)
	items = append(items, w.nonRepeaters...)
	items = append(items, w.next[:w.repeaters]...)

	op := newOperation(w.s, pdu.TypeGetBulk, pdu.NullsOf(items),
		func(req *pdu.Request, resp *pdu.Response) ([]pdu.VarBind, error) {
			return w.install(gen, resp.VarBinds)
		})
	op.nonRep = len(w.nonRepeaters)
	op.maxRep = w.s.cfg.MaxRepetitions
	w.resume = op
	return op
}

// install makes vbs the current batch, if it is the response of the current fetch
func (w *AsyncWalker) install(gen uint64, vbs []pdu.VarBind) ([]pdu.VarBind, error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.err != nil {
		return nil, w.err
	}
	if gen != w.gen || (w.state != wsAwaitingFirst && w.state != wsAwaitingNext) {
		w.logger.Debug("install(): dropping stale batch of fetch ", gen, ", current is ", w.gen, ", state=", w.state)
		return vbs, nil
	}

	n := len(w.nonRepeaters)
	if len(vbs) <= n {
		w.err = newError(KindMalformed, nil, "batch contains %d binding(s) for %d non-repeater(s) and %d column(s)",
			len(vbs), n, w.repeaters)
		return nil, w.err
	}

	if len(vbs) < n+w.repeaters {
		if !w.s.cfg.allowTruncated() {
			w.err = newError(KindTruncated, nil, "batch contains %d of %d column(s)", len(vbs)-n, w.repeaters)
			return nil, w.err
		}
		w.logger.Warn("install(): batch contains ", len(vbs)-n, " of ", w.repeaters, " column(s), continue with less columns")
		w.repeaters = len(vbs) - n
	}

	if err := w.checkIncreasing(vbs); err != nil {
		w.err = err
		return nil, w.err
	}

	w.batch = vbs
	w.offset = n
	w.state = wsServing
	w.resume = nil
	return vbs, nil
}

// checkIncreasing makes sure every column goes forward in the batch, so the
// walk always ends
func (w *AsyncWalker) checkIncreasing(vbs []pdu.VarBind) error {
	n := len(w.nonRepeaters)
	for j := 0; j < w.repeaters; j++ {
		prev := w.next[j]
		for i := n + j; i < len(vbs); i += w.repeaters {
			vb := vbs[i]
			if vb.Type.IsException() {
				break
			}
			if !prev.Less(vb.Oid) {
				return newError(KindMalformed, nil, "address %s of column %d does not increase after %s", vb.Oid, j, prev)
			}
			prev = vb.Oid
		}
	}
	return nil
}

// Next returns the next row of the table, or io.EOF when the end of the table is reached
func (sw *SyncWalker) Next(ctx context.Context) (*Row, error) {
	for {
		st, err := sw.w.Next()
		if err != nil {
			return nil, err
		}
		if st.End() {
			return nil, io.EOF
		}
		if st.Row != nil {
			return st.Row, nil
		}
		if res := st.Resume.Invoke(ctx); !res.OK() {
			return nil, res.Err()
		}
	}
}

// Rows returns all the rows left in the table
func (sw *SyncWalker) Rows(ctx context.Context) ([]*Row, error) {
	var res []*Row
	for {
		r, err := sw.Next(ctx)
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, r)
	}
}

// Walker returns the underlying non-blocking walker
func (sw *SyncWalker) Walker() *AsyncWalker {
	return sw.w
}

func copyOids(oids []oid.OID) []oid.OID {
	res := make([]oid.OID, len(oids))
	for i, o := range oids {
		res[i] = o.Copy()
	}
	return res
}
