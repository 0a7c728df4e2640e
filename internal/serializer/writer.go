package serializer

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/turtacn/VisionServe/pkg/errors"
)

// Option configures a Writer.
type Option func(*Writer)

// WithRestval sets the value rendered for missing keys and out-of-range
// indices.  Defaults to the empty string.
func WithRestval(v string) Option {
	return func(w *Writer) { w.restval = v }
}

// WithRaiseOnMissing makes lookups of absent keys an error instead of
// substituting the restval.
func WithRaiseOnMissing() Option {
	return func(w *Writer) { w.raiseOnMissing = true }
}

// Writer emits nested result records as flat CSV rows.  The schema (simple
// columns, array groupings and identity columns) is derived once from the
// column list at construction; conflicting column lists are rejected there
// with a FieldConflict error, before any row is written.
type Writer struct {
	cw             *csv.Writer
	fieldnames     []string
	restval        string
	raiseOnMissing bool

	fields   map[string]path
	simple   []renderField
	groups   []arrayGroup
	idFields [][]string
}

// NewWriter constructs a Writer over w for the given ordered column list.
func NewWriter(w io.Writer, fieldnames []string, opts ...Option) (*Writer, error) {
	nw := &Writer{
		cw:         csv.NewWriter(w),
		fieldnames: fieldnames,
		fields:     make(map[string]path, len(fieldnames)),
	}
	for _, opt := range opts {
		opt(nw)
	}

	for _, name := range fieldnames {
		nw.fields[name] = parseKey(name)
	}
	for _, name := range fieldnames {
		p := nw.fields[name]
		if !p.hasArray() && !p.hasArrayID() {
			nw.simple = append(nw.simple, renderField{name: name, path: p})
		}
	}

	groups, err := buildArrayGroups(fieldnames, nw.fields)
	if err != nil {
		return nil, err
	}
	nw.groups = groups

	idFields, err := buildArrayIDFields(fieldnames, nw.fields, groups)
	if err != nil {
		return nil, err
	}
	nw.idFields = idFields

	return nw, nil
}

// WriteHeader writes the column-name row.
func (w *Writer) WriteHeader() error {
	if err := w.cw.Write(w.fieldnames); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write csv header")
	}
	return nil
}

// WriteRow writes one record without an identity value.
func (w *Writer) WriteRow(record interface{}) error {
	return w.writeRow(record, 0, false)
}

// WriteRowWithID writes one record, rendering id into the "id" column when
// the record itself does not carry one.
func (w *Writer) WriteRowWithID(record interface{}, id int) error {
	return w.writeRow(record, id, true)
}

// WriteRows writes every record in order.
func (w *Writer) WriteRows(records []interface{}) error {
	for _, r := range records {
		if err := w.WriteRow(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteRowsWithID writes every record, assigning a monotonically increasing
// identity per top-level record starting at firstID.
func (w *Writer) WriteRowsWithID(records []interface{}, firstID int) error {
	id := firstID
	for _, r := range records {
		if err := w.WriteRowWithID(r, id); err != nil {
			return err
		}
		id++
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "csv flush failed")
	}
	return nil
}

func (w *Writer) writeRow(record interface{}, id int, hasID bool) error {
	scalars := make(map[string]interface{}, len(w.simple)+1)
	if hasID {
		scalars["id"] = id
	}

	for _, f := range w.simple {
		v, err := w.getValue(record, f.path, nil)
		if err != nil {
			return err
		}
		if f.name == "id" && hasID {
			// The record's own id wins over the assigned one.
			if v == w.restval {
				scalars[f.name] = id
			} else {
				scalars[f.name] = v
			}
		} else {
			scalars[f.name] = v
		}
	}

	if len(w.groups) == 0 {
		return w.emit(scalars)
	}

	// One repetition count per array group: the maximum length found under
	// any of the group's prefixes.  An empty group still yields one physical
	// row so scalar columns are never dropped.
	counts := make([]int, len(w.groups))
	for g, group := range w.groups {
		for _, prefix := range group.prefixes {
			if n := w.maxLoop(record, prefix); n > counts[g] {
				counts[g] = n
			}
		}
		if counts[g] == 0 {
			counts[g] = 1
		}
	}

	// Walk the Cartesian product of group indices as an odometer.  Scalar
	// columns render on the first physical row only, and a field belonging
	// to an outer group is rendered only on rows where that group's index
	// changed, producing the de-duplicated nested table instead of
	// repeating outer values on every inner row.
	indexes := make([]int, len(counts))
	prev := make([]int, len(counts))
	for i := range prev {
		prev[i] = -1
	}
	first := true
	for {
		current := make(map[string]interface{}, len(w.fieldnames))
		if first {
			for k, v := range scalars {
				current[k] = v
			}
		}
		for g, names := range w.idFields {
			for _, name := range names {
				current[name] = indexes[g]
			}
		}

		changed := false
		for g, group := range w.groups {
			if changed || indexes[g] != prev[g] {
				changed = true
				for _, f := range group.render {
					v, err := w.getValue(record, f.path, indexes)
					if err != nil {
						return err
					}
					current[f.name] = v
				}
			}
		}
		if err := w.emit(current); err != nil {
			return err
		}
		first = false
		copy(prev, indexes)

		// Advance the odometer, innermost group fastest.
		g := len(indexes) - 1
		for ; g >= 0; g-- {
			indexes[g]++
			if indexes[g] < counts[g] {
				break
			}
			indexes[g] = 0
		}
		if g < 0 {
			return nil
		}
	}
}

func (w *Writer) emit(current map[string]interface{}) error {
	row := make([]string, len(w.fieldnames))
	for i, name := range w.fieldnames {
		v, ok := current[name]
		if !ok || v == nil {
			row[i] = w.restval
			continue
		}
		row[i] = fmt.Sprint(v)
	}
	if err := w.cw.Write(row); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to write csv row")
	}
	return nil
}

// getValue walks a column path through record.  Array markers consume the
// leading element of indexes; absent keys and out-of-range indices yield the
// restval unless raiseOnMissing is set.
func (w *Writer) getValue(record interface{}, p path, indexes []int) (interface{}, error) {
	v := record
	for _, seg := range p {
		switch seg.kind {
		case segArray:
			idx := indexes[0]
			indexes = indexes[1:]
			arr, ok := v.([]interface{})
			if !ok || idx >= len(arr) {
				return w.restval, nil
			}
			v = arr[idx]
		case segIndex:
			arr, ok := v.([]interface{})
			if !ok || seg.index >= len(arr) {
				return w.missing(p)
			}
			v = arr[seg.index]
		default:
			m, ok := v.(map[string]interface{})
			if !ok {
				return w.missing(p)
			}
			child, ok := m[seg.key]
			if !ok {
				return w.missing(p)
			}
			v = child
		}
	}
	return v, nil
}

func (w *Writer) missing(p path) (interface{}, error) {
	if w.raiseOnMissing {
		return nil, errors.New(errors.ErrCodeSerialization,
			fmt.Sprintf("record is missing value for column path %v", p))
	}
	return w.restval, nil
}

// maxLoop returns the maximum array length reachable by walking prefix into
// record, descending through nested array markers; 0 when the path is absent.
func (w *Writer) maxLoop(record interface{}, prefix path) int {
	v := record
	for i, seg := range prefix {
		switch seg.kind {
		case segArray:
			arr, ok := v.([]interface{})
			if !ok {
				return 0
			}
			maxN := 0
			for _, elem := range arr {
				if n := w.maxLoop(elem, prefix[i+1:]); n > maxN {
					maxN = n
				}
			}
			return maxN
		case segIndex:
			arr, ok := v.([]interface{})
			if !ok || seg.index >= len(arr) {
				return 0
			}
			v = arr[seg.index]
		default:
			m, ok := v.(map[string]interface{})
			if !ok {
				return 0
			}
			child, ok := m[seg.key]
			if !ok {
				return 0
			}
			v = child
		}
	}
	arr, ok := v.([]interface{})
	if !ok {
		return 0
	}
	return len(arr)
}
