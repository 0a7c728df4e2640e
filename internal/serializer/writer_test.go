package serializer

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/VisionServe/pkg/errors"
)

func record(t *testing.T, m map[string]interface{}) interface{} {
	t.Helper()
	return interface{}(m)
}

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestParseKey(t *testing.T) {
	p := parseKey("boxes[].pts[2].x")
	require.Len(t, p, 5)
	assert.Equal(t, segment{kind: segKey, key: "boxes"}, p[0])
	assert.Equal(t, segment{kind: segArray}, p[1])
	assert.Equal(t, segment{kind: segKey, key: "pts"}, p[2])
	assert.Equal(t, segment{kind: segIndex, index: 2}, p[3])
	assert.Equal(t, segment{kind: segKey, key: "x"}, p[4])

	p = parseKey("items[id]")
	require.Len(t, p, 2)
	assert.Equal(t, segArrayID, p[1].kind)
}

func TestWriteRow_ScalarColumnsOnly(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"label", "score", "meta.model"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(record(t, map[string]interface{}{
		"label": "person",
		"score": 0.92,
		"meta":  map[string]interface{}{"model": "det-v2"},
	})))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"person", "0.92", "det-v2"}, rows[0])
}

func TestWriteRow_MissingPathYieldsRestval(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"label", "absent.key"}, WithRestval("-"))
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(record(t, map[string]interface{}{"label": "cat"})))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	assert.Equal(t, []string{"cat", "-"}, rows[0])
}

func TestWriteRow_RaiseOnMissing(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"absent"}, WithRaiseOnMissing())
	require.NoError(t, err)

	err = w.WriteRow(record(t, map[string]interface{}{"label": "cat"}))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestWriteRow_ParallelArraysShareOneDimension(t *testing.T) {
	// Arrays a (len 2) and b (len 3) at the same depth expand together:
	// max(2,3)=3 physical rows.
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"name", "a[].x", "b[].y"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(record(t, map[string]interface{}{
		"name": "r",
		"a":    []interface{}{map[string]interface{}{"x": 1}, map[string]interface{}{"x": 2}},
		"b": []interface{}{
			map[string]interface{}{"y": 10},
			map[string]interface{}{"y": 20},
			map[string]interface{}{"y": 30},
		},
	})))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"r", "1", "10"}, rows[0])
	assert.Equal(t, []string{"", "2", "20"}, rows[1])
	assert.Equal(t, []string{"", "", "30"}, rows[2])
}

func TestWriteRow_EmptyArrayStillEmitsScalarRow(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"name", "a[].x"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(record(t, map[string]interface{}{
		"name": "only-scalars",
		"a":    []interface{}{},
	})))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"only-scalars", ""}, rows[0])
}

func TestWriteRow_NestedArrays(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"items[].id", "items[].name", "items[].tags[].label"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(record(t, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{
				"id": 1, "name": "first",
				"tags": []interface{}{
					map[string]interface{}{"label": "a"},
					map[string]interface{}{"label": "b"},
				},
			},
			map[string]interface{}{
				"id": 2, "name": "second",
				"tags": []interface{}{
					map[string]interface{}{"label": "c"},
				},
			},
		},
	})))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	require.Len(t, rows, 4)
	// Outer values render only on the row where the outer index changes.
	assert.Equal(t, []string{"1", "first", "a"}, rows[0])
	assert.Equal(t, []string{"", "", "b"}, rows[1])
	assert.Equal(t, []string{"2", "second", "c"}, rows[2])
	assert.Equal(t, []string{"", "", ""}, rows[3])
}

func TestNewWriter_ArrayBoundaryConflict(t *testing.T) {
	// "a[]" places the array boundary at depth 1 while "b.c[]" places it at
	// depth 2 under a non-array prefix: rejected at construction.
	var buf bytes.Buffer
	_, err := NewWriter(&buf, []string{"a[].x", "b.c[].y"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFieldConflict))
}

func TestNewWriter_NestedArrayGroupingConstructs(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, []string{"items[].id", "items[].name", "items[].tags[].label"})
	assert.NoError(t, err)
}

func TestNewWriter_ArrayIDMustBeLastSegment(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, []string{"items[].x", "items[id].y"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFieldConflict))
}

func TestNewWriter_ArrayIDWithoutArrayRejected(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, []string{"plain", "items[id]"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFieldConflict))
}

func TestNewWriter_ArrayIDPrefixMismatch(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, []string{"items[].x", "other[id]"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFieldConflict))
}

func TestWriteRow_ArrayIDRendersElementIndex(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"items[id]", "items[].v"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRow(record(t, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"v": "x"},
			map[string]interface{}{"v": "y"},
		},
	})))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"0", "x"}, rows[0])
	assert.Equal(t, []string{"1", "y"}, rows[1])
}

func TestWriteRowsWithID_MonotonicIdentity(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, []string{"id", "label"})
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())

	records := []interface{}{
		map[string]interface{}{"label": "a"},
		map[string]interface{}{"label": "b"},
		map[string]interface{}{"id": 99, "label": "c"}, // record's own id wins
	}
	require.NoError(t, w.WriteRowsWithID(records, 0))
	require.NoError(t, w.Flush())

	rows := readRows(t, &buf)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"id", "label"}, rows[0])
	assert.Equal(t, []string{"0", "a"}, rows[1])
	assert.Equal(t, []string{"1", "b"}, rows[2])
	assert.Equal(t, []string{"99", "c"}, rows[3])
}

func TestGenerateFieldNames(t *testing.T) {
	sample := map[string]interface{}{
		"score": 0.5,
		"boxes": []interface{}{
			map[string]interface{}{"x": 1, "y": 2},
		},
		"empty": []interface{}{},
		"meta":  map[string]interface{}{"model": "m"},
	}

	names := GenerateFieldNames(sample)
	assert.Equal(t, []string{
		"boxes[id]", "boxes[].x", "boxes[].y",
		"empty[id]", "empty[]",
		"meta.model",
		"score",
	}, names)
}
