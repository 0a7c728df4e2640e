// Package serializer flattens nested prediction results into fixed-column
// CSV output.  Column names address values inside a result record through
// dotted paths with array markers: "detections[].score" expands the
// detections array into one physical row per element, "detections[id]"
// renders the element index, and "[3]" addresses a fixed position.  The
// schema is derived once per serialization call and reused for every row.
package serializer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/turtacn/VisionServe/pkg/errors"
)

var (
	delimRegex = regexp.MustCompile(`\.|\[\d*\]|\[id\]`)
	indexRegex = regexp.MustCompile(`\A\[(\d+)\]\z`)
)

type segKind int

const (
	segKey segKind = iota
	segIndex
	segArray
	segArrayID
)

// segment is one parsed element of a column path: a literal mapping key, a
// fixed array index, the array expansion marker "[]", or the array identity
// marker "[id]".
type segment struct {
	kind  segKind
	key   string
	index int
}

func (s segment) String() string {
	switch s.kind {
	case segIndex:
		return fmt.Sprintf("[%d]", s.index)
	case segArray:
		return "[]"
	case segArrayID:
		return "[id]"
	default:
		return s.key
	}
}

type path []segment

func (p path) hasArray() bool {
	for _, s := range p {
		if s.kind == segArray {
			return true
		}
	}
	return false
}

func (p path) hasArrayID() bool {
	for _, s := range p {
		if s.kind == segArrayID {
			return true
		}
	}
	return false
}

func (p path) arrayIDIndex() int {
	for i, s := range p {
		if s.kind == segArrayID {
			return i
		}
	}
	return -1
}

func pathEqual(a, b path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pathIn(p path, list []path) bool {
	for _, q := range list {
		if pathEqual(p, q) {
			return true
		}
	}
	return false
}

// parseKey splits a column name into path segments.  "boxes[].pts[2].x"
// becomes [key:boxes, array, key:pts, index:2, key:x].
func parseKey(name string) path {
	var p path
	last := 0
	for _, loc := range delimRegex.FindAllStringIndex(name, -1) {
		if lit := name[last:loc[0]]; lit != "" {
			p = append(p, segment{kind: segKey, key: lit})
		}
		tok := name[loc[0]:loc[1]]
		switch {
		case tok == ".":
			// delimiter only
		case tok == "[]":
			p = append(p, segment{kind: segArray})
		case tok == "[id]":
			p = append(p, segment{kind: segArrayID})
		default:
			m := indexRegex.FindStringSubmatch(tok)
			idx, _ := strconv.Atoi(m[1])
			p = append(p, segment{kind: segIndex, index: idx})
		}
		last = loc[1]
	}
	if lit := name[last:]; lit != "" {
		p = append(p, segment{kind: segKey, key: lit})
	}
	return p
}

// renderField is one column whose value is re-rendered for a particular
// array group's index dimension.
type renderField struct {
	name string
	path path
}

// arrayGroup is a set of column paths that share an array boundary at the
// same nesting depth and therefore expand together as one CSV repetition
// dimension.
type arrayGroup struct {
	prefixes []path
	render   []renderField
}

// buildArrayGroups derives the array groupings from the parsed column paths.
// Columns that reference arrays at the same depth must agree on where the
// array boundary starts; a disagreement is a FieldConflict reported here, at
// schema construction, never at write time.
func buildArrayGroups(names []string, fields map[string]path) ([]arrayGroup, error) {
	maxDepth := 0
	for _, p := range fields {
		if len(p) > maxDepth {
			maxDepth = len(p)
		}
	}

	var groups []arrayGroup
	var prevPrefixes []path
	prevDepth := 0
	for depth := 0; depth < maxDepth; depth++ {
		var prefixes []path
		var render []renderField
		for _, name := range names {
			p := fields[name]
			if len(p) <= depth || p[depth].kind != segArray {
				continue
			}

			prefix := p[:depth]
			if len(prevPrefixes) > 0 && prefix[prevDepth].kind != segArray {
				return nil, errors.FieldConflict(
					fmt.Sprintf("%s conflicts: level %d is not array", name, prevDepth))
			}
			if len(prevPrefixes) > 0 && !pathIn(prefix[:prevDepth], prevPrefixes) {
				return nil, errors.FieldConflict(
					fmt.Sprintf("%s conflicts array at %d", name, depth))
			}

			// "[id]" columns participate in conflict checking only.
			if p.hasArrayID() {
				continue
			}

			if !pathIn(prefix, prefixes) {
				prefixes = append(prefixes, prefix)
			}
			if !p[depth+1:].hasArray() {
				render = append(render, renderField{name: name, path: p})
			}
		}
		if len(prefixes) > 0 {
			groups = append(groups, arrayGroup{prefixes: prefixes, render: render})
			prevPrefixes = prefixes
			prevDepth = depth
		}
	}
	return groups, nil
}

// buildArrayIDFields assigns each "[id]" column to the array group whose
// prefixes it matches.  The marker must be the final path segment and must
// match a declared array prefix at the same depth.
func buildArrayIDFields(names []string, fields map[string]path, groups []arrayGroup) ([][]string, error) {
	idFields := make([][]string, len(groups))
	for _, name := range names {
		p := fields[name]
		idx := p.arrayIDIndex()
		if idx < 0 {
			continue
		}
		if idx+1 != len(p) {
			return nil, errors.FieldConflict(fmt.Sprintf("%s includes invalid [id]", name))
		}

		matched := false
		for g, group := range groups {
			if len(group.prefixes[0]) != idx {
				continue
			}
			if !pathIn(p[:idx], group.prefixes) {
				return nil, errors.FieldConflict(fmt.Sprintf("%s prefix not match", name))
			}
			idFields[g] = append(idFields[g], name)
			matched = true
		}
		if !matched {
			return nil, errors.FieldConflict(fmt.Sprintf("%s not match any array", name))
		}
	}
	return idFields, nil
}

// GenerateFieldNames derives a column list from a sample record: mapping keys
// are visited in sorted order, arrays contribute an "[id]" column plus the
// expansion of their first element.  Array support follows the shape of the
// first element only, so heterogenous arrays may serialize incompletely.
func GenerateFieldNames(value interface{}) []string {
	return generateFieldNames(value, "")
}

func generateFieldNames(value interface{}, prefix string) []string {
	var names []string
	switch v := value.(type) {
	case map[string]interface{}:
		sep := ""
		if prefix != "" {
			sep = "."
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			names = append(names, generateFieldNames(v[k], prefix+sep+k)...)
		}
	case []interface{}:
		names = append(names, prefix+"[id]")
		if len(v) > 0 {
			names = append(names, generateFieldNames(v[0], prefix+"[]")...)
		} else {
			names = append(names, prefix+"[]")
		}
	default:
		names = append(names, prefix)
	}
	return names
}
