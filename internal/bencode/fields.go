package bencode

import (
	"reflect"
	"slices"
	"strings"
)

// fieldInfo is one record field as seen on the wire.
type fieldInfo struct {
	name     string
	wire     string
	index    []int
	optional bool
	typ      reflect.Type
}

// structShape is the description of a struct type, derived once from its tags
// and reused by every decode and encode of that type.
//
// Tag syntax: `bencode:"wire name,optional"`. A field tagged "-" is ignored.
// A blank marker field `_ struct{} `bencode:",tuple"`` turns the struct into a
// fixed-arity tuple encoded as a list. A struct with no fields is a unit value
// encoded as an empty list.
type structShape struct {
	typ    reflect.Type
	fields []fieldInfo
	byWire map[string]int
	sorted []int
	tuple  bool
	unit   bool
}

var shapes = newCache[reflect.Type, *structShape]()

func shapeOf(t reflect.Type) *structShape {
	if s, ok := shapes.get(t); ok {
		return s
	}
	s := &structShape{typ: t, byWire: make(map[string]int)}
	s.collect(t, nil)
	s.unit = !s.tuple && len(s.fields) == 0 && t.NumField() == 0
	s.sorted = make([]int, len(s.fields))
	for i := range s.sorted {
		s.sorted[i] = i
	}
	slices.SortFunc(s.sorted, func(a, b int) int {
		return strings.Compare(s.fields[a].wire, s.fields[b].wire)
	})
	shapes.set(t, s)
	return s
}

func (s *structShape) collect(t reflect.Type, index []int) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("bencode")
		if tag == "-" {
			continue
		}
		name, opts := parseTag(tag)

		if sf.Name == "_" {
			if len(index) == 0 && opts.has("tuple") {
				s.tuple = true
			}
			continue
		}

		path := append(slices.Clone(index), i)
		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			s.collect(sf.Type, path)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		wire := name
		if wire == "" {
			wire = sf.Name
		}
		field := fieldInfo{
			name:     sf.Name,
			wire:     wire,
			index:    path,
			optional: opts.has("optional") || sf.Type.Kind() == reflect.Pointer,
			typ:      sf.Type,
		}

		// the shallower field wins a name clash, like promoted Go fields
		if at, ok := s.byWire[wire]; ok {
			if len(s.fields[at].index) > len(path) {
				s.fields[at] = field
			}
			continue
		}
		s.byWire[wire] = len(s.fields)
		s.fields = append(s.fields, field)
	}
}

type tagOptions string

func parseTag(tag string) (string, tagOptions) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, tagOptions(opts)
}

func (o tagOptions) has(opt string) bool {
	for rest := string(o); rest != ""; {
		var cur string
		cur, rest, _ = strings.Cut(rest, ",")
		if strings.TrimSpace(cur) == opt {
			return true
		}
	}
	return false
}
