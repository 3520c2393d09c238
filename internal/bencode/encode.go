package bencode

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
)

// Marshaler is implemented by types that encode themselves. The returned bytes
// are written verbatim and must be a single well-formed value.
type Marshaler interface {
	MarshalBencode() ([]byte, error)
}

var marshalerType = reflect.TypeFor[Marshaler]()

// RawMessage is an already encoded value. Decoding into it copies the exact
// bytes of the value; encoding writes them back unchanged.
type RawMessage []byte

func (m RawMessage) MarshalBencode() ([]byte, error) {
	if len(m) == 0 {
		return nil, errors.New("bencode: empty RawMessage")
	}
	return m, nil
}

func (m *RawMessage) UnmarshalBencode(data []byte) error {
	if m == nil {
		return errors.New("bencode: UnmarshalBencode on nil RawMessage")
	}
	*m = append((*m)[:0], data...)
	return nil
}

// Marshal encodes v. Dict keys are written in bytewise order, optional record
// fields holding their zero value are omitted.
func Marshal(v any) ([]byte, error) {
	e := &encodeState{buf: make([]byte, 0, 64)}
	if err := e.encode(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encodeState struct {
	buf []byte
}

func (e *encodeState) bytes(b []byte) {
	e.buf = strconv.AppendInt(e.buf, int64(len(b)), 10)
	e.buf = append(e.buf, ':')
	e.buf = append(e.buf, b...)
}

func (e *encodeState) string(s string) {
	e.buf = strconv.AppendInt(e.buf, int64(len(s)), 10)
	e.buf = append(e.buf, ':')
	e.buf = append(e.buf, s...)
}

func (e *encodeState) int(n int64) {
	e.buf = append(e.buf, 'i')
	e.buf = strconv.AppendInt(e.buf, n, 10)
	e.buf = append(e.buf, 'e')
}

func (e *encodeState) uint(n uint64) {
	e.buf = append(e.buf, 'i')
	e.buf = strconv.AppendUint(e.buf, n, 10)
	e.buf = append(e.buf, 'e')
}

func (e *encodeState) encode(v reflect.Value) error {
	if !v.IsValid() {
		return ErrNilValue
	}

	if v.Type().Implements(marshalerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return ErrNilValue
		}
		return e.marshaler(v.Interface().(Marshaler))
	}
	if v.Kind() != reflect.Pointer && v.CanAddr() && v.Addr().Type().Implements(marshalerType) {
		return e.marshaler(v.Addr().Interface().(Marshaler))
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			e.int(1)
		} else {
			e.int(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.int(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.uint(v.Uint())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return fmt.Errorf("bencode: float %v has no integer encoding", f)
		}
		e.int(int64(f))
	case reflect.String:
		e.string(v.String())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.bytes(v.Bytes())
			return nil
		}
		return e.list(v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			e.bytes(b)
			return nil
		}
		return e.list(v)
	case reflect.Map:
		return e.dict(v)
	case reflect.Pointer:
		if v.IsNil() {
			return ErrNilValue
		}
		return e.encode(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return ErrNilValue
		}
		if u, ok := unions.get(v.Type()); ok {
			return e.variant(u, v.Elem())
		}
		return e.encode(v.Elem())
	case reflect.Struct:
		s := shapeOf(v.Type())
		switch {
		case s.unit:
			e.buf = append(e.buf, 'l', 'e')
		case s.tuple:
			e.buf = append(e.buf, 'l')
			for _, f := range s.fields {
				if err := e.encode(v.FieldByIndex(f.index)); err != nil {
					return err
				}
			}
			e.buf = append(e.buf, 'e')
		default:
			return e.record(s, v)
		}
	default:
		return &UnsupportedTypeError{Type: v.Type()}
	}
	return nil
}

func (e *encodeState) marshaler(m Marshaler) error {
	b, err := m.MarshalBencode()
	if err != nil {
		return fmt.Errorf("bencode: MarshalBencode: %w", err)
	}
	e.buf = append(e.buf, b...)
	return nil
}

func (e *encodeState) list(v reflect.Value) error {
	e.buf = append(e.buf, 'l')
	for i := 0; i < v.Len(); i++ {
		if err := e.encode(v.Index(i)); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, 'e')
	return nil
}

func (e *encodeState) dict(v reflect.Value) error {
	type entry struct {
		key []byte
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKeyBytes(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: key, val: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return bytes.Compare(a.key, b.key) })

	e.buf = append(e.buf, 'd')
	for _, en := range entries {
		e.bytes(en.key)
		if err := e.encode(en.val); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, 'e')
	return nil
}

func mapKeyBytes(k reflect.Value) ([]byte, error) {
	switch k.Kind() {
	case reflect.String:
		return []byte(k.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(nil, k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.AppendUint(nil, k.Uint(), 10), nil
	case reflect.Array:
		if k.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, k.Len())
			reflect.Copy(reflect.ValueOf(b), k)
			return b, nil
		}
	}
	return nil, &UnsupportedTypeError{Type: k.Type()}
}

func (e *encodeState) record(s *structShape, v reflect.Value) error {
	e.buf = append(e.buf, 'd')
	for _, i := range s.sorted {
		f := s.fields[i]
		fv := v.FieldByIndex(f.index)
		if f.optional && fv.IsZero() {
			continue
		}
		e.string(f.wire)
		if err := e.encode(fv); err != nil {
			return fmt.Errorf("bencode: field %s.%s: %w", s.typ, f.name, err)
		}
	}
	e.buf = append(e.buf, 'e')
	return nil
}

func (e *encodeState) variant(u *union, payload reflect.Value) error {
	vr, ok := u.byType[payload.Type()]
	if !ok {
		return fmt.Errorf("bencode: %s is not a registered variant of %s", payload.Type(), u.iface)
	}
	if vr.unit {
		e.string(vr.name)
		return nil
	}
	e.buf = append(e.buf, 'd')
	e.string(vr.name)
	if err := e.encode(payload); err != nil {
		return err
	}
	e.buf = append(e.buf, 'e')
	return nil
}
