package bencode

import (
	"bytes"
	"reflect"
	"strconv"
	"unicode/utf8"
)

// decoderFunc populates v, which is always settable, from one pulled object.
// Container decoders close their cursor before returning.
type decoderFunc func(d *decodeState, obj Object, v reflect.Value) error

// Unmarshaler is implemented by types that decode themselves from the exact
// encoded bytes of a value. The slice aliases the input and must be copied
// if retained.
type Unmarshaler interface {
	UnmarshalBencode([]byte) error
}

// Defaulter is implemented by records that need non-zero defaults for
// optional fields. SetDefaults runs before any field is decoded.
type Defaulter interface {
	SetDefaults()
}

var (
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
	defaulterType   = reflect.TypeFor[Defaulter]()
)

var decoders = newCache[reflect.Type, decoderFunc]()

// cachedDecoder returns the compiled plan for t, building it on first use.
// Plans for a whole type graph become visible together, once every
// recursive indirection in them has been resolved.
func cachedDecoder(t reflect.Type) decoderFunc {
	if fn, ok := decoders.get(t); ok {
		return fn
	}
	c := compiler{
		pending: make(map[reflect.Type]*decoderFunc),
		built:   make(map[reflect.Type]decoderFunc),
	}
	fn := c.compile(t)
	decoders.setAll(c.built)
	return fn
}

// compiler builds plans for one type graph. pending holds the types still
// under construction so a recursive reference resolves through an
// indirection instead of looping. built holds finished plans until the
// root returns.
type compiler struct {
	pending map[reflect.Type]*decoderFunc
	built   map[reflect.Type]decoderFunc
}

func (c *compiler) compile(t reflect.Type) decoderFunc {
	if fn, ok := decoders.get(t); ok {
		return fn
	}
	if fn, ok := c.built[t]; ok {
		return fn
	}
	if p, ok := c.pending[t]; ok {
		return func(d *decodeState, obj Object, v reflect.Value) error {
			return (*p)(d, obj, v)
		}
	}
	var fn decoderFunc
	c.pending[t] = &fn
	fn = c.build(t)
	delete(c.pending, t)
	c.built[t] = fn
	return fn
}

func (c *compiler) build(t reflect.Type) decoderFunc {
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(unmarshalerType) {
		return decodeUnmarshaler
	}

	switch t.Kind() {
	case reflect.Bool:
		return decodeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decodeInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return decodeUint
	case reflect.Float32, reflect.Float64:
		return decodeFloat
	case reflect.String:
		return decodeString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return decodeByteSlice
		}
		return c.sliceDecoder(t)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return decodeByteArray
		}
		return c.arrayDecoder(t)
	case reflect.Map:
		return c.mapDecoder(t)
	case reflect.Pointer:
		return c.pointerDecoder(t)
	case reflect.Struct:
		s := shapeOf(t)
		switch {
		case s.unit:
			return decodeUnit
		case s.tuple:
			return c.tupleDecoder(s)
		default:
			return c.recordDecoder(s)
		}
	case reflect.Interface:
		return decodeInterface
	}
	return unsupported(t)
}

func unsupported(t reflect.Type) decoderFunc {
	return func(*decodeState, Object, reflect.Value) error {
		return &UnsupportedTypeError{Type: t}
	}
}

func decodeUnmarshaler(d *decodeState, obj Object, v reflect.Value) error {
	raw, err := obj.Raw()
	if err != nil {
		return err
	}
	u := v.Addr().Interface().(Unmarshaler)
	if err := u.UnmarshalBencode(raw); err != nil {
		return conversionError(obj.Offset(), "UnmarshalBencode for "+v.Type().String(), err)
	}
	return nil
}

func decodeBool(d *decodeState, obj Object, v reflect.Value) error {
	raw, ok := obj.IntRaw()
	if !ok {
		return shapeError(obj.Offset(), "integer for bool", obj.Kind().String())
	}
	// the grammar guarantees a canonical span, so the sign and a lone zero
	// decide the comparison without parsing
	v.SetBool(raw[0] != '-' && !(len(raw) == 1 && raw[0] == '0'))
	return nil
}

func decodeInt(d *decodeState, obj Object, v reflect.Value) error {
	raw, ok := obj.IntRaw()
	if !ok {
		return shapeError(obj.Offset(), "integer", obj.Kind().String())
	}
	n, err := strconv.ParseInt(bytesToString(raw), 10, v.Type().Bits())
	if err != nil {
		return conversionError(obj.Offset(), "integer does not fit "+v.Type().String(), err)
	}
	v.SetInt(n)
	return nil
}

func decodeUint(d *decodeState, obj Object, v reflect.Value) error {
	raw, ok := obj.IntRaw()
	if !ok {
		return shapeError(obj.Offset(), "integer", obj.Kind().String())
	}
	n, err := strconv.ParseUint(bytesToString(raw), 10, v.Type().Bits())
	if err != nil {
		return conversionError(obj.Offset(), "integer does not fit "+v.Type().String(), err)
	}
	v.SetUint(n)
	return nil
}

func decodeFloat(d *decodeState, obj Object, v reflect.Value) error {
	raw, ok := obj.IntRaw()
	if !ok {
		return shapeError(obj.Offset(), "integer", obj.Kind().String())
	}
	f, err := strconv.ParseFloat(bytesToString(raw), v.Type().Bits())
	if err != nil {
		return conversionError(obj.Offset(), "integer does not fit "+v.Type().String(), err)
	}
	v.SetFloat(f)
	return nil
}

func decodeString(d *decodeState, obj Object, v reflect.Value) error {
	s, err := obj.Text()
	if err != nil {
		return err
	}
	v.SetString(s)
	return nil
}

func decodeByteSlice(d *decodeState, obj Object, v reflect.Value) error {
	b, ok := obj.Bytes()
	if !ok {
		return shapeError(obj.Offset(), "byte string", obj.Kind().String())
	}
	v.SetBytes(bytes.Clone(b))
	return nil
}

func decodeByteArray(d *decodeState, obj Object, v reflect.Value) error {
	b, ok := obj.Bytes()
	if !ok {
		return shapeError(obj.Offset(), "byte string", obj.Kind().String())
	}
	if len(b) != v.Len() {
		return shapeErrorf(obj.Offset(), "expected %d-byte string, found %d bytes", v.Len(), len(b))
	}
	reflect.Copy(v, reflect.ValueOf(b))
	return nil
}

func (c *compiler) sliceDecoder(t reflect.Type) decoderFunc {
	elem := c.compile(t.Elem())
	return func(d *decodeState, obj Object, v reflect.Value) error {
		list, ok := obj.List()
		if !ok {
			return shapeError(obj.Offset(), "list", obj.Kind().String())
		}
		defer list.Close()

		s := reflect.MakeSlice(t, 0, 4)
		zero := reflect.Zero(t.Elem())
		for n := 0; ; n++ {
			item, ok, err := list.NextItem()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			s = reflect.Append(s, zero)
			if err := elem(d, item, s.Index(n)); err != nil {
				return err
			}
		}
		v.Set(s)
		return nil
	}
}

func (c *compiler) arrayDecoder(t reflect.Type) decoderFunc {
	elem := c.compile(t.Elem())
	size := t.Len()
	return func(d *decodeState, obj Object, v reflect.Value) error {
		list, ok := obj.List()
		if !ok {
			return shapeError(obj.Offset(), "list", obj.Kind().String())
		}
		defer list.Close()

		for i := 0; i < size; i++ {
			item, ok, err := list.NextItem()
			if err != nil {
				return err
			}
			if !ok {
				return shapeErrorf(list.Offset(), "expected list of %d elements, found %d", size, i)
			}
			if err := elem(d, item, v.Index(i)); err != nil {
				return err
			}
		}
		return expectListEnd(list, size)
	}
}

// expectListEnd consumes the terminator of a fixed-arity list.
func expectListEnd(list *ListCursor, size int) error {
	_, more, err := list.NextItem()
	if err != nil {
		return err
	}
	if more {
		return shapeErrorf(list.Offset(), "expected list of %d elements, found more", size)
	}
	return nil
}

// checkKey rejects dict keys that are not UTF-8 text, whatever the target.
func checkKey(offset int, raw []byte) error {
	if !utf8.Valid(raw) {
		return conversionError(offset, "invalid UTF-8 in dict key", nil)
	}
	return nil
}

// keyDecoderFunc converts the raw bytes of a dict key into a map key.
type keyDecoderFunc func(offset int, raw []byte, v reflect.Value) error

func mapKeyDecoder(t reflect.Type) keyDecoderFunc {
	switch t.Kind() {
	case reflect.String:
		return func(offset int, raw []byte, v reflect.Value) error {
			if err := checkKey(offset, raw); err != nil {
				return err
			}
			v.SetString(string(raw))
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(offset int, raw []byte, v reflect.Value) error {
			n, err := strconv.ParseInt(bytesToString(raw), 10, t.Bits())
			if err != nil {
				return conversionError(offset, "dict key is not a valid "+t.String(), err)
			}
			v.SetInt(n)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(offset int, raw []byte, v reflect.Value) error {
			n, err := strconv.ParseUint(bytesToString(raw), 10, t.Bits())
			if err != nil {
				return conversionError(offset, "dict key is not a valid "+t.String(), err)
			}
			v.SetUint(n)
			return nil
		}
	case reflect.Array:
		if t.Elem().Kind() != reflect.Uint8 {
			return nil
		}
		return func(offset int, raw []byte, v reflect.Value) error {
			if len(raw) != t.Len() {
				return shapeErrorf(offset, "expected %d-byte dict key, found %d bytes", t.Len(), len(raw))
			}
			reflect.Copy(v, reflect.ValueOf(raw))
			return nil
		}
	}
	return nil
}

func (c *compiler) mapDecoder(t reflect.Type) decoderFunc {
	key := mapKeyDecoder(t.Key())
	if key == nil {
		return unsupported(t)
	}
	elem := c.compile(t.Elem())
	return func(d *decodeState, obj Object, v reflect.Value) error {
		dict, ok := obj.Dict()
		if !ok {
			return shapeError(obj.Offset(), "dict", obj.Kind().String())
		}
		defer dict.Close()

		if v.IsNil() {
			v.Set(reflect.MakeMap(t))
		}
		kv := reflect.New(t.Key()).Elem()
		ev := reflect.New(t.Elem()).Elem()
		for {
			k, val, ok, err := dict.c.nextPair()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := key(k.Offset, k.Raw, kv); err != nil {
				return err
			}
			ev.SetZero()
			if err := elem(d, val, ev); err != nil {
				return err
			}
			v.SetMapIndex(kv, ev)
		}
	}
}

func (c *compiler) pointerDecoder(t reflect.Type) decoderFunc {
	elem := c.compile(t.Elem())
	return func(d *decodeState, obj Object, v reflect.Value) error {
		if v.IsNil() {
			v.Set(reflect.New(t.Elem()))
		}
		return elem(d, obj, v.Elem())
	}
}

func decodeUnit(d *decodeState, obj Object, v reflect.Value) error {
	list, ok := obj.List()
	if !ok {
		return shapeError(obj.Offset(), "empty list for "+v.Type().String(), obj.Kind().String())
	}
	defer list.Close()
	v.SetZero()
	return expectListEnd(list, 0)
}

func (c *compiler) tupleDecoder(s *structShape) decoderFunc {
	elems := make([]decoderFunc, len(s.fields))
	for i, f := range s.fields {
		elems[i] = c.compile(f.typ)
	}
	return func(d *decodeState, obj Object, v reflect.Value) error {
		list, ok := obj.List()
		if !ok {
			return shapeError(obj.Offset(), "list for tuple "+s.typ.String(), obj.Kind().String())
		}
		defer list.Close()

		for i, f := range s.fields {
			item, ok, err := list.NextItem()
			if err != nil {
				return err
			}
			if !ok {
				return shapeErrorf(list.Offset(), "expected list of %d elements for %s, found %d", len(s.fields), s.typ, i)
			}
			if err := elems[i](d, item, v.FieldByIndex(f.index)); err != nil {
				return err
			}
		}
		return expectListEnd(list, len(s.fields))
	}
}

func (c *compiler) recordDecoder(s *structShape) decoderFunc {
	fields := make([]decoderFunc, len(s.fields))
	for i, f := range s.fields {
		fields[i] = c.compile(f.typ)
	}
	defaults := reflect.PointerTo(s.typ).Implements(defaulterType)
	return func(d *decodeState, obj Object, v reflect.Value) error {
		dict, ok := obj.Dict()
		if !ok {
			return shapeError(obj.Offset(), "dict for "+s.typ.String(), obj.Kind().String())
		}
		defer dict.Close()

		if defaults && v.CanAddr() {
			v.Addr().Interface().(Defaulter).SetDefaults()
		}

		seen := make([]bool, len(s.fields))
		for {
			k, val, ok, err := dict.c.nextPair()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := checkKey(k.Offset, k.Raw); err != nil {
				return err
			}
			i, known := s.byWire[string(k.Raw)]
			if !known {
				if d.disallowUnknownFields {
					return shapeErrorf(k.Offset, "unknown field %q in %s", k.Raw, s.typ)
				}
				if err := val.skip(); err != nil {
					return err
				}
				continue
			}
			if err := fields[i](d, val, v.FieldByIndex(s.fields[i].index)); err != nil {
				return err
			}
			seen[i] = true
		}

		for i, f := range s.fields {
			if !seen[i] && !f.optional {
				return &Error{
					Kind:   KindShape,
					Offset: dict.Offset(),
					Msg:    "incomplete record",
					Err:    &MissingFieldError{Type: s.typ.String(), Field: f.wire},
				}
			}
		}
		return nil
	}
}

// decodeInterface fills a registered union, or builds the generic tree for an
// empty interface. The union registry is consulted on every call so
// registration order does not matter.
func decodeInterface(d *decodeState, obj Object, v reflect.Value) error {
	if u, ok := unions.get(v.Type()); ok {
		return u.decode(d, obj, v)
	}
	if v.Type().NumMethod() != 0 {
		return &UnsupportedTypeError{Type: v.Type()}
	}
	x, err := d.anyValue(obj)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(x))
	return nil
}

// anyValue builds the generic tree: int64, string (or []byte when the bytes
// are not UTF-8), []any and map[string]any.
func (d *decodeState) anyValue(obj Object) (any, error) {
	switch obj.Kind() {
	case KindInt:
		return obj.Int64()
	case KindBytes:
		b, _ := obj.Bytes()
		if utf8.Valid(b) {
			return string(b), nil
		}
		return bytes.Clone(b), nil
	case KindList:
		list, _ := obj.List()
		defer list.Close()
		out := make([]any, 0)
		for {
			item, ok, err := list.NextItem()
			if err != nil {
				return nil, err
			}
			if !ok {
				return out, nil
			}
			x, err := d.anyValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
	case KindDict:
		dict, _ := obj.Dict()
		defer dict.Close()
		out := make(map[string]any)
		for {
			k, val, ok, err := dict.c.nextPair()
			if err != nil {
				return nil, err
			}
			if !ok {
				return out, nil
			}
			if err := checkKey(k.Offset, k.Raw); err != nil {
				return nil, err
			}
			x, err := d.anyValue(val)
			if err != nil {
				return nil, err
			}
			out[string(k.Raw)] = x
		}
	}
	return nil, shapeError(obj.Offset(), "value", obj.Kind().String())
}
