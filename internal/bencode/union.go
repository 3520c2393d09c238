package bencode

import (
	"fmt"
	"reflect"
)

// Variant names one case of a tagged union and the Go type carrying its payload.
type Variant struct {
	Name string
	typ  reflect.Type
}

// NewVariant binds name to payload type P. A P that is a zero-field struct
// (or a pointer to one) is a unit variant.
func NewVariant[P any](name string) Variant {
	return Variant{Name: name, typ: reflect.TypeFor[P]()}
}

type variant struct {
	name string
	typ  reflect.Type
	unit bool
}

// union is the registered variant table of one interface type.
type union struct {
	iface  reflect.Type
	byName map[string]*variant
	byType map[reflect.Type]*variant
}

var unions = newCache[reflect.Type, *union]()

// RegisterUnion makes interface type T decode as a tagged union: a single-key
// dict whose key names the variant and whose value is the payload, or a bare
// byte string naming a unit variant. It panics on a non-interface T, a payload
// type that does not implement T, or a duplicate name or payload type.
// Registration belongs in init.
func RegisterUnion[T any](variants ...Variant) {
	iface := reflect.TypeFor[T]()
	if iface.Kind() != reflect.Interface {
		panic("bencode: RegisterUnion of non-interface type " + iface.String())
	}
	u := &union{
		iface:  iface,
		byName: make(map[string]*variant, len(variants)),
		byType: make(map[reflect.Type]*variant, len(variants)),
	}
	for _, v := range variants {
		if v.typ == nil {
			panic("bencode: variant " + v.Name + " has no payload type")
		}
		if !v.typ.Implements(iface) {
			panic(fmt.Sprintf("bencode: variant %s payload %s does not implement %s", v.Name, v.typ, iface))
		}
		if _, dup := u.byName[v.Name]; dup {
			panic("bencode: duplicate variant name " + v.Name + " in " + iface.String())
		}
		if _, dup := u.byType[v.typ]; dup {
			panic("bencode: duplicate variant payload " + v.typ.String() + " in " + iface.String())
		}
		entry := &variant{name: v.Name, typ: v.typ, unit: isUnit(v.typ)}
		u.byName[v.Name] = entry
		u.byType[v.typ] = entry
	}
	unions.set(iface, u)
}

func isUnit(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && shapeOf(t).unit
}

func (u *union) lookup(offset int, name []byte) (*variant, error) {
	v, ok := u.byName[string(name)]
	if !ok {
		return nil, shapeErrorf(offset, "unknown variant %q of %s", name, u.iface)
	}
	return v, nil
}

// zero is the value stored for a unit variant.
func (v *variant) zero() reflect.Value {
	if v.typ.Kind() == reflect.Pointer {
		return reflect.New(v.typ.Elem())
	}
	return reflect.Zero(v.typ)
}

func (u *union) decode(d *decodeState, obj Object, v reflect.Value) error {
	switch obj.Kind() {
	case KindBytes:
		name, _ := obj.Bytes()
		vr, err := u.lookup(obj.Offset(), name)
		if err != nil {
			return err
		}
		if !vr.unit {
			return shapeErrorf(obj.Offset(), "variant %q of %s carries a value, expected single-key dict", name, u.iface)
		}
		v.Set(vr.zero())
		return nil

	case KindDict:
		dict, _ := obj.Dict()
		defer dict.Close()

		k, val, ok, err := dict.c.nextPair()
		if err != nil {
			return err
		}
		if !ok {
			return shapeErrorf(obj.Offset(), "expected single-key dict for %s, found empty dict", u.iface)
		}
		if err := checkKey(k.Offset, k.Raw); err != nil {
			return err
		}
		vr, err := u.lookup(k.Offset, k.Raw)
		if err != nil {
			return err
		}

		payload := vr.zero()
		if vr.unit {
			if err := val.skip(); err != nil {
				return err
			}
		} else {
			payload = reflect.New(vr.typ).Elem()
			if err := cachedDecoder(vr.typ)(d, val, payload); err != nil {
				return err
			}
		}

		extra, _, more, err := dict.c.nextPair()
		if err != nil {
			return err
		}
		if more {
			return shapeErrorf(extra.Offset, "expected single-key dict for %s, found more keys", u.iface)
		}
		v.Set(payload)
		return nil
	}
	return shapeError(obj.Offset(), "dict or byte string for "+u.iface.String(), obj.Kind().String())
}
