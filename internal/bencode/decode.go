package bencode

import (
	"reflect"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// logger gets one trace line per top-level decode. It discards everything
// until SetLogger installs a real one.
var logger atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	logger.Store(&nop)
}

// SetLogger routes the decoder's trace output to l.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// decodeState carries per-call options through the compiled plans.
type decodeState struct {
	disallowUnknownFields bool
}

// Unmarshal decodes exactly one value from data into the value pointed to by v.
// Bytes left over after that value are a syntax error.
func Unmarshal(data []byte, v any) error {
	d := NewDecoder(data)
	if err := d.Decode(v); err != nil {
		return err
	}
	if off := d.InputOffset(); off != len(data) {
		return syntaxErrorf(off, "trailing data after top-level value")
	}
	return nil
}

// Decode is Unmarshal returning the decoded value.
func Decode[T any](data []byte) (T, error) {
	var v T
	err := Unmarshal(data, &v)
	return v, err
}

// Decoder reads a stream of concatenated values from one buffer.
type Decoder struct {
	t     *Tokenizer
	state decodeState
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{t: NewTokenizer(data)}
}

// DisallowUnknownFields makes a dict key with no matching record field an
// error instead of being skipped.
func (d *Decoder) DisallowUnknownFields() {
	d.state.disallowUnknownFields = true
}

// More reports whether another value follows in the input.
func (d *Decoder) More() bool {
	return d.t.More()
}

// InputOffset returns the offset just past the last decoded value.
func (d *Decoder) InputOffset() int {
	return d.t.Offset()
}

// Decode reads the next value into the value pointed to by v.
func (d *Decoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &InvalidUnmarshalError{Type: reflect.TypeOf(v)}
	}

	obj, ok, err := d.t.Parse()
	if err != nil {
		return err
	}
	if !ok {
		return syntaxErrorf(obj.Offset(), "unexpected end token at top level")
	}

	elem := rv.Elem()
	err = cachedDecoder(elem.Type())(&d.state, obj, elem)
	d.t.closeAbove(0)

	logger.Load().Trace().
		Str("type", elem.Type().String()).
		Int("offset", obj.Offset()).
		Int("end", d.t.Offset()).
		Err(err).
		Msg("bencode decode")
	return err
}
