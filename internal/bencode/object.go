package bencode

import (
	"strconv"
	"unicode/utf8"
)

// Kind is the shape of a parsed Object.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindBytes
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindBytes:
		return "byte string"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "invalid"
	}
}

// Object is one pulled value. Integers and byte strings are raw spans into the
// input; lists and dicts are lazy cursors bound to the shared tokenizer.
type Object struct {
	kind Kind
	tok  Token
	t    *Tokenizer
	list *ListCursor
	dict *DictCursor
}

func (o Object) Kind() Kind { return o.kind }

// Offset is where the value starts in the input.
func (o Object) Offset() int { return o.tok.Offset }

// IntRaw returns the digit span of an integer.
func (o Object) IntRaw() ([]byte, bool) {
	if o.kind != KindInt {
		return nil, false
	}
	return o.tok.Raw, true
}

// Int64 parses the integer span as an int64.
func (o Object) Int64() (int64, error) {
	if o.kind != KindInt {
		return 0, shapeError(o.Offset(), "integer", o.kind.String())
	}
	n, err := strconv.ParseInt(bytesToString(o.tok.Raw), 10, 64)
	if err != nil {
		return 0, conversionError(o.Offset(), "invalid int64", err)
	}
	return n, nil
}

// Uint64 parses the integer span as a uint64.
func (o Object) Uint64() (uint64, error) {
	if o.kind != KindInt {
		return 0, shapeError(o.Offset(), "integer", o.kind.String())
	}
	n, err := strconv.ParseUint(bytesToString(o.tok.Raw), 10, 64)
	if err != nil {
		return 0, conversionError(o.Offset(), "invalid uint64", err)
	}
	return n, nil
}

// Bytes returns the payload of a byte string. The slice aliases the input.
func (o Object) Bytes() ([]byte, bool) {
	if o.kind != KindBytes {
		return nil, false
	}
	return o.tok.Raw, true
}

// Text returns a byte string as UTF-8 text.
func (o Object) Text() (string, error) {
	if o.kind != KindBytes {
		return "", shapeError(o.Offset(), "byte string", o.kind.String())
	}
	if !utf8.Valid(o.tok.Raw) {
		return "", conversionError(o.Offset(), "invalid UTF-8 in byte string", nil)
	}
	return string(o.tok.Raw), nil
}

func (o Object) List() (*ListCursor, bool) {
	return o.list, o.kind == KindList
}

func (o Object) Dict() (*DictCursor, bool) {
	return o.dict, o.kind == KindDict
}

// Raw returns the exact encoded bytes of the value. Lists and dicts are read
// through to their terminator first.
func (o Object) Raw() ([]byte, error) {
	switch o.kind {
	case KindInt, KindBytes:
		return o.t.data[o.tok.Offset:o.tok.End], nil
	case KindList:
		return o.list.c.raw()
	case KindDict:
		return o.dict.c.raw()
	default:
		return nil, shapeError(o.Offset(), "value", o.kind.String())
	}
}

// Close drains a list or dict. It is a no-op for scalars.
func (o Object) Close() {
	switch o.kind {
	case KindList:
		o.list.Close()
	case KindDict:
		o.dict.Close()
	}
}

// skip reads the value through to its end, reporting malformed content.
func (o Object) skip() error {
	switch o.kind {
	case KindList:
		return o.list.c.drainStrict()
	case KindDict:
		return o.dict.c.drainStrict()
	}
	return nil
}

func (o Object) String() string {
	switch o.kind {
	case KindInt:
		return "Integer " + string(o.tok.Raw)
	case KindBytes:
		return "Bytes(" + strconv.Itoa(len(o.tok.Raw)) + ")"
	case KindList:
		return "List"
	case KindDict:
		return "Dict"
	default:
		return "Invalid"
	}
}

// Parse pulls the next value at the root level. ok is false when an End token
// was consumed instead. Any cursor still open is drained first.
func (t *Tokenizer) Parse() (Object, bool, error) {
	t.closeAbove(0)
	return t.parse()
}

// Skip reads one whole root-level value and discards it.
func (t *Tokenizer) Skip() error {
	obj, ok, err := t.Parse()
	if err != nil {
		return err
	}
	if !ok {
		return syntaxErrorf(obj.Offset(), "unexpected end token")
	}
	return obj.skip()
}

// More reports whether input remains at the root level.
func (t *Tokenizer) More() bool {
	t.closeAbove(0)
	if t.hasPeek {
		return t.peeked.Kind != TokenEnd
	}
	return t.offset < len(t.data)
}

// MaxDepth bounds list/dict nesting so hostile input cannot exhaust the stack.
const MaxDepth = 1024

func (t *Tokenizer) parse() (Object, bool, error) {
	tok, err := t.next()
	if err != nil {
		return Object{}, false, err
	}
	obj := Object{tok: tok, t: t}
	if (tok.Kind == TokenList || tok.Kind == TokenDict) && len(t.open) >= MaxDepth {
		return Object{}, false, t.fail(syntaxErrorf(tok.Offset, "nesting deeper than %d levels", MaxDepth))
	}
	switch tok.Kind {
	case TokenList:
		obj.kind = KindList
		obj.list = &ListCursor{c: t.push(tok.Offset, false)}
	case TokenDict:
		obj.kind = KindDict
		obj.dict = &DictCursor{c: t.push(tok.Offset, true)}
	case TokenInteger:
		obj.kind = KindInt
	case TokenBytes:
		obj.kind = KindBytes
	case TokenEnd:
		return obj, false, nil
	default:
		return Object{}, false, t.fail(syntaxErrorf(tok.Offset, "invalid token"))
	}
	return obj, true, nil
}

func (t *Tokenizer) push(start int, dict bool) *cursor {
	c := &cursor{t: t, start: start, depth: len(t.open), dict: dict}
	t.open = append(t.open, c)
	return c
}

// closeAbove drains and closes every open cursor at index >= depth,
// innermost first.
func (t *Tokenizer) closeAbove(depth int) {
	for len(t.open) > depth {
		n := len(t.open)
		t.open[n-1].close()
		if len(t.open) >= n {
			t.truncate(n - 1)
		}
	}
}

// truncate drops cursors at index >= depth without reading further.
func (t *Tokenizer) truncate(depth int) {
	if depth > len(t.open) {
		return
	}
	for _, c := range t.open[depth:] {
		c.closed = true
	}
	clear(t.open[depth:])
	t.open = t.open[:depth]
}

// cursor is the state shared by list and dict cursors.
type cursor struct {
	t        *Tokenizer
	start    int
	end      int
	depth    int
	dict     bool
	finished bool
	closed   bool
}

// next pulls one object inside the structure.
func (c *cursor) next() (Object, bool, error) {
	if c.finished || c.closed {
		return Object{}, false, nil
	}
	c.t.closeAbove(c.depth + 1)
	obj, ok, err := c.t.parse()
	if err != nil {
		return Object{}, false, err
	}
	if !ok {
		c.finished = true
		c.end = obj.tok.End
		c.t.truncate(c.depth)
	}
	return obj, ok, nil
}

func (c *cursor) nextPair() (Token, Object, bool, error) {
	key, ok, err := c.next()
	if err != nil || !ok {
		return Token{}, Object{}, false, err
	}
	if key.kind != KindBytes {
		return Token{}, Object{}, false, c.t.fail(shapeError(key.Offset(), "byte string dict key", key.kind.String()))
	}
	value, ok, err := c.t.parse()
	if err != nil {
		return Token{}, Object{}, false, err
	}
	if !ok {
		return Token{}, Object{}, false, c.t.fail(syntaxErrorf(value.Offset(), "dict key %q has no value", key.tok.Raw))
	}
	return key.tok, value, true, nil
}

func (c *cursor) drainStrict() error {
	for {
		var (
			ok  bool
			err error
		)
		if c.dict {
			_, _, ok, err = c.nextPair()
		} else {
			_, ok, err = c.next()
		}
		if err != nil {
			c.t.truncate(c.depth)
			return err
		}
		if !ok {
			return nil
		}
	}
}

// close drains the rest of the structure. Errors are dropped: the parent
// surfaces them again once it keeps reading.
func (c *cursor) close() {
	if c.closed {
		return
	}
	_ = c.drainStrict()
	c.closed = true
}

func (c *cursor) raw() ([]byte, error) {
	if !c.finished {
		if c.closed {
			return nil, ErrClosed
		}
		if err := c.drainStrict(); err != nil {
			return nil, err
		}
	}
	c.closed = true
	return c.t.data[c.start:c.end], nil
}

// ListCursor lazily yields the items of a list.
type ListCursor struct {
	c *cursor
}

// NextItem pulls the next item. ok is false once the list terminator has been
// consumed; further calls do not touch the tokenizer.
func (l *ListCursor) NextItem() (Object, bool, error) {
	return l.c.next()
}

// Close drains unread items through the terminator.
func (l *ListCursor) Close() { l.c.close() }

// Raw reads the list to its end and returns its exact encoded bytes.
func (l *ListCursor) Raw() ([]byte, error) { return l.c.raw() }

// Offset is where the list starts in the input.
func (l *ListCursor) Offset() int { return l.c.start }

// DictCursor lazily yields the key/value pairs of a dict.
type DictCursor struct {
	c *cursor
}

// NextPair pulls the next pair. ok is false once the dict terminator has been
// consumed. A key that is not a byte string, or a key without a value, is an
// error.
func (d *DictCursor) NextPair() ([]byte, Object, bool, error) {
	key, value, ok, err := d.c.nextPair()
	return key.Raw, value, ok, err
}

// Close drains unread pairs through the terminator.
func (d *DictCursor) Close() { d.c.close() }

// Raw reads the dict to its end and returns its exact encoded bytes.
func (d *DictCursor) Raw() ([]byte, error) { return d.c.raw() }

// Offset is where the dict starts in the input.
func (d *DictCursor) Offset() int { return d.c.start }
