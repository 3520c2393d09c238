package bencode

import (
	"strconv"
)

// TokenKind tags one structural unit of the grammar.
type TokenKind uint8

const (
	TokenInvalid TokenKind = iota
	TokenList
	TokenDict
	TokenEnd
	TokenInteger
	TokenBytes
)

func (k TokenKind) String() string {
	switch k {
	case TokenList:
		return "List"
	case TokenDict:
		return "Dict"
	case TokenEnd:
		return "End"
	case TokenInteger:
		return "Integer"
	case TokenBytes:
		return "Bytes"
	default:
		return "Invalid"
	}
}

// Token is one scanned unit. Raw borrows the input: the digit span of an
// integer or the payload of a byte string. Offset is where the token starts,
// End is one past its last byte.
type Token struct {
	Kind   TokenKind
	Raw    []byte
	Offset int
	End    int
}

func (t Token) String() string {
	switch t.Kind {
	case TokenInteger:
		return "Integer(" + string(t.Raw) + ")"
	case TokenBytes:
		return "Bytes(" + strconv.Itoa(len(t.Raw)) + ")"
	default:
		return t.Kind.String()
	}
}

// Tokenizer scans a borrowed buffer into tokens with one-token lookahead.
// It is not safe for concurrent use.
type Tokenizer struct {
	data    []byte
	offset  int
	peeked  Token
	hasPeek bool

	// open is the path of list/dict cursors from the root to the innermost one.
	open []*cursor

	// err is sticky: after the first malformed input every read fails.
	err error
}

// NewTokenizer returns a tokenizer positioned at the start of data.
func NewTokenizer(data []byte) *Tokenizer {
	return &Tokenizer{data: data, open: make([]*cursor, 0, 8)}
}

// Offset returns the position of the next unread token.
func (t *Tokenizer) Offset() int {
	if t.hasPeek {
		return t.peeked.Offset
	}
	return t.offset
}

// Peek returns the next root-level token without consuming it. Any cursor
// still open is drained first. Repeated peeks return the same cached token.
func (t *Tokenizer) Peek() (Token, error) {
	t.closeAbove(0)
	return t.peek()
}

// Next consumes the next root-level token. Any cursor still open is drained
// first.
func (t *Tokenizer) Next() (Token, error) {
	t.closeAbove(0)
	return t.next()
}

func (t *Tokenizer) peek() (Token, error) {
	if t.hasPeek {
		return t.peeked, nil
	}
	tok, err := t.scan()
	if err != nil {
		return Token{}, t.fail(err)
	}
	t.peeked, t.hasPeek = tok, true
	return tok, nil
}

// next consumes the cached token if present, else scans a fresh one.
func (t *Tokenizer) next() (Token, error) {
	if t.hasPeek {
		t.hasPeek = false
		return t.peeked, nil
	}
	tok, err := t.scan()
	if err != nil {
		return Token{}, t.fail(err)
	}
	return tok, nil
}

// Err returns the error that stopped the tokenizer, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

func (t *Tokenizer) fail(err error) error {
	if t.err == nil {
		t.err = err
	}
	return t.err
}

func (t *Tokenizer) scan() (Token, error) {
	if t.err != nil {
		return Token{}, t.err
	}
	start := t.offset
	if start >= len(t.data) {
		return Token{}, syntaxErrorf(start, "unexpected end of input reading token")
	}
	c := t.data[start]
	t.offset++
	switch {
	case c == 'e':
		return Token{Kind: TokenEnd, Offset: start, End: t.offset}, nil
	case c == 'l':
		return Token{Kind: TokenList, Offset: start, End: t.offset}, nil
	case c == 'd':
		return Token{Kind: TokenDict, Offset: start, End: t.offset}, nil
	case c == 'i':
		raw, err := t.scanInt('e')
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenInteger, Raw: raw, Offset: start, End: t.offset}, nil
	case c >= '0' && c <= '9':
		t.offset--
		raw, err := t.scanBytes()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenBytes, Raw: raw, Offset: start, End: t.offset}, nil
	default:
		return Token{}, syntaxErrorf(start, "invalid token %q", c)
	}
}

type intState uint8

const (
	intStart intState = iota
	intSign
	intZero
	intDigits
)

// scanInt reads an integer body up to term and leaves the offset one past
// term. Leading zeros, "-0" and a bare sign are rejected.
func (t *Tokenizer) scanInt(term byte) ([]byte, error) {
	begin := t.offset
	state := intStart
	pos := begin
	for ; pos < len(t.data); pos++ {
		c := t.data[pos]
		switch state {
		case intStart:
			switch {
			case c == '-':
				state = intSign
			case c == '0':
				state = intZero
			case c >= '1' && c <= '9':
				state = intDigits
			default:
				return nil, syntaxErrorf(pos, "expected '-' or digit, found %q", c)
			}
		case intSign:
			if c < '1' || c > '9' {
				return nil, syntaxErrorf(pos, "expected non-zero digit after sign, found %q", c)
			}
			state = intDigits
		case intZero:
			if c != term {
				return nil, syntaxErrorf(pos, "expected %q after leading zero, found %q", term, c)
			}
			t.offset = pos + 1
			return t.data[begin:pos], nil
		case intDigits:
			if c == term {
				t.offset = pos + 1
				return t.data[begin:pos], nil
			}
			if c < '0' || c > '9' {
				return nil, syntaxErrorf(pos, "expected digit or %q, found %q", term, c)
			}
		}
	}
	return nil, syntaxErrorf(pos, "unexpected end of input reading integer")
}

func (t *Tokenizer) scanBytes() ([]byte, error) {
	begin := t.offset
	digits, err := t.scanInt(':')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(bytesToString(digits))
	if err != nil || n < 0 {
		return nil, syntaxErrorf(begin, "invalid byte string length %q", digits)
	}
	if n > len(t.data)-t.offset {
		return nil, syntaxErrorf(len(t.data), "unexpected end of input reading %d-byte string", n)
	}
	raw := t.data[t.offset : t.offset+n : t.offset+n]
	t.offset += n
	return raw, nil
}
