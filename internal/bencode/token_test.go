package bencode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireOffset(t *testing.T, err error, kind ErrorKind, offset int) {
	t.Helper()
	var berr *Error
	require.True(t, errors.As(err, &berr), "expected *bencode.Error, got %v", err)
	assert.Equal(t, kind, berr.Kind)
	assert.Equal(t, offset, berr.Offset)
}

func TestTokenizerByteString(t *testing.T) {
	tz := NewTokenizer([]byte("5:hello"))
	tok, err := tz.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenBytes, tok.Kind)
	assert.Equal(t, []byte("hello"), tok.Raw)
	assert.Equal(t, 0, tok.Offset)
	assert.Equal(t, 7, tok.End)
	assert.Equal(t, 7, tz.Offset())
}

func TestTokenizerEmptyByteString(t *testing.T) {
	tz := NewTokenizer([]byte("0:"))
	tok, err := tz.Next()
	require.NoError(t, err)
	assert.Equal(t, TokenBytes, tok.Kind)
	assert.Empty(t, tok.Raw)
}

func TestTokenizerIntegerGrammar(t *testing.T) {
	cases := []struct {
		in     string
		raw    string
		offset int
	}{
		{in: "i0e", raw: "0"},
		{in: "i-5e", raw: "-5"},
		{in: "i1234567890e", raw: "1234567890"},
		{in: "i-0e", offset: 2},
		{in: "i007e", offset: 2},
		{in: "ie", offset: 1},
		{in: "i-e", offset: 2},
		{in: "i1-2e", offset: 2},
		{in: "i12", offset: 3},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			tok, err := NewTokenizer([]byte(tc.in)).Next()
			if tc.raw == "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSyntax)
				requireOffset(t, err, KindSyntax, tc.offset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TokenInteger, tok.Kind)
			assert.Equal(t, tc.raw, string(tok.Raw))
		})
	}
}

func TestTokenizerMalformedByteStrings(t *testing.T) {
	_, err := NewTokenizer([]byte("10:abc")).Next()
	requireOffset(t, err, KindSyntax, 6)

	_, err = NewTokenizer([]byte("3abc")).Next()
	requireOffset(t, err, KindSyntax, 1)

	_, err = NewTokenizer([]byte("01:a")).Next()
	requireOffset(t, err, KindSyntax, 1)

	_, err = NewTokenizer([]byte("99999999999999999999999:a")).Next()
	requireOffset(t, err, KindSyntax, 0)
}

func TestTokenizerInvalidByte(t *testing.T) {
	_, err := NewTokenizer([]byte("x")).Next()
	requireOffset(t, err, KindSyntax, 0)

	_, err = NewTokenizer(nil).Next()
	requireOffset(t, err, KindSyntax, 0)
}

func TestTokenizerPeekCachesToken(t *testing.T) {
	tz := NewTokenizer([]byte("li1ee"))

	first, err := tz.Peek()
	require.NoError(t, err)
	again, err := tz.Peek()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 0, tz.Offset())

	next, err := tz.Next()
	require.NoError(t, err)
	assert.Equal(t, first, next)
	assert.Equal(t, TokenList, next.Kind)

	kinds := []TokenKind{}
	for {
		tok, err := tz.Next()
		if err != nil {
			break
		}
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []TokenKind{TokenInteger, TokenEnd, TokenEnd}, kinds)
}
