// Package bencode owns the bencode wire grammar and the decoders built on it.
//
// Ownership boundary:
// - tokenizer with one-token lookahead
// - lazy object cursors (lists, dicts) sharing a single tokenizer
// - raw-slice extraction of sub-structures
// - type-directed decoding into Go values with per-type compiled plans
//
// Cursor model: a Tokenizer tracks the path of open list/dict cursors. Only the
// innermost cursor may be advanced; advancing an ancestor (or the tokenizer
// itself) first drains every open descendant through its terminator, so the
// stream position is exact even when a caller abandons a nested structure.
// Callers that stop reading early should still `defer c.Close()`.
//
// Errors from an implicit drain are dropped, but the first malformed token
// stops the tokenizer and every later read returns that same error.
package bencode
