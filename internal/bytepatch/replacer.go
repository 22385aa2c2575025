// Package bytepatch performs pattern search and replace over raw byte
// buffers in the string encodings the shipped client artifacts use.
package bytepatch

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrReplacementTooLong means the encoded replacement does not fit in the
// window occupied by the original pattern. The buffer is never modified in
// that case.
var ErrReplacementTooLong = errors.New("replacement longer than original pattern")

// Match describes the outcome of a cascade rewrite: which encoding matched
// and how many occurrences were replaced. A zero Count with an empty
// Encoding means the pattern was not present in any encoding, which is a
// successful no-op for callers.
type Match struct {
	Encoding string
	Count    int
}

// Replacer applies a string rewrite across an ordered encoding cascade.
type Replacer struct {
	encodings []Encoding
}

// New returns a Replacer with the default executable cascade.
func New() *Replacer { return &Replacer{encodings: Cascade()} }

// NewWith returns a Replacer over a custom encoding list. Used by the class
// archive path, which only ever deals in raw UTF-8.
func NewWith(encs []Encoding) *Replacer {
	if len(encs) == 0 {
		return New()
	}
	return &Replacer{encodings: encs}
}

// Rewrite replaces every occurrence of old with new, trying each encoding in
// order and stopping at the first that matches. The replacement may be
// shorter than the original; removed bytes are zero filled so the buffer
// length never changes. A longer replacement returns ErrReplacementTooLong.
func (r *Replacer) Rewrite(buf []byte, old, new string) ([]byte, Match, error) {
	for _, enc := range r.encodings {
		pat := enc.Encode(old)
		if len(pat) == 0 {
			continue
		}
		count := bytes.Count(buf, pat)
		if count == 0 {
			continue
		}
		repl := enc.Encode(new)
		if len(repl) > len(pat) {
			return nil, Match{}, fmt.Errorf("%q -> %q in %s: %w", old, new, enc.Name(), ErrReplacementTooLong)
		}
		out := replacePadded(buf, pat, repl)
		return out, Match{Encoding: enc.Name(), Count: count}, nil
	}
	return buf, Match{}, nil
}

// Scan reports whether pattern occurs in buf under any encoding of the
// cascade, returning the first matching encoding and its occurrence count.
func (r *Replacer) Scan(buf []byte, pattern string) (Match, bool) {
	for _, enc := range r.encodings {
		pat := enc.Encode(pattern)
		if len(pat) == 0 {
			continue
		}
		if count := bytes.Count(buf, pat); count > 0 {
			return Match{Encoding: enc.Name(), Count: count}, true
		}
	}
	return Match{}, false
}

// ReplaceExact replaces occurrences of old with new, requiring identical
// byte lengths. This is the only form the class archive path may use:
// constant pool offsets must not shift.
func ReplaceExact(buf, old, new []byte) ([]byte, int, error) {
	if len(old) != len(new) {
		return nil, 0, fmt.Errorf("exact replace %d vs %d bytes: %w", len(old), len(new), ErrReplacementTooLong)
	}
	count := bytes.Count(buf, old)
	if count == 0 {
		return buf, 0, nil
	}
	return bytes.ReplaceAll(buf, old, new), count, nil
}

// replacePadded substitutes repl for every occurrence of pat, zero filling
// the tail of each window so the output length equals the input length.
func replacePadded(buf, pat, repl []byte) []byte {
	window := make([]byte, len(pat))
	copy(window, repl)
	out := make([]byte, 0, len(buf))
	for {
		i := bytes.Index(buf, pat)
		if i < 0 {
			return append(out, buf...)
		}
		out = append(out, buf[:i]...)
		out = append(out, window...)
		buf = buf[i+len(pat):]
	}
}
