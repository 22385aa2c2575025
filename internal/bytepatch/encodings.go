package bytepatch

import "unicode/utf16"

// Encoding renders a pattern string into one of the byte layouts the client
// artifacts use for embedded string literals. Encodings are tried in a fixed
// cascade; the first one that matches anything in the buffer wins.
type Encoding interface {
	Name() string
	Encode(s string) []byte
}

// Cascade returns the default encoding order for the game executable:
// length-prefixed UTF-16 records first, then raw UTF-8, then raw UTF-16LE,
// then the partial UTF-16LE fallback.
func Cascade() []Encoding {
	return []Encoding{prefixed16{}, utf8Enc{}, utf16le{}, utf16lePartial{}}
}

// utf16Bytes encodes s as UTF-16LE without a BOM.
func utf16Bytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

// prefixed16 is the length-prefixed record format used for certain embedded
// strings: one length byte (UTF-16 code units), three zero padding bytes,
// then the UTF-16LE characters.
type prefixed16 struct{}

func (prefixed16) Name() string { return "prefixed-utf16" }

func (prefixed16) Encode(s string) []byte {
	chars := utf16Bytes(s)
	out := make([]byte, 0, 4+len(chars))
	out = append(out, byte(len(chars)/2), 0, 0, 0)
	return append(out, chars...)
}

type utf8Enc struct{}

func (utf8Enc) Name() string     { return "utf-8" }
func (utf8Enc) Encode(s string) []byte { return []byte(s) }

type utf16le struct{}

func (utf16le) Name() string          { return "utf-16le" }
func (utf16le) Encode(s string) []byte { return utf16Bytes(s) }

// utf16lePartial matches a UTF-16LE pattern minus its final byte. One known
// executable build ends the literal with a non-zero byte where the final
// zero continuation byte is expected; dropping the last byte from both the
// search pattern and the replacement leaves that byte untouched. This is
// tied to that observed binary layout and is only used for the executable,
// never for class archives.
type utf16lePartial struct{}

func (utf16lePartial) Name() string { return "utf-16le-partial" }

func (utf16lePartial) Encode(s string) []byte {
	b := utf16Bytes(s)
	if len(b) == 0 {
		return b
	}
	return b[:len(b)-1]
}
