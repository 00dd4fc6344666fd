package fat8d88

import (
	"bufio"
	"io"
	"unicode/utf8"

	"github.com/dsoprea/go-logging"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// MachineFamily identifies the NEC (or Toshiba) machine line a Fat8Variant
// belongs to, and therefore which charset table and obfuscation scheme
// apply (§3 "Fat8Variant", §4.F).
type MachineFamily int

const (
	// FamilyPC88 covers the PC-8001/8801 family.
	FamilyPC88 MachineFamily = iota
	// FamilyPC98 covers the PC-9801 family.
	FamilyPC98
	// FamilyPC6001 covers the PC-6001/6601 family and the Toshiba Pasopia.
	FamilyPC6001
)

func (f MachineFamily) String() string {
	switch f {
	case FamilyPC88:
		return "PC-88"
	case FamilyPC98:
		return "PC-98"
	case FamilyPC6001:
		return "PC-6001"
	default:
		return "Unknown"
	}
}

// replacementByte is substituted for an unmappable code point when
// encoding in line-filter (lossy) mode, per §4.A.
const replacementByte = 0x3F

// puaBase is the start of the Private Use Area range used for bytes that
// have no standard Unicode counterpart, so that decode/encode composition
// is the identity on all 256 byte values (§8 invariant, §9 design note).
const puaBase = rune(0xE000)

// halfWidthKatakanaBase is the start of the JIS X 0201 half-width katakana
// block (U+FF61..U+FF9F), which both the PC-88/98 charset and the PC-6001
// charset reuse for their 0xA1..0xDF ranges; this is the one run of bytes
// above 0x7F in either table with a real standard Unicode home instead of
// a PUA placeholder.
const halfWidthKatakanaBase = rune(0xFF61)

// CharsetTable is a bidirectional mapping between the 256 byte values of a
// single-byte machine charset and Unicode code points. Represented as two
// fixed-size lookup structures per the §9 design note: a 256-entry forward
// array and a reverse map built once at construction time.
type CharsetTable struct {
	name    string
	forward [256]rune
	reverse map[rune]byte
}

func newCharsetTable(name string, forward [256]rune) *CharsetTable {
	reverse := make(map[rune]byte, 256)
	for b, r := range forward {
		reverse[r] = byte(b)
	}

	return &CharsetTable{
		name:    name,
		forward: forward,
		reverse: reverse,
	}
}

func buildCharsetTable(name string) *CharsetTable {
	var forward [256]rune

	for b := 0; b < 256; b++ {
		switch {
		case b == 0x5c:
			// Yen sign replaces backslash, per JIS X 0201.
			forward[b] = 0x00a5
		case b == 0x7e:
			// Overline replaces tilde, per JIS X 0201.
			forward[b] = 0x203e
		case b >= 0x00 && b <= 0x7f:
			forward[b] = rune(b)
		case b >= 0xa1 && b <= 0xdf:
			forward[b] = halfWidthKatakanaBase + rune(b-0xa1)
		default:
			forward[b] = puaBase + rune(b)
		}
	}

	return newCharsetTable(name, forward)
}

var (
	// PC88Table is shared by the PC-88 and PC-98 families: both descend
	// from the same JIS X 0201-derived single-byte charset (§4.A).
	PC88Table = buildCharsetTable("PC-88/98")

	// PC6001Table is the PC-6001 family's charset. It shares the
	// half-width-katakana range with PC88Table, and the ASCII range except
	// 0x5C and 0x7E (which it decodes as backslash and tilde rather than
	// yen sign and overline), but assigns its own PUA code points to the
	// semigraphics range, so the two tables are distinct mappings even
	// though they overlap on defined characters.
	PC6001Table = buildPC6001Table()
)

func buildPC6001Table() *CharsetTable {
	var forward [256]rune

	for b := 0; b < 256; b++ {
		switch {
		case b >= 0x00 && b <= 0x7f:
			forward[b] = rune(b)
		case b >= 0xa1 && b <= 0xdf:
			forward[b] = halfWidthKatakanaBase + rune(b-0xa1)
		default:
			// Offset from PC88Table's PUA assignment so the two tables
			// never collide on a defined code point.
			forward[b] = puaBase + 0x100 + rune(b)
		}
	}

	return newCharsetTable("PC-6001", forward)
}

// CharsetTableForFamily returns the charset table that applies to a given
// machine family (§3, §4.A). PC-88 and PC-98 share one table.
func CharsetTableForFamily(family MachineFamily) *CharsetTable {
	switch family {
	case FamilyPC6001:
		return PC6001Table
	default:
		return PC88Table
	}
}

// DecodeByte maps a single machine byte to its Unicode code point.
func (ct *CharsetTable) DecodeByte(b byte) rune {
	return ct.forward[b]
}

// EncodeRune maps a Unicode code point back to a machine byte. ok is false
// if the code point is not in this table's defined range.
func (ct *CharsetTable) EncodeRune(r rune) (b byte, ok bool) {
	b, ok = ct.reverse[r]
	return b, ok
}

// DecodeBytes decodes a whole byte slice to a string, one byte at a time.
func (ct *CharsetTable) DecodeBytes(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = ct.DecodeByte(b)
	}
	return string(runes)
}

// EncodeString encodes a string back to machine bytes, substituting
// replacementByte for any code point outside the table (lossy, line-filter
// mode per §4.A).
func (ct *CharsetTable) EncodeString(s string) []byte {
	runes := []rune(s)
	out := make([]byte, len(runes))
	for i, r := range runes {
		b, ok := ct.EncodeRune(r)
		if !ok {
			b = replacementByte
		}
		out[i] = b
	}
	return out
}

// decodeTransformer adapts a CharsetTable to golang.org/x/text/transform,
// so the table can be wrapped in an encoding.Encoding and driven through
// transform.NewReader/transform.NewWriter instead of a hand-rolled byte
// loop (see DOMAIN STACK in SPEC_FULL.md).
type decodeTransformer struct {
	table *CharsetTable
}

func (t *decodeTransformer) Reset() {}

func (t *decodeTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r := t.table.DecodeByte(src[nSrc])

		size := utf8.RuneLen(r)
		if size < 0 {
			size = utf8.RuneLen(utf8.RuneError)
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}

		n := utf8.EncodeRune(dst[nDst:], r)
		nDst += n
		nSrc++
	}

	return nDst, nSrc, nil
}

// encodeTransformer adapts a CharsetTable's reverse direction to
// transform.Transformer. Unmappable runes are replaced with
// replacementByte, matching the line-filter reverse-direction contract in
// §4.A ("replacing unknown code points with 0x3F and continuing").
type encodeTransformer struct {
	table *CharsetTable
}

func (t *encodeTransformer) Reset() {}

func (t *encodeTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size <= 1 && !atEOF && !utf8.FullRune(src[nSrc:]) {
			// Incomplete trailing UTF-8 sequence; wait for more input
			// unless this is the final call.
			return nDst, nSrc, transform.ErrShortSrc
		}

		if nDst+1 > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}

		b, ok := t.table.EncodeRune(r)
		if !ok {
			b = replacementByte
		}

		dst[nDst] = b
		nDst++
		nSrc += size
	}

	return nDst, nSrc, nil
}

// charsetEncoding implements encoding.Encoding for one machine charset
// table.
type charsetEncoding struct {
	table *CharsetTable
}

func (ce *charsetEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decodeTransformer{table: ce.table}}
}

func (ce *charsetEncoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encodeTransformer{table: ce.table}}
}

var (
	// PC88Charset is the PC-88/PC-98 single-byte charset as an
	// encoding.Encoding.
	PC88Charset encoding.Encoding = &charsetEncoding{table: PC88Table}

	// PC6001Charset is the PC-6001-family single-byte charset as an
	// encoding.Encoding.
	PC6001Charset encoding.Encoding = &charsetEncoding{table: PC6001Table}
)

// LineFilterMode selects the direction of the character-set filter CLI
// (§6 "Character-set filter CLI").
type LineFilterMode int

const (
	// ModeMachineToUTF8 decodes machine bytes to UTF-8.
	ModeMachineToUTF8 LineFilterMode = iota
	// ModeUTF8ToMachine encodes UTF-8 to machine bytes.
	ModeUTF8ToMachine
)

// LineFilter implements the §4.A "Line-filter contract": it reads one
// logical line at a time (up to and including 0x0A) from r, transcodes it
// through the given table in the requested direction, and writes the
// result to w. Line boundaries are preserved verbatim. It returns the
// number of lines processed.
func LineFilter(r io.Reader, w io.Writer, table *CharsetTable, mode LineFilterMode) (lineCount int, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("line filter panic: %v", errRaw)
			}
		}
	}()

	br := bufio.NewReader(r)

	for {
		line, readErr := br.ReadBytes('\n')

		if len(line) > 0 {
			var out []byte

			switch mode {
			case ModeMachineToUTF8:
				out = []byte(table.DecodeBytes(line))
			case ModeUTF8ToMachine:
				out = table.EncodeString(string(line))
			default:
				log.Panicf("unknown line-filter mode: %d", mode)
			}

			_, writeErr := w.Write(out)
			log.PanicIf(writeErr)

			lineCount++
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			log.PanicIf(readErr)
		}
	}

	return lineCount, nil
}
