package fat8d88

// AttributeByte is the raw, one-byte attribute field of a directory entry
// (§3 "DirectoryEntry"). Its bit layout, fixed by this package:
//
//	bits 0-1  Kind     (0=Binary 1=BASIC 2=ASCII 3=reserved, treated as Binary)
//	bit  2    ReadOnly
//	bit  3    Verify
//	bit  4    Obfuscated
//	bit  5    R1 (reserved)
//	bit  6    R2 (reserved)
//	bit  7    R3 (reserved)
//
// The distilled specification describes the semantic groups (kind bits,
// verify, read-only, obfuscated, three reserved bits) without pinning
// down exact bit positions; this layout is this repo's resolution of that
// Open Question (see DESIGN.md).
type AttributeByte byte

const (
	attrKindMask      = 0x03
	attrReadOnlyBit   = 0x04
	attrVerifyBit     = 0x08
	attrObfuscatedBit = 0x10
	attrR1Bit         = 0x20
	attrR2Bit         = 0x40
	attrR3Bit         = 0x80
)

// Classification is the file-kind half of the classifier's output (§4.E).
type Classification int

const (
	// Binary is raw machine-code or data content.
	Binary Classification = iota
	// BASIC is tokenized BASIC source.
	BASIC
	// ASCII is plain text.
	ASCII
)

func (c Classification) String() string {
	switch c {
	case BASIC:
		return "BASIC"
	case ASCII:
		return "ASCII"
	default:
		return "Binary"
	}
}

// Kind decodes the two kind bits into a Classification. The classifier is
// total: every attribute byte yields a classification, including the
// otherwise-unused bit-pattern 3 (mapped to Binary) (§4.E).
func (a AttributeByte) Kind() Classification {
	switch a & attrKindMask {
	case 1:
		return BASIC
	case 2:
		return ASCII
	default:
		return Binary
	}
}

// Flag is one independently-decoded modifier bit (§3 "DirectoryEntry",
// §4.E).
type Flag int

const (
	ReadOnly Flag = iota
	Verify
	Obfuscated
	R1
	R2
	R3
)

func (f Flag) String() string {
	switch f {
	case ReadOnly:
		return "ReadOnly"
	case Verify:
		return "Verify"
	case Obfuscated:
		return "Obfuscated"
	case R1:
		return "R1"
	case R2:
		return "R2"
	case R3:
		return "R3"
	default:
		return "Unknown"
	}
}

// Flags decodes the independent modifier bits into a set. Unknown
// combinations of the reserved bits are preserved as R1/R2/R3 rather than
// rejected, per §4.E ("unknown bit combinations are preserved... rather
// than rejected").
func (a AttributeByte) Flags() map[Flag]bool {
	flags := make(map[Flag]bool)

	if a&attrReadOnlyBit != 0 {
		flags[ReadOnly] = true
	}
	if a&attrVerifyBit != 0 {
		flags[Verify] = true
	}
	if a&attrObfuscatedBit != 0 {
		flags[Obfuscated] = true
	}
	if a&attrR1Bit != 0 {
		flags[R1] = true
	}
	if a&attrR2Bit != 0 {
		flags[R2] = true
	}
	if a&attrR3Bit != 0 {
		flags[R3] = true
	}

	return flags
}

// Has reports whether a single flag bit is set.
func (a AttributeByte) Has(f Flag) bool {
	switch f {
	case ReadOnly:
		return a&attrReadOnlyBit != 0
	case Verify:
		return a&attrVerifyBit != 0
	case Obfuscated:
		return a&attrObfuscatedBit != 0
	case R1:
		return a&attrR1Bit != 0
	case R2:
		return a&attrR2Bit != 0
	case R3:
		return a&attrR3Bit != 0
	default:
		return false
	}
}

// ExtractedFile is the fully classified result of one directory entry:
// its body, classification, flags, and (if the scheme was known) its
// deobfuscated body (§3 "ExtractedFile").
type ExtractedFile struct {
	Entry          DirectoryEntry
	Classification Classification
	Flags          map[Flag]bool
	Body           []byte
	Deobfuscated   []byte
	DeobfuscatedOK bool
	Truncated      bool
}

// Classify turns one decoded file into a fully classified ExtractedFile,
// without yet running any deobfuscation scheme (§4.E).
func Classify(df DecodedFile) ExtractedFile {
	return ExtractedFile{
		Entry:          df.Entry,
		Classification: df.Entry.Attribute.Kind(),
		Flags:          df.Entry.Attribute.Flags(),
		Body:           df.Body,
		Truncated:      df.Truncated,
	}
}
