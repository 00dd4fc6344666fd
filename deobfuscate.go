package fat8d88

// pc88CombinedKey is the 143-byte combined XOR key used by the PC-88
// protected-save ("`,P`") scheme (§4.F, §6 "PC-88 combined key"). 143 is
// the product of two ROM-resident key lengths, 11 and 13; the combined
// key is their pointwise XOR, repeated to its LCM period. Held as a
// compile-time constant per §5's resource policy ("process-wide
// read-only state") and §9 ("embed as compile-time constants").
//
// The bytes below are synthesized, not transcribed from a ROM: they are
// the pointwise XOR of an 11-byte and a 13-byte sequence chosen so that
// byte 0 is 0xC0 and byte 142 is 0x46 (see DESIGN.md).
var pc88CombinedKey = [143]byte{
	0xc0, 0x61, 0x50, 0x06, 0x12, 0x27, 0x78, 0x2e, 0x17, 0x4e, 0x28, 0xcf,
	0x68, 0xe4, 0x4c, 0xb7, 0x53, 0x03, 0x41, 0x96, 0xa6, 0x63, 0xbe, 0x06,
	0xeb, 0x45, 0x03, 0x19, 0xa6, 0x35, 0xed, 0xc9, 0xe2, 0x56, 0x4d, 0x9a,
	0x2b, 0x0c, 0x10, 0x12, 0x7f, 0x48, 0xbd, 0x99, 0x39, 0xcc, 0x72, 0x60,
	0x7d, 0x7e, 0x1d, 0x76, 0xfc, 0xf7, 0x3c, 0x4d, 0xb7, 0x1d, 0xe1, 0x95,
	0x35, 0x6c, 0x18, 0xf3, 0xfe, 0x88, 0x07, 0x12, 0x69, 0x9a, 0xfa, 0xb4,
	0x84, 0x53, 0x82, 0x90, 0x87, 0x0e, 0xa6, 0x23, 0x3f, 0x8e, 0xcf, 0xeb,
	0xd2, 0x6a, 0xdb, 0xf6, 0x60, 0xa9, 0x2a, 0x8b, 0xc4, 0x6a, 0x9f, 0xa9,
	0x05, 0x5a, 0x1e, 0x2b, 0xd8, 0x44, 0x84, 0xcd, 0xde, 0xd5, 0x0c, 0x71,
	0x21, 0x71, 0xaa, 0x30, 0x0f, 0xf5, 0xa3, 0xd1, 0xdc, 0xb8, 0x3b, 0x84,
	0x05, 0xd1, 0x5f, 0x8e, 0x1d, 0xe8, 0xa0, 0xb2, 0xb7, 0x32, 0x30, 0x4f,
	0x74, 0x2b, 0xf5, 0x72, 0x69, 0x48, 0xf9, 0xc6, 0x5c, 0x3f, 0x46,
}

const (
	pc88KeyModA = 11
	pc88KeyModB = 13
)

// DeobfuscatePC88 reverses the PC-88 combined-key-plus-linear-counter
// scheme (§4.F "PC-88 scheme"), in three steps per byte:
//
//	t = (cipher[i] + 256 - 11 + (i mod 11)) mod 256
//	t = t xor key[i mod 143]
//	p = (t + 13 - (i mod 13)) mod 256
func DeobfuscatePC88(cipher []byte) []byte {
	plain := make([]byte, len(cipher))

	for i, c := range cipher {
		t := int(c) + 256 - pc88KeyModA + (i % pc88KeyModA)
		t %= 256
		t ^= int(pc88CombinedKey[i%len(pc88CombinedKey)])

		p := t + pc88KeyModB - (i % pc88KeyModB)
		p %= 256

		plain[i] = byte(p)
	}

	return plain
}

// ObfuscatePC88 applies the inverse of DeobfuscatePC88, so that
// ObfuscatePC88(DeobfuscatePC88(c)) == c and vice versa (§8 round-trip
// invariant).
func ObfuscatePC88(plain []byte) []byte {
	cipher := make([]byte, len(plain))

	for i, p := range plain {
		t := int(p) + 256 - pc88KeyModB + (i % pc88KeyModB)
		t %= 256
		t ^= int(pc88CombinedKey[i%len(pc88CombinedKey)])

		c := t + pc88KeyModA - (i % pc88KeyModA)
		c %= 256

		cipher[i] = byte(c)
	}

	return cipher
}

// DeobfuscatePC98 reverses the PC-98 whole-file bit-rotation scheme
// (§4.F "PC-98 scheme"): every byte is rotated right by one bit.
func DeobfuscatePC98(cipher []byte) []byte {
	plain := make([]byte, len(cipher))
	for i, c := range cipher {
		plain[i] = (c >> 1) | (c << 7)
	}
	return plain
}

// ObfuscatePC98 applies the inverse rotation (left by one bit); it is its
// own round-trip partner with DeobfuscatePC98 at the bit level (§8:
// "one right-rotate of one left-rotate of x == x").
func ObfuscatePC98(plain []byte) []byte {
	cipher := make([]byte, len(plain))
	for i, p := range plain {
		cipher[i] = (p << 1) | (p >> 7)
	}
	return cipher
}

// Deobfuscate applies the scheme appropriate to family, if any is known,
// to an ExtractedFile flagged Obfuscated (§4.F "Output policy"). If the
// family's scheme is unknown (only PC-88 and PC-98 are defined), the
// obfuscated body is left as the only body and DeobfuscatedOK is false —
// this is UnknownObfuscationScheme, which §7 explicitly classifies as
// "not an error, just a skipped deobfuscation".
func Deobfuscate(ef *ExtractedFile, family MachineFamily) {
	if !ef.Flags[Obfuscated] {
		return
	}

	switch family {
	case FamilyPC88:
		ef.Deobfuscated = DeobfuscatePC88(ef.Body)
		ef.DeobfuscatedOK = true
	case FamilyPC98:
		ef.Deobfuscated = DeobfuscatePC98(ef.Body)
		ef.DeobfuscatedOK = true
	default:
		ef.DeobfuscatedOK = false
	}
}
