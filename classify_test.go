package fat8d88

import "testing"

func TestAttributeByte_Kind(t *testing.T) {
	cases := []struct {
		attr byte
		want Classification
	}{
		{0x00, Binary},
		{0x01, BASIC},
		{0x02, ASCII},
		{0x03, Binary}, // reserved pattern falls back to Binary
	}

	for _, c := range cases {
		if got := AttributeByte(c.attr).Kind(); got != c.want {
			t.Fatalf("attribute 0x%02x: got %s, want %s", c.attr, got, c.want)
		}
	}
}

func TestAttributeByte_Flags(t *testing.T) {
	a := AttributeByte(attrReadOnlyBit | attrObfuscatedBit)

	flags := a.Flags()

	if !flags[ReadOnly] {
		t.Fatalf("expected ReadOnly flag set")
	}
	if !flags[Obfuscated] {
		t.Fatalf("expected Obfuscated flag set")
	}
	if flags[Verify] {
		t.Fatalf("did not expect Verify flag set")
	}
	if len(flags) != 2 {
		t.Fatalf("expected exactly 2 flags set, got %d", len(flags))
	}
}

func TestAttributeByte_Has(t *testing.T) {
	a := AttributeByte(attrVerifyBit)

	if !a.Has(Verify) {
		t.Fatalf("expected Has(Verify) true")
	}
	if a.Has(ReadOnly) {
		t.Fatalf("expected Has(ReadOnly) false")
	}
}

func TestAttributeByte_ReservedBitsPreserved(t *testing.T) {
	a := AttributeByte(attrR1Bit | attrR2Bit | attrR3Bit)

	flags := a.Flags()
	if !flags[R1] || !flags[R2] || !flags[R3] {
		t.Fatalf("expected all three reserved bits preserved as flags, got %v", flags)
	}
}

func TestClassify(t *testing.T) {
	df := DecodedFile{
		Entry: DirectoryEntry{
			Attribute:    AttributeByte(1 | attrObfuscatedBit),
			StartCluster: 2,
		},
		Body:      []byte{1, 2, 3},
		Truncated: true,
	}

	ef := Classify(df)

	if ef.Classification != BASIC {
		t.Fatalf("expected BASIC classification, got %s", ef.Classification)
	}
	if !ef.Flags[Obfuscated] {
		t.Fatalf("expected Obfuscated flag set")
	}
	if !ef.Truncated {
		t.Fatalf("expected Truncated to carry through from DecodedFile")
	}
}
