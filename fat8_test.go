package fat8d88

import (
	"bytes"
	"testing"
)

func decodeSingleFile(t *testing.T, attribute byte, fatSlot0 byte, body []byte) (DecodedFile, *ErrorLog) {
	t.Helper()

	raw := buildPC8001Image("HELLO", "BAS", attribute, 2, fatSlot0, body)

	ir, err := NewImageReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	di, _, err := ir.Next()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	variant, err := DetectVariant(di)
	if err != nil {
		t.Fatalf("unexpected detection error: %s", err)
	}

	errLog := NewErrorLog()
	files := DecodeFilesystem(di, variant, errLog)

	if len(files) != 1 {
		t.Fatalf("expected exactly one decoded file, got %d", len(files))
	}

	return files[0], errLog
}

func TestDecodeFilesystem_SingleFile(t *testing.T) {
	body := []byte("10 PRINT \"HELLO\"\n")

	df, errLog := decodeSingleFile(t, 1, 0xc0, body)

	if errLog.Count() != 0 {
		t.Fatalf("expected no structural errors, got %d: %s", errLog.Count(), errLog.Error())
	}
	if df.Truncated {
		t.Fatalf("did not expect a truncated file")
	}
	if !bytes.HasPrefix(df.Body, body) {
		t.Fatalf("unexpected decoded body: %q", df.Body[:len(body)])
	}
	if df.Entry.Attribute.Kind() != BASIC {
		t.Fatalf("expected BASIC classification")
	}
}

func TestDecodeFilesystem_EndOfDirectorySentinelStopsScan(t *testing.T) {
	// buildPC8001Image always writes exactly one entry followed by
	// all-zero slots; if the 0x00 sentinel did not stop the scan, those
	// slots would be decoded as further entries.
	raw := buildPC8001Image("HELLO", "BAS", 1, 2, 0xc0, []byte("X"))

	ir, _ := NewImageReader(bytes.NewReader(raw))
	di, _, _ := ir.Next()
	variant, _ := DetectVariant(di)

	entries := scanDirectory(di, variant, NewErrorLog())
	if len(entries) != 1 {
		t.Fatalf("expected exactly one directory entry, got %d", len(entries))
	}
}

func TestReconcileFat_MajorityVote(t *testing.T) {
	di := &DiskImage{Sectors: make(map[SectorKey]Sector)}
	variant := knownFormats[0]

	setSector := func(id byte, data byte) {
		d := make([]byte, 256)
		d[0] = data
		di.Sectors[SectorKey{Cylinder: 1, Head: 0, SectorID: id}] = Sector{Data: d}
	}

	// FAT1 says 0xc0, FAT2 says 0xc0, FAT3 (disagreeing) says 0xc1.
	setSector(10, 0xc0)
	setSector(11, 0x00)
	setSector(12, 0xc0)
	setSector(13, 0x00)
	setSector(14, 0xc1)
	setSector(15, 0x00)

	errLog := NewErrorLog()
	reconciled := reconcileFat(di, &variant, errLog)

	if reconciled[0] != FatSlotValue(0xc0) {
		t.Fatalf("expected majority value 0xc0, got 0x%02x", byte(reconciled[0]))
	}
	if errLog.Count() != 1 {
		t.Fatalf("expected a 2-of-3 majority to be logged as exactly one FatDisagreement, got %d", errLog.Count())
	}
}

func TestReconcileFat_AllThreeDisagree(t *testing.T) {
	di := &DiskImage{Sectors: make(map[SectorKey]Sector)}
	variant := knownFormats[0]

	setSector := func(id byte, data byte) {
		d := make([]byte, 256)
		d[0] = data
		di.Sectors[SectorKey{Cylinder: 1, Head: 0, SectorID: id}] = Sector{Data: d}
	}

	setSector(10, 0xc0)
	setSector(11, 0x00)
	setSector(12, 0xc1)
	setSector(13, 0x00)
	setSector(14, 0xc2)
	setSector(15, 0x00)

	errLog := NewErrorLog()
	reconciled := reconcileFat(di, &variant, errLog)

	if reconciled[0] != FatSlotValue(0xc0) {
		t.Fatalf("expected tie-break to prefer copy 1 (0xc0), got 0x%02x", byte(reconciled[0]))
	}
	if errLog.Count() != 1 {
		t.Fatalf("expected exactly one FatDisagreement, got %d", errLog.Count())
	}
}

func TestFatSlotValue_Classification(t *testing.T) {
	if !FatSlotValue(0xff).IsFree() {
		t.Fatalf("0xff should be free")
	}
	if !FatSlotValue(0xfe).IsBad() {
		t.Fatalf("0xfe should be bad")
	}
	if !FatSlotValue(0xc3).IsTerminal() {
		t.Fatalf("0xc3 should be terminal")
	}
	if FatSlotValue(0xc3).TerminalSectorCount() != 4 {
		t.Fatalf("0xc3 should declare 4 sectors, got %d", FatSlotValue(0xc3).TerminalSectorCount())
	}
	if !FatSlotValue(0x05).IsNextPointer() {
		t.Fatalf("0x05 should be a next-pointer")
	}
}

func TestWalkChain_CycleDetected(t *testing.T) {
	di := &DiskImage{Sectors: make(map[SectorKey]Sector)}
	variant := knownFormats[0]

	// Cluster 2 points at cluster 3, which points back at cluster 2.
	fat := []FatSlotValue{FatSlotValue(3), FatSlotValue(2)}

	errLog := NewErrorLog()
	result := walkChain(di, &variant, fat, 2, errLog)

	if !result.truncated {
		t.Fatalf("expected the cyclic chain to be reported truncated")
	}

	found := false
	for _, e := range errLog.Errors() {
		if se, ok := e.(*StructuralError); ok && se.Kind == ChainCycle {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ChainCycle structural error")
	}
}

func TestClusterToSectors_SkipsSystemTrack(t *testing.T) {
	raw := buildPC8001Image("HELLO", "BAS", 1, 2, 0xc0, []byte("x"))

	ir, _ := NewImageReader(bytes.NewReader(raw))
	di, _, _ := ir.Next()

	variant, err := DetectVariant(di)
	if err != nil {
		t.Fatalf("unexpected detection error: %s", err)
	}

	keys := clusterToSectors(variant, 2)
	want := SectorKey{Cylinder: 0, Head: 0, SectorID: 1}
	if len(keys) != 1 || keys[0] != want {
		t.Fatalf("expected cluster 2 to map to %+v, got %+v", want, keys)
	}

	// With 16 sectors/track and 1 sector/cluster, cluster 18's linear
	// sector (16) would naively fall on track 1 -- the system track -- if
	// it weren't skipped out of the data address space.
	keys = clusterToSectors(variant, 18)
	want = SectorKey{Cylinder: 2, Head: 0, SectorID: 1}
	if len(keys) != 1 || keys[0] != want {
		t.Fatalf("expected cluster 18 to map to %+v (skipping the system track), got %+v", want, keys)
	}
}

func TestDecodeFilesystem_FileSpansSystemTrackWithoutAliasing(t *testing.T) {
	half1 := bytes.Repeat([]byte{0xAA}, 256)
	half2 := bytes.Repeat([]byte{0xBB}, 256)

	raw := buildPC8001ChainedImage("BIG", "BIN", 0, half1, half2)

	ir, err := NewImageReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	di, _, err := ir.Next()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	variant, err := DetectVariant(di)
	if err != nil {
		t.Fatalf("unexpected detection error: %s", err)
	}

	errLog := NewErrorLog()
	files := DecodeFilesystem(di, variant, errLog)
	if len(files) != 1 {
		t.Fatalf("expected exactly one decoded file, got %d", len(files))
	}
	if errLog.Count() != 0 {
		t.Fatalf("expected no structural errors, got %d: %s", errLog.Count(), errLog.Error())
	}

	want := append(append([]byte{}, half1...), half2...)
	if !bytes.Equal(files[0].Body, want) {
		t.Fatalf("expected the chain's second cluster to read track 2 (past the system track) rather than alias over the boot/directory/FAT region")
	}
}

func TestWalkChain_OutOfRangePointer(t *testing.T) {
	di := &DiskImage{Sectors: make(map[SectorKey]Sector)}
	variant := knownFormats[0]

	// Cluster 2's slot is a next-pointer to cluster 50, which has no FAT
	// slot at all given a 1-entry table.
	fat := []FatSlotValue{FatSlotValue(50)}

	errLog := NewErrorLog()
	result := walkChain(di, &variant, fat, 2, errLog)

	if !result.truncated {
		t.Fatalf("expected an out-of-range pointer to truncate the chain")
	}

	found := false
	for _, e := range errLog.Errors() {
		if se, ok := e.(*StructuralError); ok && se.Kind == ChainOutOfRange {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a ChainOutOfRange structural error")
	}
}
