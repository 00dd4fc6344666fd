package fat8d88

import (
	"reflect"

	"github.com/boljen/go-bitmap"
	"github.com/dsoprea/go-logging"
)

const (
	// directoryEntrySize is the fixed on-disk size of one directory
	// entry (§3 "DirectoryEntry").
	directoryEntrySize = 16

	// nameFieldSize and extFieldSize are the widths of the two
	// space-padded name components.
	nameFieldSize = 6
	extFieldSize  = 3
)

// DirectoryEntry is the decoded form of one 16-byte on-disk directory
// record (§3, §6).
type DirectoryEntry struct {
	RawName      [nameFieldSize]byte
	RawExt       [extFieldSize]byte
	Attribute    AttributeByte
	StartCluster byte
	Reserved     [5]byte
}

func parseDirectoryEntry(raw []byte) (de DirectoryEntry, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	if len(raw) != directoryEntrySize {
		log.Panicf("directory entry must be exactly %d bytes, got %d", directoryEntrySize, len(raw))
	}

	copy(de.RawName[:], raw[0:6])
	copy(de.RawExt[:], raw[6:9])
	de.Attribute = AttributeByte(raw[9])
	de.StartCluster = raw[10]
	copy(de.Reserved[:], raw[11:16])

	return de, nil
}

// directoryEntrySentinel classifies the first byte of a would-be
// directory entry (§3, §4.D).
type directoryEntrySentinel int

const (
	sentinelNone directoryEntrySentinel = iota
	sentinelEndOfDirectory
	sentinelFree
)

func classifySentinel(firstByte byte) directoryEntrySentinel {
	switch firstByte {
	case 0x00:
		return sentinelEndOfDirectory
	case 0xFF:
		return sentinelFree
	default:
		return sentinelNone
	}
}

// scanDirectory concatenates the variant's directory sectors into a
// contiguous run and decodes entries in on-disk order, stopping at the
// end-of-directory sentinel or an exhausted region (§9 Open Question: an
// implicit end when neither sentinel appears). A malformed entry is
// recorded as MalformedDirectoryEntry and skipped (§4.D "Directory scan").
func scanDirectory(di *DiskImage, variant *Fat8Variant, errLog *ErrorLog) []DirectoryEntry {
	region := concatSectorRange(di, variant, variant.DirSectors)

	var entries []DirectoryEntry
	for offset := 0; offset+directoryEntrySize <= len(region); offset += directoryEntrySize {
		raw := region[offset : offset+directoryEntrySize]

		switch classifySentinel(raw[0]) {
		case sentinelEndOfDirectory:
			return entries
		case sentinelFree:
			continue
		}

		de, err := parseDirectoryEntry(raw)
		if err != nil {
			errLog.Add(MalformedDirectoryEntry, "directory offset %d: %s", offset, err)
			continue
		}

		entries = append(entries, de)
	}

	// Implicit end-of-directory: the region was exhausted without ever
	// seeing 0x00 (§9 Open Question).
	return entries
}

// concatSectorRange reads the given sector-id range on the variant's
// system track and concatenates their payloads in sector-id order.
func concatSectorRange(di *DiskImage, variant *Fat8Variant, rng SectorRange) []byte {
	var out []byte
	for sectorID := rng.FirstSectorID; sectorID <= rng.LastSectorID; sectorID++ {
		key := SectorKey{
			Cylinder: byte(variant.SystemTrack.Track),
			Head:     variant.SystemTrack.Head,
			SectorID: sectorID,
		}

		sector, found := di.GetSector(key)
		if !found {
			out = append(out, make([]byte, variant.SectorSize)...)
			continue
		}
		out = append(out, sector.Data...)
	}
	return out
}

// FatSlotValue is one byte of one FAT copy (§3 "FatChain", §6).
type FatSlotValue byte

// IsFree reports the free-cluster sentinel.
func (v FatSlotValue) IsFree() bool { return v == 0xFF }

// IsBad reports the bad-cluster sentinel.
func (v FatSlotValue) IsBad() bool { return v == 0xFE }

// IsTerminal reports the terminal-cluster range 0xC0..0xC7.
func (v FatSlotValue) IsTerminal() bool { return v >= 0xC0 && v <= 0xC7 }

// TerminalSectorCount decodes the low 3 bits of a terminal value into the
// number of sectors of data the terminal cluster holds (§3 "FatChain").
func (v FatSlotValue) TerminalSectorCount() int {
	return int(v&0x07) + 1
}

// IsNextPointer reports whether the value points at another cluster
// (0x00..0x7F).
func (v FatSlotValue) IsNextPointer() bool { return v <= 0x7F }

// reconcileFat reads the three FAT copies named by the variant and
// returns the majority value per slot, recording a FatDisagreement for
// every slot where the three copies don't unanimously agree (§3
// "FatChain" invariant, §4.D "FAT reconciliation").
func reconcileFat(di *DiskImage, variant *Fat8Variant, errLog *ErrorLog) []FatSlotValue {
	copy1 := concatSectorRange(di, variant, variant.Fat1)
	copy2 := concatSectorRange(di, variant, variant.Fat2)
	copy3 := concatSectorRange(di, variant, variant.Fat3)

	slotCount := len(copy1)
	if len(copy2) < slotCount {
		slotCount = len(copy2)
	}
	if len(copy3) < slotCount {
		slotCount = len(copy3)
	}

	reconciled := make([]FatSlotValue, slotCount)

	for i := 0; i < slotCount; i++ {
		a, b, c := copy1[i], copy2[i], copy3[i]

		switch {
		case a == b && a == c:
			reconciled[i] = FatSlotValue(a)
		case a == b || a == c:
			reconciled[i] = FatSlotValue(a)
			errLog.Add(FatDisagreement, "slot %d: copies disagree (0x%02x, 0x%02x, 0x%02x); using majority 0x%02x", i, a, b, c, a)
		case b == c:
			reconciled[i] = FatSlotValue(b)
			errLog.Add(FatDisagreement, "slot %d: copies disagree (0x%02x, 0x%02x, 0x%02x); using majority 0x%02x", i, a, b, c, b)
		default:
			// All three differ: prefer copy 1, then 2, then 3 (§3).
			reconciled[i] = FatSlotValue(a)
			errLog.Add(FatDisagreement, "slot %d: copies disagree (0x%02x, 0x%02x, 0x%02x); using copy 1", i, a, b, c)
		}
	}

	return reconciled
}

// clusterToSectors maps a cluster number to the (C, H, R) sector
// addresses it occupies, per the variant's geometry and the base-cluster-
// 2 convention (§4.D "Sector materialization").
func clusterToSectors(variant *Fat8Variant, clusterNumber int) []SectorKey {
	sectorsPerCluster := variant.SectorsPerCluster
	if sectorsPerCluster < 1 {
		sectorsPerCluster = 1
	}

	// systemTrackIndex is the system track's position in the same
	// head-interleaved track sequence used below, so it can be compared
	// directly against a data-only track counter.
	systemTrackIndex := variant.SystemTrack.Track
	if variant.Sides == 2 {
		systemTrackIndex = variant.SystemTrack.Track*2 + int(variant.SystemTrack.Head)
	}

	firstLinearSector := (clusterNumber - BaseClusterNumber) * sectorsPerCluster

	keys := make([]SectorKey, 0, sectorsPerCluster)
	for i := 0; i < sectorsPerCluster; i++ {
		linear := firstLinearSector + i

		sectorsPerSide := variant.SectorsPerTrack
		dataTrackIndex := linear / sectorsPerSide
		sectorInTrack := linear % sectorsPerSide

		// The system track holds the boot sector, directory, and FAT
		// triplicate, so it is never part of the data address space: once
		// the data-track counter reaches the system track's position,
		// every following track is shifted out by one (§4.D "Sector
		// materialization").
		trackIndex := dataTrackIndex
		if trackIndex >= systemTrackIndex {
			trackIndex++
		}

		track := trackIndex
		head := byte(0)
		if variant.Sides == 2 {
			head = byte(trackIndex % 2)
			track = trackIndex / 2
		}

		keys = append(keys, SectorKey{
			Cylinder: byte(track),
			Head:     head,
			SectorID: byte(sectorInTrack + 1),
		})
	}

	return keys
}

// chainWalkResult is the outcome of following one file's cluster chain.
type chainWalkResult struct {
	body       []byte
	truncated  bool
	clustersOK int
}

// walkChain follows next-pointers from startCluster until a terminal
// value, materializing sectors into the file body as it goes (§4.D
// "Chain walk", "Sector materialization"). Cycle detection uses a compact
// bitmap over the FAT8 cluster-number space (≤256 entries), per the §9
// design note, instead of an O(n) visited-set scan.
func walkChain(di *DiskImage, variant *Fat8Variant, fat []FatSlotValue, startCluster byte, errLog *ErrorLog) chainWalkResult {
	visited := bitmap.New(256)

	var body []byte
	current := int(startCluster)
	truncated := false
	clustersOK := 0

	for {
		if current < 0 || current > 255 || visited.Get(current) {
			errLog.Add(ChainCycle, "cluster %d revisited", current)
			truncated = true
			break
		}
		visited.Set(current, true)

		slotIndex := current - BaseClusterNumber
		if slotIndex < 0 || slotIndex >= len(fat) {
			errLog.Add(ChainOutOfRange, "cluster %d has no FAT slot (fat has %d entries)", current, len(fat))
			truncated = true
			break
		}

		value := fat[slotIndex]

		switch {
		case value.IsTerminal():
			sectorCount := value.TerminalSectorCount()
			appendClusterSectors(di, variant, current, sectorCount, &body, errLog)
			clustersOK++
			return chainWalkResult{body: body, truncated: truncated, clustersOK: clustersOK}

		case value.IsNextPointer():
			appendClusterSectors(di, variant, current, variant.SectorsPerCluster, &body, errLog)
			clustersOK++
			current = int(value)

		default:
			// Free (0xFF) or bad (0xFE): a next-pointer should never
			// land here.
			errLog.Add(ChainCorrupt, "cluster %d points at free/bad slot (value 0x%02x)", current, byte(value))
			truncated = true
			return chainWalkResult{body: body, truncated: truncated, clustersOK: clustersOK}
		}
	}

	return chainWalkResult{body: body, truncated: truncated, clustersOK: clustersOK}
}

func appendClusterSectors(di *DiskImage, variant *Fat8Variant, clusterNumber int, sectorCount int, body *[]byte, errLog *ErrorLog) {
	keys := clusterToSectors(variant, clusterNumber)

	for i, key := range keys {
		if i >= sectorCount {
			break
		}

		sector, found := di.GetSector(key)
		if !found {
			errLog.Add(MissingSector, "cluster %d: sector (C=%d H=%d R=%d) not found", clusterNumber, key.Cylinder, key.Head, key.SectorID)
			*body = append(*body, make([]byte, variant.SectorSize)...)
			continue
		}

		*body = append(*body, sector.Data...)
	}
}

// DecodedFile is the directory entry plus its materialized, pre-
// classification body (§3 "ExtractedFile" before classification).
type DecodedFile struct {
	Entry     DirectoryEntry
	Body      []byte
	Truncated bool
}

// DecodeFilesystem runs the full §4.D pipeline against one disk image
// under the given variant: directory scan, FAT reconciliation, and one
// chain walk per entry. Structural errors are recorded on errLog and
// never abort the image (§4.H propagation policy).
func DecodeFilesystem(di *DiskImage, variant *Fat8Variant, errLog *ErrorLog) []DecodedFile {
	entries := scanDirectory(di, variant, errLog)
	fat := reconcileFat(di, variant, errLog)

	files := make([]DecodedFile, 0, len(entries))
	for _, entry := range entries {
		result := walkChain(di, variant, fat, entry.StartCluster, errLog)
		files = append(files, DecodedFile{
			Entry:     entry,
			Body:      result.body,
			Truncated: result.truncated,
		})
	}

	return files
}
