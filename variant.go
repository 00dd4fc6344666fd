package fat8d88

import "bytes"

// SystemTrackLocation pins down where the system track lives for a
// variant: track number plus, for double-sided layouts, which side (§3
// "Fat8Variant").
type SystemTrackLocation struct {
	Track int
	Head  byte
}

// SectorRange is an inclusive range of sector-IDs within the system track.
type SectorRange struct {
	FirstSectorID byte
	LastSectorID  byte
}

// Contains reports whether a sector-id falls within the range.
func (sr SectorRange) Contains(sectorID byte) bool {
	return sectorID >= sr.FirstSectorID && sectorID <= sr.LastSectorID
}

// Count returns the number of sectors in the range.
func (sr SectorRange) Count() int {
	return int(sr.LastSectorID) - int(sr.FirstSectorID) + 1
}

// fingerprint is the predicate a known-format table entry evaluates
// against a candidate image's geometry and boot bytes (§4.C).
type fingerprint struct {
	mediaKind        byte
	sides            int
	sectorSize       int
	sectorCount      int
	bootPrefixLength int
	bootPrefix       []byte
}

func (fp fingerprint) matches(sides, sectorSize, sectorCount int, mediaKind byte, bootPrefix []byte) bool {
	if fp.mediaKind != mediaKind {
		return false
	}
	if fp.sides != 0 && fp.sides != sides {
		return false
	}
	if fp.sectorSize != 0 && fp.sectorSize != sectorSize {
		return false
	}
	if fp.sectorCount != 0 && fp.sectorCount != sectorCount {
		return false
	}
	if fp.bootPrefixLength > 0 {
		n := fp.bootPrefixLength
		if len(bootPrefix) < n {
			return false
		}
		if !bytes.Equal(bootPrefix[:n], fp.bootPrefix[:n]) {
			return false
		}
	}
	return true
}

// Fat8Variant fully describes one on-disk FAT8 layout: geometry, cluster
// size, where the system track lives, and the sector sub-ranges within it
// (§3 "Fat8Variant").
type Fat8Variant struct {
	Name string

	Tracks            int
	Sides             int
	SectorsPerTrack   int
	SectorSize        int
	SectorsPerCluster int

	SystemTrack SystemTrackLocation

	BootSector SectorRange
	DirSectors SectorRange
	Fat1       SectorRange
	Fat2       SectorRange
	Fat3       SectorRange

	Family MachineFamily

	fp fingerprint
}

// BaseClusterNumber is the FAT8 convention that cluster numbering starts
// at 2 (§4.D "Sector materialization").
const BaseClusterNumber = 2

// knownFormats is the ordered, closed table of recognized FAT8 layouts
// (§9 "Variant dispatch": "a sum type... plus an ordered list of
// predicate+descriptor pairs... closed and small"). Entries are evaluated
// in order; the first match wins (§4.C).
var knownFormats = []Fat8Variant{
	{
		// PC-6001/6601 and Toshiba Pasopia single-sided floppy: same
		// geometry class as the base PC-8001 entry below but a different
		// charset/obfuscation family. Its fingerprint is strictly more
		// specific (geometry plus a boot-byte prefix), so it must be
		// evaluated before the PC-8001 entry or the PC-8001 entry's
		// geometry-only fingerprint would always match first and the
		// PC-6001 entry would be unreachable (§4.C "first match wins").
		Name:              "PC-6001 2D (1S/40T/16S/256B)",
		Tracks:            40,
		Sides:             1,
		SectorsPerTrack:   16,
		SectorSize:        256,
		SectorsPerCluster: 1,
		SystemTrack:       SystemTrackLocation{Track: 1, Head: 0},
		BootSector:        SectorRange{1, 1},
		DirSectors:        SectorRange{2, 9},
		Fat1:              SectorRange{10, 11},
		Fat2:              SectorRange{12, 13},
		Fat3:              SectorRange{14, 15},
		Family:            FamilyPC6001,
		fp: fingerprint{
			mediaKind:        0x00,
			sides:            1,
			sectorSize:       256,
			bootPrefixLength: 2,
			bootPrefix:       []byte{0x4d, 0x5a}, // "MZ"-style PC-6001 ID bytes
		},
	},
	{
		// Single-sided PC-8001/8801 2D floppy: directory + FAT triplicate
		// on track 1, side 0.
		Name:              "PC-8001 2D (1S/40T/16S/256B)",
		Tracks:            40,
		Sides:             1,
		SectorsPerTrack:   16,
		SectorSize:        256,
		SectorsPerCluster: 1,
		SystemTrack:       SystemTrackLocation{Track: 1, Head: 0},
		BootSector:        SectorRange{1, 1},
		DirSectors:        SectorRange{2, 9},
		Fat1:              SectorRange{10, 11},
		Fat2:              SectorRange{12, 13},
		Fat3:              SectorRange{14, 15},
		Family:            FamilyPC88,
		fp: fingerprint{
			mediaKind:  0x00,
			sides:      1,
			sectorSize: 256,
		},
	},
	{
		// Double-sided PC-8801 2D floppy: system track on side 1 of
		// track 0 (the convention many PC-8801 DOSes use to keep side 0,
		// track 0 free for a boot loader).
		Name:              "PC-8801 2D (2S/40T/16S/256B)",
		Tracks:            40,
		Sides:             2,
		SectorsPerTrack:   16,
		SectorSize:        256,
		SectorsPerCluster: 1,
		SystemTrack:       SystemTrackLocation{Track: 0, Head: 1},
		BootSector:        SectorRange{1, 1},
		DirSectors:        SectorRange{2, 9},
		Fat1:              SectorRange{10, 11},
		Fat2:              SectorRange{12, 13},
		Fat3:              SectorRange{14, 15},
		Family:            FamilyPC88,
		fp: fingerprint{
			mediaKind:  0x00,
			sides:      2,
			sectorSize: 256,
		},
	},
	{
		// PC-9801 2HD floppy: higher density, larger clusters, but the
		// same triplicate-FAT-on-a-system-track shape.
		Name:              "PC-9801 2HD (2S/77T/8S/1024B)",
		Tracks:            77,
		Sides:             2,
		SectorsPerTrack:   8,
		SectorSize:        1024,
		SectorsPerCluster: 1,
		SystemTrack:       SystemTrackLocation{Track: 1, Head: 0},
		BootSector:        SectorRange{1, 1},
		DirSectors:        SectorRange{2, 4},
		Fat1:              SectorRange{5, 5},
		Fat2:              SectorRange{6, 6},
		Fat3:              SectorRange{7, 7},
		Family:            FamilyPC98,
		fp: fingerprint{
			mediaKind:  0x20,
			sides:      2,
			sectorSize: 1024,
		},
	},
}

// geometrySummary is what the detector collects from a DiskImage before
// consulting the known-format table (§4.C).
type geometrySummary struct {
	sides      int
	sectorSize int
	sideZero   []Sector
	bootPrefix []byte
	mediaKind  byte
}

func summarizeGeometry(di *DiskImage) geometrySummary {
	sideZero := di.SectorsOnTrackZeroSideZero()

	sides := 1
	for key := range di.Sectors {
		if key.Head > 0 {
			sides = 2
			break
		}
	}

	sectorSize := 0
	if len(sideZero) > 0 {
		sectorSize = sideZero[0].Header.DeclaredSize()
	}

	return geometrySummary{
		sides:      sides,
		sectorSize: sectorSize,
		sideZero:   sideZero,
		bootPrefix: di.firstSectorPrefix(),
		mediaKind:  di.Header.MediaKind,
	}
}

// DetectVariant evaluates the known-format table in order against the
// image's geometry and boot bytes, returning the first matching
// Fat8Variant (§4.C). If nothing matches, it returns an UnknownFormat
// error.
func DetectVariant(di *DiskImage) (*Fat8Variant, error) {
	summary := summarizeGeometry(di)

	for i := range knownFormats {
		candidate := knownFormats[i]
		if candidate.fp.matches(summary.sides, summary.sectorSize, len(summary.sideZero), summary.mediaKind, summary.bootPrefix) {
			v := candidate
			return &v, nil
		}
	}

	return nil, newStructuralError(UnknownFormat, "no known FAT8 layout fingerprint matched (sides=%d sector-size=%d sector-count=%d media-kind=0x%02x)", summary.sides, summary.sectorSize, len(summary.sideZero), summary.mediaKind)
}
