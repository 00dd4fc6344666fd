package fat8d88

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"

	"github.com/dsoprea/go-logging"
	"github.com/go-restruct/restruct"
)

// defaultEncoding is the byte order used to decode every on-disk
// structure in this package; the D88 format and the FAT8 structures it
// carries are both little-endian throughout (§6).
var defaultEncoding = binary.LittleEndian

const (
	// d88HeaderSize is the fixed size of the D88 per-image header (§6).
	d88HeaderSize = 688

	// trackTableEntryCount is the number of track-start-offset slots in
	// the D88 header.
	trackTableEntryCount = 164

	// sectorHeaderSize is the fixed size of one CHRN sector header (§6).
	sectorHeaderSize = 16
)

// D88Header is the 688-byte per-image header described in §6.
type D88Header struct {
	DiskName         [17]byte
	Reserved         [9]byte
	WriteProtect     byte
	MediaKind        byte
	ImageSize        uint32
	TrackOffsetTable [trackTableEntryCount]uint32
}

// IsWriteProtected reports the write-protect flag (0x10 = protected).
func (h D88Header) IsWriteProtected() bool {
	return h.WriteProtect == 0x10
}

// SectorHeader is the 16-byte CHRN header preceding each sector's payload
// (§6).
type SectorHeader struct {
	Cylinder        byte
	Head            byte
	SectorID        byte
	N               byte
	SectorsPerTrack uint16
	Density         byte
	DeletedFlag     byte
	Status          byte
	Reserved        [5]byte
	DataLength      uint16
}

// DeclaredSize decodes the N field (0..3) into the nominal sector size in
// bytes (§3 "Sector").
func (sh SectorHeader) DeclaredSize() int {
	switch sh.N {
	case 0:
		return 128
	case 1:
		return 256
	case 2:
		return 512
	case 3:
		return 1024
	default:
		return 128 << sh.N
	}
}

// IsDeleted reports the sector's deleted-data flag.
func (sh SectorHeader) IsDeleted() bool {
	return sh.DeletedFlag != 0
}

// SectorKey addresses one sector by its logical (cylinder, head, sector-id)
// tuple (§3 "DiskImage").
type SectorKey struct {
	Cylinder byte
	Head     byte
	SectorID byte
}

// Sector is one physical sector: its header plus its raw payload. If the
// header's data-length field disagrees with the size its N field
// declares, the sector is flagged Malformed; the payload is always
// clamped/zero-padded to the N-declared size.
type Sector struct {
	Header    SectorHeader
	Data      []byte
	Malformed bool
}

// DiskImage is one logical floppy image: its header and a sector index
// keyed by (C, H, R) (§3 "DiskImage").
type DiskImage struct {
	Header  D88Header
	Sectors map[SectorKey]Sector

	// Track-table slot numbers of the tracks that were parsed, in
	// ascending order of their track offsets.
	TrackOrder []int
}

// SectorsOnTrackZeroSideZero returns the sectors belonging to (cylinder=0,
// head=0), in ascending sector-ID order, for use by the geometry detector.
func (di *DiskImage) SectorsOnTrackZeroSideZero() []Sector {
	var out []Sector
	for key, sector := range di.Sectors {
		if key.Cylinder == 0 && key.Head == 0 {
			out = append(out, sector)
		}
	}
	// Deterministic ascending order by sector-id.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Header.SectorID < out[j-1].Header.SectorID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// GetSector looks up one sector by its logical address.
func (di *DiskImage) GetSector(key SectorKey) (Sector, bool) {
	s, found := di.Sectors[key]
	return s, found
}

func parseStruct(raw []byte, x interface{}) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	err = restruct.Unpack(raw, defaultEncoding, x)
	log.PanicIf(err)

	return nil
}

// ImageReader walks a concatenated sequence of D88 images, producing a
// DiskImage at a time (§4.B). It holds the entire input buffered in
// memory, consistent with §5's resource policy ("the entire disk image is
// held in memory").
type ImageReader struct {
	buf    []byte
	offset int
	index  int
}

// NewImageReader buffers all of r and returns an iterator over its
// concatenated D88 images.
func NewImageReader(r io.Reader) (*ImageReader, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, log.Wrap(err)
	}

	return &ImageReader{buf: buf}, nil
}

// Done reports whether the reader has reached the end of the buffered
// stream.
func (ir *ImageReader) Done() bool {
	return ir.offset >= len(ir.buf)
}

// Next decodes and returns the next DiskImage in the stream. It returns
// io.EOF once the stream is exhausted (a zero-length remainder, or a
// declared image size of zero, both terminate per §4.B).
func (ir *ImageReader) Next() (di *DiskImage, imageIndex int, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	if ir.offset >= len(ir.buf) {
		return nil, 0, io.EOF
	}

	base := ir.offset
	remaining := ir.buf[base:]

	if len(remaining) < d88HeaderSize {
		return nil, 0, newStructuralError(TruncatedStream, "only %d bytes left, need %d for a D88 header", len(remaining), d88HeaderSize)
	}

	var header D88Header
	err = parseStruct(remaining[:d88HeaderSize], &header)
	log.PanicIf(err)

	if header.ImageSize == 0 {
		return nil, 0, io.EOF
	}

	if int(header.ImageSize) > len(remaining) {
		return nil, 0, newStructuralError(MalformedContainer, "declared image size %d exceeds remaining stream length %d", header.ImageSize, len(remaining))
	}

	imageBytes := remaining[:header.ImageSize]

	// The header is valid and its declared size fits the remaining
	// stream, so this image's span is now known for certain: advance past
	// it before attempting to parse its body. That way a malformed body
	// (bad track offsets, truncated sector payloads) still leaves the
	// reader positioned at the next image on return, instead of getting
	// stuck replaying the same failure forever (§7 "container... errors
	// abort the current image... continue to next image").
	ir.offset = base + int(header.ImageSize)
	imageIndex = ir.index
	ir.index++

	di, bodyErr := parseOneImage(header, imageBytes)
	if bodyErr != nil {
		return nil, imageIndex, bodyErr
	}

	return di, imageIndex, nil
}

func parseOneImage(header D88Header, imageBytes []byte) (di *DiskImage, err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	di = &DiskImage{
		Header:  header,
		Sectors: make(map[SectorKey]Sector),
	}

	// Collect the non-zero track offsets in ascending order, per §4.B
	// ("for each non-zero track offset in ascending order").
	type trackEntry struct {
		slot   int
		offset uint32
	}

	var tracks []trackEntry
	for slot, offset := range header.TrackOffsetTable {
		if offset != 0 {
			tracks = append(tracks, trackEntry{slot: slot, offset: offset})
		}
	}

	for i := 0; i < len(tracks); i++ {
		for j := i + 1; j < len(tracks); j++ {
			if tracks[j].offset < tracks[i].offset {
				tracks[i], tracks[j] = tracks[j], tracks[i]
			}
		}
	}

	for i, track := range tracks {
		if int(track.offset) >= len(imageBytes) {
			return nil, newStructuralError(MalformedContainer, "track offset %d lies outside the image (size %d)", track.offset, len(imageBytes))
		}

		trackEnd := len(imageBytes)
		if i+1 < len(tracks) {
			trackEnd = int(tracks[i+1].offset)
		}

		err = parseTrack(di, imageBytes[track.offset:trackEnd])
		log.PanicIf(err)

		di.TrackOrder = append(di.TrackOrder, track.slot)
	}

	return di, nil
}

func parseTrack(di *DiskImage, trackBytes []byte) (err error) {
	defer func() {
		if errRaw := recover(); errRaw != nil {
			if e, ok := errRaw.(error); ok {
				err = log.Wrap(e)
			} else {
				err = log.Errorf("not an error: [%s] [%v]", reflect.TypeOf(errRaw).Name(), errRaw)
			}
		}
	}()

	pos := 0
	for pos < len(trackBytes) {
		if pos+sectorHeaderSize > len(trackBytes) {
			return newStructuralError(MalformedContainer, "truncated sector header at track offset %d", pos)
		}

		var sh SectorHeader
		err = parseStruct(trackBytes[pos:pos+sectorHeaderSize], &sh)
		log.PanicIf(err)

		pos += sectorHeaderSize

		declaredLen := int(sh.DataLength)
		if pos+declaredLen > len(trackBytes) {
			return newStructuralError(MalformedContainer, "sector payload of %d bytes extends past track region (only %d bytes remain)", declaredLen, len(trackBytes)-pos)
		}

		payload := trackBytes[pos : pos+declaredLen]
		pos += declaredLen

		declaredSize := sh.DeclaredSize()
		data := make([]byte, declaredSize)
		malformed := false

		if declaredLen != declaredSize {
			malformed = true
		}

		copyLen := declaredLen
		if copyLen > declaredSize {
			copyLen = declaredSize
		}
		copy(data, payload[:copyLen])

		key := SectorKey{Cylinder: sh.Cylinder, Head: sh.Head, SectorID: sh.SectorID}
		di.Sectors[key] = Sector{Header: sh, Data: data, Malformed: malformed}
	}

	return nil
}

// firstSectorPrefix returns up to the first 16 bytes of the first sector
// on (cylinder 0, head 0, sector-id 1), used by the geometry/variant
// fingerprint predicates (§4.C).
func (di *DiskImage) firstSectorPrefix() []byte {
	sector, found := di.GetSector(SectorKey{Cylinder: 0, Head: 0, SectorID: 1})
	if !found {
		return nil
	}

	n := 16
	if len(sector.Data) < n {
		n = len(sector.Data)
	}
	return bytes.Clone(sector.Data[:n])
}
