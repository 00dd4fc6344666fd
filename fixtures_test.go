package fat8d88

// Synthetic-image construction for tests. The teacher repo loads fixtures
// from a GOPATH-relative test/assets directory; this repo instead builds
// minimal, fully in-memory D88 byte streams per test; see DESIGN.md for
// why.

import (
	"bytes"
	"encoding/binary"
)

// testSector is one sector's header fields plus its raw payload, used to
// assemble a synthetic track.
type testSector struct {
	cylinder byte
	head     byte
	sectorID byte
	n        byte
	data     []byte
}

func encodeSectorHeader(s testSector) []byte {
	buf := &bytes.Buffer{}

	buf.WriteByte(s.cylinder)
	buf.WriteByte(s.head)
	buf.WriteByte(s.sectorID)
	buf.WriteByte(s.n)
	binary.Write(buf, binary.LittleEndian, uint16(16)) // SectorsPerTrack
	buf.WriteByte(0)                                   // Density
	buf.WriteByte(0)                                   // DeletedFlag
	buf.WriteByte(0)                                   // Status
	buf.Write(make([]byte, 5))                         // Reserved
	binary.Write(buf, binary.LittleEndian, uint16(len(s.data)))

	return buf.Bytes()
}

func encodeTrack(sectors []testSector) []byte {
	buf := &bytes.Buffer{}
	for _, s := range sectors {
		buf.Write(encodeSectorHeader(s))
		buf.Write(s.data)
	}
	return buf.Bytes()
}

// buildD88Image assembles one complete D88 image (header plus concatenated
// track bodies) from a set of tracks, each a slice of sectors. Track slot
// numbers are assigned in slice order starting at zero; slot
// identity doesn't matter to the decoder (sectors self-describe their
// cylinder/head/sector-id), only offset ordering does.
func buildD88Image(tracks [][]testSector) []byte {
	header := make([]byte, d88HeaderSize)

	copy(header[0:17], []byte("TEST DISK\x00\x00\x00\x00\x00\x00\x00\x00"))
	// header[17:26] Reserved stays zero.
	header[26] = 0x00 // WriteProtect
	header[27] = 0x00 // MediaKind

	body := &bytes.Buffer{}
	trackTableOffset := 32 // 17 (DiskName) + 9 (Reserved) + 1 (WriteProtect) + 1 (MediaKind) + 4 (ImageSize)

	for slot, sectors := range tracks {
		offset := d88HeaderSize + body.Len()
		binary.LittleEndian.PutUint32(header[trackTableOffset+slot*4:trackTableOffset+slot*4+4], uint32(offset))
		body.Write(encodeTrack(sectors))
	}

	imageSize := uint32(d88HeaderSize + body.Len())
	binary.LittleEndian.PutUint32(header[28:32], imageSize)

	out := append([]byte{}, header...)
	out = append(out, body.Bytes()...)
	return out
}

// pc8001DirEntry builds one raw 16-byte directory entry.
func pc8001DirEntry(name, ext string, attribute byte, startCluster byte) []byte {
	raw := make([]byte, directoryEntrySize)

	nameBytes := []byte(name)
	for i := 0; i < nameFieldSize; i++ {
		if i < len(nameBytes) {
			raw[i] = nameBytes[i]
		} else {
			raw[i] = ' '
		}
	}

	extBytes := []byte(ext)
	for i := 0; i < extFieldSize; i++ {
		if i < len(extBytes) {
			raw[nameFieldSize+i] = extBytes[i]
		} else {
			raw[nameFieldSize+i] = ' '
		}
	}

	raw[9] = attribute
	raw[10] = startCluster

	return raw
}

// padTo256 pads or truncates data to exactly 256 bytes.
func padTo256(data []byte) []byte {
	out := make([]byte, 256)
	copy(out, data)
	return out
}

// buildPC8001Image builds a single-sided PC-8001 2D image (track 0: 16
// data sectors; track 1: boot + 8 directory sectors + triplicate FAT)
// containing exactly one BASIC-classified directory entry pointing at
// cluster 2, whose sole sector holds fileBody.
func buildPC8001Image(dirEntryName, dirEntryExt string, attribute byte, startCluster byte, fatSlot0 byte, fileBody []byte) []byte {
	// Track 0: the data area. Sector 1 carries the test file's content;
	// the rest are empty.
	var track0 []testSector
	for id := byte(1); id <= 16; id++ {
		data := make([]byte, 256)
		if id == 1 {
			data = padTo256(fileBody)
		}
		track0 = append(track0, testSector{cylinder: 0, head: 0, sectorID: id, n: 1, data: data})
	}

	// Track 1: the system track (boot, directory, triplicate FAT).
	var track1 []testSector

	track1 = append(track1, testSector{cylinder: 1, head: 0, sectorID: 1, n: 1, data: make([]byte, 256)})

	dirRegion := make([]byte, 256*8)
	copy(dirRegion[0:16], pc8001DirEntry(dirEntryName, dirEntryExt, attribute, startCluster))
	// dirRegion[16] stays 0x00: end-of-directory sentinel.
	for i := 0; i < 8; i++ {
		track1 = append(track1, testSector{cylinder: 1, head: 0, sectorID: byte(2 + i), n: 1, data: dirRegion[i*256 : (i+1)*256]})
	}

	fatRegion := make([]byte, 256)
	fatRegion[0] = fatSlot0
	for copyIdx := 0; copyIdx < 3; copyIdx++ {
		for s := 0; s < 2; s++ {
			sectorID := byte(10 + copyIdx*2 + s)
			data := make([]byte, 256)
			if s == 0 {
				copy(data, fatRegion)
			}
			track1 = append(track1, testSector{cylinder: 1, head: 0, sectorID: sectorID, n: 1, data: data})
		}
	}

	return buildD88Image([][]testSector{track0, track1})
}

// buildPC8001ChainedImage builds a single-sided PC-8001 2D image with two
// data tracks (track 0 and track 2) straddling the track-1 system track,
// holding one directory entry whose chain starts at cluster 2 (track 0),
// continues to cluster 18 (track 2, the first data cluster after the
// system track), and terminates there with exactly one sector.
func buildPC8001ChainedImage(dirEntryName, dirEntryExt string, attribute byte, firstSectorData, secondSectorData []byte) []byte {
	var track0 []testSector
	for id := byte(1); id <= 16; id++ {
		data := make([]byte, 256)
		if id == 1 {
			data = padTo256(firstSectorData)
		}
		track0 = append(track0, testSector{cylinder: 0, head: 0, sectorID: id, n: 1, data: data})
	}

	var track1 []testSector
	track1 = append(track1, testSector{cylinder: 1, head: 0, sectorID: 1, n: 1, data: make([]byte, 256)})

	dirRegion := make([]byte, 256*8)
	copy(dirRegion[0:16], pc8001DirEntry(dirEntryName, dirEntryExt, attribute, 2))
	for i := 0; i < 8; i++ {
		track1 = append(track1, testSector{cylinder: 1, head: 0, sectorID: byte(2 + i), n: 1, data: dirRegion[i*256 : (i+1)*256]})
	}

	fatRegion := make([]byte, 256)
	fatRegion[0] = 18    // cluster 2 -> cluster 18
	fatRegion[16] = 0xc0 // cluster 18 is terminal, holding 1 sector
	for copyIdx := 0; copyIdx < 3; copyIdx++ {
		for s := 0; s < 2; s++ {
			sectorID := byte(10 + copyIdx*2 + s)
			data := make([]byte, 256)
			if s == 0 {
				copy(data, fatRegion)
			}
			track1 = append(track1, testSector{cylinder: 1, head: 0, sectorID: sectorID, n: 1, data: data})
		}
	}

	var track2 []testSector
	for id := byte(1); id <= 16; id++ {
		data := make([]byte, 256)
		if id == 1 {
			data = padTo256(secondSectorData)
		}
		track2 = append(track2, testSector{cylinder: 2, head: 0, sectorID: id, n: 1, data: data})
	}

	return buildD88Image([][]testSector{track0, track1, track2})
}
