package fat8d88

import (
	"io"

	"github.com/dsoprea/go-logging"
)

// Sink is the output collaborator a driver writes extracted artifacts to.
// Output-directory creation, uniquification, and the `_fat8_d88_output.txt`
// log file are all external, out-of-core concerns (§6); this repo only
// defines the shape a caller's sink must have.
type Sink interface {
	// WriteFile receives one named artifact's bytes (an extracted file, or
	// its UTF-8 dump companion).
	WriteFile(name string, data []byte) error
}

// ImageResult is everything produced while decoding one disk image: its
// detected variant (nil if detection failed), its extracted files in
// directory order, and the structural errors recorded along the way.
type ImageResult struct {
	ImageIndex int
	Variant    *Fat8Variant
	Files      []NamedFile
	ErrorLog   *ErrorLog
}

// NamedFile pairs a classified, (maybe) deobfuscated file with the output
// name the naming policy assigned it.
type NamedFile struct {
	Name     string
	DumpName string
	File     ExtractedFile
}

// ProcessImage runs the full per-image pipeline: variant detection,
// filesystem decode, classification, deobfuscation, and naming (§4 B
// through G in sequence). Variant-detection failure is recorded on the
// returned ErrorLog and the image yields zero files, rather than aborting
// the caller's multi-image loop (§4.H propagation policy: only the current
// image is abandoned).
func ProcessImage(di *DiskImage, imageIndex int) *ImageResult {
	errLog := NewErrorLog()

	result := &ImageResult{
		ImageIndex: imageIndex,
		ErrorLog:   errLog,
	}

	variant, err := DetectVariant(di)
	if err != nil {
		if se, ok := err.(*StructuralError); ok {
			errLog.AddErr(se)
		} else {
			errLog.Add(UnknownFormat, "%s", err)
		}
		return result
	}
	result.Variant = variant

	table := CharsetTableForFamily(variant.Family)
	registry := NewNameRegistry()

	decoded := DecodeFilesystem(di, variant, errLog)

	files := make([]NamedFile, 0, len(decoded))
	for _, df := range decoded {
		ef := Classify(df)
		Deobfuscate(&ef, variant.Family)

		name := NameFile(ef.Entry, ef.Classification, ef.Flags, table, registry)
		files = append(files, NamedFile{
			Name:     name,
			DumpName: UTF8DumpName(name),
			File:     ef,
		})
	}
	result.Files = files

	return result
}

// ProcessStream drives ImageReader across one concatenated D88 stream,
// running ProcessImage on every image it yields (§4.B "zero or more
// images... each processed independently"). A malformed image body (bad
// track offsets, truncated sector payloads) only aborts that one image:
// ImageReader has already advanced past its declared span, so the loop
// records the failure as a zero-file ImageResult and continues with the
// next image (§4.H "container... errors abort the current image...
// continue to next image"). Only a failure the reader cannot resync
// past (a truncated or overlong header, before any offset advance) stops
// the stream early; everything decoded before that point is still
// returned.
func ProcessStream(r io.Reader) (results []*ImageResult, err error) {
	ir, err := NewImageReader(r)
	if err != nil {
		return nil, log.Wrap(err)
	}

	for !ir.Done() {
		offsetBefore := ir.offset

		di, imageIndex, nextErr := ir.Next()
		if nextErr != nil {
			if nextErr == io.EOF {
				break
			}

			if ir.offset == offsetBefore {
				// The reader couldn't even determine this image's byte
				// span, so there is no later image to resync to.
				return results, nextErr
			}

			errLog := NewErrorLog()
			if se, ok := nextErr.(*StructuralError); ok {
				errLog.AddErr(se)
			} else {
				errLog.Add(MalformedContainer, "%s", nextErr)
			}
			results = append(results, &ImageResult{ImageIndex: imageIndex, ErrorLog: errLog})
			continue
		}

		results = append(results, ProcessImage(di, imageIndex))
	}

	return results, nil
}

// EmitImage writes one image's extracted files (and their UTF-8 dump
// companions, for non-Binary classifications with a known charset) to the
// given sink. The dump uses the detected variant's charset table to
// decode the file body the same way Classify/NameFile saw it (§4.G final
// paragraph).
func EmitImage(result *ImageResult, sink Sink) error {
	if result.Variant == nil {
		return nil
	}

	table := CharsetTableForFamily(result.Variant.Family)

	for _, nf := range result.Files {
		body := nf.File.Body
		if nf.File.DeobfuscatedOK {
			body = nf.File.Deobfuscated
		}

		if err := sink.WriteFile(nf.Name, body); err != nil {
			return log.Wrap(err)
		}

		if nf.File.Classification != Binary {
			dump := []byte(table.DecodeBytes(body))
			if err := sink.WriteFile(nf.DumpName, dump); err != nil {
				return log.Wrap(err)
			}
		}
	}

	return nil
}
