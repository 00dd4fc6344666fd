// Package fat8d88 decodes FAT8 floppy-disk filesystems stored inside D88
// container images, as used by the NEC PC-6001/6601, PC-8001/8801,
// PC-9801, and Toshiba Pasopia families.
package fat8d88

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind classifies a structural error recorded while processing one
// disk image. The set is closed and small (§7 of the specification).
type ErrorKind int

const (
	// MalformedContainer indicates a bad D88 image size or overlapping
	// track offsets.
	MalformedContainer ErrorKind = iota

	// TruncatedStream indicates the input ended before a declared region
	// was fully read.
	TruncatedStream

	// UnknownFormat indicates that no entry in the known-format table
	// fingerprinted the image's geometry.
	UnknownFormat

	// FatDisagreement indicates the three FAT copies disagreed on a slot
	// and a majority value had to be chosen.
	FatDisagreement

	// ChainCycle indicates a cluster chain revisited a cluster.
	ChainCycle

	// ChainOutOfRange indicates a next-pointer referenced a cluster outside
	// the FAT's bounds.
	ChainOutOfRange

	// ChainCorrupt indicates a next-pointer referenced a cluster already
	// marked free or bad.
	ChainCorrupt

	// MissingSector indicates a cluster's sector could not be found in the
	// image's sector index.
	MissingSector

	// MalformedDirectoryEntry indicates a directory entry could not be
	// decoded at all (as opposed to merely carrying unusual attribute
	// bits, which the classifier tolerates).
	MalformedDirectoryEntry
)

// String gives a short, log-friendly label for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case MalformedContainer:
		return "MalformedContainer"
	case TruncatedStream:
		return "TruncatedStream"
	case UnknownFormat:
		return "UnknownFormat"
	case FatDisagreement:
		return "FatDisagreement"
	case ChainCycle:
		return "ChainCycle"
	case ChainOutOfRange:
		return "ChainOutOfRange"
	case ChainCorrupt:
		return "ChainCorrupt"
	case MissingSector:
		return "MissingSector"
	case MalformedDirectoryEntry:
		return "MalformedDirectoryEntry"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// StructuralError pairs a classified error-kind with the underlying cause,
// so a driver can decide propagation policy (abort the image vs. record
// and continue) without re-parsing error strings.
type StructuralError struct {
	Kind ErrorKind
	Err  error
}

func (se *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", se.Kind, se.Err)
}

func (se *StructuralError) Unwrap() error {
	return se.Err
}

// newStructuralError builds a StructuralError from a kind and a formatted
// message, mirroring the teacher's log.Errorf call sites.
func newStructuralError(kind ErrorKind, format string, args ...interface{}) *StructuralError {
	return &StructuralError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// ErrorLog accumulates the structural errors encountered while processing
// a single disk image. It is discarded along with the rest of that
// image's entities once the image's output is finalized (§3 "Lifecycle").
type ErrorLog struct {
	merr *multierror.Error
}

// NewErrorLog returns an empty error log for one disk image.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{merr: &multierror.Error{}}
}

// Add records one structural error and continues; the caller never aborts
// processing of the rest of the image because of it (§4.H).
func (el *ErrorLog) Add(kind ErrorKind, format string, args ...interface{}) {
	el.merr = multierror.Append(el.merr, newStructuralError(kind, format, args...))
}

// AddErr records a pre-built StructuralError.
func (el *ErrorLog) AddErr(err *StructuralError) {
	el.merr = multierror.Append(el.merr, err)
}

// Count is the number of structural errors recorded so far; it drives the
// ` [Error Count NN]` output-directory suffix that is an external (out-of-
// core) concern per §6.
func (el *ErrorLog) Count() int {
	if el.merr == nil {
		return 0
	}
	return len(el.merr.Errors)
}

// Errors returns the recorded errors in the order they were added.
func (el *ErrorLog) Errors() []error {
	if el.merr == nil {
		return nil
	}
	out := make([]error, len(el.merr.Errors))
	for i, err := range el.merr.Errors {
		out[i] = err
	}
	return out
}

// Error satisfies the error interface so an ErrorLog can be returned
// directly when the caller only cares whether anything went wrong.
func (el *ErrorLog) Error() string {
	if el.merr == nil {
		return ""
	}
	return el.merr.Error()
}
