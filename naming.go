package fat8d88

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// flagSuffixOrder is the fixed order flag suffixes are appended in (§4.G
// step 3).
var flagSuffixOrder = []struct {
	flag   Flag
	suffix string
}{
	{R1, ".r-1"},
	{R2, ".r-2"},
	{R3, ".r-3"},
	{ReadOnly, ".r-o"},
	{Verify, ".vfy"},
	{Obfuscated, ".obf"},
}

// binaryExtensionAllowList and its siblings are the extension-
// normalization allow-lists of §4.G step 2.
var (
	binaryExtensionAllowList = map[string]bool{".bin": true, ".cod": true}
	basicExtensionAllowList  = map[string]bool{".bas": true, ".n88": true, ".nip": true, ".bin": true}
	asciiExtensionAllowList  = map[string]bool{".asc": true, ".txt": true}
)

// decodeRawName decodes a directory entry's 6+3 name bytes through the
// variant's charset table, trims trailing spaces from each part, and
// joins them as "BASE.EXT" (or just "BASE" if the extension is empty)
// (§4.G step 1).
func decodeRawName(entry DirectoryEntry, table *CharsetTable) string {
	base := strings.TrimRight(table.DecodeBytes(entry.RawName[:]), " ")
	ext := strings.TrimRight(table.DecodeBytes(entry.RawExt[:]), " ")

	if ext == "" {
		return base
	}
	return base + "." + ext
}

// normalizeExtension applies the classification-driven extension rule
// (§4.G step 2). If the current suffix (case-insensitively) is already
// in the allow-list for the classification, the name is returned
// unchanged; otherwise the classification's default extension is
// appended.
func normalizeExtension(name string, classification Classification) string {
	ext := strings.ToLower(path.Ext(name))

	var allowList map[string]bool
	var fallback string

	switch classification {
	case Binary:
		allowList, fallback = binaryExtensionAllowList, ".bin"
	case BASIC:
		allowList, fallback = basicExtensionAllowList, ".bas"
	case ASCII:
		allowList, fallback = asciiExtensionAllowList, ".asc"
	default:
		allowList, fallback = binaryExtensionAllowList, ".bin"
	}

	if ext != "" && allowList[ext] {
		return name
	}
	return name + fallback
}

// appendFlagSuffixes appends the fixed-order flag suffixes for whichever
// flags are present (§4.G step 3).
func appendFlagSuffixes(name string, flags map[Flag]bool) string {
	for _, entry := range flagSuffixOrder {
		if flags[entry.flag] {
			name += entry.suffix
		}
	}
	return name
}

// NameRegistry tracks the case-insensitively-unique set of output names
// already produced for one disk image, so later collisions can be
// resolved deterministically (§4.G step 4). The index of recorded names
// is built the same way the teacher's TreeNode kept its sorted child
// lists: a sorted string slice plus a parallel lookup, so iteration order
// is always deterministic regardless of map iteration order.
type NameRegistry struct {
	lowerNames sort.StringSlice
	seen       map[string]bool
}

// NewNameRegistry returns an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{
		lowerNames: make(sort.StringSlice, 0),
		seen:       make(map[string]bool),
	}
}

func (nr *NameRegistry) has(lower string) bool {
	return nr.seen[lower]
}

func (nr *NameRegistry) record(lower string) {
	if nr.seen[lower] {
		return
	}
	nr.seen[lower] = true

	insertAt := nr.lowerNames.Search(lower)
	if insertAt >= len(nr.lowerNames) {
		nr.lowerNames = append(nr.lowerNames, lower)
		return
	}
	if nr.lowerNames[insertAt] == lower {
		return
	}
	left := nr.lowerNames[:insertAt]
	right := nr.lowerNames[insertAt:]
	nr.lowerNames = append(append(sort.StringSlice{}, left...), append(sort.StringSlice{lower}, right...)...)
}

// Reserve resolves a collision by inserting " (K)" before the last
// extension group, K starting at 2 and incrementing until unique (§4.G
// step 4), then records and returns the final name.
func (nr *NameRegistry) Reserve(name string) string {
	lower := strings.ToLower(name)
	if !nr.has(lower) {
		nr.record(lower)
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for k := 2; ; k++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, k, ext)
		candidateLower := strings.ToLower(candidate)
		if !nr.has(candidateLower) {
			nr.record(candidateLower)
			return candidate
		}
	}
}

// NameFile produces the final output name for one extracted file,
// running the full §4.G policy: decode, normalize extension, append flag
// suffixes, then resolve collisions against registry.
func NameFile(entry DirectoryEntry, classification Classification, flags map[Flag]bool, table *CharsetTable, registry *NameRegistry) string {
	name := decodeRawName(entry, table)
	name = normalizeExtension(name, classification)
	name = appendFlagSuffixes(name, flags)
	return registry.Reserve(name)
}

// UTF8DumpName produces the companion "UTF-8 dump" artifact name by
// replacing the final ".XXX" extension group with "_XXX_utf8_dump.txt"
// (§4.G, final paragraph).
func UTF8DumpName(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return name + "_utf8_dump.txt"
	}
	base := strings.TrimSuffix(name, ext)
	return base + "_" + strings.TrimPrefix(ext, ".") + "_utf8_dump.txt"
}
