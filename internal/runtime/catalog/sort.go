package catalog

import "strconv"

type sortKind uint8

const (
	sortKnown sortKind = iota
	sortUnknownNumber
	sortUnknownName
)

// SortSpec selects how the server orders test execution. The zero value is
// SortHardcoded. Values read from the wire or from text that name no known
// ordering are kept as an unrecognized variant instead of failing.
type SortSpec struct {
	kind   sortKind
	number int32
	name   string
}

var (
	// SortHardcoded runs tests in the order the client supplied.
	SortHardcoded = SortSpec{}
	// SortRaw orders tests by raw lines covered.
	SortRaw = SortSpec{number: 1}
	// SortNet orders tests by newly covered lines.
	SortNet = SortSpec{number: 2}
	// SortImportance orders tests by importance.
	SortImportance = SortSpec{number: 3}
)

// unrecognizedName is the placeholder emitted for unrecognized values.
const unrecognizedName = "UNKNOWN"

var sortNames = []string{"HARDCODED", "RAW", "NET", "IMPORTANCE"}

// SortSpecs lists the recognized orderings in wire-number order.
func SortSpecs() []SortSpec {
	return []SortSpec{SortHardcoded, SortRaw, SortNet, SortImportance}
}

// SortSpecFromNumber maps a wire number to a SortSpec. Numbers outside the
// known range produce an unrecognized value that remembers n.
func SortSpecFromNumber(n int32) SortSpec {
	if n >= 0 && int(n) < len(sortNames) {
		return SortSpec{number: n}
	}
	return SortSpec{kind: sortUnknownNumber, number: n}
}

// ParseSortSpec maps a name such as "RAW" to a SortSpec. Unknown names,
// including "UNRECOGNIZED", produce an unrecognized value.
func ParseSortSpec(name string) SortSpec {
	for i, n := range sortNames {
		if n == name {
			return SortSpec{number: int32(i)}
		}
	}
	return SortSpec{kind: sortUnknownName, name: name}
}

// Recognized reports whether s is one of the named orderings.
func (s SortSpec) Recognized() bool { return s.kind == sortKnown }

// WireNumber returns the number written to the wire. Unrecognized values
// read from the wire keep their original number; values parsed from an
// unknown name have none and cannot be written.
func (s SortSpec) WireNumber() (int32, bool) {
	if s.kind == sortUnknownName {
		return 0, false
	}
	return s.number, true
}

// String returns the ordering name, or "UNKNOWN" for unrecognized values.
func (s SortSpec) String() string {
	if s.kind != sortKnown {
		return unrecognizedName
	}
	return sortNames[s.number]
}

// GoString keeps unrecognized inputs visible in test failure output.
func (s SortSpec) GoString() string {
	switch s.kind {
	case sortUnknownNumber:
		return "SortSpec(unrecognized " + strconv.Itoa(int(s.number)) + ")"
	case sortUnknownName:
		return "SortSpec(unrecognized " + strconv.Quote(s.name) + ")"
	default:
		return "SortSpec(" + sortNames[s.number] + ")"
	}
}
