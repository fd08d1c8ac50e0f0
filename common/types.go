package common

import "fmt"

// ResourceSectionName is the section that holds the resource tree.
const ResourceSectionName = ".rsrc"

const (
	// CounterPosition is the distance of the counter window past the icon base.
	CounterPosition = 256
	// CounterSize is the width of the counter window in bytes.
	CounterSize = 8
	// ReservedIconPayload is the minimum icon payload a build must reserve.
	ReservedIconPayload = CounterPosition + CounterSize
)

// ContainerFormat identifies the executable container found in an image.
type ContainerFormat int

const (
	FormatUnknown ContainerFormat = iota
	FormatPE
	FormatELF
)

func (f ContainerFormat) String() string {
	switch f {
	case FormatPE:
		return "PE"
	case FormatELF:
		return "ELF"
	default:
		return "unknown"
	}
}

// Range is the byte range of a section's raw data inside an image.
type Range struct {
	Base uint64
	Size uint64
}

// End returns the first offset past the range.
func (r Range) End() uint64 {
	return r.Base + r.Size
}

// Within reports whether the range fits in an image of imageLen bytes.
func (r Range) Within(imageLen int) bool {
	end := r.Base + r.Size
	return end >= r.Base && end <= uint64(imageLen)
}

func (r Range) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Base, r.End())
}
