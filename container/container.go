// Package container finds named sections in an executable image without
// caring which container format it uses.
package container

import (
	"fmt"

	"runcount/common"
	"runcount/elfrw"
	"runcount/log"
	"runcount/perw"
)

// Detect identifies the container format from the image's magic bytes.
func Detect(image []byte) common.ContainerFormat {
	switch {
	case len(image) >= 2 && image[0] == 'M' && image[1] == 'Z':
		return common.FormatPE
	case elfrw.IsELF(image):
		return common.FormatELF
	default:
		return common.FormatUnknown
	}
}

// LocateSection returns the raw data range of the first section named name.
// ok is false when the container parses but has no such section.
func LocateSection(image []byte, name string) (r common.Range, ok bool, err error) {
	format := Detect(image)
	switch format {
	case common.FormatPE:
		r, ok, err = locatePE(image, name)
	case common.FormatELF:
		r, ok, err = locateELF(image, name)
	default:
		return common.Range{}, false, fmt.Errorf("%w: unrecognized container", common.ErrMalformed)
	}
	if err != nil || !ok {
		return r, ok, err
	}

	if !r.Within(len(image)) {
		return common.Range{}, false, fmt.Errorf("%w: %s section %q %s exceeds image of %d bytes",
			common.ErrBounds, format, name, r, len(image))
	}
	log.Debugln("%s section %s at %s", format, name, r)
	return r, true, nil
}

// SectionBytes is LocateSection returning the section contents, with a
// missing section reported as common.ErrSectionMissing.
func SectionBytes(image []byte, name string) ([]byte, common.Range, error) {
	r, ok, err := LocateSection(image, name)
	if err != nil {
		return nil, common.Range{}, err
	}
	if !ok {
		return nil, common.Range{}, fmt.Errorf("%w: no %q section", common.ErrSectionMissing, name)
	}
	return image[r.Base:r.End()], r, nil
}

func locatePE(image []byte, name string) (common.Range, bool, error) {
	pf, err := perw.ReadPE(image)
	if err != nil {
		return common.Range{}, false, err
	}
	s, ok := pf.FindSection(name)
	if !ok {
		return common.Range{}, false, nil
	}
	return s.Range(), true, nil
}

func locateELF(image []byte, name string) (common.Range, bool, error) {
	ef, err := elfrw.ReadELF(image)
	if err != nil {
		return common.Range{}, false, err
	}
	s, ok := ef.FindSection(name)
	if !ok {
		return common.Range{}, false, nil
	}
	return s.Range(), true, nil
}
