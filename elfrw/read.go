package elfrw

import (
	"bytes"
	"fmt"

	"github.com/yalue/elf_reader"

	"runcount/common"
)

const sectionTypeNoBits = 8

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// IsELF reports whether data starts with the ELF magic.
func IsELF(data []byte) bool {
	return bytes.HasPrefix(data, elfMagic)
}

// ReadELF parses the section table of an in-memory ELF image.
func ReadELF(data []byte) (*ELFFile, error) {
	if !IsELF(data) {
		return nil, fmt.Errorf("%w: missing ELF magic", common.ErrMalformed)
	}

	is64Bit := len(data) > 4 && data[4] == 2
	elfFile, err := elf_reader.ParseELFFile(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse ELF file: %v", common.ErrMalformed, err)
	}

	ef := &ELFFile{
		RawData: data,
		ELF:     elfFile,
		Is64Bit: is64Bit,
	}

	ef.Sections, err = parseSections(ef)
	if err != nil {
		return nil, err
	}

	return ef, nil
}

// FindSection returns the first section named exactly name.
func (e *ELFFile) FindSection(name string) (*Section, bool) {
	for i := range e.Sections {
		if e.Sections[i].Name == name {
			return &e.Sections[i], true
		}
	}
	return nil, false
}

func parseSections(ef *ELFFile) ([]Section, error) {
	count := ef.ELF.GetSectionCount()
	sections := make([]Section, 0, count)
	for i := uint16(0); i < count; i++ {
		header, err := ef.ELF.GetSectionHeader(i)
		if err != nil {
			return nil, fmt.Errorf("%w: section header %d: %v", common.ErrMalformed, i, err)
		}
		// index 0 is the reserved null section and has no name
		name := ""
		if i != 0 {
			name, err = ef.ELF.GetSectionName(i)
			if err != nil {
				return nil, fmt.Errorf("%w: section name %d: %v", common.ErrMalformed, i, err)
			}
		}
		sections = append(sections, Section{
			Name:   name,
			Offset: header.GetFileOffset(),
			Size:   header.GetSize(),
			Type:   uint32(header.GetType()),
			Index:  i,
		})
	}
	return sections, nil
}
