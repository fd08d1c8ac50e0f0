package perw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	pe "github.com/Velocidex/go-pe"

	"runcount/common"
)

const (
	sizeOfSectionHeader = 40
	imageNTSignature    = 0x00004550
	magicPE32Plus       = 0x20b
)

// the Windows loader rejects images with more than 96 sections
const maxSections = 96

// ReadPE parses the section table of an in-memory PE image. The image is
// referenced, not copied.
func ReadPE(data []byte) (*PEFile, error) {
	if err := validateDOSHeader(data); err != nil {
		return nil, err
	}

	lfanew := int64(binary.LittleEndian.Uint32(data[60:64]))
	if lfanew <= 0 || lfanew+24 > int64(len(data)) {
		return nil, fmt.Errorf("%w: NT header offset 0x%x outside image", common.ErrMalformed, lfanew)
	}
	if binary.LittleEndian.Uint32(data[lfanew:]) != imageNTSignature {
		return nil, fmt.Errorf("%w: invalid NT header signature", common.ErrMalformed)
	}

	profile := pe.NewPeProfile()
	dosHeader := profile.IMAGE_DOS_HEADER(bytes.NewReader(data), 0)
	ntHeader := dosHeader.NTHeader()

	count := int(ntHeader.FileHeader().NumberOfSections())
	if count == 0 || count > maxSections {
		return nil, fmt.Errorf("%w: unreasonable section count %d", common.ErrMalformed, count)
	}

	pf := &PEFile{
		Is64Bit:  ntHeader.OptionalHeader().Magic() == magicPE32Plus,
		Machine:  binary.LittleEndian.Uint16(data[lfanew+4:]),
		Sections: make([]Section, 0, count),
		RawData:  data,
	}

	for i, s := range ntHeader.Sections() {
		if s.Offset+sizeOfSectionHeader > int64(len(data)) {
			return nil, fmt.Errorf("%w: section header %d outside image", common.ErrMalformed, i)
		}
		section := Section{
			Name:           strings.TrimRight(s.Name(), "\x00"),
			Offset:         int64(s.PointerToRawData()),
			Size:           int64(s.SizeOfRawData()),
			VirtualAddress: s.VirtualAddress(),
			Index:          i,
			Flags:          s.Characteristics(),
		}
		pf.Sections = append(pf.Sections, section)
	}

	return pf, nil
}

// FindSection returns the first section named exactly name.
func (p *PEFile) FindSection(name string) (*Section, bool) {
	for i := range p.Sections {
		if p.Sections[i].Name == name {
			return &p.Sections[i], true
		}
	}
	return nil, false
}

// SectionData returns the raw bytes of s, bounds-checked against the image.
func (p *PEFile) SectionData(s *Section) ([]byte, error) {
	return p.ReadBytes(s.Offset, int(s.Size))
}

func (p *PEFile) ReadBytes(offset int64, size int) ([]byte, error) {
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("%w: offset (%d) or size (%d) cannot be negative", common.ErrBounds, offset, size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	if offset+int64(size) > int64(len(p.RawData)) {
		return nil, fmt.Errorf("%w: read beyond file limits: offset %d, size %d, file len %d",
			common.ErrBounds, offset, size, len(p.RawData))
	}

	return p.RawData[offset : offset+int64(size)], nil
}

func validateDOSHeader(data []byte) error {
	if len(data) < 64 {
		return fmt.Errorf("%w: file too small to be a valid PE file", common.ErrMalformed)
	}
	if data[0] != 'M' || data[1] != 'Z' {
		return fmt.Errorf("%w: invalid DOS header signature", common.ErrMalformed)
	}
	return nil
}

// RVAToOffset maps a relative virtual address to a file offset through the
// section table.
func (p *PEFile) RVAToOffset(rva uint32) (uint64, bool) {
	for _, s := range p.Sections {
		if s.Size == 0 {
			continue
		}
		if rva >= s.VirtualAddress && int64(rva-s.VirtualAddress) < s.Size {
			return uint64(s.Offset) + uint64(rva-s.VirtualAddress), true
		}
	}
	return 0, false
}
