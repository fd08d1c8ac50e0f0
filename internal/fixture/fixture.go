// Package fixture builds small, well-formed PE32+ images carrying a resource
// tree, for tests that need an executable with a counter window.
package fixture

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"runcount/common"
)

const (
	fileAlignment    = 0x200
	sectionAlignment = 0x1000

	textRVA    = 0x1000
	textOffset = 0x200
	textSize   = 0x200
	rsrcRVA    = 0x2000
	rsrcOffset = textOffset + textSize

	sizeOfDOSHeader      = 64
	sizeOfOptionalHeader = 240

	sizeOfResourceDirectory = 16
	sizeOfResourceEntry     = 8
	sizeOfResourceDataEntry = 16
	// toolchains leave 8 bytes between the last data entry and the first payload
	payloadGap = 8

	subdirectoryFlag = 0x80000000
)

const (
	RTIcon      = 3
	RTGroupIcon = 14
	RTVersion   = 16
	RTManifest  = 24
)

// Resource is one leaf of the resource tree.
type Resource struct {
	Type uint16
	ID   uint16
	Lang uint16
	Data []byte
}

// Options controls the image produced by Build.
type Options struct {
	// SectionName defaults to .rsrc.
	SectionName string
	Resources   []Resource
}

// Built is a synthetic image plus the facts tests assert against.
type Built struct {
	Data    []byte
	Section common.Range
	// IconOffset is the section-relative offset of the first icon payload,
	// or -1 if the tree has no icon.
	IconOffset int64
	// MaxDataEntry is the section-relative offset of the last data entry.
	MaxDataEntry uint64
}

// CounterOffset is the file offset of the counter window.
func (b *Built) CounterOffset() uint64 {
	return b.Section.Base + uint64(b.IconOffset) + common.CounterPosition
}

// Counter reads the counter window straight from the image bytes.
func (b *Built) Counter() uint64 {
	off := b.CounterOffset()
	return binary.LittleEndian.Uint64(b.Data[off : off+common.CounterSize])
}

// IconPayload returns an icon payload with room for the counter window,
// initialized to counter.
func IconPayload(counter uint64) []byte {
	payload := make([]byte, 512)
	for i := 0; i < common.CounterPosition; i++ {
		payload[i] = byte(0x40 + i%16)
	}
	binary.LittleEndian.PutUint64(payload[common.CounterPosition:], counter)
	return payload
}

// DefaultResources is a version block, an icon and its group, with the icon
// deliberately not at the lowest data offset.
func DefaultResources(counter uint64) []Resource {
	version := bytes.Repeat([]byte{0x56}, 92)
	group := []byte{0, 0, 1, 0, 1, 0, 32, 32, 0, 0, 1, 0, 32, 0, 0, 2, 0, 0, 1, 0}
	return []Resource{
		{Type: RTVersion, ID: 1, Lang: 1033, Data: version},
		{Type: RTIcon, ID: 1, Lang: 1033, Data: IconPayload(counter)},
		{Type: RTGroupIcon, ID: 1, Lang: 1033, Data: group},
	}
}

// Build lays out a DOS header, PE32+ headers, a .text section and the
// resource section.
func Build(opts Options) *Built {
	name := opts.SectionName
	if name == "" {
		name = common.ResourceSectionName
	}
	tree, iconOffset, maxDataEntry := ResourceSection(rsrcRVA, opts.Resources)
	rawSize := align(uint32(len(tree)), fileAlignment)

	var buf bytes.Buffer
	dos := make([]byte, sizeOfDOSHeader)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], sizeOfDOSHeader)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	must(binary.Write(&buf, binary.LittleEndian, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     2,
		SizeOfOptionalHeader: sizeOfOptionalHeader,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
	}))

	opt := pe.OptionalHeader64{
		Magic:                 0x20b,
		AddressOfEntryPoint:   textRVA,
		BaseOfCode:            textRVA,
		ImageBase:             0x140000000,
		SectionAlignment:      sectionAlignment,
		FileAlignment:         fileAlignment,
		MajorSubsystemVersion: 6,
		SizeOfImage:           align(rsrcRVA+uint32(len(tree)), sectionAlignment),
		SizeOfHeaders:         textOffset,
		Subsystem:             pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes:   16,
	}
	opt.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_RESOURCE] = pe.DataDirectory{
		VirtualAddress: rsrcRVA,
		Size:           uint32(len(tree)),
	}
	must(binary.Write(&buf, binary.LittleEndian, opt))

	text := pe.SectionHeader32{
		VirtualSize:      textSize,
		VirtualAddress:   textRVA,
		SizeOfRawData:    textSize,
		PointerToRawData: textOffset,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
	}
	copy(text.Name[:], ".text")
	must(binary.Write(&buf, binary.LittleEndian, text))

	rsrc := pe.SectionHeader32{
		VirtualSize:      uint32(len(tree)),
		VirtualAddress:   rsrcRVA,
		SizeOfRawData:    rawSize,
		PointerToRawData: rsrcOffset,
		Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
	}
	copy(rsrc.Name[:], name)
	must(binary.Write(&buf, binary.LittleEndian, rsrc))

	buf.Write(make([]byte, textOffset-buf.Len()))
	code := make([]byte, textSize)
	code[0] = 0xc3
	buf.Write(code)
	section := make([]byte, rawSize)
	copy(section, tree)
	buf.Write(section)

	return &Built{
		Data:         buf.Bytes(),
		Section:      common.Range{Base: rsrcOffset, Size: uint64(rawSize)},
		IconOffset:   iconOffset,
		MaxDataEntry: maxDataEntry,
	}
}

// ResourceSection serializes a Type → Name → Language → Data tree. The root
// lists resources in the order given; payloads follow the data entries in the
// same order.
func ResourceSection(rva uint32, resources []Resource) (tree []byte, iconOffset int64, maxDataEntry uint64) {
	n := len(resources)
	rootSize := sizeOfResourceDirectory + sizeOfResourceEntry*n
	dirPair := 2 * (sizeOfResourceDirectory + sizeOfResourceEntry)
	dataEntries := rootSize + dirPair*n
	payloadStart := dataEntries + sizeOfResourceDataEntry*n + payloadGap
	if n > 0 {
		maxDataEntry = uint64(dataEntries + sizeOfResourceDataEntry*(n-1))
	}

	payloadOffsets := make([]int, n)
	end := payloadStart
	for i, r := range resources {
		payloadOffsets[i] = end
		end += int(align(uint32(len(r.Data)), 8))
	}
	if n == 0 {
		end = rootSize
	}

	tree = make([]byte, end)
	le := binary.LittleEndian
	le.PutUint16(tree[14:], uint16(n))

	iconOffset = -1
	for i, r := range resources {
		nameDir := rootSize + dirPair*i
		langDir := nameDir + sizeOfResourceDirectory + sizeOfResourceEntry
		dataEntry := dataEntries + sizeOfResourceDataEntry*i

		entry := tree[sizeOfResourceDirectory+sizeOfResourceEntry*i:]
		le.PutUint32(entry[0:], uint32(r.Type))
		le.PutUint32(entry[4:], subdirectoryFlag|uint32(nameDir))

		le.PutUint16(tree[nameDir+14:], 1)
		le.PutUint32(tree[nameDir+16:], uint32(r.ID))
		le.PutUint32(tree[nameDir+20:], subdirectoryFlag|uint32(langDir))

		le.PutUint16(tree[langDir+14:], 1)
		le.PutUint32(tree[langDir+16:], uint32(r.Lang))
		le.PutUint32(tree[langDir+20:], uint32(dataEntry))

		le.PutUint32(tree[dataEntry:], rva+uint32(payloadOffsets[i]))
		le.PutUint32(tree[dataEntry+4:], uint32(len(r.Data)))
		le.PutUint32(tree[dataEntry+8:], 1252)

		copy(tree[payloadOffsets[i]:], r.Data)
		if r.Type == RTIcon && iconOffset < 0 {
			iconOffset = int64(payloadOffsets[i])
		}
	}
	return tree, iconOffset, maxDataEntry
}

// WriteFile stores data under dir with executable permissions.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o755); err != nil {
		tb.Fatalf("writing fixture %s: %v", path, err)
	}
	return path
}

func align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
