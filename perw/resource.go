package perw

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/lunixbochs/struc"

	"runcount/common"
)

// decodeRecord is the single accessor through which resource records are
// read from the section.
func decodeRecord(section []byte, offset uint64, r record) error {
	size := uint64(r.size())
	if offset > uint64(len(section)) || uint64(len(section))-offset < size {
		return fmt.Errorf("%w: %d-byte record at 0x%x, section is %d bytes",
			common.ErrBounds, size, offset, len(section))
	}
	if err := struc.Unpack(bytes.NewReader(section[offset:offset+size]), r); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}
	return nil
}

// FindCounterOffset returns the section-relative offset of the counter
// window.
func FindCounterOffset(section []byte) (uint64, error) {
	layout, err := LocateResources(section)
	if err != nil {
		return 0, err
	}
	return layout.CounterOffset, nil
}

// LocateResources walks the Type → Name → Language → Data chain of every
// root entry and derives the counter window from the icon entry.
func LocateResources(section []byte) (*ResourceLayout, error) {
	var root resourceDirectory
	if err := decodeRecord(section, 0, &root); err != nil {
		return nil, fmt.Errorf("root directory: %w", err)
	}

	total := int(root.NamedEntries) + int(root.IDEntries)
	layout := &ResourceLayout{Entries: make([]ResourceEntry, 0, total)}

	for i := 0; i < total; i++ {
		entry, err := walkEntry(section, i)
		if err != nil {
			return nil, fmt.Errorf("resource entry %d: %w", i, err)
		}
		if entry.DataEntry > layout.MaxDataEntry {
			layout.MaxDataEntry = entry.DataEntry
		}
		layout.Entries = append(layout.Entries, entry)
	}

	if len(layout.Entries) == 0 {
		return nil, common.ErrEmptyResourceTree
	}

	slices.SortStableFunc(layout.Entries, func(a, b ResourceEntry) int {
		return cmp.Compare(a.FileOffset, b.FileOffset)
	})
	smallest := int64(layout.Entries[0].FileOffset)
	layout.Reposition = smallest - int64(layout.MaxDataEntry+payloadPastDataEntry)

	for i := range layout.Entries {
		if layout.Entries[i].Type == RTIcon {
			layout.Icon = &layout.Entries[i]
			break
		}
	}
	if layout.Icon == nil {
		return nil, common.ErrIconMissing
	}

	counter := layout.SectionOffset(*layout.Icon) + common.CounterPosition
	if counter < 0 || counter+common.CounterSize > int64(len(section)) {
		return nil, fmt.Errorf("%w: counter window at %d, section is %d bytes",
			common.ErrBounds, counter, len(section))
	}
	layout.CounterOffset = uint64(counter)

	return layout, nil
}

func walkEntry(section []byte, index int) (ResourceEntry, error) {
	var typeEntry resourceTypeEntry
	offset := uint64(sizeOfResourceDirectory + index*sizeOfResourceTypeEntry)
	if err := decodeRecord(section, offset, &typeEntry); err != nil {
		return ResourceEntry{}, fmt.Errorf("type entry: %w", err)
	}

	var nameDir resourceDirectoryRecord
	if err := decodeRecord(section, uint64(typeEntry.Offset), &nameDir); err != nil {
		return ResourceEntry{}, fmt.Errorf("name directory: %w", err)
	}

	var langDir resourceDirectoryRecord
	if err := decodeRecord(section, uint64(nameDir.Next), &langDir); err != nil {
		return ResourceEntry{}, fmt.Errorf("language directory: %w", err)
	}

	var data resourceDataEntry
	if err := decodeRecord(section, uint64(langDir.Next), &data); err != nil {
		return ResourceEntry{}, fmt.Errorf("data entry: %w", err)
	}

	return ResourceEntry{
		Index:        index,
		Type:         typeEntry.Type,
		NameIsString: typeEntry.NameFlag&0x8000 != 0,
		DataEntry:    uint64(langDir.Next),
		FileOffset:   data.FileOffset,
		FileSize:     data.FileSize,
	}, nil
}
