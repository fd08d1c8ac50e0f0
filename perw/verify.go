package perw

import (
	"fmt"

	saferwall "github.com/saferwall/pe"

	"runcount/common"
)

// Verification compares the counter window found by LocateResources with
// the one implied by an independent parse of the resource directory, which
// maps the icon's data RVA through the section table instead of relying on
// the reposition delta.
type Verification struct {
	IconRVA  uint32
	IconSize uint32
	// Expected is the counter file offset derived from the icon RVA.
	Expected uint64
	// Located is the counter file offset produced by LocateResources.
	Located uint64
}

func (v *Verification) Match() bool {
	return v.Expected == v.Located
}

func (v *Verification) String() string {
	state := "match"
	if !v.Match() {
		state = "MISMATCH"
	}
	return fmt.Sprintf("icon rva=0x%x size=%d expected=0x%x located=0x%x (%s)",
		v.IconRVA, v.IconSize, v.Expected, v.Located, state)
}

// VerifyResources cross-checks the located counter window of image against
// the resource tree as parsed by saferwall/pe.
func VerifyResources(image []byte, sectionName string) (*Verification, error) {
	pf, err := ReadPE(image)
	if err != nil {
		return nil, err
	}
	section, ok := pf.FindSection(sectionName)
	if !ok {
		return nil, common.ErrSectionMissing
	}
	data, err := pf.SectionData(section)
	if err != nil {
		return nil, err
	}
	layout, err := LocateResources(data)
	if err != nil {
		return nil, err
	}

	file, err := saferwall.NewBytes(image, &saferwall.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}
	defer func() {
		_ = file.Close()
	}()
	if err := file.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}

	rva, size, ok := firstIcon(file.Resources)
	if !ok {
		return nil, common.ErrIconMissing
	}
	iconOffset, ok := pf.RVAToOffset(rva)
	if !ok {
		return nil, fmt.Errorf("%w: icon rva 0x%x is not mapped by any section", common.ErrBounds, rva)
	}

	return &Verification{
		IconRVA:  rva,
		IconSize: size,
		Expected: iconOffset + common.CounterPosition,
		Located:  uint64(section.Offset) + layout.CounterOffset,
	}, nil
}

// high bit of OffsetToData marks an entry that points at a subdirectory
const subdirectoryFlag = 0x80000000

func firstIcon(root saferwall.ResourceDirectory) (rva, size uint32, ok bool) {
	for _, typ := range root.Entries {
		if typ.ID != RTIcon || typ.Struct.OffsetToData&subdirectoryFlag == 0 {
			continue
		}
		for _, name := range typ.Directory.Entries {
			for _, lang := range name.Directory.Entries {
				if lang.Struct.OffsetToData&subdirectoryFlag != 0 {
					continue
				}
				return lang.Data.Struct.OffsetToData, lang.Data.Struct.Size, true
			}
		}
	}
	return 0, 0, false
}
