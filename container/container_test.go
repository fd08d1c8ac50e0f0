package container

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"runcount/common"
	"runcount/internal/fixture"
)

func TestDetect(t *testing.T) {
	require.Equal(t, common.FormatPE, Detect([]byte("MZ\x90")))
	require.Equal(t, common.FormatELF, Detect([]byte("\x7fELF\x02")))
	require.Equal(t, common.FormatUnknown, Detect([]byte("\xca\xfe\xba\xbe")))
	require.Equal(t, common.FormatUnknown, Detect(nil))
}

func TestLocateSectionPE(t *testing.T) {
	built := fixture.Build(fixture.Options{Resources: fixture.DefaultResources(0)})

	r, ok, err := LocateSection(built.Data, common.ResourceSectionName)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, built.Section, r)

	_, ok, err = LocateSection(built.Data, ".reloc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSectionBytesMissing(t *testing.T) {
	built := fixture.Build(fixture.Options{
		SectionName: ".rdata",
		Resources:   fixture.DefaultResources(0),
	})

	_, _, err := SectionBytes(built.Data, common.ResourceSectionName)
	require.ErrorIs(t, err, common.ErrSectionMissing)

	data, r, err := SectionBytes(built.Data, ".rdata")
	require.NoError(t, err)
	require.Len(t, data, int(r.Size))
}

func TestLocateSectionMalformed(t *testing.T) {
	_, _, err := LocateSection([]byte("definitely not an executable"), common.ResourceSectionName)
	require.ErrorIs(t, err, common.ErrMalformed)

	_, _, err = LocateSection([]byte("MZ"), common.ResourceSectionName)
	require.ErrorIs(t, err, common.ErrMalformed)
}

func TestLocateSectionTruncated(t *testing.T) {
	built := fixture.Build(fixture.Options{Resources: fixture.DefaultResources(0)})
	truncated := built.Data[:built.Section.Base+16]

	_, _, err := LocateSection(truncated, common.ResourceSectionName)
	require.ErrorIs(t, err, common.ErrBounds)
}

func TestLocateSectionOversizedHeader(t *testing.T) {
	built := fixture.Build(fixture.Options{Resources: fixture.DefaultResources(0)})
	data := append([]byte(nil), built.Data...)
	// second section header, SizeOfRawData
	rsrcHeader := 64 + 4 + 20 + 240 + 40
	binary.LittleEndian.PutUint32(data[rsrcHeader+16:], 0x7fff0000)

	_, _, err := LocateSection(data, common.ResourceSectionName)
	require.ErrorIs(t, err, common.ErrBounds)
}

func TestLocateSectionELF(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)
	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	if Detect(data) != common.FormatELF {
		t.Skip("test binary is not an ELF image")
	}

	_, _, err = SectionBytes(data, common.ResourceSectionName)
	require.ErrorIs(t, err, common.ErrSectionMissing)
}
