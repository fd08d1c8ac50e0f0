package perw

// Resource tree records. Each decodes from a fixed-size little-endian
// window through decodeRecord.

const (
	RTIcon = 3

	sizeOfResourceDirectory       = 16
	sizeOfResourceTypeEntry       = 8
	sizeOfResourceDirectoryRecord = sizeOfResourceDirectory + sizeOfResourceTypeEntry
	sizeOfResourceDataEntry       = 16

	// the first payload sits past the last data entry and an 8-byte pad
	payloadPastDataEntry = sizeOfResourceDataEntry + 8
)

type record interface {
	size() int
}

// resourceDirectory is an IMAGE_RESOURCE_DIRECTORY header.
type resourceDirectory struct {
	Characteristics uint32 `struc:"uint32,little"`
	TimeDateStamp   uint32 `struc:"uint32,little"`
	MajorVersion    uint16 `struc:"uint16,little"`
	MinorVersion    uint16 `struc:"uint16,little"`
	NamedEntries    uint16 `struc:"uint16,little"`
	IDEntries       uint16 `struc:"uint16,little"`
}

func (*resourceDirectory) size() int { return sizeOfResourceDirectory }

// resourceTypeEntry is a root-level entry. Only the low halves of the name
// and offset words are meaningful here.
type resourceTypeEntry struct {
	Type       uint16 `struc:"uint16,little"`
	NameFlag   uint16 `struc:"uint16,little"`
	Offset     uint16 `struc:"uint16,little"`
	OffsetFlag uint16 `struc:"uint16,little"`
}

func (*resourceTypeEntry) size() int { return sizeOfResourceTypeEntry }

// resourceDirectoryRecord is a Name or Language directory header together
// with its first entry, whose offset leads one level down.
type resourceDirectoryRecord struct {
	Characteristics uint32 `struc:"uint32,little"`
	TimeDateStamp   uint32 `struc:"uint32,little"`
	MajorVersion    uint16 `struc:"uint16,little"`
	MinorVersion    uint16 `struc:"uint16,little"`
	NamedEntries    uint16 `struc:"uint16,little"`
	IDEntries       uint16 `struc:"uint16,little"`
	FirstID         uint16 `struc:"uint16,little"`
	FirstIDFlag     uint16 `struc:"uint16,little"`
	Next            uint16 `struc:"uint16,little"`
	NextFlag        uint16 `struc:"uint16,little"`
}

func (*resourceDirectoryRecord) size() int { return sizeOfResourceDirectoryRecord }

// resourceDataEntry is an IMAGE_RESOURCE_DATA_ENTRY.
type resourceDataEntry struct {
	FileOffset uint32 `struc:"uint32,little"`
	FileSize   uint32 `struc:"uint32,little"`
	CodePage   uint32 `struc:"uint32,little"`
	Reserved   uint32 `struc:"uint32,little"`
}

func (*resourceDataEntry) size() int { return sizeOfResourceDataEntry }
