package perw

import (
	"encoding/binary"
	"fmt"

	"runcount/common"
)

// WriteAtOffset writes value little-endian at offset, bounds checked.
func WriteAtOffset(rawData []byte, offset uint64, value uint64) error {
	if err := checkWindow(rawData, offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(rawData[offset:offset+8], value)
	return nil
}

// ReadUint64At decodes a little-endian uint64 at offset, bounds checked.
func ReadUint64At(rawData []byte, offset uint64) (uint64, error) {
	if err := checkWindow(rawData, offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(rawData[offset : offset+8]), nil
}

func checkWindow(rawData []byte, offset, size uint64) error {
	if offset > uint64(len(rawData)) || uint64(len(rawData))-offset < size {
		return fmt.Errorf("%w: %d bytes at 0x%x, buffer is %d bytes",
			common.ErrBounds, size, offset, len(rawData))
	}
	return nil
}
