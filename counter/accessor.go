package counter

import (
	"fmt"

	"runcount/common"
	"runcount/perw"
)

// ReadCounter decodes the counter window at sectionBase+counterOffset.
func ReadCounter(image []byte, sectionBase, counterOffset uint64) (uint64, error) {
	at, err := windowStart(sectionBase, counterOffset)
	if err != nil {
		return 0, err
	}
	return perw.ReadUint64At(image, at)
}

// WriteCounter encodes value into the counter window, using the same byte
// order ReadCounter decodes.
func WriteCounter(image []byte, sectionBase, counterOffset, value uint64) error {
	at, err := windowStart(sectionBase, counterOffset)
	if err != nil {
		return err
	}
	return perw.WriteAtOffset(image, at, value)
}

func windowStart(sectionBase, counterOffset uint64) (uint64, error) {
	at := sectionBase + counterOffset
	if at < sectionBase {
		return 0, fmt.Errorf("%w: counter window 0x%x+0x%x overflows", common.ErrBounds, sectionBase, counterOffset)
	}
	return at, nil
}
