package counter

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"runcount/common"
	"runcount/container"
	"runcount/log"
	"runcount/perw"
)

// Image is an executable file mapped into memory with its counter window
// located.
type Image struct {
	Path    string
	Section common.Range
	// Offset is the section-relative offset of the counter window.
	Offset uint64

	file     *os.File
	data     mmap.MMap
	writable bool
}

// OpenImage maps the file at path and locates the counter window inside the
// named resource section. Nothing is carried over from earlier opens.
func OpenImage(path, section string, writable bool) (*Image, error) {
	flag, prot := os.O_RDONLY, mmap.RDONLY
	if writable {
		flag, prot = os.O_RDWR, mmap.RDWR
	}

	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if !fileInfo.Mode().IsRegular() || fileInfo.Size() == 0 {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s is not a non-empty regular file", common.ErrMalformed, path)
	}

	data, err := mmap.Map(file, prot, 0)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to map image: %w", err)
	}

	img := &Image{
		Path:     path,
		file:     file,
		data:     data,
		writable: writable,
	}

	sectionData, r, err := container.SectionBytes(data, section)
	if err != nil {
		_ = img.Close()
		return nil, err
	}
	offset, err := perw.FindCounterOffset(sectionData)
	if err != nil {
		_ = img.Close()
		return nil, err
	}
	img.Section = r
	img.Offset = offset

	log.Debugln("image %s: section %s, counter at section+0x%x", path, r, offset)
	return img, nil
}

// Counter returns the value stored in the counter window.
func (i *Image) Counter() (uint64, error) {
	return ReadCounter(i.data, i.Section.Base, i.Offset)
}

// SetCounter stores value in the counter window and flushes the mapping.
func (i *Image) SetCounter(value uint64) error {
	if !i.writable {
		return fmt.Errorf("image %s is mapped read-only", i.Path)
	}
	if err := WriteCounter(i.data, i.Section.Base, i.Offset, value); err != nil {
		return err
	}
	return i.Flush()
}

// Flush writes dirty pages of a writable mapping back to the file.
func (i *Image) Flush() error {
	if !i.writable {
		return nil
	}
	if err := i.data.Flush(); err != nil {
		return fmt.Errorf("failed to flush image: %w", err)
	}
	return nil
}

// FileOffset is the absolute file offset of the counter window.
func (i *Image) FileOffset() uint64 {
	return i.Section.Base + i.Offset
}

// Bytes exposes the mapping. It is invalid after Close.
func (i *Image) Bytes() []byte {
	return i.data
}

func (i *Image) Close() error {
	var errs []error
	if i.data != nil {
		if err := i.data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmap: %w", err))
		}
		i.data = nil
	}
	if i.file != nil {
		if err := i.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close file: %w", err))
		}
		i.file = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
