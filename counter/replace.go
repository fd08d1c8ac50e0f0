package counter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"runcount/config"
	"runcount/log"
)

// preservedModeBits are copied from the executable onto its replacement.
const preservedModeBits = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// Replacer advances the counter of an executable by staging a patched copy
// next to it and renaming the copy over the original. The original file is
// only ever opened read-only; the rename is the single commit point.
//
// Without Lock, two concurrent cycles on the same path can both read N and
// both commit N+1, so one increment is lost.
type Replacer struct {
	Path    string
	Section string
	TempExt string
	Lock    bool
}

// NewReplacer returns a Replacer for the executable at path.
func NewReplacer(path string, cfg *config.Config) *Replacer {
	return &Replacer{
		Path:    path,
		Section: cfg.Section,
		TempExt: cfg.TempExt,
		Lock:    cfg.Lock,
	}
}

// TempPath is the staging sibling: the executable's path with its extension
// replaced by TempExt. A leading dot starts the name, not an extension, so
// .runcount stages as .runcount.tmp.
func (r *Replacer) TempPath() string {
	base := filepath.Base(r.Path)
	ext := filepath.Ext(base)
	if ext == base {
		ext = ""
	}
	return strings.TrimSuffix(r.Path, ext) + "." + r.TempExt
}

// LockPath is the companion file that holds the advisory lock.
func (r *Replacer) LockPath() string {
	return r.Path + ".lock"
}

// Read returns the counter stored in the executable.
func (r *Replacer) Read() (uint64, error) {
	img, err := OpenImage(r.Path, r.Section, false)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = img.Close()
	}()
	return img.Counter()
}

// Cycle reads the counter, reports it on out, and commits the incremented
// value. The increment wraps to 0 past the maximum uint64.
func (r *Replacer) Cycle(out io.Writer) (prev uint64, err error) {
	if r.Lock {
		unlock, err := lockFile(r.LockPath())
		if err != nil {
			return 0, fmt.Errorf("failed to lock %s: %w", r.LockPath(), err)
		}
		defer unlock()
	}

	prev, err = r.Read()
	if err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(out, "Previous run count: %d\n", prev); err != nil {
		return prev, fmt.Errorf("failed to report run count: %w", err)
	}
	return prev, r.Commit(prev + 1)
}

// Commit replaces the executable with a copy whose counter holds value.
func (r *Replacer) Commit(value uint64) (err error) {
	tmp := r.TempPath()
	if tmp == r.Path {
		return fmt.Errorf("temporary path %s equals the executable path", tmp)
	}

	info, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("cannot access executable: %w", err)
	}

	staged := false
	defer func() {
		if err != nil && staged {
			if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warnln("leaving temporary file %s: %v", tmp, rmErr)
			}
		}
	}()

	log.Debugln("copying %s to %s", r.Path, tmp)
	if err = copyFile(r.Path, tmp); err != nil {
		return err
	}
	staged = true

	if err = patch(tmp, r.Section, value); err != nil {
		return err
	}

	if err = os.Chmod(tmp, info.Mode()&preservedModeBits); err != nil {
		return fmt.Errorf("failed to copy permissions: %w", err)
	}

	log.Debugln("renaming %s to %s", tmp, r.Path)
	if err = os.Rename(tmp, r.Path); err != nil {
		return fmt.Errorf("failed to replace executable: %w", err)
	}
	log.Infoln("counter of %s set to %d", r.Path, value)
	return nil
}

// Clean removes a staging file left behind by an interrupted cycle. It
// reports whether a file was removed.
func (r *Replacer) Clean() (bool, error) {
	err := os.Remove(r.TempPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", r.TempPath(), err)
	}
	return true, nil
}

func patch(path, section string, value uint64) error {
	img, err := OpenImage(path, section, true)
	if err != nil {
		return err
	}
	if err := img.SetCounter(value); err != nil {
		_ = img.Close()
		return err
	}
	return img.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func(in *os.File) {
		_ = in.Close()
	}(in)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	if _, err = io.Copy(out, in); err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy image: %w", err)
	}
	return nil
}
