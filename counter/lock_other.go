//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package counter

import "runcount/log"

func lockFile(path string) (func(), error) {
	log.Warnln("advisory locking is not supported on this platform, %s not locked", path)
	return func() {}, nil
}
