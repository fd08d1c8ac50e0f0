// runcount prints how many times it has been started before, then rewrites
// its own executable so the next start sees one more.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"runcount/config"
	"runcount/counter"
	"runcount/log"
)

func main() {
	if err := run(os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "runcount: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)

	exe, err := executablePath()
	if err != nil {
		return err
	}
	log.Debugln("running as %s", exe)

	_, err = counter.NewReplacer(exe, cfg).Cycle(out)
	return err
}

// executablePath resolves symlinks so the rename replaces the real file
// rather than the link.
func executablePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot determine executable path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("cannot resolve executable path: %w", err)
	}
	return resolved, nil
}
