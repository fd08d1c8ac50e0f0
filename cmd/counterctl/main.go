// counterctl inspects and adjusts the run counter embedded in runcount
// executables.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"runcount/common"
	"runcount/config"
	"runcount/counter"
	"runcount/log"
	"runcount/perw"
)

type Mode int

const (
	ModeShow Mode = iota
	ModeSet
	ModeTree
	ModeVerify
	ModeClean
)

func (m Mode) String() string {
	switch m {
	case ModeShow:
		return "show"
	case ModeSet:
		return "set"
	case ModeTree:
		return "tree"
	case ModeVerify:
		return "verify"
	case ModeClean:
		return "clean"
	default:
		return "unknown"
	}
}

// Options is the program configuration
type Options struct {
	Mode        Mode
	Value       uint64
	Verbose     bool
	Parallel    bool
	MaxWorkers  int
	ShowHelp    bool
	ShowVersion bool
	Runtime     *config.Config
}

// ProcessStats accumulates per-file outcomes
type ProcessStats struct {
	mu        sync.Mutex
	Processed int
	Failed    int
	Applied   int
}

const versionString = "counterctl, version 0.1"

var (
	opts  = &Options{Runtime: config.Default()}
	stats = &ProcessStats{}

	doShow      = flag.Bool("show", false, "Print the stored counter (default action)")
	setValue    = flag.Uint64("set", 0, "Store `N` as the counter")
	doReset     = flag.Bool("reset", false, "Store 0 as the counter (alias for -set 0)")
	doTree      = flag.Bool("tree", false, "Print the resource entries used to locate the counter")
	doVerify    = flag.Bool("verify", false, "Cross-check the counter location against an independent resource parse")
	doClean     = flag.Bool("clean", false, "Remove a staging file left by an interrupted run")
	verbose     = flag.Bool("v", false, "Enable verbose output")
	useLock     = flag.Bool("lock", false, "Hold the advisory lock while rewriting")
	tempExt     = flag.String("ext", config.DefaultTempExt, "Extension of the staging file")
	parallel    = flag.Bool("j", false, "Process files in parallel")
	maxWorkers  = flag.Int("workers", 4, "Maximum number of parallel workers")
	showHelp    = flag.Bool("help", false, "Display this help and exit")
	showVersion = flag.Bool("version", false, "Display version information and exit")
)

var ErrConflictingModes = errors.New("only one of -show, -set, -reset, -tree, -verify, -clean may be given")

func init() {
	flag.Usage = customUsage
}

func customUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] FILE...\n", os.Args[0])
	_, _ = fmt.Fprintln(os.Stderr, "Inspect or change the run counter stored in the icon resource of an executable.")
	_, _ = fmt.Fprintln(os.Stderr, "")
	_, _ = fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
	_, _ = fmt.Fprintln(os.Stderr, "")
	_, _ = fmt.Fprintf(os.Stderr, "Environment: %s, %s, %s, %s\n",
		config.EnvLogLevel, config.EnvTempExt, config.EnvLock, config.EnvSection)
	_, _ = fmt.Fprintln(os.Stderr, "")
	_, _ = fmt.Fprintln(os.Stderr, "Examples:")
	_, _ = fmt.Fprintf(os.Stderr, "  %s runcount.exe              # Show the counter\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  %s -set 41 runcount.exe      # Next launch prints 41\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  %s -j -verify bin/*.exe      # Verify many files in parallel\n", os.Args[0])
}

func parseFlags() error {
	flag.Parse()

	runtime, err := config.FromEnv()
	if err != nil {
		return err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	modes := 0
	pick := func(enabled bool, m Mode) {
		if enabled {
			opts.Mode = m
			modes++
		}
	}
	pick(*doShow, ModeShow)
	pick(set["set"], ModeSet)
	pick(*doReset, ModeSet)
	pick(*doTree, ModeTree)
	pick(*doVerify, ModeVerify)
	pick(*doClean, ModeClean)
	if modes > 1 {
		return ErrConflictingModes
	}
	if *doReset {
		opts.Value = 0
	} else {
		opts.Value = *setValue
	}

	if set["lock"] {
		runtime.Lock = *useLock
	}
	if set["ext"] {
		if err := applyTempExt(runtime, *tempExt); err != nil {
			return err
		}
	}
	if *verbose {
		runtime.LogLevel = log.DEBUG
	}
	opts.Runtime = runtime

	opts.Verbose = *verbose
	opts.Parallel = *parallel
	opts.MaxWorkers = *maxWorkers
	opts.ShowHelp = *showHelp
	opts.ShowVersion = *showVersion

	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.MaxWorkers > 16 {
		opts.MaxWorkers = 16
	}
	return nil
}

// applyTempExt overrides the staging extension, normalized the same way as
// the environment value.
func applyTempExt(cfg *config.Config, ext string) error {
	cfg.TempExt = config.NormalizeTempExt(ext)
	return cfg.Validate()
}

// ProcessResult is the outcome of one file
type ProcessResult struct {
	Filename string
	Result   *common.OperationResult
	Details  []string
	Error    error
}

func processFile(filename string) *ProcessResult {
	result := &ProcessResult{Filename: filename}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		result.Error = fmt.Errorf("cannot access file: %w", err)
		return result
	}
	if !fileInfo.Mode().IsRegular() {
		result.Error = fmt.Errorf("not a regular file")
		return result
	}

	r := counter.NewReplacer(filename, opts.Runtime)
	switch opts.Mode {
	case ModeShow:
		result.Result, result.Error = showCounter(r)
	case ModeSet:
		result.Result, result.Error = setCounter(r, opts.Value)
	case ModeTree:
		result.Result, result.Details, result.Error = describeTree(r)
	case ModeVerify:
		result.Result, result.Error = verifyCounter(r)
	case ModeClean:
		result.Result, result.Error = cleanStaging(r)
	default:
		result.Error = fmt.Errorf("unsupported mode %s", opts.Mode)
	}
	return result
}

func showCounter(r *counter.Replacer) (*common.OperationResult, error) {
	v, err := r.Read()
	if err != nil {
		return nil, err
	}
	return common.NewReport("", v), nil
}

func setCounter(r *counter.Replacer, value uint64) (*common.OperationResult, error) {
	prev, err := r.Read()
	if err != nil {
		return nil, err
	}
	if prev == value {
		return common.NewSkipped(fmt.Sprintf("counter already %d", value)), nil
	}
	if err := r.Commit(value); err != nil {
		return nil, err
	}
	return common.NewApplied(fmt.Sprintf("was %d", prev), value), nil
}

func describeTree(r *counter.Replacer) (*common.OperationResult, []string, error) {
	img, err := counter.OpenImage(r.Path, r.Section, false)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = img.Close()
	}()

	layout, err := perw.LocateResources(img.Bytes()[img.Section.Base:img.Section.End()])
	if err != nil {
		return nil, nil, err
	}
	v, err := img.Counter()
	if err != nil {
		return nil, nil, err
	}

	pf, err := perw.ReadPE(img.Bytes())
	if err != nil {
		return nil, nil, err
	}
	kind := "PE32"
	if pf.Is64Bit {
		kind = "PE32+"
	}

	details := []string{
		fmt.Sprintf("%s machine 0x%x, %d sections", kind, pf.Machine, len(pf.Sections)),
		fmt.Sprintf("section %s %s", r.Section, img.Section),
	}
	for _, e := range layout.Entries {
		marker := ""
		if e.Index == layout.Icon.Index {
			marker = " <- icon"
		}
		details = append(details, fmt.Sprintf("entry %d: type=%d data-entry=0x%x payload=0x%x size=%d section+0x%x%s",
			e.Index, e.Type, e.DataEntry, e.FileOffset, e.FileSize, layout.SectionOffset(e), marker))
	}
	if layout.Icon.FileSize < common.ReservedIconPayload {
		details = append(details, fmt.Sprintf("icon payload is %d bytes, the counter window needs %d",
			layout.Icon.FileSize, common.ReservedIconPayload))
	}
	details = append(details,
		fmt.Sprintf("max data entry 0x%x, reposition %d", layout.MaxDataEntry, layout.Reposition),
		fmt.Sprintf("counter at section+0x%x (file 0x%x)", layout.CounterOffset, img.FileOffset()))
	return common.NewReport("", v), details, nil
}

func verifyCounter(r *counter.Replacer) (*common.OperationResult, error) {
	img, err := counter.OpenImage(r.Path, r.Section, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = img.Close()
	}()

	v, err := perw.VerifyResources(img.Bytes(), r.Section)
	if err != nil {
		return nil, err
	}
	if !v.Match() {
		return nil, fmt.Errorf("counter location disagrees with resource directory: %s", v)
	}
	return common.NewSkipped(v.String()), nil
}

func cleanStaging(r *counter.Replacer) (*common.OperationResult, error) {
	removed, err := r.Clean()
	if err != nil {
		return nil, err
	}
	if !removed {
		return common.NewSkipped("no staging file"), nil
	}
	return common.NewApplied("removed "+filepath.Base(r.TempPath()), 0), nil
}

func processFilesSequential(filenames []string) []ProcessResult {
	results := make([]ProcessResult, 0, len(filenames))
	for _, filename := range filenames {
		results = append(results, *processFile(filename))
	}
	return results
}

func processFilesParallel(filenames []string) []ProcessResult {
	type job struct {
		index    int
		filename string
	}
	jobs := make(chan job, len(filenames))
	results := make([]ProcessResult, len(filenames))

	var wg sync.WaitGroup
	for i := 0; i < opts.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = *processFile(j.filename)
			}
		}()
	}

	for i, filename := range filenames {
		jobs <- job{index: i, filename: filename}
	}
	close(jobs)
	wg.Wait()

	return results
}

// uniqueFiles drops repeated paths so no two workers rewrite the same file.
func uniqueFiles(filenames []string) []string {
	seen := make(map[string]bool, len(filenames))
	out := make([]string, 0, len(filenames))
	for _, f := range filenames {
		key := filepath.Clean(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

func printResult(result *ProcessResult) {
	if result.Error != nil {
		_, _ = fmt.Fprintf(os.Stderr, "  ❌ %s: %v\n", filepath.Base(result.Filename), result.Error)
		return
	}
	fmt.Printf("  ✅ %s: %s\n", filepath.Base(result.Filename), result.Result)
	for _, line := range result.Details {
		fmt.Printf("      %s\n", line)
	}
}

func updateStats(results []ProcessResult) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	for _, result := range results {
		stats.Processed++
		if result.Error != nil {
			stats.Failed++
		} else if result.Result != nil && result.Result.Applied {
			stats.Applied++
		}
	}
}

func printSummary() {
	if stats.Processed == 0 {
		return
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Files processed: %d\n", stats.Processed)
	fmt.Printf("  Successful: %d\n", stats.Processed-stats.Failed)
	fmt.Printf("  Failed: %d\n", stats.Failed)
	if stats.Applied > 0 {
		fmt.Printf("  Rewritten: %d\n", stats.Applied)
	}
}

func main() {
	if err := parseFlags(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(2)
	}
	log.SetLevel(opts.Runtime.LogLevel)

	if opts.ShowHelp {
		flag.Usage()
		os.Exit(0)
	}

	if opts.ShowVersion {
		fmt.Println(versionString)
		os.Exit(0)
	}

	filenames := uniqueFiles(flag.Args())
	if len(filenames) == 0 {
		flag.Usage()
		os.Exit(0)
	}

	var results []ProcessResult
	if opts.Parallel && len(filenames) > 1 {
		log.Debugln("processing %d files with %d workers", len(filenames), opts.MaxWorkers)
		results = processFilesParallel(filenames)
	} else {
		results = processFilesSequential(filenames)
	}

	for i := range results {
		printResult(&results[i])
	}
	updateStats(results)

	if len(filenames) > 1 || opts.Verbose {
		printSummary()
	}

	if stats.Failed > 0 {
		os.Exit(1)
	}
}
