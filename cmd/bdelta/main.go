// Command bdelta computes and applies binary deltas between two token
// sequences using the bdelta matching engine. It supports a single
// diff/apply pair plus a batch mode for running many independent jobs
// concurrently.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/jjwhitney/bdelta"
	"github.com/jjwhitney/bdelta/patch"
)

func main() {
	if len(os.Args) < 2 {
		printUsageAndExit("missing operation")
	}

	var err error
	switch os.Args[1] {
	case "diff":
		err = runDiffCmd(os.Args[2:])
	case "apply":
		err = runApplyCmd(os.Args[2:])
	case "batch":
		err = runBatchCmd(os.Args[2:])
	case "--help", "-h":
		printUsageAndExit("")
	default:
		printUsageAndExit(fmt.Sprintf("unrecognised operation: %s", os.Args[1]))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "bdelta: %v\n", err)
		os.Exit(1)
	}
}

func printUsageAndExit(msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
		fmt.Fprintln(os.Stderr)
	}
	appName := filepath.Base(os.Args[0])
	fmt.Fprintln(os.Stderr, "Compute and apply binary deltas.")
	fmt.Fprintln(os.Stderr, "Operations:")
	fmt.Fprintln(os.Stderr, "\tdiff:  write a patch describing target relative to source")
	fmt.Fprintln(os.Stderr, "\tapply: reconstruct target from source and a patch")
	fmt.Fprintln(os.Stderr, "\tbatch: run many diff jobs concurrently from a job file")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "\t%s diff  -source S -target T -out P\n", appName)
	fmt.Fprintf(os.Stderr, "\t%s apply -source S -patch P -out T\n", appName)
	fmt.Fprintf(os.Stderr, "\t%s batch -jobs jobs.txt -concurrency 4\n", appName)
	os.Exit(1)
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return l
	}
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// serveMetrics starts a promhttp handler over reg in the background if
// addr is non-empty; the server is not gracefully shut down since it
// only lives for the process's remaining lifetime.
func serveMetrics(logger *zap.Logger, reg *prometheus.Registry, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// passSchedule is the hierarchical blocksize schedule applied to every
// diff job: start wide and global to catch the bulk of a match cheaply,
// then narrow and local to mine what's left out of individual holes
// without diluting locality across unrelated regions (spec §4.6 design
// notes on per-pass tradeoffs).
func passSchedule(topBlocksize, minBlocksize int) []struct {
	blocksize, minMatch int
	flags               bdelta.Flags
} {
	var sched []struct {
		blocksize, minMatch int
		flags               bdelta.Flags
	}
	bs := topBlocksize
	first := true
	for bs >= minBlocksize {
		flags := bdelta.FlagSidesOrdered
		if first {
			flags |= bdelta.FlagGlobal
		}
		sched = append(sched, struct {
			blocksize, minMatch int
			flags               bdelta.Flags
		}{bs, bs * 2, flags})
		bs /= 4
		first = false
	}
	return sched
}

type diffOptions struct {
	sourcePath, targetPath, outPath string
	topBlocksize, minBlocksize      int
	removeOverlap                   bool
	verbose                        bool
	metricsAddr                    string
}

func runDiffCmd(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	opts := diffOptions{}
	fs.StringVar(&opts.sourcePath, "source", "", "source file (required)")
	fs.StringVar(&opts.targetPath, "target", "", "target file (required)")
	fs.StringVar(&opts.outPath, "out", "", "patch output file (required)")
	fs.IntVar(&opts.topBlocksize, "top-blocksize", 64, "first-pass block size in tokens")
	fs.IntVar(&opts.minBlocksize, "min-blocksize", 4, "smallest pass block size in tokens")
	fs.BoolVar(&opts.removeOverlap, "remove-overlap", true, "shrink partially overlapping matches instead of leaving them in place")
	fs.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	fs.Parse(args)

	if opts.sourcePath == "" || opts.targetPath == "" || opts.outPath == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags")
	}

	logger := newLogger(opts.verbose)
	defer logger.Sync()
	registry := prometheus.NewRegistry()
	serveMetrics(logger, registry, opts.metricsAddr)

	return diffFiles(logger, registry, opts)
}

func diffFiles(logger *zap.Logger, registry *prometheus.Registry, opts diffOptions) error {
	srcFile, err := os.Open(opts.sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()
	tgtFile, err := os.Open(opts.targetPath)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer tgtFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	tgtInfo, err := tgtFile.Stat()
	if err != nil {
		return fmt.Errorf("stat target: %w", err)
	}

	cfg := bdelta.Config{Logger: logger, Registry: registry}
	inst, err := bdelta.Init(int(srcInfo.Size()), int(tgtInfo.Size()), fileReadFunc, srcFile, tgtFile, bdelta.TokenSize(), cfg)
	if err != nil {
		return fmt.Errorf("init instance: %w", err)
	}
	defer inst.Done()

	for _, p := range passSchedule(opts.topBlocksize, opts.minBlocksize) {
		inst.Pass(p.blocksize, p.minMatch, 0, p.flags)
		if err := inst.Err(); err != nil {
			return fmt.Errorf("pass blocksize=%d: %w", p.blocksize, err)
		}
	}

	cleanFlags := bdelta.Flags(0)
	if opts.removeOverlap {
		cleanFlags |= bdelta.FlagRemoveOverlap
	}
	inst.CleanMatches(cleanFlags)

	outFile, err := os.OpenFile(opts.outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("create patch output: %w", err)
	}
	defer outFile.Close()

	if err := patch.Write(outFile, inst, tgtFile, srcInfo.Size(), tgtInfo.Size()); err != nil {
		return fmt.Errorf("write patch: %w", err)
	}

	logger.Info("diff complete",
		zap.String("source", opts.sourcePath),
		zap.String("target", opts.targetPath),
		zap.Int("matches", inst.NumMatches()),
	)
	return nil
}

// fileReadFunc adapts an *os.File to bdelta.ReadFunc. Token is an alias
// for a fixed-width unsigned integer (uint8 in the default build), so a
// byte buffer can be handed back directly without copying element by
// element.
func fileReadFunc(handle any, scratch []bdelta.Token, offset, n int) []bdelta.Token {
	f := handle.(*os.File)
	buf := scratch
	if cap(buf) < n {
		buf = make([]bdelta.Token, n)
	}
	buf = buf[:n]
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return buf[:0]
	}
	return buf
}

func runApplyCmd(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	var sourcePath, patchPath, outPath string
	var verbose bool
	fs.StringVar(&sourcePath, "source", "", "source file (required)")
	fs.StringVar(&patchPath, "patch", "", "patch input file (required)")
	fs.StringVar(&outPath, "out", "", "reconstructed output file (required)")
	fs.BoolVar(&verbose, "verbose", false, "enable debug logging")
	fs.Parse(args)

	if sourcePath == "" || patchPath == "" || outPath == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags")
	}

	logger := newLogger(verbose)
	defer logger.Sync()

	srcFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()
	patchFile, err := os.Open(patchPath)
	if err != nil {
		return fmt.Errorf("open patch: %w", err)
	}
	defer patchFile.Close()
	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer outFile.Close()

	if err := patch.Apply(patchFile, srcFile, outFile); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	logger.Info("apply complete", zap.String("source", sourcePath), zap.String("out", outPath))
	return nil
}

// batchJob is one line of a batch job file: "source target out".
type batchJob struct {
	source, target, out string
}

func parseJobsFile(path string) ([]batchJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs file: %w", err)
	}
	defer f.Close()

	var jobs []batchJob
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed job line %q: want 3 whitespace-separated fields", line)
		}
		jobs = append(jobs, batchJob{source: fields[0], target: fields[1], out: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	return jobs, nil
}

func runBatchCmd(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var jobsPath string
	var concurrency int
	var verbose bool
	var stagingDir string
	fs.StringVar(&jobsPath, "jobs", "", "job file, one \"source target out\" triple per line (required)")
	fs.IntVar(&concurrency, "concurrency", 4, "maximum concurrent diff jobs")
	fs.BoolVar(&verbose, "verbose", false, "enable debug logging")
	fs.StringVar(&stagingDir, "staging-dir", "", "if set, stage each job's output through a named pipe under this directory, copied from the pipe into the job's output file")
	fs.Parse(args)

	if jobsPath == "" {
		fs.Usage()
		return fmt.Errorf("missing required flags")
	}

	logger := newLogger(verbose)
	defer logger.Sync()

	jobs, err := parseJobsFile(jobsPath)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			outPath := job.out
			var pipePath string
			if stagingDir != "" {
				pipePath = filepath.Join(stagingDir, fmt.Sprintf("bdelta-job-%d.pipe", i))
				if err := unix.Mkfifo(pipePath, 0o600); err != nil {
					return fmt.Errorf("job %d: create staging pipe: %w", i, err)
				}
				defer os.Remove(pipePath)
				outPath = pipePath
			}

			opts := diffOptions{
				sourcePath:    job.source,
				targetPath:    job.target,
				outPath:       outPath,
				topBlocksize:  64,
				minBlocksize:  4,
				removeOverlap: true,
			}
			jobLogger := logger.With(zap.Int("job", i))
			// one registry per job: each Init registers the engine's
			// collectors, and a shared registry rejects the second set.
			registry := prometheus.NewRegistry()

			if pipePath == "" {
				if err := diffFiles(jobLogger, registry, opts); err != nil {
					return fmt.Errorf("job %d (%s -> %s): %w", i, job.source, job.target, err)
				}
				return nil
			}

			// The pipe's write end (inside diffFiles, via os.Create)
			// blocks until something opens the read end, so producer
			// and consumer must run concurrently, not sequentially.
			var pg errgroup.Group
			pg.Go(func() error { return diffFiles(jobLogger, registry, opts) })
			pg.Go(func() error { return drainPipeToFile(pipePath, job.out) })
			if err := pg.Wait(); err != nil {
				return fmt.Errorf("job %d (%s -> %s): %w", i, job.source, job.target, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("batch complete", zap.Int("jobs", len(jobs)))
	return nil
}

// drainPipeToFile copies a named pipe's full contents into dst. Batch
// mode runs it concurrently with the diffFiles call that writes the
// pipe's other end, and it returns once that writer closes the pipe.
func drainPipeToFile(pipePath, dst string) error {
	in, err := os.Open(pipePath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, 64*1024)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return rerr
		}
	}
}
