// Command rwfilter partitions flow records into pass/fail/all destination
// streams through an ordered checker chain, per §4.3/§6.1.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/silkflow/silkflow/internal/config"
	"github.com/silkflow/silkflow/internal/filterpipe"
	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/netstats"
)

type flags struct {
	configPath string

	fglob     string
	class     string
	typ       string
	sensor    string
	startDate string
	endDate   string
	xargs     string

	scidr     string
	dcidr     string
	sport     string
	dport     string
	protocol  string
	tupleFile string

	passDest []string
	failDest []string
	allDest  []string
	maxPass  uint64
	maxFail  uint64

	printStats       string
	printVolumeStats string

	threads       int
	dryRun        bool
	plugin        []string
	luaFile       string
	luaExpression string
	noteAdd       string
	noteFileAdd   string
	compression   string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "rwfilter [files...]",
		Short: "partition flow records through a checker chain into pass/fail/all destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "path to a FilterConfig YAML file")

	fl.StringVar(&f.fglob, "fglob", "", "glob pattern supplementing positional file arguments")
	fl.StringVar(&f.class, "class", "", "sensor class selector (supplemented metadata, not enforced against a repository here)")
	fl.StringVar(&f.typ, "type", "", "flow type selector (supplemented metadata, not enforced against a repository here)")
	fl.StringVar(&f.sensor, "sensor", "", "sensor name selector (supplemented metadata, not enforced against a repository here)")
	fl.StringVar(&f.startDate, "start-date", "", "lower bound on record start time")
	fl.StringVar(&f.endDate, "end-date", "", "upper bound on record start time")
	fl.StringVar(&f.xargs, "xargs", "", "file of newline-separated input paths, merged with positional arguments")

	fl.StringVar(&f.scidr, "scidr", "", "source address CIDR block")
	fl.StringVar(&f.dcidr, "dcidr", "", "destination address CIDR block")
	fl.StringVar(&f.sport, "sport", "", "source port or port range (lo-hi)")
	fl.StringVar(&f.dport, "dport", "", "destination port or port range (lo-hi)")
	fl.StringVar(&f.protocol, "protocol", "", "comma-separated protocol number set")
	fl.StringVar(&f.tupleFile, "tuple-file", "", "path to an N-tuple source,dest address filter file")

	fl.StringArrayVar(&f.passDest, "pass-destination", nil, "output path for passing records (repeatable), or stdout")
	fl.StringArrayVar(&f.failDest, "fail-destination", nil, "output path for failing records (repeatable)")
	fl.StringArrayVar(&f.allDest, "all-destination", nil, "output path for every read record (repeatable)")
	fl.Uint64Var(&f.maxPass, "max-pass-records", 0, "cap on total records written to pass destinations (0 = unbounded)")
	fl.Uint64Var(&f.maxFail, "max-fail-records", 0, "cap on total records written to fail destinations (0 = unbounded)")

	fl.StringVar(&f.printStats, "print-statistics", "", "print the simple one-line statistics form, optionally to PATH")
	fl.StringVar(&f.printVolumeStats, "print-volume-statistics", "", "print the six-column volume statistics form, optionally to PATH")
	cmd.Flags().Lookup("print-statistics").NoOptDefVal = "-"
	cmd.Flags().Lookup("print-volume-statistics").NoOptDefVal = "-"

	fl.IntVar(&f.threads, "threads", 0, "worker count (default SILK_RWFILTER_THREADS or 1)")
	fl.BoolVar(&f.dryRun, "dry-run", false, "list resolved inputs and exit without processing")
	fl.StringArrayVar(&f.plugin, "plugin", nil, "plugin name to load (repeatable); plugin runtime is an excluded collaborator, see §6.4")
	fl.StringVar(&f.luaFile, "lua-file", "", "Lua script file providing a register_filter checker; forces --threads=1")
	fl.StringVar(&f.luaExpression, "lua-expression", "", "inline Lua filter expression; forces --threads=1")
	fl.StringVar(&f.noteAdd, "note-add", "", "annotation text recorded in every output stream's header")
	fl.StringVar(&f.noteFileAdd, "note-file-add", "", "path to a file whose contents are recorded as an annotation")
	fl.StringVar(&f.compression, "compression-method", "none", "output compression method: none|deflate|snappy|zstd")

	return cmd
}

func runFilter(f *flags, positional []string) error {
	filterpipe.IgnoreSIGPIPE()

	cfg, err := config.LoadFilterConfig(f.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if err := validateConstruction(f); err != nil {
		return err
	}

	inputPaths := positional
	if cfg.Inputs.FromFile != "" && f.xargs == "" {
		f.xargs = cfg.Inputs.FromFile
	}
	if f.fglob != "" {
		inputPaths = append(inputPaths, f.fglob)
	}
	resolved, err := config.ResolveInputs(inputPaths, f.xargs)
	if err != nil {
		return fmt.Errorf("resolving inputs: %w", err)
	}
	if len(resolved) == 0 {
		return fmt.Errorf("no input files resolved")
	}

	if f.dryRun {
		for _, p := range resolved {
			fmt.Println(p)
		}
		return nil
	}

	inputs, closeInputs, err := openInputs(resolved)
	if err != nil {
		return err
	}
	defer closeInputs()

	chain, err := buildChain(f)
	if err != nil {
		return err
	}

	entries, sidecar, err := filterpipe.MergeHeaders(inputs)
	if err != nil {
		return err
	}
	entries = appendNotes(entries, f.noteAdd, f.noteFileAdd)
	if len(sidecar.Fields()) > 0 {
		entries = append(entries, ipfixcodec.HeaderEntry{
			Type: ipfixcodec.EntrySidecarDescriptor,
			Data: ipfixcodec.EncodeSidecarDescriptor(sidecar),
		})
	}

	compression := parseCompression(f.compression)

	destinations := map[filterpipe.DestKind]*filterpipe.Destination{}
	for _, spec := range destinationSpecs(f) {
		if len(spec.paths) == 0 {
			continue
		}
		writers, names, err := openOutputDestination(spec.paths, ipfixcodec.FormatFlow, compression, entries)
		if err != nil {
			return err
		}
		rw := make([]filterpipe.RecordWriter, len(writers))
		for i, w := range writers {
			rw[i] = w
		}
		destinations[spec.kind] = filterpipe.NewDestination(spec.kind, rw, names, spec.cap)
	}
	if len(destinations) == 0 {
		return fmt.Errorf("at least one of --pass-destination/--fail-destination/--all-destination is required")
	}

	workers := filterpipe.ThreadsFromEnv(f.threads)
	if f.luaFile != "" || f.luaExpression != "" {
		workers = 1
	}
	queue := filterpipe.NewStreamQueue(inputs)
	pipeline := filterpipe.NewPipeline(workers, queue, chain, destinations, logger)

	start := time.Now()
	stats, runErr := pipeline.Run(context.Background())
	end := time.Now()

	printStatsOutput(f, stats)

	if cfg.Monitoring.Enabled {
		m := netstats.NewMetrics()
		m.ObservePipelineStats(stats.Total.Records, stats.Pass.Records, stats.Fail.Records, stats.Total.Bytes, stats.Total.Packets)
		server := netstats.ServeMetrics(fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), m)
		defer netstats.Shutdown(server, 5*time.Second)
	}

	if cfg.Archive.Enabled {
		if err := archiveRun(cfg, start, stats); err != nil {
			logger.Warn("failed to archive pipeline stats", zap.Error(err))
		}
	}

	if runErr != nil {
		logger.Error("pipeline failed", zap.Error(runErr))
		return runErr
	}

	if program, ok := filterpipe.LogStatsProgram(); ok {
		written := stats.Pass.Records + stats.Fail.Records
		if err := filterpipe.RunLogStats(context.Background(), program, start, end, stats.Files, stats.Total.Records, written); err != nil {
			logger.Warn("log-stats program failed", zap.Error(err))
		}
	}

	return nil
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// validateConstruction implements the supplemented rwfiltersetup.c-style
// check of SPEC_FULL.md §12: a Lua filter forces single-threaded
// execution, so an explicit --threads>1 alongside one is a startup error
// rather than a silently ignored flag.
func validateConstruction(f *flags) error {
	usesLua := f.luaFile != "" || f.luaExpression != ""
	if usesLua && f.threads > 1 {
		return fmt.Errorf("--threads=%d is incompatible with --lua-file/--lua-expression: Lua filters run single-threaded", f.threads)
	}
	if f.luaFile != "" && f.luaExpression != "" {
		return fmt.Errorf("--lua-file and --lua-expression are mutually exclusive")
	}
	return nil
}

func buildChain(f *flags) (filterpipe.Chain, error) {
	var chain filterpipe.Chain
	add := func(c filterpipe.Checker, err error) error {
		if err != nil {
			return err
		}
		if c != nil {
			chain = append(chain, c)
		}
		return nil
	}

	if f.scidr != "" {
		c, err := cidrChecker(f.scidr, false)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	if f.dcidr != "" {
		c, err := cidrChecker(f.dcidr, true)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	if f.sport != "" {
		c, err := portRangeChecker(f.sport, false)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	if f.dport != "" {
		c, err := portRangeChecker(f.dport, true)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	if f.protocol != "" {
		c, err := protocolSetChecker(f.protocol)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	if f.startDate != "" || f.endDate != "" {
		c, err := timeRangeChecker(f.startDate, f.endDate)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	if f.tupleFile != "" {
		c, err := tupleFileChecker(f.tupleFile)
		if err := add(c, err); err != nil {
			return nil, err
		}
	}
	// Lua and plugin checkers are excluded collaborators per §6.4: this
	// pipeline only calls through their register_filter-shaped hooks,
	// which have no concrete runtime in this repository to load from
	// --lua-file/--lua-expression/--plugin. Nothing is added to the
	// chain for them beyond the construction-order validation above.
	return chain, nil
}

type destinationSpec struct {
	kind  filterpipe.DestKind
	paths []string
	cap   uint64
}

func destinationSpecs(f *flags) []destinationSpec {
	return []destinationSpec{
		{filterpipe.DestPass, f.passDest, f.maxPass},
		{filterpipe.DestFail, f.failDest, f.maxFail},
		{filterpipe.DestAll, f.allDest, 0},
	}
}

func parseCompression(method string) ipfixcodec.CompressionMethod {
	switch strings.ToLower(method) {
	case "deflate":
		return ipfixcodec.CompressionDeflate
	case "snappy":
		return ipfixcodec.CompressionSnappy
	case "zstd":
		return ipfixcodec.CompressionZstd
	default:
		return ipfixcodec.CompressionNone
	}
}

func appendNotes(entries []ipfixcodec.HeaderEntry, noteAdd, noteFileAdd string) []ipfixcodec.HeaderEntry {
	if noteAdd != "" {
		entries = append(entries, ipfixcodec.HeaderEntry{Type: ipfixcodec.EntryAnnotation, Data: []byte(noteAdd)})
	}
	if noteFileAdd != "" {
		if data, err := os.ReadFile(noteFileAdd); err == nil {
			entries = append(entries, ipfixcodec.HeaderEntry{Type: ipfixcodec.EntryAnnotation, Data: data})
		}
	}
	return entries
}

func printStatsOutput(f *flags, stats filterpipe.Stats) {
	if f.printVolumeStats != "" {
		writeStatsTo(f.printVolumeStats, stats.VolumeTable())
	}
	if f.printStats != "" {
		writeStatsTo(f.printStats, stats.SimpleLine()+"\n")
	}
}

func writeStatsTo(dest, text string) {
	if dest == "" || dest == "-" {
		fmt.Print(text)
		return
	}
	_ = os.WriteFile(dest, []byte(text), 0o644)
}

// archiveRun records one run's summary statistics into TimescaleDB, per
// the config file's archive.dsn. One run produces one row; the batching
// Flusher is for a long-running collector, not this one-shot CLI, so
// InsertSnapshots is called directly with a single-element batch.
func archiveRun(cfg config.FilterConfig, runStart time.Time, stats filterpipe.Stats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sink, err := netstats.NewArchiveSink(ctx, cfg.Archive.DSN)
	if err != nil {
		return err
	}
	defer sink.Close()

	snap := netstats.Snapshot{
		Time:          runStart,
		Files:         int32(stats.Files),
		RecordsRead:   int64(stats.Total.Records),
		RecordsPassed: int64(stats.Pass.Records),
		RecordsFailed: int64(stats.Fail.Records),
		BytesRead:     int64(stats.Total.Bytes),
		PacketsRead:   int64(stats.Total.Packets),
	}
	return sink.InsertSnapshots(ctx, []netstats.Snapshot{snap})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
