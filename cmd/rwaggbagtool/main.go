// Command rwaggbagtool composes Aggregate Bags under add/subtract,
// optionally reshapes their schema, and emits an Aggregate Bag, Bag, or
// IPset, per §4.5/§6.2.
package main

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/silkflow/silkflow/internal/aggbag"
	"github.com/silkflow/silkflow/internal/config"
	"github.com/silkflow/silkflow/internal/ipfixcodec"
	"github.com/silkflow/silkflow/internal/ipset"
	"github.com/silkflow/silkflow/internal/netstats"
	"github.com/silkflow/silkflow/internal/rwrec"
)

type flags struct {
	configPath string

	add      bool
	subtract bool

	insertFields []string
	removeFields string
	selectFields string
	toIPset      string
	toBag        string

	outputPath         string
	ipsetRecordVersion int
	noteAdd            string
	noteFileAdd        string
	compressionMethod  string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "rwaggbagtool [inputs...]",
		Short: "compose Aggregate Bags under add/subtract and optionally convert to Bag or IPset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "path to an AggBagConfig YAML file")
	fl.BoolVar(&f.add, "add", false, "fold subsequent inputs with add_bag (default if neither --add nor --subtract given)")
	fl.BoolVar(&f.subtract, "subtract", false, "fold subsequent inputs with subtract_bag")
	fl.StringArrayVar(&f.insertFields, "insert-field", nil, "NAME=VALUE key field to insert into every input's schema before folding (repeatable)")
	fl.StringVar(&f.removeFields, "remove-fields", "", "comma-separated field list to drop from every input's schema before folding")
	fl.StringVar(&f.selectFields, "select-fields", "", "comma-separated field list to keep in every input's schema before folding")
	fl.StringVar(&f.toIPset, "to-ipset", "", "emit an IPset of the named IP-typed field instead of an Aggregate Bag")
	fl.StringVar(&f.toBag, "to-bag", "", "emit a KEYFIELD,COUNTERFIELD Bag instead of an Aggregate Bag")
	fl.StringVar(&f.outputPath, "output-path", "-", "output path, or stdout")
	fl.IntVar(&f.ipsetRecordVersion, "ipset-record-version", 1, "IPset record version to request (this codec supports version 1 only)")
	fl.StringVar(&f.noteAdd, "note-add", "", "annotation text recorded in the output header")
	fl.StringVar(&f.noteFileAdd, "note-file-add", "", "path to a file whose contents are recorded as an annotation")
	fl.StringVar(&f.compressionMethod, "compression-method", "none", "output compression method: none|deflate|snappy|zstd")
	return cmd
}

func run(f *flags, inputs []string) error {
	cfg, err := config.LoadAggBagConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.compressionMethod == "none" && cfg.Compression != "" {
		f.compressionMethod = cfg.Compression
	}

	if len(inputs) == 0 {
		return fmt.Errorf("at least one input source is required")
	}
	if f.add && f.subtract {
		return fmt.Errorf("--add and --subtract are mutually exclusive")
	}

	exclusiveCount := 0
	for _, v := range []string{f.toIPset, f.toBag, f.removeFields, f.selectFields} {
		if v != "" {
			exclusiveCount++
		}
	}
	if exclusiveCount > 1 {
		return fmt.Errorf("at most one of --to-bag/--to-ipset/--remove-fields/--select-fields may be given")
	}

	inserts, err := parseInsertFields(f.insertFields)
	if err != nil {
		return err
	}
	var removeIDs, selectIDs []rwrec.FieldID
	if f.removeFields != "" {
		if removeIDs, err = parseFieldList(f.removeFields); err != nil {
			return err
		}
	}
	if f.selectFields != "" {
		if selectIDs, err = parseFieldList(f.selectFields); err != nil {
			return err
		}
	}
	var toBagKey, toBagCounter rwrec.FieldID
	var toBagSet bool
	if f.toBag != "" {
		if toBagKey, toBagCounter, err = parseToBag(f.toBag); err != nil {
			return err
		}
		toBagSet = true
	}
	var toIPsetField rwrec.FieldID
	var toIPsetSet bool
	if f.toIPset != "" {
		id, ok := rwrec.FieldByName(f.toIPset)
		if !ok {
			return fmt.Errorf("unknown field %q for --to-ipset", f.toIPset)
		}
		toIPsetField = id
		toIPsetSet = true
	}

	accumulator, err := loadBag(inputs[0])
	if err != nil {
		return err
	}
	accumulator, err = applySchemaOps(accumulator, inserts, removeIDs, selectIDs)
	if err != nil {
		return fmt.Errorf("applying schema manipulation to %q: %w", inputs[0], err)
	}

	for _, path := range inputs[1:] {
		next, err := loadBag(path)
		if err != nil {
			return err
		}
		next, err = applySchemaOps(next, inserts, removeIDs, selectIDs)
		if err != nil {
			return fmt.Errorf("applying schema manipulation to %q: %w", path, err)
		}
		if f.subtract {
			err = accumulator.SubtractBag(next)
		} else {
			err = accumulator.AddBag(next)
		}
		if err != nil {
			return fmt.Errorf("folding %q into accumulator: %w", path, err)
		}
	}

	out, closeOut, err := openOutput(f.outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	compression := parseCompression(f.compressionMethod)
	entries := noteEntries(f.noteAdd, f.noteFileAdd)

	if cfg.Monitoring.Enabled {
		stats := accumulator.Stats()
		m := netstats.NewMetrics()
		m.ObserveBagStats(stats.Keys, stats.FootprintByte)
		server := netstats.ServeMetrics(fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort), m)
		defer netstats.Shutdown(server, 5*time.Second)
	}

	switch {
	case toBagSet:
		bag, err := accumulator.SelectFields([]rwrec.FieldID{toBagKey, toBagCounter})
		if err != nil {
			return fmt.Errorf("converting to Bag: %w", err)
		}
		fmt.Fprintf(os.Stderr, "emitting Bag: key=%s (%s), counter=%s\n",
			toBagKey.Name(), bagKeyTypeFor(toBagKey), toBagCounter.Name())
		return bag.Write(out, compression, entries...)
	case toIPsetSet:
		set, err := toIPsetSetFrom(accumulator, toIPsetField)
		if err != nil {
			return fmt.Errorf("converting to IPset: %w", err)
		}
		return set.WriteTo(out, compression)
	default:
		return accumulator.Write(out, compression, entries...)
	}
}

func parseInsertFields(specs []string) ([]fieldConstant, error) {
	out := make([]fieldConstant, 0, len(specs))
	for _, s := range specs {
		id, value, err := parseInsertField(s)
		if err != nil {
			return nil, err
		}
		out = append(out, fieldConstant{id: id, value: value})
	}
	return out, nil
}

type fieldConstant struct {
	id    rwrec.FieldID
	value any
}

// applySchemaOps implements §4.5 step 2/3's "apply schema manipulation to
// it (insert/remove/select)", applying the identical sequence to every
// input so add_bag/subtract_bag's key-field-match requirement holds.
func applySchemaOps(b *aggbag.Bag, inserts []fieldConstant, removeIDs, selectIDs []rwrec.FieldID) (*aggbag.Bag, error) {
	cur := b
	for _, ins := range inserts {
		next, err := cur.InsertField(ins.id, ins.value)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if len(removeIDs) > 0 {
		next, err := cur.RemoveFields(removeIDs)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if len(selectIDs) > 0 {
		next, err := cur.SelectFields(selectIDs)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// toIPsetSetFrom implements §4.5's "conversion to IPset": exactly one
// selected IP-typed field, counters discarded. This bypasses
// SelectFields, which rejects an empty counter-field list.
func toIPsetSetFrom(b *aggbag.Bag, field rwrec.FieldID) (*ipset.Set, error) {
	found := false
	for _, id := range b.KeyFields() {
		if id == field {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("field %q is not part of the accumulator's key schema", field.Name())
	}
	kind, _, _ := aggbag.FieldInfo(field)
	if kind != aggbag.KindIP {
		return nil, fmt.Errorf("field %q is not IP-typed", field.Name())
	}

	set := ipset.New()
	var iterErr error
	err := b.Iterate(func(key map[rwrec.FieldID]any, _ map[rwrec.FieldID]uint64) bool {
		addr, ok := key[field].(netip.Addr)
		if !ok {
			iterErr = fmt.Errorf("decoded key value for %q is not an IP address", field.Name())
			return false
		}
		set.Insert(addr)
		return true
	})
	if err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}
	return set, nil
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

func noteEntries(noteAdd, noteFileAdd string) []ipfixcodec.HeaderEntry {
	var entries []ipfixcodec.HeaderEntry
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

func openOutput(path string) (*os.File, func(), error) {
	if path == "" || path == "-" || path == "stdout" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening output %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
