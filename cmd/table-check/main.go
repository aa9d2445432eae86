// Command table-check lints allocation-table JSON files before they are
// loaded into an event. It accepts either a bare rank-to-points object or a
// variant map like an event's allocations block, reports every entry the
// engine would drop, and with -strict fails instead of tolerating them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"meetcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("table-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var strict bool
	fs.BoolVar(&strict, "strict", false, "fail when a table contains defective entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "usage: table-check [-strict] <table.json> [...]")
		return 2
	}

	defects := 0
	for _, path := range paths {
		n, err := checkFile(path, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "table check failed: %v\n", err)
			return 1
		}
		defects += n
	}
	switch {
	case defects > 0 && strict:
		fmt.Fprintf(stderr, "table check failed: %d defective entries\n", defects)
		return 1
	case defects > 0:
		fmt.Fprintf(stdout, "Allocation tables passed; %d defective entries would be dropped.\n", defects)
	default:
		fmt.Fprintln(stdout, "Allocation tables passed.")
	}
	return 0
}

// checkFile reports each defective entry in the file and returns the defect
// count. Unreadable or unparseable files are errors, not defects.
func checkFile(path string, stdout io.Writer) (int, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	variants, ok := variantLayout(doc)
	if !ok {
		return reportDefects(path, "", doc, stdout), nil
	}
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	total := 0
	for _, name := range names {
		if !domain.KnownVariant(domain.AllocationVariant(name)) {
			fmt.Fprintf(stdout, "%s: unknown variant %q\n", path, name)
			total++
		}
		total += reportDefects(path, name, variants[name], stdout)
	}
	return total, nil
}

// variantLayout detects the allocations-block shape: every top-level value is
// itself an object keyed by rank.
func variantLayout(doc map[string]any) (map[string]map[string]any, bool) {
	if len(doc) == 0 {
		return nil, false
	}
	variants := make(map[string]map[string]any, len(doc))
	for name, value := range doc {
		table, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		variants[name] = table
	}
	return variants, true
}

func reportDefects(path, variant string, raw map[string]any, stdout io.Writer) int {
	_, defects := domain.ParseAllocationTable(raw)
	for _, defect := range defects {
		if variant != "" {
			fmt.Fprintf(stdout, "%s: variant %s: entry %q dropped: %s\n", path, variant, defect.Key, defect.Reason)
			continue
		}
		fmt.Fprintf(stdout, "%s: entry %q dropped: %s\n", path, defect.Key, defect.Reason)
	}
	return len(defects)
}
