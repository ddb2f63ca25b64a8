// Command fieldlink-journal is a tool for viewing and analyzing the
// gateway's flight journal.
//
// Journal files are written by fieldlink-gateway when a journal path is
// configured. Records are CBOR, append-only, size-capped with rotation.
//
// Usage:
//
//	fieldlink-journal <command> [flags] <journal.cbor>
//
// Commands:
//
//	view     View journal in human-readable format
//	stats    Show statistics about the journal
//
// Examples:
//
//	# View all events
//	fieldlink-journal view journal.cbor
//
//	# View only link transitions
//	fieldlink-journal view -category link journal.cbor
//
//	# Only events on the cellular link
//	fieldlink-journal view -link CELLULAR journal.cbor
//
//	# Show statistics
//	fieldlink-journal stats journal.cbor
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fieldlink-iot/fieldlink-go/pkg/journal"
)

const usage = `fieldlink-journal - Flight Journal Analyzer

Usage:
  fieldlink-journal <command> [flags] <journal.cbor>

Commands:
  view     View journal in human-readable format
  stats    Show statistics about the journal

Use "fieldlink-journal <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `fieldlink-journal view - View journal in human-readable format

Usage:
  fieldlink-journal view [flags] <journal.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	category := fs.String("category", "", "Filter by category (round, link, position, error)")
	linkName := fs.String("link", "", "Filter by link name (SHORT_RANGE, CELLULAR)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}

	var filter journal.Filter
	if *category != "" {
		c, err := parseCategoryFlag(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}
	filter.Link = *linkName

	if err := view(fs.Arg(0), &filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `fieldlink-journal stats - Show statistics about the journal

Usage:
  fieldlink-journal stats <journal.cbor>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := stats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseCategoryFlag(s string) (journal.Category, error) {
	switch strings.ToLower(s) {
	case "round":
		return journal.CategoryRound, nil
	case "link":
		return journal.CategoryLink, nil
	case "position":
		return journal.CategoryPosition, nil
	case "error":
		return journal.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category: %s (use: round, link, position, error)", s)
	}
}

func view(path string, filter *journal.Filter, w io.Writer) error {
	events, err := journal.ReadFile(path, filter)
	if err != nil {
		return err
	}

	for _, e := range events {
		line := fmt.Sprintf("%s  %-8s %-10s",
			e.Timestamp.Format("2006-01-02 15:04:05.000"), e.Category, e.Outcome)
		if e.Link != "" {
			line += "  link=" + e.Link
		}
		if e.Topic != "" {
			line += "  topic=" + e.Topic
		}
		if e.Size > 0 {
			line += fmt.Sprintf("  size=%d", e.Size)
		}
		if e.Detail != "" {
			line += "  detail=" + e.Detail
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d event(s)\n", len(events))
	return nil
}

func stats(path string, w io.Writer) error {
	events, err := journal.ReadFile(path, nil)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "Journal is empty")
		return nil
	}

	byCategory := map[string]int{}
	byOutcome := map[string]int{}
	var published, dropped, aborted int
	var bytes int64
	for _, e := range events {
		byCategory[e.Category.String()]++
		if e.Outcome != "" {
			byOutcome[e.Outcome]++
		}
		switch e.Outcome {
		case journal.OutcomePublished:
			published++
			bytes += int64(e.Size)
		case journal.OutcomeDropped:
			dropped++
		case journal.OutcomeAborted:
			aborted++
		}
	}

	fmt.Fprintf(w, "Journal: %s\n", path)
	fmt.Fprintf(w, "  Events:     %d\n", len(events))
	fmt.Fprintf(w, "  Time range: %s .. %s\n",
		events[0].Timestamp.Format("2006-01-02 15:04:05"),
		events[len(events)-1].Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Published:  %d (%d bytes)\n", published, bytes)
	fmt.Fprintf(w, "  Dropped:    %d\n", dropped)
	fmt.Fprintf(w, "  Aborted:    %d\n", aborted)

	fmt.Fprintln(w, "\n  By category:")
	for _, k := range sortedKeys(byCategory) {
		fmt.Fprintf(w, "    %-10s %d\n", k, byCategory[k])
	}
	fmt.Fprintln(w, "\n  By outcome:")
	for _, k := range sortedKeys(byOutcome) {
		fmt.Fprintf(w, "    %-10s %d\n", k, byOutcome[k])
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
