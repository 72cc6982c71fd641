// Command csv2json converts a raw listing CSV into the canonical JSON
// record format the indexing pipeline consumes. Rows that fail
// normalization are reported with their row index and skipped.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/HomeGenieAI/homegenie-engine/engine/normalize"
	"github.com/HomeGenieAI/homegenie-engine/pkg/fn"
)

func main() {
	var (
		in  = flag.String("in", "", "input CSV file")
		out = flag.String("out", "", "output JSON file (default: stdout)")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *in == "" {
		log.Error("missing -in")
		os.Exit(2)
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Error("open input failed", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	table, err := normalize.ReadCSV(f)
	if err != nil {
		log.Error("read csv failed", "file", *in, "error", err)
		os.Exit(1)
	}

	listings, rowErrs := normalize.Normalize(table)
	for _, re := range rowErrs {
		log.Warn("row skipped", "row", re.Row, "error", re.Err)
	}

	records := fn.Map(listings, normalize.RecordFromListing)

	w := os.Stdout
	if *out != "" {
		w, err = os.Create(*out)
		if err != nil {
			log.Error("create output failed", "error", err)
			os.Exit(1)
		}
		defer w.Close()
	}
	if err := normalize.WriteRecords(w, records); err != nil {
		log.Error("write records failed", "error", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "converted %d rows, skipped %d\n", len(records), len(rowErrs))
}
