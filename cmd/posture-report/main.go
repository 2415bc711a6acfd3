package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/report"
	"github.com/banshee-data/posture.report/internal/version"
)

var (
	dbPath      = flag.String("db", "posture.db", "SQLite event log written by posture")
	session     = flag.String("session", "", "Session ID to report on (empty reports every session)")
	limit       = flag.Int("limit", 100000, "Maximum number of most recent frames to include")
	outDir      = flag.String("out", "", "Directory for PNG charts (empty skips charts)")
	asJSON      = flag.Bool("json", false, "Print the summary as JSON")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	records, err := database.RecentClassifications(*session, *limit)
	if err != nil {
		log.Fatalf("failed to load frames: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("no frames recorded in %s", *dbPath)
	}

	summary := report.Summarize(records)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatalf("failed to encode summary: %v", err)
		}
	} else if err := summary.WriteText(os.Stdout); err != nil {
		log.Fatalf("failed to write summary: %v", err)
	}

	if *outDir == "" {
		return
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("failed to create %s: %v", *outDir, err)
	}

	labels := filepath.Join(*outDir, "labels.png")
	if err := report.WriteLabelChart(summary.Labels, labels); err != nil {
		log.Fatalf("label chart: %v", err)
	}
	log.Printf("wrote %s", labels)

	timeline := filepath.Join(*outDir, "timeline.png")
	if err := report.WriteTimelinePlot(records, timeline); err != nil {
		log.Printf("timeline plot skipped: %v", err)
		return
	}
	log.Printf("wrote %s", timeline)
}
