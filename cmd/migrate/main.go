package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/blobshare/internal/config"
	"github.com/dvloznov/blobshare/internal/history"
	"github.com/dvloznov/blobshare/internal/logger"
	"github.com/dvloznov/blobshare/internal/services"
)

var (
	configPath  = flag.String("config", "", "Path to the config file")
	projectID   = flag.String("project", "", "GCP project ID (overrides history.project)")
	datasetID   = flag.String("dataset", "", "BigQuery dataset ID (overrides history.dataset)")
	tableID     = flag.String("table", "", "BigQuery table ID (overrides history.table)")
	location    = flag.String("location", "US", "Location used when the dataset is created")
	printSchema = flag.Bool("print-schema", false, "Print the history table schema and exit")
)

func main() {
	flag.Parse()

	log := logger.New()

	schema, err := history.Schema()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to infer history schema")
	}
	if *printSchema {
		writeSchema(os.Stdout, schema)
		return
	}

	cfg, err := config.Load(*configPath, services.All())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	settings, err := cfg.Settings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read settings")
	}
	h := overrideHistory(settings.History, *projectID, *datasetID, *tableID)
	if h.Project == "" {
		log.Fatal().Msg("Error: -project flag or history.project is required")
	}

	ctx := logger.WithContext(context.Background(), log)
	recorder, err := history.NewBigQueryRecorder(ctx, h.Project, h.Dataset, h.Table)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer recorder.Close()

	log.Info().Str("project", h.Project).Str("dataset", h.Dataset).Str("table", h.Table).Msg("Preparing share history")

	if err := recorder.EnsureDataset(ctx, *location); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure dataset")
	}
	if err := recorder.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure table")
	}

	fmt.Printf("Share history table %s.%s.%s is ready.\n", h.Project, h.Dataset, h.Table)
}

// overrideHistory applies non-empty flag values over the configured table.
func overrideHistory(h config.HistoryConfig, project, dataset, table string) config.HistoryConfig {
	if project != "" {
		h.Project = project
	}
	if dataset != "" {
		h.Dataset = dataset
	}
	if table != "" {
		h.Table = table
	}
	return h
}

func writeSchema(out *os.File, schema bigquery.Schema) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tREQUIRED")
	for _, f := range schema {
		fmt.Fprintf(w, "%s\t%s\t%t\n", f.Name, f.Type, f.Required)
	}
	w.Flush()
}
