package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	natsadapter "github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/nats"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/postgres"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/adapters/valkey"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/ingest"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/config"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/logging"
)

func main() {
	geocode := flag.Bool("geocode", true, "place agencies without coordinates at their city centre")
	caps := flag.String("cap", "", "per-country limits, e.g. MA=150,FR=40")
	dryRun := flag.Bool("dry-run", false, "normalise and report without writing")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: ingestor [flags] <dataset.json|dataset.csv>...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load("annuaire-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("annuaire-ingestor", cfg.Log.Level, cfg.Log.Format)

	countryCaps, err := parseCaps(*caps)
	if err != nil {
		log.Fatalf("cap: %v", err)
	}

	var rows []ingest.RawAgency
	for _, path := range flag.Args() {
		r, err := readDataset(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		slog.Info("dataset read", "file", path, "rows", len(r))
		rows = append(rows, r...)
	}

	agencies := ingest.Normalize(rows, ingest.Options{CountryCaps: countryCaps, Geocode: *geocode})
	report(rows, agencies)
	if *dryRun {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewAgencyRepo(db)
	start := time.Now()
	if err := repo.UpsertBatch(ctx, agencies); err != nil {
		log.Fatalf("upsert: %v", err)
	}
	slog.Info("agencies upserted", "count", len(agencies), "duration", time.Since(start).String())

	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, cached listing expires on its own", "error", err)
	} else {
		defer cache.Close()
		if err := usecases.NewAgencyService(repo, cache).Invalidate(ctx); err != nil {
			slog.Warn("invalidate listing cache", "error", err)
		}
	}

	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, open map sessions keep the old listing", "error", err)
	} else {
		defer pub.Close()
		update := &domain.DatasetUpdate{
			Source: strings.Join(flag.Args(), ","),
			Count:  len(agencies),
			At:     time.Now().UTC(),
		}
		if err := pub.PublishDatasetUpdated(ctx, update); err != nil {
			slog.Warn("publish dataset update", "error", err)
		}
	}

	slog.Info("ingestion complete")
}

func readDataset(path string) ([]ingest.RawAgency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ingest.ReadJSON(f)
	case ".csv":
		return ingest.ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

// parseCaps reads "MA=150,FR=40" into a country code limit map.
func parseCaps(s string) (map[string]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		code, n, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("expected CODE=N, got %q", part)
		}
		limit, err := strconv.Atoi(n)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("invalid limit for %s: %q", code, n)
		}
		out[strings.ToUpper(code)] = limit
	}
	return out, nil
}

func report(rows []ingest.RawAgency, agencies []domain.Agency) {
	mappable, featured := 0, 0
	byCountry := map[string]int{}
	for i := range agencies {
		if agencies[i].Mappable() {
			mappable++
		}
		if agencies[i].Featured {
			featured++
		}
		byCountry[agencies[i].Country]++
	}
	slog.Info("dataset normalised",
		"rows", len(rows),
		"agencies", len(agencies),
		"dropped", len(rows)-len(agencies),
		"mappable", mappable,
		"featured", featured,
		"countries", len(byCountry),
	)
}
