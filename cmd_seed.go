package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"frequency/config"
	"frequency/content"
	"frequency/db"
	"frequency/logger"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the content catalog into MongoDB",
	Long: `Validate a content catalog and upsert it into MongoDB.

Characters are matched on callsign, signals and frequency slots on their
frequency, so seeding twice updates in place. Without --file the built-in
catalog is used.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "catalog YAML (defaults to the built-in catalog)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	uri := config.GetMongoDBURI()
	if uri == "" {
		return errors.New("MONGODB_URI is required; demo mode seeds its own store")
	}

	log, err := logger.New(config.GetLogMode())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cat, err := loadCatalog(seedFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := db.InitMongoDB(ctx, uri, config.GetMongoDatabase(), log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	res, err := content.Seed(ctx, store, cat, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d characters, %d signals, %d frequencies\n",
		res.Characters, res.Signals, res.Frequencies)
	return nil
}

func loadCatalog(path string) (*content.Catalog, error) {
	if path == "" {
		return content.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return content.Parse(data)
}
