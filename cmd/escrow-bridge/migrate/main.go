package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/escrow-bridge/pkg/config"
	"github.com/chainsafe/escrow-bridge/pkg/migrations/escrowdb"
	"github.com/chainsafe/escrow-bridge/pkg/pgutil"
	mghelper "github.com/chainsafe/escrow-bridge/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}
	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatalf("database.driver is %q; migrations need %q", cfg.Database.Driver, config.DriverPostgres)
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for escrow database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, escrowdb.Migrations)
	if err = mghelper.RunMigrations(context.Background(), migrator, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
