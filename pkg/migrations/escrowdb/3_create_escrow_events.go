package escrowdb

import (
	"context"
	"log"

	mghelper "github.com/chainsafe/escrow-bridge/pkg/pgutil/migrations"
	"github.com/chainsafe/escrow-bridge/pkg/store/pg"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating escrow_events table...")
		if err := mghelper.CreateSchema(ctx, db, &pg.EventDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &pg.EventDao{}, "emitter", "kind", "token")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping escrow_events table...")
		return mghelper.DropTables(ctx, db, &pg.EventDao{})
	})
}
