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
		log.Println("creating allowances table...")
		return mghelper.CreateSchema(ctx, db, &pg.AllowanceDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping allowances table...")
		return mghelper.DropTables(ctx, db, &pg.AllowanceDao{})
	})
}
