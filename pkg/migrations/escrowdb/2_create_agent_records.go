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
		log.Println("creating agent_records table...")
		if err := mghelper.CreateSchema(ctx, db, &pg.AgentRecordDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &pg.AgentRecordDao{}, "agent")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping agent_records table...")
		return mghelper.DropTables(ctx, db, &pg.AgentRecordDao{})
	})
}
