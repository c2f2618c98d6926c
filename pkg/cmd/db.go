package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/flowvault/pkg/app"
	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/storage/db"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "record store commands",
	}

	dbTypesCmd = &cobra.Command{
		Use:     "types",
		Aliases: []string{"ls"},
		Short:   "list compiled-in database drivers",
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range db.GetRegisteredDBTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}

	// Bootstrap 已完成迁移与部门写入，这里只回显结果.
	dbMigrateCmd = &cobra.Command{
		Use:     "migrate",
		Aliases: []string{"seed"},
		Short:   "migrate tables and seed configured sectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := app.Bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx := ctxPkg.WithStorageManager(cmd.Context(), mgr)

			sectors, err := service.NewSectorService(ctx).List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "CODE\tNAME\n")

			for _, s := range sectors {
				fmt.Fprintf(w, "%s\t%s\n", s.Code, s.Name)
			}

			return w.Flush()
		},
	}

	dbStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "row count per table and connection pool state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mgr, err := app.Bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer mgr.Close()

			gdb := mgr.GetDBClient().GetDB().WithContext(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "driver\t%s/%s\n", cfg.DB.Type, cfg.DB.Database)

			for _, m := range model.Models() {
				var n int64
				if err := gdb.Model(m).Count(&n).Error; err != nil {
					return err
				}

				stmt := gdb.Model(m).Statement
				if err := stmt.Parse(m); err != nil {
					return err
				}

				fmt.Fprintf(w, "%s\t%d\n", stmt.Schema.Table, n)
			}

			if sqlDB, err := gdb.DB(); err == nil {
				st := sqlDB.Stats()
				fmt.Fprintf(w, "pool\topen=%d in_use=%d idle=%d\n", st.OpenConnections, st.InUse, st.Idle)
			}

			return w.Flush()
		},
	}
)

func registerDBCommands() {
	dbCmd.AddCommand(dbTypesCmd, dbMigrateCmd, dbStatsCmd)

	rootCmd.AddCommand(dbCmd)
}
