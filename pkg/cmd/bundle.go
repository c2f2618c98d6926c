package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/flowvault/pkg/app"
	"github.com/yeisme/flowvault/pkg/configs"
	ctxPkg "github.com/yeisme/flowvault/pkg/context"
	"github.com/yeisme/flowvault/pkg/internal/jobs"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/types"
)

var (
	publishTitle  string
	publishSector string
	publishTags   string
	publishDesc   string
	publishNotes  string
	publishEmail  string
	purgeGrace    time.Duration

	// publish 把本地压缩包或文件发布为新流程，或者为已有流程发布新版本.
	publishCmd = &cobra.Command{
		Use:     "publish <file> [flow-id]",
		Aliases: []string{"ingest"},
		Short:   "publish a local zip or file as a new flow, or as a new version of flow-id",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			_, mgr, err := app.Bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx := ctxPkg.WithStorageManager(cmd.Context(), mgr)
			svc := service.NewFlowService(ctx)
			up := service.Upload{Name: filepath.Base(args[0]), Data: data}
			who := service.Actor{Email: publishEmail, Admin: true}

			var resp *types.PublishResponse

			if len(args) == 2 {
				id, perr := strconv.ParseUint(args[1], 10, 64)
				if perr != nil {
					return fmt.Errorf("invalid flow id %q", args[1])
				}

				resp, err = svc.PublishVersion(ctx, uint(id), up, publishNotes, who)
			} else {
				title := publishTitle
				if title == "" {
					title = strings.TrimSuffix(up.Name, filepath.Ext(up.Name))
				}

				resp, err = svc.Publish(ctx, &types.PublishFlowRequest{
					Title:       title,
					Description: publishDesc,
					SectorCode:  publishSector,
					Tags:        publishTags,
				}, up, who)
			}

			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "flow %s (id %d) version %d\n", resp.Flow.Code, resp.Flow.ID, resp.Version.Number)
			fmt.Fprintf(out, "succeeded=%d failed=%d skipped=%d\n", resp.Report.Succeeded, resp.Report.Failed, resp.Report.Skipped)

			for _, e := range resp.Report.Errors {
				fmt.Fprintln(out, " ! "+e)
			}

			return nil
		},
	}

	// purge 立即执行一次软删除清理.
	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "delete stored objects of soft-deleted flows older than the grace period",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := app.Bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx := ctxPkg.WithStorageManager(cmd.Context(), mgr)

			report, err := jobs.RunPurge(ctx, time.Now().Add(-purgeGrace))
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "objects=%d failed=%d versions=%d flows=%d\n",
					report.Objects, report.Failed, report.Versions, report.Flows)
			}

			return err
		},
	}
)

// registerBundleCommands 注册发布与清理命令.
func registerBundleCommands() {
	publishCmd.Flags().StringVarP(&publishTitle, "title", "t", "", "flow title, defaults to the file name")
	publishCmd.Flags().StringVarP(&publishSector, "sector", "s", "TI", "sector code")
	publishCmd.Flags().StringVar(&publishTags, "tags", "", "comma separated tags")
	publishCmd.Flags().StringVar(&publishDesc, "description", "", "flow description")
	publishCmd.Flags().StringVar(&publishNotes, "notes", "", "version notes when publishing to an existing flow")
	publishCmd.Flags().StringVar(&publishEmail, "email", "cli@flowvault.local", "publisher email")

	purgeCmd.Flags().DurationVar(&purgeGrace, "grace", configs.DefaultPurgeGrace, "only purge rows soft-deleted before now-grace")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(purgeCmd)
}
