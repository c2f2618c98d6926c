package cmd

import (
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/cobra"

	"github.com/yeisme/flowvault/pkg/app"
	mq "github.com/yeisme/flowvault/pkg/internal/storage/mq"
	"github.com/yeisme/flowvault/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "inspect flow events on the message queue",
		Aliases: []string{"events"},
	}

	mqListCmd = &cobra.Command{
		Use:     "types",
		Short:   "list registered mq backends",
		Aliases: []string{"list", "ls"},
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range mq.GetRegisteredMQTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), string(t))
			}
		},
	}

	mqTopicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "list event topics",
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range allTopics() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}

	mqTailCmd = &cobra.Command{
		Use:   "tail [topic...]",
		Short: "print events as they arrive, all topics by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			topics := args
			if len(topics) == 0 {
				topics = allTopics()
			}

			for _, t := range topics {
				if !slices.Contains(allTopics(), t) {
					return fmt.Errorf("unknown topic %q", t)
				}
			}

			cfg, mgr, err := app.Bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer mgr.Close()

			client := mgr.GetMQClient()
			if client == nil {
				if client, err = mq.New(cmd.Context(), &cfg.MQ); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()

			err = client.Consume(cmd.Context(), topics, func(topic string, msg *message.Message) error {
				env, derr := queue.Decode[map[string]any](msg.Payload)
				if derr != nil {
					fmt.Fprintf(out, "%s %s (undecodable)\n", topic, msg.UUID)
					return nil
				}

				fmt.Fprintf(out, "%s %s %s\n", env.Header.OccurredAt.Format("15:04:05"), topic, msg.Payload)

				return nil
			})
			if cmd.Context().Err() != nil {
				return nil
			}

			return err
		},
	}
)

func allTopics() []string {
	return slices.Concat(queue.FlowTopics, queue.ObjectTopics)
}

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd, mqTopicsCmd, mqTailCmd)
}
