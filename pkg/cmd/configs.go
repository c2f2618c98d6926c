package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/flowvault/pkg/app"
	"github.com/yeisme/flowvault/pkg/configs"
)

var (
	viperDebug bool

	configCmd = &cobra.Command{
		Use:     "config",
		Aliases: []string{"configs"},
		Short:   "inspect and validate the loaded configuration",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configs.InitConfig(configPath)
		},
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the config file in use",
		Run: func(cmd *cobra.Command, args []string) {
			if used := configs.GetViper().ConfigFileUsed(); used != "" {
				fmt.Fprintln(cmd.OutOrStdout(), used)
				return
			}

			fmt.Fprintln(cmd.OutOrStdout(), "no config file, defaults and FLOWVAULT_* env only")
		},
	}

	configShowCmd = &cobra.Command{
		Use:     "show",
		Aliases: []string{"debug"},
		Short:   "print the effective configuration as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viperDebug {
				configs.GetViper().DebugTo(cmd.ErrOrStderr())
			}

			return printJSON(cmd, configs.GetConfig())
		},
	}

	configGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "print one value, e.g. bundle.sign_expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := configs.GetViper()
			if !v.IsSet(args[0]) {
				return fmt.Errorf("config key %q not set", args[0])
			}

			return printJSON(cmd, v.Get(args[0]))
		},
	}

	configValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "validate every config section without touching storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ValidateConfig(configs.GetConfig()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "config ok")

			return nil
		},
	}
)

func printJSON(cmd *cobra.Command, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

func registerConfigsCommands() {
	configShowCmd.Flags().BoolVar(&viperDebug, "viper", false, "also dump viper's internal state to stderr")

	configCmd.AddCommand(configPathCmd, configShowCmd, configGetCmd, configValidateCmd)

	rootCmd.AddCommand(configCmd)
}
