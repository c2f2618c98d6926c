package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/yeisme/flowvault/pkg/app"
	"github.com/yeisme/flowvault/pkg/cache"
	kv "github.com/yeisme/flowvault/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "inspect the url map and render cache store",
		Aliases: []string{"cache"},
	}

	kvListCmd = &cobra.Command{
		Use:     "types",
		Short:   "list registered kv backends",
		Aliases: []string{"list", "ls"},
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), string(t))
			}
		},
	}

	kvKeysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "list cached keys matching a glob, e.g. 'urlmap.12.*'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}

			return withKV(cmd, func(store kv.KVStore) error {
				keys, err := store.Keys(cmd.Context(), pattern)
				if err != nil {
					return err
				}

				slices.Sort(keys)

				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}

				return nil
			})
		},
	}

	kvGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "print a cached value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, func(store kv.KVStore) error {
				b, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(b))

				return nil
			})
		},
	}

	kvClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "drop all url map and render cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, func(store kv.KVStore) error {
				n, err := cache.NewCache(store).Clear(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)

				return err
			})
		},
	}
)

// withKV 初始化存储后把 KV 交给 fn，KV 不可用时报错.
func withKV(cmd *cobra.Command, fn func(kv.KVStore) error) error {
	cfg, mgr, err := app.Bootstrap(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	kvc := mgr.GetKVClient()
	if kvc == nil {
		return fmt.Errorf("kv store %q unavailable", cfg.KV.Type)
	}

	if cfg.KV.Type == string(kv.KVTypeMemory) {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: memory kv is per process, the running server is not affected")
	}

	return fn(kvc.KVStore)
}

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd, kvKeysCmd, kvGetCmd, kvClearCmd)
}
