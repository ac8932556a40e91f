// Package main implements the context-snapshot command-line tool: a
// thin wrapper around snapshot/export and snapshot/restore exposing
// `export` and `restore` sub-commands. It owns no policy of its own
// (descriptor validation, progress UI beyond a log line, pruning
// policy) — all of that lives in the engine packages it calls.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oasislabs/tezos-snapshot/go/common/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:   "context-snapshot",
		Short: "export and restore context-addressed chain snapshots",
	}

	rootLogger = logging.GetLogger("cmd/context-snapshot")
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootFlags := flag.NewFlagSet("", flag.ContinueOnError)
	rootFlags.String(cfgStoreDir, "", "path to the badger store directory")
	_ = viper.BindPFlags(rootFlags)
	rootCmd.PersistentFlags().AddFlagSet(rootFlags)

	registerExportCmd(rootCmd)
	registerRestoreCmd(rootCmd)
}

const cfgStoreDir = "store.dir"
