package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/common/logging"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/restore"
	"github.com/oasislabs/tezos-snapshot/go/store/badgerdb"
)

const cfgRestoreIn = "in"

var (
	restoreFlags = flag.NewFlagSet("", flag.ContinueOnError)

	restoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "rebuild a store from a snapshot stream",
		Run:   doRestore,
	}

	restoreLogger = logging.GetLogger("cmd/context-snapshot/restore")
)

func registerRestoreCmd(parentCmd *cobra.Command) {
	restoreCmd.Flags().AddFlagSet(restoreFlags)
	parentCmd.AddCommand(restoreCmd)
}

func init() {
	restoreFlags.String(cfgRestoreIn, "", "path to read the snapshot stream from")
	_ = viper.BindPFlags(restoreFlags)
}

func doRestore(cmd *cobra.Command, args []string) {
	storeDir := viper.GetString(cfgStoreDir)
	inPath := viper.GetString(cfgRestoreIn)

	in, err := os.Open(inPath)
	if err != nil {
		restoreLogger.Error("failed to open snapshot file", "err", err)
		os.Exit(1)
	}
	defer in.Close()

	dst, err := badgerdb.Open(badgerdb.Config{DB: storeDir})
	if err != nil {
		restoreLogger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer dst.Close()

	storePrunedBlocks := func(chunk []restore.PrunedEntry) error {
		restoreLogger.Debug("persisting pruned block chunk", "count", len(chunk))
		return nil
	}
	// The CLI carries no validation policy of its own (spec's Non-goals):
	// every pruned block is accepted as-is.
	validate := func(_ *block.Header, _ hash.Hash, _ block.PrunedBlock) error {
		return nil
	}

	imp := restore.New(in, dst)
	result, err := imp.Import(context.Background(), storePrunedBlocks, validate)
	if err != nil {
		restoreLogger.Error("restore failed", "err", err)
		os.Exit(1)
	}

	restoreLogger.Info("restore complete",
		"bytes_read", imp.BytesRead(),
		"history_mode", result.Mode,
		"pruned_blocks", len(result.BlockHashes),
		"level", result.Header.Level,
	)
}
