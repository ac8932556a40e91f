package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oasislabs/tezos-snapshot/go/common/logging"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/export"
	"github.com/oasislabs/tezos-snapshot/go/store/badgerdb"
)

const (
	cfgExportOut       = "out"
	cfgExportHeaderHex = "header"
	cfgExportDataHex   = "data"
	cfgExportMode      = "mode"
)

var (
	exportFlags = flag.NewFlagSet("", flag.ContinueOnError)

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "write a snapshot of a single committed context",
		Run:   doExport,
	}

	exportLogger = logging.GetLogger("cmd/context-snapshot/export")
)

func registerExportCmd(parentCmd *cobra.Command) {
	exportCmd.Flags().AddFlagSet(exportFlags)
	parentCmd.AddCommand(exportCmd)
}

func init() {
	exportFlags.String(cfgExportOut, "", "path to write the snapshot stream to")
	exportFlags.String(cfgExportHeaderHex, "", "hex-encoded CBOR block header of the context to export")
	exportFlags.String(cfgExportDataHex, "", "hex-encoded CBOR block data (header + operations) of the caboose block")
	exportFlags.String(cfgExportMode, "full", "history mode recorded in the snapshot (full, rolling, archive)")
	_ = viper.BindPFlags(exportFlags)
}

func parseHistoryMode(s string) (block.HistoryMode, error) {
	switch s {
	case "full":
		return block.Full, nil
	case "rolling":
		return block.Rolling, nil
	case "archive":
		return block.Archive, nil
	default:
		return 0, fmt.Errorf("cmd/context-snapshot: unknown history mode %q", s)
	}
}

func doExport(cmd *cobra.Command, args []string) {
	storeDir := viper.GetString(cfgStoreDir)
	outPath := viper.GetString(cfgExportOut)
	headerHex := viper.GetString(cfgExportHeaderHex)
	dataHex := viper.GetString(cfgExportDataHex)

	mode, err := parseHistoryMode(viper.GetString(cfgExportMode))
	if err != nil {
		exportLogger.Error("invalid history mode", "err", err)
		os.Exit(1)
	}

	headerBytes, err := hex.DecodeString(headerHex)
	if err != nil {
		exportLogger.Error("invalid header hex", "err", err)
		os.Exit(1)
	}
	var header block.Header
	if err := header.UnmarshalBinary(headerBytes); err != nil {
		exportLogger.Error("malformed header", "err", err)
		os.Exit(1)
	}

	dataBytes, err := hex.DecodeString(dataHex)
	if err != nil {
		exportLogger.Error("invalid data hex", "err", err)
		os.Exit(1)
	}
	var data block.Data
	if err := data.UnmarshalBinary(dataBytes); err != nil {
		exportLogger.Error("malformed block data", "err", err)
		os.Exit(1)
	}

	src, err := badgerdb.Open(badgerdb.Config{DB: storeDir, ReadOnly: true})
	if err != nil {
		exportLogger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer src.Close()

	out, err := os.Create(outPath)
	if err != nil {
		exportLogger.Error("failed to create output file", "err", err)
		os.Exit(1)
	}
	defer out.Close()

	// The CLI exports a single committed root with no pruned-block
	// history: embedding the engine inside a running node supplies a
	// PrunedIterator backed by the node's own block store (spec §5).
	noHistory := func(_ context.Context, _ *block.Header) (*block.PrunedBlock, *block.ProtocolData, error) {
		return nil, nil, nil
	}

	exp := export.New(out, src)
	if err := exp.Export(context.Background(), &header, &data, mode, noHistory); err != nil {
		exportLogger.Error("export failed", "err", err)
		os.Exit(1)
	}

	exportLogger.Info("snapshot written", "out", outPath, "bytes_written", exp.BytesWritten())
}
