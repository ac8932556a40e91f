// Package restore implements the snapshot reader (spec §4.4): a two-pass
// consumer that rebuilds a context tree in a fresh store, then replays
// the pruned-block history, invoking caller-supplied callbacks to
// persist reconstructed blocks.
package restore

import (
	"context"
	"io"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/common/logging"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/codec"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/errs"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/metadata"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"

	"github.com/prometheus/client_golang/prometheus"
)

var logger = logging.GetLogger("snapshot/restore")

// pruneChunkSize is the number of Proot entries accumulated before being
// handed to StorePrunedBlocksFunc (spec §3 Lifecycle, §4.4).
const pruneChunkSize = 5000

// PrunedEntry is one (block hash, pruned block) pair as handed to
// StorePrunedBlocksFunc.
type PrunedEntry struct {
	Hash   hash.Hash
	Pruned block.PrunedBlock
}

// StorePrunedBlocksFunc persists a chunk of pruned blocks, in whatever
// order it was handed in.
type StorePrunedBlocksFunc func(chunk []PrunedEntry) error

// ValidateFunc is a policy check invoked for every pruned block
// encountered, given its immediate successor's header (absent for the
// first pruned block encountered). It may fail and abort the import.
type ValidateFunc func(predHeader *block.Header, h hash.Hash, pruned block.PrunedBlock) error

// Result is the fully reconstructed snapshot state.
type Result struct {
	Header        block.Header
	Data          block.Data
	Mode          block.HistoryMode
	OldestHeader  *block.Header
	BlockHashes   []hash.Hash
	ProtocolDatas []block.ProtocolData
}

// Importer consumes a snapshot stream and rebuilds it into a fresh
// store.
type Importer struct {
	store store.Store
	cr    *codec.CommandReader
	bytes prometheus.Gauge
}

// Option configures an Importer.
type Option func(*Importer)

// WithBytesReadGauge publishes the importer's running byte count to g
// after every frame.
func WithBytesReadGauge(g prometheus.Gauge) Option {
	return func(im *Importer) { im.bytes = g }
}

// New creates an Importer reading from r, writing into s.
func New(r io.Reader, s store.Store, opts ...Option) *Importer {
	im := &Importer{
		store: s,
		cr:    codec.NewCommandReader(r),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// BytesRead returns the running total of bytes consumed from the
// descriptor so far.
func (im *Importer) BytesRead() uint64 {
	return im.cr.BytesRead()
}

func (im *Importer) reportProgress() {
	if im.bytes != nil {
		im.bytes.Set(float64(im.cr.BytesRead()))
	}
}

// Import consumes the snapshot stream: the metadata guard, the tree and
// root rebuild (first pass), then the pruned-block history (second
// pass).
func (im *Importer) Import(ctx context.Context, storePrunedBlocks StorePrunedBlocksFunc, validate ValidateFunc) (*Result, error) {
	m, err := metadata.Read(im.cr.Reader)
	if err != nil {
		return nil, err
	}
	im.reportProgress()

	header, data, err := im.firstPass(ctx)
	if err != nil {
		return nil, err
	}

	oldestHeader, blockHashes, protocolDatas, err := im.secondPass(storePrunedBlocks, validate)
	if err != nil {
		return nil, err
	}

	logger.Info("import complete",
		"bytes_read", im.cr.BytesRead(),
		"history_mode", m.Mode,
		"pruned_blocks", len(blockHashes),
	)

	return &Result{
		Header:        *header,
		Data:          *data,
		Mode:          m.Mode,
		OldestHeader:  oldestHeader,
		BlockHashes:   blockHashes,
		ProtocolDatas: protocolDatas,
	}, nil
}

// firstPass rebuilds the tree and commits the root (spec §4.4 step 2).
func (im *Importer) firstPass(ctx context.Context) (*block.Header, *block.Data, error) {
	var resultHeader *block.Header
	var resultData *block.Data

	err := im.store.Batch(ctx, func(b store.Batch) error {
		ctxt := b.MakeContext()

		for {
			cmd, err := im.cr.ReadCommand()
			if err != nil {
				return err
			}
			im.reportProgress()

			switch cmd.Tag {
			case codec.TagBlob:
				tree, err := b.AddString(cmd.Blob.Content)
				if err != nil {
					return err
				}
				ctxt = b.UpdateContext(ctxt, tree)

			case codec.TagNode:
				tree, ok, err := b.AddDir(cmd.Node.Children)
				if err != nil {
					return err
				}
				if !ok {
					return errs.ErrRestoreContextFailure
				}
				ctxt = b.UpdateContext(ctxt, tree)

			case codec.TagRoot:
				header, ok, err := b.SetContext(cmd.Root.Info, cmd.Root.Parents, ctxt, &cmd.Root.Header)
				if err != nil {
					return err
				}
				if !ok {
					return errs.ErrInconsistentSnapshotData
				}
				resultHeader = header
				resultData = &cmd.Root.Data
				return nil

			default:
				return errs.ErrInconsistentSnapshotData
			}
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return resultHeader, resultData, nil
}

// secondPass rebuilds the pruned-block history (spec §4.4 step 3).
func (im *Importer) secondPass(storePrunedBlocks StorePrunedBlocksFunc, validate ValidateFunc) (*block.Header, []hash.Hash, []block.ProtocolData, error) {
	var predHeader *block.Header
	var blockHashes []hash.Hash
	var protocolDatas []block.ProtocolData
	var todoChunk []PrunedEntry

	flush := func() error {
		if err := storePrunedBlocks(todoChunk); err != nil {
			return err
		}
		todoChunk = nil
		return nil
	}

	for {
		cmd, err := im.cr.ReadCommand()
		if err != nil {
			return nil, nil, nil, err
		}
		im.reportProgress()

		switch cmd.Tag {
		case codec.TagProot:
			pruned := cmd.Proot.Pruned
			h := pruned.BlockHash()

			if err := validate(predHeader, h, pruned); err != nil {
				return nil, nil, nil, err
			}

			todoChunk = append(todoChunk, PrunedEntry{Hash: h, Pruned: pruned})
			blockHashes = append(blockHashes, h)
			predHeader = &pruned.Header

			if len(todoChunk) == pruneChunkSize {
				if err := flush(); err != nil {
					return nil, nil, nil, err
				}
			}

		case codec.TagLoot:
			// Every Loot is a protocol-data boundary: the chunk
			// accumulated so far (however partial, even empty) is
			// flushed unconditionally before the Loot is recorded.
			if err := flush(); err != nil {
				return nil, nil, nil, err
			}
			protocolDatas = append(protocolDatas, cmd.Loot.Data)

		case codec.TagEnd:
			// Reverse blockHashes: they were appended in stream
			// (newest-to-oldest) encounter order, and the final result
			// is oldest-to-newest. No further flush here: a snapshot's
			// backward walk always terminates at the chain origin,
			// which always carries a protocol activation, so the final
			// partial chunk has already been flushed by the last Loot
			// above. A chain with no protocol activation at all would
			// lose its tail chunk; this mirrors the source's own
			// handling (spec §9 Open Question 2).
			reverse(blockHashes)
			return predHeader, blockHashes, protocolDatas, nil

		default:
			return nil, nil, nil, errs.ErrInconsistentSnapshotData
		}
	}
}

func reverse(hs []hash.Hash) {
	for i, j := 0, len(hs)-1; i < j; i, j = i+1, j-1 {
		hs[i], hs[j] = hs[j], hs[i]
	}
}
