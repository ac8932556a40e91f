// Package export implements the snapshot writer (spec §4.3): a
// deduplicating post-order walk of a context's Merkle tree, followed by
// the root record, the pruned-block history, the protocol data, and the
// end marker.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/oasislabs/tezos-snapshot/go/common/hash"
	"github.com/oasislabs/tezos-snapshot/go/common/logging"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/block"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/codec"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/errs"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/metadata"
	"github.com/oasislabs/tezos-snapshot/go/snapshot/store"

	"github.com/prometheus/client_golang/prometheus"
)

var logger = logging.GetLogger("snapshot/export")

// PrunedIterator returns the predecessor's pruned form (absent at the
// chain tail) and any protocol activation that occurred at that step,
// given a header. The exporter does not itself traverse block storage;
// it consumes whatever predecessor chain the caller hands it (spec §9).
type PrunedIterator func(ctx context.Context, header *block.Header) (pred *block.PrunedBlock, protoData *block.ProtocolData, err error)

// Exporter walks a context tree and writes a snapshot stream.
type Exporter struct {
	store store.Store
	cw    *codec.CommandWriter
	bytes prometheus.Gauge

	visited map[hash.Hash]struct{}
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithBytesWrittenGauge publishes the exporter's running byte count to g
// after every flush. Purely observational: the engine works identically
// with g == nil.
func WithBytesWrittenGauge(g prometheus.Gauge) Option {
	return func(e *Exporter) { e.bytes = g }
}

// New creates an Exporter writing to w, reading from s.
func New(w io.Writer, s store.Store, opts ...Option) *Exporter {
	e := &Exporter{
		store:   s,
		cw:      codec.NewCommandWriter(w),
		visited: make(map[hash.Hash]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BytesWritten returns the running total of bytes flushed to the
// descriptor so far.
func (e *Exporter) BytesWritten() uint64 {
	return e.cw.BytesWritten()
}

func (e *Exporter) reportProgress() {
	if e.bytes != nil {
		e.bytes.Set(float64(e.cw.BytesWritten()))
	}
}

// Export writes the full snapshot stream for the context rooted at
// header: metadata, deduplicated tree, root record, pruned-block
// history, protocol data, and the end marker (spec §4.3).
func (e *Exporter) Export(
	ctx context.Context,
	header *block.Header,
	data *block.Data,
	mode block.HistoryMode,
	prunedIter PrunedIterator,
) error {
	if err := e.writeMetadata(mode); err != nil {
		return err
	}

	c, ok, err := e.store.GetContext(ctx, header)
	if err != nil {
		return err
	}
	if !ok {
		headerBytes, _ := header.MarshalBinary()
		return errs.ContextNotFound(headerBytes)
	}

	tree := e.store.ContextTree(c)
	if err := e.foldTreePath(tree); err != nil {
		return err
	}

	root := &codec.RootCommand{
		Header:  *header,
		Info:    e.store.ContextInfo(c),
		Parents: e.store.ContextParents(c),
		Data:    *data,
	}
	if err := e.cw.WriteRoot(root); err != nil {
		return err
	}
	e.reportProgress()

	protoDatas, err := e.walkHistory(ctx, data.Header, prunedIter)
	if err != nil {
		return err
	}
	for _, pd := range protoDatas {
		if err := e.cw.WriteLoot(&codec.LootCommand{Data: pd}); err != nil {
			return err
		}
	}

	if err := e.cw.WriteEnd(); err != nil {
		return err
	}
	if err := e.cw.Flush(); err != nil {
		return err
	}
	e.reportProgress()

	logger.Info("export complete",
		"bytes_written", e.cw.BytesWritten(),
		"history_mode", mode,
	)
	return nil
}

func (e *Exporter) writeMetadata(mode block.HistoryMode) error {
	if err := metadata.Write(e.cw.Writer, mode); err != nil {
		return err
	}
	e.reportProgress()
	return nil
}

// frame is one pending interior node in the iterative post-order walk
// (spec §9: "an iterative (explicit-stack) traversal is preferable to
// recursion for trees with deep paths").
type frame struct {
	tree     store.Tree
	selfHash hash.Hash
	children []store.Child
	idx      int
	built    []store.ChildHash
}

func newFrame(s store.Store, tree store.Tree, selfHash hash.Hash) (*frame, error) {
	children, err := s.TreeList(tree)
	if err != nil {
		return nil, err
	}
	sorted := make([]store.Child, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Step < sorted[j].Step })

	return &frame{
		tree:     tree,
		selfHash: selfHash,
		children: sorted,
		built:    make([]store.ChildHash, 0, len(sorted)),
	}, nil
}

// foldTreePath performs the depth-first post-order traversal of spec
// §4.3 step 3: every child is emitted (as Blob or Node) before the
// parent that names it, deduplicating by content hash along the way.
func (e *Exporter) foldTreePath(root store.Tree) error {
	rootHash, err := e.store.TreeHash(root)
	if err != nil {
		return err
	}
	e.visited[rootHash] = struct{}{}

	// A leaf root has no children to list: it is emitted as a single Blob.
	content, isLeaf, err := e.store.TreeContent(root)
	if err != nil {
		return err
	}
	if isLeaf {
		if err := e.cw.WriteBlob(&codec.BlobCommand{Content: content}); err != nil {
			return err
		}
		e.reportProgress()
		return nil
	}

	top, err := newFrame(e.store, root, rootHash)
	if err != nil {
		return err
	}
	stack := []*frame{top}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.idx >= len(top.children) {
			if err := e.cw.WriteNode(&codec.NodeCommand{Children: top.built}); err != nil {
				return err
			}
			e.reportProgress()

			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				name := parent.children[parent.idx].Step
				parent.built = append(parent.built, store.ChildHash{Step: name, Hash: top.selfHash})
				parent.idx++
			}
			continue
		}

		child := top.children[top.idx]
		childTree, ok, err := e.store.SubTree(top.tree, []string{child.Step})
		if err != nil {
			return err
		}
		if !ok {
			panic(fmt.Sprintf("snapshot/export: child %q enumerated by TreeList but absent from SubTree", child.Step))
		}

		h, err := e.store.TreeHash(childTree)
		if err != nil {
			return err
		}

		if _, seen := e.visited[h]; seen {
			top.built = append(top.built, store.ChildHash{Step: child.Step, Hash: h})
			top.idx++
			continue
		}
		e.visited[h] = struct{}{}

		switch child.Kind {
		case store.Contents:
			content, ok, err := e.store.TreeContent(childTree)
			if err != nil {
				return err
			}
			if !ok {
				panic(fmt.Sprintf("snapshot/export: child %q marked as contents but has no content", child.Step))
			}
			if err := e.cw.WriteBlob(&codec.BlobCommand{Content: content}); err != nil {
				return err
			}
			e.reportProgress()

			top.built = append(top.built, store.ChildHash{Step: child.Step, Hash: h})
			top.idx++
		case store.Node:
			childFrame, err := newFrame(e.store, childTree, h)
			if err != nil {
				return err
			}
			stack = append(stack, childFrame)
		}
	}

	return nil
}

// walkHistory implements spec §4.3 step 5: starting from data's header,
// follow prunedIter backwards, emitting Proot for every predecessor and
// accumulating protocol data to be flushed afterward in encounter order
// (newest-to-oldest).
func (e *Exporter) walkHistory(ctx context.Context, start block.Header, prunedIter PrunedIterator) ([]block.ProtocolData, error) {
	var protoDatas []block.ProtocolData

	header := start
	for {
		pred, pdata, err := prunedIter(ctx, &header)
		if err != nil {
			return nil, err
		}
		if pdata != nil {
			protoDatas = append(protoDatas, *pdata)
		}
		if pred == nil {
			break
		}
		if err := e.cw.WriteProot(&codec.ProotCommand{Pruned: *pred}); err != nil {
			return nil, err
		}
		e.reportProgress()

		header = pred.Header
	}

	return protoDatas, nil
}
