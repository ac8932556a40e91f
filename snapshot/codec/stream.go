package codec

import "io"

// CommandWriter writes Commands as length-prefixed frames.
type CommandWriter struct {
	*Writer
}

// NewCommandWriter wraps w as a CommandWriter.
func NewCommandWriter(w io.Writer) *CommandWriter {
	return &CommandWriter{Writer: NewWriter(w)}
}

// WriteRoot emits a Root command.
func (cw *CommandWriter) WriteRoot(cmd *RootCommand) error {
	payload, err := encodeRoot(cmd)
	if err != nil {
		return err
	}
	return cw.WriteFrame(payload)
}

// WriteNode emits a Node command.
func (cw *CommandWriter) WriteNode(cmd *NodeCommand) error {
	return cw.WriteFrame(encodeNode(cmd))
}

// WriteBlob emits a Blob command.
func (cw *CommandWriter) WriteBlob(cmd *BlobCommand) error {
	return cw.WriteFrame(encodeBlob(cmd))
}

// WriteProot emits a Proot command.
func (cw *CommandWriter) WriteProot(cmd *ProotCommand) error {
	payload, err := encodeProot(cmd)
	if err != nil {
		return err
	}
	return cw.WriteFrame(payload)
}

// WriteLoot emits a Loot command.
func (cw *CommandWriter) WriteLoot(cmd *LootCommand) error {
	payload, err := encodeLoot(cmd)
	if err != nil {
		return err
	}
	return cw.WriteFrame(payload)
}

// WriteEnd emits the End command.
func (cw *CommandWriter) WriteEnd() error {
	return cw.WriteFrame(encodeEnd())
}

// CommandReader reads Commands from length-prefixed frames.
type CommandReader struct {
	*Reader
}

// NewCommandReader wraps r as a CommandReader.
func NewCommandReader(r io.Reader) *CommandReader {
	return &CommandReader{Reader: NewReader(r)}
}

// ReadCommand reads and decodes the next Command frame.
func (cr *CommandReader) ReadCommand() (*Command, error) {
	payload, err := cr.ReadFrame()
	if err != nil {
		return nil, err
	}
	cmd, err := DecodeCommand(payload)
	if err != nil {
		logger.Debug("failed to decode command", "err", err)
		return nil, err
	}
	return cmd, nil
}
