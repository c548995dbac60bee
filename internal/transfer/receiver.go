package transfer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/1ureka/airan/internal/util"
)

// Receiver dispatches inbound fragments to a Registry and, once a blob is
// complete, writes the file to disk and emits an Event.
type Receiver struct {
	reg      *Registry
	destRoot func(header FileHeader) string

	events chan Event

	dirMu sync.Mutex
	dirs  map[string]*dirState
}

// NewReceiver creates a Receiver. destRoot maps an incoming header to the
// local filesystem path its file should be written to (the caller decides
// whether that means path_cli or path_ctl, depending on local role).
func NewReceiver(destRoot func(FileHeader) string) *Receiver {
	return &Receiver{
		reg:      NewRegistry(),
		destRoot: destRoot,
		events:   make(chan Event, 32),
		dirs:     make(map[string]*dirState),
	}
}

// Events returns the Receiver's event stream.
func (r *Receiver) Events() <-chan Event { return r.events }

// Close releases the underlying registry's resources.
func (r *Receiver) Close() { r.reg.Close() }

// HandleDirectoryFrame parses a directoryStart/directoryEnd envelope
// received on the text file channel and updates directory-completion
// bookkeeping. No bytes travel with these frames; per-file payloads still
// arrive as ordinary Feed calls on the binary channel.
func (r *Receiver) HandleDirectoryFrame(text string) error {
	var h FileHeader
	if err := json.Unmarshal([]byte(text), &h); err != nil {
		return fmt.Errorf("transfer: malformed directory frame: %w", err)
	}
	switch {
	case h.DirectoryStart:
		r.beginDirectory(h)
	case h.DirectoryEnd:
		r.endDirectory(h)
	}
	return nil
}

// Feed applies one wire fragment from the binary file channel identified by
// channel.
func (r *Receiver) Feed(channel string, data []byte) {
	frag, err := Decode(data)
	if err != nil {
		r.emit(TransferFailed{Err: fmt.Errorf("transfer: decode fragment: %w", err)})
		return
	}

	path, done, err := r.reg.Feed(channel, frag)
	if err != nil {
		r.emit(TransferFailed{Err: err})
		return
	}
	if !done {
		return
	}

	r.finish(path)
}

func (r *Receiver) finish(tmpPath string) {
	defer os.Remove(tmpPath)

	f, err := os.Open(tmpPath)
	if err != nil {
		r.emit(TransferFailed{Err: fmt.Errorf("transfer: reopen reassembly: %w", err)})
		return
	}
	defer f.Close()

	prefixBuf := make([]byte, 4)
	if _, err := io.ReadFull(f, prefixBuf); err != nil {
		r.emit(TransferFailed{Err: fmt.Errorf("transfer: read header size: %w", err)})
		return
	}
	headerLen := binary.BigEndian.Uint32(prefixBuf)
	headerBody := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBody); err != nil {
		r.emit(TransferFailed{Err: fmt.Errorf("transfer: read header body: %w", err)})
		return
	}

	full := append(append([]byte{}, prefixBuf...), headerBody...)
	header, bodyOffset, err := ParseBlobPrefix(full)
	if err != nil {
		r.emit(TransferFailed{Err: err})
		return
	}
	_ = bodyOffset

	dest := r.destRoot(header)
	if err := r.writeFile(dest, f, header.FileSize); err != nil {
		r.emit(TransferFailed{Path: dest, Err: err})
		return
	}

	util.LogInfo("transfer: received %s (%d bytes)", dest, header.FileSize)
	r.emit(FileReceived{Path: dest, Size: header.FileSize})

	if root, ok := r.directoryOf(dest); ok {
		r.noteDirectoryFile(root)
	}
}

func (r *Receiver) writeFile(dest string, body io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("transfer: mkdir for %s: %w", dest, err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("transfer: create %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.CopyN(out, body, size); err != nil && err != io.EOF {
		return fmt.Errorf("transfer: write %s: %w", dest, err)
	}
	return nil
}

func (r *Receiver) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		util.LogWarning("transfer: event channel full, dropping %T", ev)
	}
}
