package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/airan/internal/util"
)

// ChannelSender is the data-channel write surface SendFile needs. It is
// satisfied by a DataChannel wrapper and, in tests, by an in-memory mock —
// the same seam a DataChannel.Send wrapper abstracts over.
type ChannelSender interface {
	SendBinary(data []byte) error
	BufferedAmount() uint64
}

// TextSender is the text file-channel write surface SendDirectory needs to
// frame a directory transfer's start/end markers.
type TextSender interface {
	SendText(text string) error
}

// highWaterMark pauses fragmenting when the channel's send buffer backs up,
// the same watermark value session.channel's sender uses.
const highWaterMark = 256 * 1024

// pacingEvery/pacingSleep throttle fragment bursts so the channel's send
// buffer never grows unbounded on a fast local disk and a slow link.
const (
	pacingEvery = 10
	pacingSleep = time.Millisecond
)

// Sender streams outgoing file and directory transfers, reporting each
// logical transfer's waiting/succeeded/failed lifecycle on its Events
// channel — the send-side counterpart to Receiver's own Events stream.
type Sender struct {
	events chan Event
}

// NewSender creates a Sender with its event stream ready to drain.
func NewSender() *Sender {
	return &Sender{events: make(chan Event, 32)}
}

// Events returns the Sender's event stream.
func (s *Sender) Events() <-chan Event { return s.events }

func (s *Sender) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		util.LogWarning("transfer: sender event channel full, dropping %T", ev)
	}
}

// SendFile streams pathLocal as a single fragmented blob: header + disk
// bytes, broken into FragmentSize wire fragments and written via sender in
// order. pathCli/pathCtl are the file's client-side and controller-side
// paths carried in the header; the receiver picks its destination from them
// (they differ when client and controller use different filesystem roots).
// It reports its own waiting/succeeded/failed lifecycle as one logical
// transfer on s.Events.
func (s *Sender) SendFile(ctx context.Context, sender ChannelSender, msgType MsgType, pathLocal, pathCli, pathCtl string) error {
	s.emit(TransferStatus{Path: pathLocal, State: "waiting"})
	if err := sendFile(ctx, sender, msgType, pathLocal, pathCli, pathCtl); err != nil {
		s.emit(TransferStatus{Path: pathLocal, State: "failed"})
		return err
	}
	s.emit(TransferStatus{Path: pathLocal, State: "succeeded"})
	return nil
}

func sendFile(ctx context.Context, sender ChannelSender, msgType MsgType, pathLocal, pathCli, pathCtl string) error {
	f, err := os.Open(pathLocal)
	if err != nil {
		return fmt.Errorf("transfer: open %s: %w", pathLocal, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("transfer: stat %s: %w", pathLocal, err)
	}

	header := FileHeader{
		MsgType:  msgType,
		PathCli:  pathCli,
		PathCtl:  pathCtl,
		FileSize: info.Size(),
	}
	prefix, err := BlobPrefix(header)
	if err != nil {
		return err
	}

	blobSize := int64(len(prefix)) + info.Size()
	total := TotalFragments(blobSize)
	msgID := uuid.New()

	reader := io.MultiReader(bytes.NewReader(prefix), f)
	return sendFragments(ctx, sender, msgID, total, reader)
}

// SendDirectory walks rootLocal and streams every regular file it contains
// as an ordinary file transfer over bin, framed by a directoryStart/
// directoryEnd pair of text-channel envelopes on text. No directory bytes
// travel on the binary channel; the two markers carry nothing but paths
// and, on directoryEnd, the number of files sent. The whole tree counts as
// one logical transfer on s.Events — the per-file sends underneath it stay
// silent so a directory doesn't report N+1 overlapping lifecycles.
func (s *Sender) SendDirectory(ctx context.Context, bin ChannelSender, text TextSender, msgType MsgType, rootLocal, rootCli, rootCtl string) error {
	s.emit(TransferStatus{Path: rootLocal, State: "waiting"})

	if err := sendDirectoryFrame(text, FileHeader{
		MsgType: msgType, PathCli: rootCli, PathCtl: rootCtl,
		IsDirectory: true, DirectoryStart: true,
	}); err != nil {
		s.emit(TransferStatus{Path: rootLocal, State: "failed"})
		return err
	}

	count := 0
	err := filepath.WalkDir(rootLocal, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("transfer: walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(rootLocal, path)
		if err != nil {
			return fmt.Errorf("transfer: relativize %s: %w", path, err)
		}
		pathCli := filepath.Join(rootCli, rel)
		pathCtl := filepath.Join(rootCtl, rel)
		if err := sendFile(ctx, bin, msgType, path, pathCli, pathCtl); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		s.emit(TransferStatus{Path: rootLocal, State: "failed"})
		return err
	}

	if err := sendDirectoryFrame(text, FileHeader{
		MsgType: msgType, PathCli: rootCli, PathCtl: rootCtl,
		IsDirectory: true, DirectoryEnd: true, FileCount: count,
	}); err != nil {
		s.emit(TransferStatus{Path: rootLocal, State: "failed"})
		return err
	}

	s.emit(TransferStatus{Path: rootLocal, State: "succeeded"})
	return nil
}

func sendDirectoryFrame(text TextSender, h FileHeader) error {
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("transfer: marshal directory frame: %w", err)
	}
	if err := text.SendText(string(body)); err != nil {
		return fmt.Errorf("transfer: send directory frame: %w", err)
	}
	return nil
}

func sendFragments(ctx context.Context, sender ChannelSender, msgID uuid.UUID, total uint64, r io.Reader) error {
	buf := make([]byte, PayloadSize)
	for i := uint64(0); i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return fmt.Errorf("transfer: read blob: %w", err)
		}

		frag := &Fragment{MessageID: msgID, Total: total, Index: i, Payload: buf[:n]}
		if err := sender.SendBinary(Encode(frag)); err != nil {
			return fmt.Errorf("transfer: send fragment %d/%d: %w", i, total, err)
		}
		util.Stats.AddFragmentSent()

		if i%pacingEvery == pacingEvery-1 || sender.BufferedAmount() > highWaterMark {
			select {
			case <-time.After(pacingSleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
