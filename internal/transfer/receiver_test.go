package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// captureSender collects every fragment SendFile hands it, in order, so the
// test can feed them straight into a Receiver without a real DataChannel.
type captureSender struct {
	frames [][]byte
}

func (c *captureSender) SendBinary(data []byte) error {
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *captureSender) BufferedAmount() uint64 { return 0 }

// captureText collects every text frame SendDirectory hands it, in order,
// so the test can feed them straight into a Receiver's HandleDirectoryFrame.
type captureText struct {
	frames []string
}

func (c *captureText) SendText(text string) error {
	c.frames = append(c.frames, text)
	return nil
}

func TestSendFileReceiverRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.bin")
	content := make([]byte, PayloadSize+1) // forces a 2-fragment blob
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(srcPath, content, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	destPath := filepath.Join(dir, "dest.bin")

	sender := &captureSender{}
	txSender := NewSender()
	err := txSender.SendFile(context.Background(), sender, MsgFileUpload, srcPath, destPath, destPath)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if len(sender.frames) < 2 {
		t.Fatalf("expected at least 2 fragments, got %d", len(sender.frames))
	}

	recv := NewReceiver(func(h FileHeader) string { return h.PathCli })
	defer recv.Close()

	for _, frame := range sender.frames {
		recv.Feed("file_airan", frame)
	}

	select {
	case ev := <-recv.Events():
		fr, ok := ev.(FileReceived)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if fr.Path != destPath {
			t.Fatalf("Path = %q, want %q", fr.Path, destPath)
		}
		if fr.Size != int64(len(content)) {
			t.Fatalf("Size = %d, want %d", fr.Size, len(content))
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for FileReceived")
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("dest content mismatch")
	}
}

func TestReceiverRejectsBadFragment(t *testing.T) {
	recv := NewReceiver(func(h FileHeader) string { return h.PathCli })
	defer recv.Close()

	recv.Feed("file_airan", []byte{0x00, 0x01})

	select {
	case ev := <-recv.Events():
		if _, ok := ev.(TransferFailed); !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for TransferFailed")
	}
}

func TestSendDirectoryReceiverRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("world!"), 0o644); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}

	bin := &captureSender{}
	text := &captureText{}
	root := t.TempDir() + string(filepath.Separator)

	txSender := NewSender()
	if err := txSender.SendDirectory(context.Background(), bin, text, MsgFileUpload, srcDir, root, root); err != nil {
		t.Fatalf("SendDirectory: %v", err)
	}
	if len(text.frames) != 2 {
		t.Fatalf("expected 2 text frames (start/end), got %d", len(text.frames))
	}

	recv := NewReceiver(func(h FileHeader) string { return h.PathCli })
	defer recv.Close()

	if err := recv.HandleDirectoryFrame(text.frames[0]); err != nil {
		t.Fatalf("start frame: %v", err)
	}
	for _, frame := range bin.frames {
		recv.Feed("file_airan", frame)
	}

	received := 0
	for received < 2 {
		select {
		case ev := <-recv.Events():
			if _, ok := ev.(FileReceived); ok {
				received++
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for files, got %d/2", received)
		}
	}

	if err := recv.HandleDirectoryFrame(text.frames[1]); err != nil {
		t.Fatalf("end frame: %v", err)
	}

	select {
	case ev := <-recv.Events():
		dc, ok := ev.(DirectoryCompleted)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if dc.Files != 2 {
			t.Fatalf("Files = %d, want 2", dc.Files)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for DirectoryCompleted")
	}
}

func TestDirectoryCompletionWaitsForLastFile(t *testing.T) {
	dir := t.TempDir()

	recv := NewReceiver(func(h FileHeader) string { return h.PathCli })
	defer recv.Close()

	root := dir + string(filepath.Separator)
	recv.beginDirectory(FileHeader{DirectoryStart: true, PathCli: root, FileCount: 1})

	// End frame arrives before the one file's fragments do.
	recv.endDirectory(FileHeader{DirectoryEnd: true, PathCli: root})

	select {
	case <-recv.Events():
		t.Fatalf("DirectoryCompleted fired before the file arrived")
	case <-time.After(50 * time.Millisecond):
	}

	recv.noteDirectoryFile(root)

	select {
	case ev := <-recv.Events():
		dc, ok := ev.(DirectoryCompleted)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if dc.RootPath != root || dc.Files != 1 {
			t.Fatalf("unexpected DirectoryCompleted: %+v", dc)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for DirectoryCompleted")
	}
}

// destPathForDownload mirrors coordinator.destPath: file_download lands at
// path_ctl, everything else (including directory framing) at path_cli.
func destPathForDownload(h FileHeader) string {
	if h.MsgType == MsgFileDownload {
		return h.PathCtl
	}
	return h.PathCli
}

func TestSendDirectoryDownloadCompletes(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}

	bin := &captureSender{}
	text := &captureText{}
	rootCli := t.TempDir() + string(filepath.Separator)
	rootCtl := t.TempDir() + string(filepath.Separator)

	txSender := NewSender()
	if err := txSender.SendDirectory(context.Background(), bin, text, MsgFileDownload, srcDir, rootCli, rootCtl); err != nil {
		t.Fatalf("SendDirectory: %v", err)
	}

	recv := NewReceiver(destPathForDownload)
	defer recv.Close()

	if err := recv.HandleDirectoryFrame(text.frames[0]); err != nil {
		t.Fatalf("start frame: %v", err)
	}
	for _, frame := range bin.frames {
		recv.Feed("file_airan", frame)
	}

	select {
	case ev := <-recv.Events():
		if _, ok := ev.(FileReceived); !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for FileReceived")
	}

	if err := recv.HandleDirectoryFrame(text.frames[1]); err != nil {
		t.Fatalf("end frame: %v", err)
	}

	select {
	case ev := <-recv.Events():
		dc, ok := ev.(DirectoryCompleted)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if dc.Files != 1 {
			t.Fatalf("Files = %d, want 1", dc.Files)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for DirectoryCompleted on a download directory")
	}
}

func TestSenderEmitsTransferStatus(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.bin")
	if err := os.WriteFile(srcPath, []byte("hi"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	destPath := filepath.Join(dir, "dest.bin")

	txSender := NewSender()
	sender := &captureSender{}

	done := make(chan error, 1)
	go func() { done <- txSender.SendFile(context.Background(), sender, MsgFileUpload, srcPath, destPath, destPath) }()

	wantStates := []string{"waiting", "succeeded"}
	for _, want := range wantStates {
		select {
		case ev := <-txSender.Events():
			ts, ok := ev.(TransferStatus)
			if !ok {
				t.Fatalf("unexpected event type %T", ev)
			}
			if ts.State != want {
				t.Fatalf("State = %q, want %q", ts.State, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for TransferStatus %q", want)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("SendFile: %v", err)
	}
}

func TestSenderEmitsFailedTransferStatus(t *testing.T) {
	txSender := NewSender()
	sender := &captureSender{}

	err := txSender.SendFile(context.Background(), sender, MsgFileUpload, "/no/such/file", "dest", "dest")
	if err == nil {
		t.Fatalf("expected SendFile to fail for a missing source file")
	}

	wantStates := []string{"waiting", "failed"}
	for _, want := range wantStates {
		select {
		case ev := <-txSender.Events():
			ts, ok := ev.(TransferStatus)
			if !ok {
				t.Fatalf("unexpected event type %T", ev)
			}
			if ts.State != want {
				t.Fatalf("State = %q, want %q", ts.State, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for TransferStatus %q", want)
		}
	}
}
