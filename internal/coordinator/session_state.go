package coordinator

import (
	"context"
	"sync"

	"github.com/1ureka/airan/internal/media/encode"
	"github.com/1ureka/airan/internal/session"
	"github.com/1ureka/airan/internal/transfer"
	"github.com/1ureka/airan/internal/util"
)

// Wire labels for the two file channels, matching session's own (private)
// data channel labels.
const (
	labelFileBin  = "file_airan"
	labelFileText = "file_text_airan"
)

// liveSession is one registered Peer Session plus the role-specific
// handlers its event loop dispatches to. Both the client and controller
// paths build one of these and fill in whichever handlers their role needs;
// the rest stay nil and are skipped.
type liveSession struct {
	co     *Coordinator
	remote string

	sess     *session.Session
	ex       *exchange
	receiver *transfer.Receiver
	sender   *transfer.Sender

	ctx    context.Context
	cancel context.CancelFunc

	encMu sync.Mutex
	enc   *encode.Pipeline

	onConnected  func()
	onFailed     func(err error)
	onVideoFrame func(payload []byte, timestampUs uint32)
	onAudioFrame func(payload []byte, timestampUs uint32)
	onInput      func(data []byte)
	onFileText   func(text string)
}

func newLiveSession(co *Coordinator, remote string, sess *session.Session, ctx context.Context, cancel context.CancelFunc) *liveSession {
	ls := &liveSession{co: co, remote: remote, sess: sess, ctx: ctx, cancel: cancel}
	ls.receiver = transfer.NewReceiver(destPath)
	ls.sender = transfer.NewSender()
	ls.onFileText = func(text string) {
		if err := ls.receiver.HandleDirectoryFrame(text); err != nil {
			util.LogWarning("coordinator: directory frame from %s: %v", ls.remote, err)
		}
	}
	return ls
}

// setEncoder records the live MCE encoder so input-channel keyframe
// requests can reach it; cleared when the encode pump exits.
func (ls *liveSession) setEncoder(enc *encode.Pipeline) {
	ls.encMu.Lock()
	ls.enc = enc
	ls.encMu.Unlock()
}

// forceKeyframe asks the running encoder for an IDR, a no-op if MCE hasn't
// started yet (is_only_file, or still waiting on ICE).
func (ls *liveSession) forceKeyframe() {
	ls.encMu.Lock()
	enc := ls.enc
	ls.encMu.Unlock()
	if enc == nil {
		return
	}
	if err := enc.ForceKeyframe(); err != nil {
		util.LogDebug("coordinator: force keyframe for %s: %v", ls.remote, err)
	}
}

// destPath picks the field of a reassembled FileHeader that names this
// side's own destination: file_download lands at path_ctl (the controller's
// local path), file_upload lands at path_cli (the client's). A directory's
// start/end framing carries no bytes of its own but reuses this same
// MsgType-based choice to key its completion bookkeeping, so a download
// directory's root and its files' dest paths agree on which field names it.
func destPath(h transfer.FileHeader) string {
	if h.MsgType == transfer.MsgFileDownload {
		return h.PathCtl
	}
	return h.PathCli
}

// run drains the Session's events and the FFR Receiver's events until the
// session tears down, dispatching to whichever handlers are set.
func (ls *liveSession) run() {
	for {
		select {
		case ev, ok := <-ls.sess.Events():
			if !ok {
				return
			}
			if !ls.dispatchSession(ev) {
				return
			}
		case ev, ok := <-ls.receiver.Events():
			if !ok {
				continue
			}
			ls.dispatchTransfer(ev)
		case ev, ok := <-ls.sender.Events():
			if !ok {
				continue
			}
			ls.dispatchTransfer(ev)
		}
	}
}

// dispatchSession handles one session.Event and reports whether run should
// keep looping; it returns false once the session has failed, so run stops
// draining the session's, Receiver's and Sender's channels after teardown.
func (ls *liveSession) dispatchSession(ev session.Event) bool {
	switch e := ev.(type) {
	case session.Connected:
		if ls.onConnected != nil {
			ls.onConnected()
		}
	case session.Failed:
		ls.co.unregister(ls.remote)
		ls.receiver.Close()
		if ls.cancel != nil {
			ls.cancel()
		}
		if ls.onFailed != nil {
			ls.onFailed(e.Err)
		}
		return false
	case session.VideoFrame:
		if ls.onVideoFrame != nil {
			ls.onVideoFrame(e.Payload, e.Timestamp)
		}
	case session.AudioFrame:
		if ls.onAudioFrame != nil {
			ls.onAudioFrame(e.Payload, e.Timestamp)
		}
	case session.InputMessage:
		if ls.onInput != nil {
			ls.onInput(e.Data)
		}
	case session.FileTextMessage:
		if ls.onFileText != nil {
			ls.onFileText(e.Text)
		}
	case session.FileBinaryFragment:
		ls.receiver.Feed(labelFileBin, e.Data)
	}
	return true
}

func (ls *liveSession) dispatchTransfer(ev transfer.Event) {
	switch e := ev.(type) {
	case transfer.FileReceived:
		util.LogInfo("coordinator: file received from %s: %s (%d bytes)", ls.remote, e.Path, e.Size)
	case transfer.DirectoryCompleted:
		util.LogInfo("coordinator: directory transfer from %s complete: %s (%d files)", ls.remote, e.RootPath, e.Files)
	case transfer.TransferFailed:
		util.LogWarning("coordinator: transfer from %s failed: %v", ls.remote, e.Err)
	case transfer.TransferStatus:
		util.LogDebug("coordinator: transfer to %s %s: %s", ls.remote, e.State, e.Path)
	}
}

// SendFile streams a local file to this session's remote over the binary
// file channel.
func (ls *liveSession) SendFile(ctx context.Context, msgType transfer.MsgType, pathLocal, pathCli, pathCtl string) error {
	return ls.sender.SendFile(ctx, ls.sess.FileSender(labelFileBin), msgType, pathLocal, pathCli, pathCtl)
}

// SendDirectory walks a local directory tree and streams every file it
// contains to this session's remote, framed by directoryStart/directoryEnd
// markers on the text file channel.
func (ls *liveSession) SendDirectory(ctx context.Context, msgType transfer.MsgType, rootLocal, rootCli, rootCtl string) error {
	bin := ls.sess.FileSender(labelFileBin)
	return ls.sender.SendDirectory(ctx, bin, ls.sess, msgType, rootLocal, rootCli, rootCtl)
}

// SendFile looks up the live session for remote and streams pathLocal to it.
func (co *Coordinator) SendFile(ctx context.Context, remote string, msgType transfer.MsgType, pathLocal, pathCli, pathCtl string) error {
	co.mu.Lock()
	ls := co.sessions[remote]
	co.mu.Unlock()
	if ls == nil {
		return errNoSession(remote)
	}
	return ls.SendFile(ctx, msgType, pathLocal, pathCli, pathCtl)
}

// SendDirectory looks up the live session for remote and streams rootLocal's
// tree to it.
func (co *Coordinator) SendDirectory(ctx context.Context, remote string, msgType transfer.MsgType, rootLocal, rootCli, rootCtl string) error {
	co.mu.Lock()
	ls := co.sessions[remote]
	co.mu.Unlock()
	if ls == nil {
		return errNoSession(remote)
	}
	return ls.SendDirectory(ctx, msgType, rootLocal, rootCli, rootCtl)
}
