package transfer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/airan/internal/util"
)

// reassemblyTimeout is how long an incomplete reassembly buffer is kept
// before it is evicted and its temp file removed.
const reassemblyTimeout = 60 * time.Second

// key identifies one in-flight reassembly: a channel label plus message ID,
// since one binary channel can carry several unrelated transfers at once.
type key struct {
	channel string
	msgID   uuid.UUID
}

// buffer tracks one reassembly in progress, writing fragment payloads at
// their byte offset into a temp file rather than buffering them in memory.
type buffer struct {
	total    uint64
	got      uint64
	seen     []bool
	file     *os.File
	lastSeen time.Time
}

// Registry holds all in-flight reassemblies for a peer connection.
type Registry struct {
	mu      sync.Mutex
	entries map[key]*buffer

	stopCh chan struct{}
}

// NewRegistry creates an empty registry and starts its eviction sweeper.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[key]*buffer),
		stopCh:  make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Close stops the sweeper and removes every outstanding temp file.
func (r *Registry) Close() {
	close(r.stopCh)
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, b := range r.entries {
		b.file.Close()
		os.Remove(b.file.Name())
		delete(r.entries, k)
	}
}

func (r *Registry) sweep() {
	ticker := time.NewTicker(reassemblyTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evictStale()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) evictStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, b := range r.entries {
		if now.Sub(b.lastSeen) > reassemblyTimeout {
			util.LogWarning("transfer: reassembly %s/%s timed out at %d/%d fragments", k.channel, k.msgID, b.got, b.total)
			b.file.Close()
			os.Remove(b.file.Name())
			delete(r.entries, k)
		}
	}
}

// Feed applies one fragment to its reassembly buffer, creating the buffer on
// the first fragment seen for (channel, msgID). It returns the completed
// blob's temp file path once every fragment has arrived, or "" while the
// transfer is still in progress.
func (r *Registry) Feed(channel string, f *Fragment) (path string, done bool, err error) {
	k := key{channel: channel, msgID: f.MessageID}

	r.mu.Lock()
	b, ok := r.entries[k]
	if !ok {
		tmp, terr := os.CreateTemp("", "airan-xfer-*.tmp")
		if terr != nil {
			r.mu.Unlock()
			return "", false, fmt.Errorf("transfer: create temp file: %w", terr)
		}
		b = &buffer{
			total: f.Total,
			seen:  make([]bool, f.Total),
			file:  tmp,
		}
		r.entries[k] = b
	}
	b.lastSeen = time.Now()
	r.mu.Unlock()

	if f.Total != b.total {
		return "", false, fmt.Errorf("transfer: fragment total_fragments mismatch for %s: got %d, want %d", f.MessageID, f.Total, b.total)
	}

	if !b.seen[f.Index] {
		if _, err := b.file.WriteAt(f.Payload, Offset(f.Index)); err != nil {
			return "", false, fmt.Errorf("transfer: write fragment %d: %w", f.Index, err)
		}
		b.seen[f.Index] = true
		b.got++
		util.Stats.AddFragmentRecv()
	}

	if b.got < b.total {
		return "", false, nil
	}

	r.mu.Lock()
	delete(r.entries, k)
	r.mu.Unlock()

	name := b.file.Name()
	b.file.Close()
	return name, true, nil
}

// Abort drops a reassembly in progress and removes its temp file.
func (r *Registry) Abort(channel string, msgID uuid.UUID) {
	k := key{channel: channel, msgID: msgID}
	r.mu.Lock()
	b, ok := r.entries[k]
	if ok {
		delete(r.entries, k)
	}
	r.mu.Unlock()
	if ok {
		b.file.Close()
		os.Remove(b.file.Name())
	}
}
