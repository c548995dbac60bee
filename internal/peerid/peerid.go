// Package peerid manages the local peer's identity: a persisted UUID and
// the MD5 digest of the shared access password, plus helpers to validate an
// incoming envelope's identity/auth fields against a session's expectations.
package peerid

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/1ureka/airan/internal/airerr"
)

// Identity is the wire-visible PeerIdentity pair.
type Identity struct {
	ID     string `json:"id"`
	PwdMD5 string `json:"pwd_md5"`
}

// MD5Hex returns the uppercase-hex MD5 digest of pwd, as the wire format requires.
func MD5Hex(pwd string) string {
	sum := md5.Sum([]byte(pwd))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Local holds the process's own identity plus the raw password used to
// derive PwdMD5, loaded once at startup and never mutated afterward.
type Local struct {
	Identity
	Pwd string
}

// persisted is the on-disk shape of the uuid file.
type persisted struct {
	UUID string `json:"uuid"`
}

// LoadOrCreate reads the persisted local UUID from path (creating one if
// absent) and combines it with pwd to build a Local identity. path is the
// "Global/Uuid" location (an OS-default config directory
// file chosen by the caller).
func LoadOrCreate(path, pwd string) (*Local, error) {
	id, err := loadOrCreateUUID(path)
	if err != nil {
		return nil, fmt.Errorf("peerid: %w", err)
	}
	return &Local{
		Identity: Identity{ID: id, PwdMD5: MD5Hex(pwd)},
		Pwd:      pwd,
	}, nil
}

func loadOrCreateUUID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var p persisted
		if jerr := json.Unmarshal(data, &p); jerr == nil && p.UUID != "" {
			return p.UUID, nil
		}
	}

	id := uuid.New().String()
	if mkErr := os.MkdirAll(filepath.Dir(path), 0o700); mkErr != nil {
		return "", fmt.Errorf("create config dir: %w", mkErr)
	}
	data, _ = json.Marshal(persisted{UUID: id})
	if werr := os.WriteFile(path, data, 0o600); werr != nil {
		return "", fmt.Errorf("persist uuid: %w", werr)
	}
	return id, nil
}

// Verify checks that an incoming envelope's sender/receiver/receiver_pwd
// fields match what this local peer expects from a specific remote.
// expectedRemote == "" skips the sender check (used when any sender is
// acceptable, e.g. the first connect of a new session).
func Verify(local *Local, expectedRemote, sender, receiver, receiverPwd string) error {
	if receiver != local.ID {
		return fmt.Errorf("%w: receiver mismatch: got %q want %q", airerr.ErrAuthRejected, receiver, local.ID)
	}
	if receiverPwd != local.PwdMD5 {
		return fmt.Errorf("%w: receiver_pwd mismatch", airerr.ErrAuthRejected)
	}
	if expectedRemote != "" && sender != expectedRemote {
		return fmt.Errorf("%w: sender mismatch: got %q want %q", airerr.ErrAuthRejected, sender, expectedRemote)
	}
	return nil
}
