package transfer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MsgType enumerates the file-transfer header's msgType values.
type MsgType string

const (
	MsgFileDownload MsgType = "file_download"
	MsgFileUpload   MsgType = "file_upload"
	MsgFileList     MsgType = "file_list"
)

// FileHeader is the JSON header that precedes file bytes in the logical blob.
type FileHeader struct {
	MsgType        MsgType `json:"msgType"`
	PathCli        string  `json:"path_cli"`
	PathCtl        string  `json:"path_ctl"`
	FileSize       int64   `json:"file_size"`
	IsDirectory    bool    `json:"isDirectory,omitempty"`
	DirectoryStart bool    `json:"directoryStart,omitempty"`
	DirectoryEnd   bool    `json:"directoryEnd,omitempty"`
	FileCount      int     `json:"fileCount,omitempty"`
}

// BlobPrefix returns the u32_be(header_size) || header_json prefix of the
// logical blob, ahead of the raw file bytes.
func BlobPrefix(h FileHeader) ([]byte, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("transfer: marshal header: %w", err)
	}
	prefix := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(prefix[0:4], uint32(len(body)))
	copy(prefix[4:], body)
	return prefix, nil
}

// ParseBlobPrefix reads the header_size/header_json prefix from the start of
// a reassembled logical blob and returns the header plus the byte offset
// where file content (if any) begins.
func ParseBlobPrefix(blob []byte) (FileHeader, int, error) {
	var h FileHeader
	if len(blob) < 4 {
		return h, 0, fmt.Errorf("transfer: blob too short for header_size")
	}
	headerSize := binary.BigEndian.Uint32(blob[0:4])
	end := 4 + int(headerSize)
	if end > len(blob) {
		return h, 0, fmt.Errorf("transfer: header_size %d exceeds blob length %d", headerSize, len(blob))
	}
	if err := json.Unmarshal(blob[4:end], &h); err != nil {
		return h, 0, fmt.Errorf("transfer: unmarshal header: %w", err)
	}
	return h, end, nil
}
