// Package airerr defines the error-kind taxonomy shared across the core.
// Components return ordinary errors wrapped with fmt.Errorf; callers that
// need to branch on kind use errors.Is against these sentinels instead of
// inspecting concrete error types.
package airerr

import "errors"

// Kind is a coarse classification of a failure, per the error taxonomy.
type Kind error

var (
	// Configuration — fatal at startup.
	ErrConfig Kind = errors.New("configuration error")

	// Signaling — non-fatal, drives reconnect.
	ErrSignaling   Kind = errors.New("signaling error")
	ErrNotConnected Kind = errors.New("signaling client not connected")

	// Peer/ICE — recovered by session teardown.
	ErrPeerFailed Kind = errors.New("peer connection failed")

	// Codec.
	ErrBackendOpenFailed Kind = errors.New("codec backend open failed")
	ErrEncodeFailed      Kind = errors.New("encode failed")
	ErrDecodeFailed      Kind = errors.New("decode failed")

	// Transfer.
	ErrTransferShort           Kind = errors.New("transfer short write or read")
	ErrTransferMissingFragment Kind = errors.New("transfer missing fragment")
	ErrTransferTimeout         Kind = errors.New("transfer reassembly timed out")

	// Input.
	ErrInputUnknown Kind = errors.New("unknown input key or button")
	ErrInputOutsideFrame Kind = errors.New("input event outside displayed frame")

	// Auth.
	ErrAuthRejected Kind = errors.New("envelope rejected: auth mismatch")

	// Session.
	ErrSessionExists Kind = errors.New("peer session already exists for remote")
)
