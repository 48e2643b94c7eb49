package peerlink

import "errors"

// ErrPeerGone is the exit reason given to every imported shim process
// when the underlying connection drops, whether cleanly or not. There
// is no half-dead state: the moment the connection is known to be gone,
// every shim it backed is torn down in the same sweep.
var ErrPeerGone = errors.New("peerlink: peer connection gone")

// ErrNoSuchExport names an inbound frame that refers to a handle this
// side never exported. Link.handleSend drops such a frame without
// returning this error.
var ErrNoSuchExport = errors.New("peerlink: no such exported handle")

// ErrUnknownOp names a frame carrying an Op this version of the
// protocol doesn't handle. Link.dispatch logs and drops such a frame
// without returning this error.
var ErrUnknownOp = errors.New("peerlink: unknown op")
