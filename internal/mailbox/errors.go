package mailbox

import "errors"

// ErrClosed is returned by Push/Receive once a mailbox has transitioned
// to the closed state. The transition is monotone: a closed mailbox never
// reopens.
var ErrClosed = errors.New("mailbox: closed")

// ErrNotFound is returned by Set lookups for an unknown owner.
var ErrNotFound = errors.New("mailbox: not found")
