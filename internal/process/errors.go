package process

import "errors"

// ErrNotFound is returned when an operation names a process the table
// has never seen or has already reaped.
var ErrNotFound = errors.New("process: not found")

// ErrAlreadyTerminating is returned by Exit/Kill on a process whose
// termination protocol has already started.
var ErrAlreadyTerminating = errors.New("process: already terminating")

// ErrKilled is the exit reason set by Table.Kill.
var ErrKilled = errors.New("process: killed")

// ErrLinkedExit is the exit reason propagated to a process that
// co-terminated because a linked peer exited.
var ErrLinkedExit = errors.New("process: linked peer exited")
