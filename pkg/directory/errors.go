package directory

import "errors"

// ErrInconsistentState indicates a directory search matched a user count
// other than exactly one. The operation is aborted rather than guessing
// which record to touch.
var ErrInconsistentState = errors.New("inconsistent directory state")
