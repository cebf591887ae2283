package session

import "errors"

// ErrNoSession is returned when a token operation runs without a logged-in
// session to act on.
var ErrNoSession = errors.New("no active session")
