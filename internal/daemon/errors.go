package daemon

import "errors"

// ErrNotStarted is returned when Shutdown is called before Start.
var ErrNotStarted = errors.New("daemon manager not started")
