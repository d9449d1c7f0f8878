package broadcast

import "errors"

// ErrClosed is returned by Broadcast once the broadcaster is closed.
var ErrClosed = errors.New("broadcast: broadcaster is closed")
