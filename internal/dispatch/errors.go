package dispatch

import "errors"

// ErrUnknownMethod is surfaced to the reply callback when a request's
// method_index has no registered handler in the connection's endpoint's
// service table (spec §4.5, §8 boundary case).
var ErrUnknownMethod = errors.New("dispatch: unknown method_index")
