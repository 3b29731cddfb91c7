package browser

import "errors"

var (
	ErrSessionUnavailable = errors.New("browser session unavailable")
	ErrSessionClosed      = errors.New("browser session closed")
	ErrPageLost           = errors.New("browser page lost")
	ErrStaleRef           = errors.New("stale element reference")
)
