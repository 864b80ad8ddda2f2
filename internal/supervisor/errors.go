package supervisor

import "errors"

// Error taxonomy from §7. InterfaceNotFound and ChannelClosed are
// surfaced verbatim to the control surface; the rest are logged and
// non-fatal at the point they occur.
var (
	ErrInterfaceNotFound = errors.New("interface not found")
	ErrChannelClosed     = errors.New("client command channel closed")
)
