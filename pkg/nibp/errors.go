package nibp

import "fmt"

// TransportError reports a serial open, read or write failure. It ends the
// session; nothing in this package retries or reconnects.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
