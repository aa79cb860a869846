package nibp

// Device defines the interface for cuff controllers (real or mocked).
//
// Events is closed by the device once reading stops: after a result line,
// on Close, or on a transport failure. Err reports that failure afterwards.
type Device interface {
	Connect() error
	Start() error
	Events() <-chan Event
	Err() error
	Close() error
	IsConnected() bool
}

var _ Device = (*Serial)(nil)

var _ Device = (*Mock)(nil)
