package nibp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the cuff board's console baud rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the events channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a connection to the cuff controller over a serial port.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	events    chan Event
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	err       error
}

// New creates a new Serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		events:   make(chan Event, bufSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading events.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if d.ctx.Err() != nil {
		return fmt.Errorf("device closed")
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return &TransportError{Op: "open " + d.port, Err: err}
	}

	d.conn = port
	d.connected = true

	go d.readEvents()

	return nil
}

// Start sends the START command, beginning inflation.
func (d *Serial) Start() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := d.conn.Write([]byte(StartCommand)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	return nil
}

// Events returns the channel of parsed device events.
func (d *Serial) Events() <-chan Event {
	return d.events
}

// Err returns the transport failure that ended reading, if any.
func (d *Serial) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// IsConnected returns whether the port is currently open.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Close stops reading and closes the port. Partially received lines are
// discarded. It waits for the reader goroutine to exit.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			slog.Warn("error closing serial port", "port", d.port, "err", err)
		}
	}
	d.connected = false
	d.mu.Unlock()

	<-d.done

	return nil
}

// readEvents is the producer: it owns the events channel and closes it on exit.
func (d *Serial) readEvents() {
	defer close(d.done)
	defer close(d.events)

	if err := Scan(d.ctx, d.conn, d.events); err != nil {
		slog.Error("serial read failed", "port", d.port, "err", err)
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
	}
}
