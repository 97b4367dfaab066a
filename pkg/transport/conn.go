package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ircconform/irctest-go/pkg/log"
	"github.com/ircconform/irctest-go/pkg/wire"
)

// Default connection settings.
const (
	DefaultWriteTimeout   = 2 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadBufferSize = 4096
)

// Config configures a Conn.
type Config struct {
	// WriteTimeout bounds every write (default: 2s).
	WriteTimeout time.Duration

	// ReadBufferSize is the size of a single socket read (default: 4096).
	ReadBufferSize int

	// MaxPartial bounds an unterminated line (default: wire.DefaultMaxPartial).
	MaxPartial int

	// Logger receives protocol capture events. Nil disables capture.
	Logger log.Logger

	// Scenario is recorded in capture events.
	Scenario string

	// Echo, when set, is called for every line sent or received.
	Echo func(label string, dir log.Direction, line string)
}

func (c *Config) applyDefaults() {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.MaxPartial == 0 {
		c.MaxPartial = wire.DefaultMaxPartial
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
}

// Conn is one labelled client connection to the server under test.
//
// Lines are surfaced by NextLine in arrival order, each exactly once. Writes
// are serialized; NextLine is meant for a single consumer.
type Conn struct {
	id     string
	label  string
	nc     net.Conn
	raw    net.Conn // underlying TCP conn, for Abort
	config Config

	mu       sync.Mutex
	buf      *wire.LineBuffer
	pending  []string
	history  []string
	readErr  error
	closed   bool
	paused   bool
	resumeCh chan struct{}

	notify    chan struct{}
	done      chan struct{}
	readDone  chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewConn wraps an established connection and starts its background reader.
// raw is the plain TCP connection beneath nc when nc is a TLS connection; it
// may be nil if nc is already the raw connection.
func NewConn(nc, raw net.Conn, label string, config Config) *Conn {
	config.applyDefaults()
	if raw == nil {
		raw = nc
	}
	c := &Conn{
		id:       uuid.NewString(),
		label:    label,
		nc:       nc,
		raw:      raw,
		config:   config,
		buf:      wire.NewLineBufferWithMax(config.MaxPartial),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
	c.logState(log.StateConnected)
	go c.readLoop()
	return c
}

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// Label returns the connection's label.
func (c *Conn) Label() string { return c.label }

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Send writes line followed by the terminator, unless line already ends
// with it.
func (c *Conn) Send(line string) error {
	data := wire.Terminate(line)
	if err := c.write([]byte(data)); err != nil {
		return err
	}
	text := data[:len(data)-len(wire.Terminator)]
	c.logLine(log.DirectionOut, log.CategoryLine, text, len(data))
	c.echo(log.DirectionOut, text)
	return nil
}

// SendCommand formats cmd and params with wire.FormatCommand and sends the
// result as one line.
func (c *Conn) SendCommand(cmd string, params ...string) error {
	return c.Send(wire.FormatCommand(cmd, params...))
}

// SendRaw writes p exactly as given, with no terminator appended.
func (c *Conn) SendRaw(p []byte) error {
	if err := c.write(p); err != nil {
		return err
	}
	c.logLine(log.DirectionOut, log.CategoryPartial, string(p), len(p))
	c.echo(log.DirectionOut, "(partial) "+string(p))
	return nil
}

func (c *Conn) write(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}

	if err := c.nc.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return c.fault("write", err)
	}
	if _, err := c.nc.Write(p); err != nil {
		return c.fault("write", err)
	}
	return nil
}

// NextLine returns the next line not yet surfaced. It waits at most slice for
// one to arrive and reports false if none did. Once the peer has closed and
// the queue is empty it returns ErrPeerClosed; after Close it returns
// ErrClosed.
func (c *Conn) NextLine(slice time.Duration) (string, bool, error) {
	timer := time.NewTimer(slice)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			line := c.pending[0]
			c.pending = c.pending[1:]
			c.history = append(c.history, line)
			c.mu.Unlock()
			return line, true, nil
		}
		closed, readErr := c.closed, c.readErr
		c.mu.Unlock()

		if closed {
			return "", false, ErrClosed
		}
		if readErr != nil {
			return "", false, readErr
		}

		select {
		case <-c.notify:
		case <-timer.C:
			return "", false, nil
		case <-c.done:
		}
	}
}

// Lines returns a copy of every line surfaced so far.
func (c *Conn) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.history...)
}

// Buffered returns the number of complete lines received but not yet
// surfaced.
func (c *Conn) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Partial returns the bytes of the current unterminated line.
func (c *Conn) Partial() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Partial()
}

// PeerClosed reports whether the server has closed its side.
func (c *Conn) PeerClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Is(c.readErr, ErrPeerClosed)
}

// Closed reports whether Close or Abort has been called.
func (c *Conn) Closed() bool {
	return c.isClosed()
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pause stops reading from the socket. Data the server sends afterwards
// backs up in the kernel buffers, emulating a client that never drains.
func (c *Conn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused || c.closed {
		return
	}
	c.paused = true
	c.resumeCh = make(chan struct{})
	c.config.Logger.Log(c.stateEvent(log.StatePaused))

	// Interrupt a read already in flight.
	_ = c.nc.SetReadDeadline(time.Now())
}

// Resume restarts reading after Pause.
func (c *Conn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	close(c.resumeCh)
	c.config.Logger.Log(c.stateEvent(log.StateResumed))
}

// Paused reports whether the reader is paused.
func (c *Conn) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Close closes the connection. Calling Close more than once is a no-op.
func (c *Conn) Close() error {
	return c.shutdown(false)
}

// Abort drops the connection without a graceful shutdown: the socket is
// reset so the server sees an abrupt disconnect. Like Close it is
// idempotent.
func (c *Conn) Abort() error {
	return c.shutdown(true)
}

func (c *Conn) shutdown(abort bool) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		if c.paused {
			c.paused = false
			close(c.resumeCh)
		}
		c.mu.Unlock()
		close(c.done)

		state := log.StateClosed
		if abort {
			state = log.StateAborted
			if tcp, ok := c.raw.(*net.TCPConn); ok {
				_ = tcp.SetLinger(0)
			}
			err = c.raw.Close()
		} else {
			err = c.nc.Close()
		}
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		<-c.readDone
		c.logState(state)
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.readDone)

	chunk := make([]byte, c.config.ReadBufferSize)
	for {
		if !c.waitUnpaused() {
			return
		}
		n, err := c.nc.Read(chunk)
		if n > 0 {
			if !c.ingest(chunk[:n]) {
				return
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// Only Pause sets a read deadline.
				_ = c.nc.SetReadDeadline(time.Time{})
				continue
			}
			c.readFailed(err)
			return
		}
	}
}

func (c *Conn) waitUnpaused() bool {
	c.mu.Lock()
	paused, ch := c.paused, c.resumeCh
	c.mu.Unlock()
	if !paused {
		return true
	}
	select {
	case <-ch:
		return !c.isClosed()
	case <-c.done:
		return false
	}
}

// ingest appends bytes to the line buffer and queues complete lines.
// It returns false if the buffer overflowed.
func (c *Conn) ingest(p []byte) bool {
	c.mu.Lock()
	_, werr := c.buf.Write(p)
	lines := c.buf.Drain()
	c.pending = append(c.pending, lines...)
	if werr != nil {
		c.readErr = &ConnError{Op: "read", Label: c.label, Addr: c.addr(), Err: werr}
	}
	c.mu.Unlock()

	for _, line := range lines {
		c.logLine(log.DirectionIn, log.CategoryLine, line, len(line)+len(wire.Terminator))
		c.echo(log.DirectionIn, line)
	}
	if werr != nil {
		c.logError(werr)
	}
	c.signal()
	return werr == nil
}

func (c *Conn) readFailed(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if errors.Is(err, io.EOF) {
		c.readErr = ErrPeerClosed
	} else {
		c.readErr = &ConnError{Op: "read", Label: c.label, Addr: c.addr(), Err: err}
	}
	c.mu.Unlock()

	if errors.Is(err, io.EOF) {
		c.logState(log.StatePeerClosed)
	} else {
		c.logError(err)
	}
	c.signal()
}

func (c *Conn) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Conn) fault(op string, err error) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.logError(err)
	return &ConnError{Op: op, Label: c.label, Addr: c.addr(), Err: err}
}

func (c *Conn) addr() string {
	if a := c.nc.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (c *Conn) echo(dir log.Direction, line string) {
	if c.config.Echo != nil {
		c.config.Echo(c.label, dir, line)
	}
}

func (c *Conn) baseEvent() log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Label:        c.label,
		Scenario:     c.config.Scenario,
	}
}

func (c *Conn) stateEvent(state string) log.Event {
	ev := c.baseEvent()
	ev.Direction = log.DirectionLocal
	ev.Category = log.CategoryState
	ev.Line = state
	if state == log.StateConnected {
		ev.RemoteAddr = c.addr()
	}
	return ev
}

func (c *Conn) logState(state string) {
	c.config.Logger.Log(c.stateEvent(state))
}

func (c *Conn) logLine(dir log.Direction, cat log.Category, line string, size int) {
	ev := c.baseEvent()
	ev.Direction = dir
	ev.Category = cat
	ev.Line = line
	ev.Size = size
	c.config.Logger.Log(ev)
}

func (c *Conn) logError(err error) {
	ev := c.baseEvent()
	ev.Direction = log.DirectionLocal
	ev.Category = log.CategoryError
	ev.Error = err.Error()
	c.config.Logger.Log(ev)
}
