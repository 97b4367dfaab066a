package mock

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/ircconform/irctest-go/pkg/wire"
)

// closeMarker in the send queue tells the writer to close after flushing.
const closeMarker = ""

type client struct {
	srv  *Server
	nc   net.Conn
	out  chan string
	done chan struct{}
	once sync.Once

	// Guarded by srv.mu.
	nick       string
	user       string
	real       string
	host       string
	authed     bool
	registered bool
	quitSent   bool
}

func newClient(s *Server, nc net.Conn) *client {
	host := "localhost"
	if tcp, ok := nc.RemoteAddr().(*net.TCPAddr); ok {
		host = tcp.IP.String()
	}
	return &client{
		srv:    s,
		nc:     nc,
		out:    make(chan string, s.config.SendQueue),
		done:   make(chan struct{}),
		host:   host,
		authed: s.config.Password == "",
	}
}

func (c *client) source() string {
	return c.nick + "!" + c.user + "@" + c.host
}

// target is the nick used in numeric replies, "*" before registration.
func (c *client) target() string {
	if c.nick == "" || !c.registered {
		return "*"
	}
	return c.nick
}

// send queues a line. A client whose queue is full is disconnected.
func (c *client) send(line string) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- line:
	default:
		c.srv.logger.Debug("send queue exceeded", "nick", c.nick)
		go c.shutdown()
	}
}

// sendAndClose queues a final line and closes once it is written.
func (c *client) sendAndClose(line string) {
	c.send(line)
	c.send(closeMarker)
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.nc.Close()
	})
}

func (c *client) readLoop() {
	defer c.srv.wg.Done()
	defer c.shutdown()

	reason := "Connection closed"
	buf := wire.NewLineBuffer()
	chunk := make([]byte, 4096)
	for {
		n, err := c.nc.Read(chunk)
		if n > 0 {
			if _, werr := buf.Write(chunk[:n]); werr != nil {
				reason = "Line too long"
				break
			}
			for _, line := range buf.Drain() {
				c.srv.handle(c, line)
			}
		}
		if err != nil {
			break
		}
	}
	c.srv.remove(c, reason)
}

func (c *client) writeLoop() {
	defer c.srv.wg.Done()

	w := bufio.NewWriter(c.nc)
	for {
		select {
		case <-c.done:
			return
		case line := <-c.out:
			if line == closeMarker {
				w.Flush()
				c.shutdown()
				return
			}
			w.WriteString(line)
			w.WriteString(wire.Terminator)
			// Coalesce whatever is already queued into one write.
			for len(c.out) > 0 && w.Buffered() < 16*1024 {
				next := <-c.out
				if next == closeMarker {
					w.Flush()
					c.shutdown()
					return
				}
				w.WriteString(next)
				w.WriteString(wire.Terminator)
			}
			c.nc.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := w.Flush(); err != nil {
				c.shutdown()
				return
			}
		}
	}
}
