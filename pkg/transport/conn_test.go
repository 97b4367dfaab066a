package transport_test

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircconform/irctest-go/pkg/log"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// peer is the server side of a loopback connection.
type peer struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (p *peer) readLine(t *testing.T) string {
	t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := p.reader.ReadString('\n')
	require.NoError(t, err)
	return line
}

func (p *peer) write(t *testing.T, s string) {
	t.Helper()
	_, err := p.conn.Write([]byte(s))
	require.NoError(t, err)
}

// startPeer listens on loopback and returns a dialer for it and a channel of
// accepted peers.
func startPeer(t *testing.T, tlsConf *tls.Config) (*transport.Dialer, <-chan *peer) {
	t.Helper()

	var ln net.Listener
	var err error
	if tlsConf != nil {
		ln, err = tls.Listen("tcp", "127.0.0.1:0", tlsConf)
	} else {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
	}
	require.NoError(t, err)

	var mu sync.Mutex
	var accepted []net.Conn
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range accepted {
			c.Close()
		}
	})

	peers := make(chan *peer, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			accepted = append(accepted, c)
			mu.Unlock()
			go func() {
				if tc, ok := c.(*tls.Conn); ok {
					if err := tc.Handshake(); err != nil {
						return
					}
				}
				peers <- &peer{conn: c, reader: bufio.NewReader(c)}
			}()
		}
	}()

	return &transport.Dialer{Address: ln.Addr().String()}, peers
}

func dial(t *testing.T, d *transport.Dialer, label string) *transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := d.Dial(ctx, label)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func accept(t *testing.T, peers <-chan *peer) *peer {
	t.Helper()
	select {
	case p := <-peers:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func TestSendAppendsTerminatorOnce(t *testing.T) {
	d, peers := startPeer(t, nil)
	c := dial(t, d, "A")
	p := accept(t, peers)

	require.NoError(t, c.Send("NICK alice"))
	require.NoError(t, c.Send("PING x\r\n"))
	require.NoError(t, c.SendCommand("PRIVMSG", "#chan", "hello world"))

	assert.Equal(t, "NICK alice\r\n", p.readLine(t))
	assert.Equal(t, "PING x\r\n", p.readLine(t))
	assert.Equal(t, "PRIVMSG #chan :hello world\r\n", p.readLine(t))
}

func TestSendRawHasNoTerminator(t *testing.T) {
	d, peers := startPeer(t, nil)
	c := dial(t, d, "A")
	p := accept(t, peers)

	require.NoError(t, c.SendRaw([]byte("PRIV")))
	require.NoError(t, c.SendRaw([]byte("MSG #p :hi\r\n")))

	assert.Equal(t, "PRIVMSG #p :hi\r\n", p.readLine(t))
}

func TestNextLineAssemblesFragments(t *testing.T) {
	d, peers := startPeer(t, nil)
	c := dial(t, d, "A")
	p := accept(t, peers)

	p.write(t, ":server 0")
	_, ok, err := c.NextLine(50 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "partial line must not be surfaced")

	p.write(t, "01 alice :Welcome\r")
	time.Sleep(20 * time.Millisecond)
	p.write(t, "\n:server PONG server :x\n")

	line, ok, err := c.NextLine(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ":server 001 alice :Welcome", line)

	line, ok, err = c.NextLine(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ":server PONG server :x", line)

	_, ok, err = c.NextLine(30 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "lines must not be surfaced twice")

	assert.Equal(t, []string{":server 001 alice :Welcome", ":server PONG server :x"}, c.Lines())
}

func TestNextLineTimeoutIsBounded(t *testing.T) {
	d, _ := startPeer(t, nil)
	c := dial(t, d, "A")

	start := time.Now()
	_, ok, err := c.NextLine(40 * time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestPeerCloseAfterBufferedLines(t *testing.T) {
	d, peers := startPeer(t, nil)
	c := dial(t, d, "A")
	p := accept(t, peers)

	p.write(t, "ERROR :Closing link\r\n")
	p.conn.Close()

	line, ok, err := c.NextLine(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ERROR :Closing link", line)

	_, _, err = c.NextLine(time.Second)
	assert.ErrorIs(t, err, transport.ErrPeerClosed)
	assert.True(t, c.PeerClosed())
	assert.True(t, transport.IsConnError(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	d, _ := startPeer(t, nil)
	c := dial(t, d, "A")

	for i := 0; i < 5; i++ {
		assert.NoError(t, c.Close(), "close #%d", i+1)
	}
	assert.NoError(t, c.Abort())
	assert.True(t, c.Closed())

	err := c.Send("PING x")
	assert.ErrorIs(t, err, transport.ErrClosed)

	_, _, err = c.NextLine(10 * time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestAbortResetsConnection(t *testing.T) {
	d, peers := startPeer(t, nil)
	c := dial(t, d, "B")
	p := accept(t, peers)

	require.NoError(t, c.Abort())
	require.NoError(t, c.Abort())

	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := p.reader.ReadByte()
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		assert.False(t, ne.Timeout(), "peer should observe the reset, not a timeout")
	}
}

func TestPauseStopsReading(t *testing.T) {
	d, peers := startPeer(t, nil)
	c := dial(t, d, "D")
	p := accept(t, peers)

	c.Pause()
	assert.True(t, c.Paused())
	time.Sleep(20 * time.Millisecond)

	p.write(t, "NOTICE D :queued\r\n")
	_, ok, err := c.NextLine(100 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "paused connection must not read")

	c.Resume()
	line, ok, err := c.NextLine(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "NOTICE D :queued", line)
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	d := &transport.Dialer{Address: addr, ConnectTimeout: 500 * time.Millisecond}
	_, err = d.Dial(context.Background(), "A")
	require.Error(t, err)

	var ce *transport.ConnError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "dial", ce.Op)
	assert.Equal(t, "A", ce.Label)
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureLogger) snapshot() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]log.Event(nil), c.events...)
}

func TestCaptureEvents(t *testing.T) {
	d, peers := startPeer(t, nil)
	capture := &captureLogger{}
	d.Conn = transport.Config{Logger: capture, Scenario: "capture"}

	c := dial(t, d, "A")
	p := accept(t, peers)

	require.NoError(t, c.Send("PING x"))
	require.NoError(t, c.SendRaw([]byte("PRIV")))
	p.readLine(t)
	p.write(t, ":server PONG server :x\r\n")
	_, ok, err := c.NextLine(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.Close())

	events := capture.snapshot()
	require.Len(t, events, 5)

	assert.Equal(t, log.StateConnected, events[0].Line)
	assert.NotEmpty(t, events[0].RemoteAddr)
	assert.Equal(t, log.CategoryLine, events[1].Category)
	assert.Equal(t, "PING x", events[1].Line)
	assert.Equal(t, log.CategoryPartial, events[2].Category)
	assert.Equal(t, log.DirectionIn, events[3].Direction)
	assert.Equal(t, log.StateClosed, events[4].Line)

	for _, ev := range events {
		assert.Equal(t, c.ID(), ev.ConnectionID)
		assert.Equal(t, "A", ev.Label)
		assert.Equal(t, "capture", ev.Scenario)
	}
}

func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "irc.test"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestTLSVariant(t *testing.T) {
	cert := generateTestCert(t)
	d, peers := startPeer(t, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})

	conf, err := transport.NewClientTLSConfig(transport.TLSOptions{InsecureSkipVerify: true})
	require.NoError(t, err)
	d.TLSConfig = conf

	c := dial(t, d, "A")
	p := accept(t, peers)

	require.NoError(t, c.Send("PING tls"))
	assert.Equal(t, "PING tls\r\n", p.readLine(t))

	p.write(t, ":server PONG server :tls\r\n")
	line, ok, err := c.NextLine(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ":server PONG server :tls", line)

	require.NoError(t, c.Abort())
}

func TestTLSHandshakeFailure(t *testing.T) {
	cert := generateTestCert(t)
	d, _ := startPeer(t, &tls.Config{Certificates: []tls.Certificate{cert}})

	conf, err := transport.NewClientTLSConfig(transport.TLSOptions{})
	require.NoError(t, err)
	d.TLSConfig = conf

	_, err = d.Dial(context.Background(), "A")
	require.Error(t, err)
	var ce *transport.ConnError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "handshake", ce.Op)
}
