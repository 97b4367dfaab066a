package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Dialer opens Conns to the server under test.
type Dialer struct {
	// Address is the server's host:port.
	Address string

	// TLSConfig enables the TLS variant when non-nil.
	TLSConfig *tls.Config

	// ConnectTimeout bounds dial plus handshake (default: 5s).
	ConnectTimeout time.Duration

	// Conn is the configuration given to every new Conn.
	Conn Config
}

// Dial connects and returns a Conn labelled label.
func (d *Dialer) Dial(ctx context.Context, label string) (*Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	nd := &net.Dialer{}
	raw, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, &ConnError{Op: "dial", Label: label, Addr: d.Address, Err: err}
	}

	if d.TLSConfig == nil {
		return NewConn(raw, nil, label, d.Conn), nil
	}

	tlsConn := tls.Client(raw, d.clientTLSConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, &ConnError{Op: "handshake", Label: label, Addr: d.Address, Err: err}
	}
	return NewConn(tlsConn, raw, label, d.Conn), nil
}

// clientTLSConfig fills in ServerName from Address when unset.
func (d *Dialer) clientTLSConfig() *tls.Config {
	conf := d.TLSConfig.Clone()
	if conf.ServerName == "" && !conf.InsecureSkipVerify {
		if host, _, err := net.SplitHostPort(d.Address); err == nil {
			conf.ServerName = host
		}
	}
	return conf
}
