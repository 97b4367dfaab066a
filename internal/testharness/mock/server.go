// Package mock provides an in-process line-protocol server used to exercise
// the harness end to end over loopback TCP.
//
// The server implements the subset of the chat protocol the built-in
// scenarios touch: registration with an optional password, nicknames,
// channels with the i, t, k, l and o modes, messaging, WHOIS, WHO, LIST and
// PING. Every client has its own reader and writer goroutine and a bounded
// send queue, so a client that stops reading never stalls the others.
package mock

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address (default "127.0.0.1:0").
	Addr string

	// Name is the server name used as reply prefix (default "server").
	Name string

	// Password, when set, must be supplied with PASS before NICK/USER.
	Password string

	// TLSConfig serves TLS instead of plain TCP when non-nil.
	TLSConfig *tls.Config

	// SendQueue is the per-client outbound queue length (default 1024).
	// A client whose queue overflows is disconnected.
	SendQueue int

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// Server is a mock chat server.
type Server struct {
	config  Config
	logger  *slog.Logger
	created time.Time

	mu       sync.Mutex
	listener net.Listener
	clients  map[*client]struct{}
	nicks    map[string]*client
	channels map[string]*channel
	closed   bool

	wg sync.WaitGroup
}

// New creates a server. Call Start to begin accepting connections.
func New(config Config) *Server {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:0"
	}
	if config.Name == "" {
		config.Name = "server"
	}
	if config.SendQueue <= 0 {
		config.SendQueue = 1024
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		config:   config,
		logger:   logger,
		created:  time.Now(),
		clients:  make(map[*client]struct{}),
		nicks:    make(map[string]*client),
		channels: make(map[string]*channel),
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}
	if s.closed {
		return ErrServerClosed
	}

	var ln net.Listener
	var err error
	if s.config.TLSConfig != nil {
		ln, err = tls.Listen("tcp", s.config.Addr, s.config.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", s.config.Addr)
	}
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.serve(ln)
	return nil
}

// Addr returns the listen address. It is empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the listener and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range clients {
		c.shutdown()
	}
	s.wg.Wait()
	return err
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// WaitClients waits until exactly n clients are connected.
func (s *Server) WaitClients(ctx context.Context, n int) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.ClientCount() == n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// HasNick reports whether nick is in use.
func (s *Server) HasNick(nick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nicks[fold(nick)]
	return ok
}

func (s *Server) serve(ln net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("accept failed", "error", err)
			}
			return
		}

		c := newClient(s, nc)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(2)
		go c.writeLoop()
		go c.readLoop()
	}
}

// remove drops a disconnected client and tells its channel peers.
func (s *Server) remove(c *client, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	if c.nick != "" && s.nicks[fold(c.nick)] == c {
		delete(s.nicks, fold(c.nick))
	}

	if c.registered && !c.quitSent {
		line := ":" + c.source() + " QUIT :" + reason
		for _, peer := range s.peersLocked(c) {
			peer.send(line)
		}
	}
	for _, ch := range s.channels {
		if ch.has(c) {
			ch.remove(c)
			if ch.empty() {
				delete(s.channels, fold(ch.name))
			}
		}
	}
	s.logger.Debug("client removed", "nick", c.nick, "reason", reason)
}

// peersLocked returns every client sharing a channel with c, excluding c.
func (s *Server) peersLocked(c *client) []*client {
	seen := map[*client]bool{c: true}
	var out []*client
	for _, ch := range s.channels {
		if !ch.has(c) {
			continue
		}
		for _, m := range ch.order {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// fold maps a nick or channel name to its lookup key.
func fold(name string) string {
	return strings.ToLower(name)
}
