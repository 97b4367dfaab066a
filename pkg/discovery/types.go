package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service types and domain.
const (
	// ServiceTypeIRC is the DNS-SD service type of IRC servers.
	ServiceTypeIRC = "_irc._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// TXT record keys.
const (
	TXTKeyNetwork = "network"
	TXTKeyTLS     = "tls"
	TXTKeyVersion = "version"
)

// Timing defaults.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 5 * time.Second
)

// Discovery errors.
var (
	ErrNotFound         = errors.New("service not found")
	ErrBrowseTimeout    = errors.New("browse timeout")
	ErrInvalidTXTRecord = errors.New("invalid TXT record format")
	ErrInvalidPort      = errors.New("invalid port")
)

// Service is a discovered IRC server.
type Service struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the advertised port.
	Port uint16

	// Addresses are the resolved IP addresses, IPv4 first.
	Addresses []string

	// Network is the advertised IRC network name, if any.
	Network string

	// TLS reports whether the port expects TLS.
	TLS bool

	// Version is the advertised server version, if any.
	Version string

	// Text holds all TXT records.
	Text TXTRecordMap
}

// Address returns host:port for dialing. The first resolved address is
// preferred over the host name.
func (s *Service) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}
