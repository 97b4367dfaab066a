package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// Browse searches for IRC servers. Services are aggregated by instance
	// name and emitted once, when first seen. The channel is closed when
	// the context is cancelled.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Find returns the named instance, or the first one found when
	// instance is empty. It gives up after the configured browse timeout.
	Find(ctx context.Context, instance string) (*Service, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Find.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// ServiceType overrides the browsed service type.
	// Default: ServiceTypeIRC.
	ServiceType string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		ServiceType:   ServiceTypeIRC,
	}
}

// ServiceEntry is raw mDNS service entry data, independent of the mDNS
// library.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToService converts a ServiceEntry to a Service.
func (e *ServiceEntry) ToService() (*Service, error) {
	if e.Port == 0 {
		return nil, ErrInvalidPort
	}
	svc := &Service{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    e.Addrs,
	}
	if err := applyTXT(svc, StringsToTXTRecords(e.Text)); err != nil {
		return nil, err
	}
	return svc, nil
}
