package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// MaxInstanceNameLen is the DNS label limit for instance names.
const MaxInstanceNameLen = 63

// ErrInvalidInstance is returned for an empty or over-long instance name.
var ErrInvalidInstance = errors.New("invalid instance name")

// AdvertiseInfo describes a server to announce.
type AdvertiseInfo struct {
	Instance string
	Port     uint16
	Network  string
	TLS      bool
	Version  string
}

// AdvertiserConfig configures an MDNSAdvertiser.
type AdvertiserConfig struct {
	// Interface restricts announcements to one network interface.
	Interface string

	// TTL overrides the record TTL.
	TTL time.Duration
}

// EncodeTXT returns the TXT strings for info, sorted by key.
func EncodeTXT(info *AdvertiseInfo) []string {
	txt := TXTRecordMap{}
	if info.Network != "" {
		txt[TXTKeyNetwork] = info.Network
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	txt[TXTKeyTLS] = strconv.FormatBool(info.TLS)

	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	strs := make([]string, 0, len(keys))
	for _, k := range keys {
		strs = append(strs, k+"="+txt[k])
	}
	return strs
}

// shutdowner is the part of *zeroconf.Server the advertiser uses.
type shutdowner interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (shutdowner, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (shutdowner, error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// MDNSAdvertiser announces IRC servers with zeroconf.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu      sync.Mutex
	servers map[string]shutdowner // keyed by instance
}

// NewMDNSAdvertiser creates an advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{
		config:   config,
		register: zeroconfRegister,
		servers:  make(map[string]shutdowner),
	}
}

// interfaces returns the interfaces to announce on; nil means all.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts announcing info. An existing announcement of the same
// instance is replaced.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *AdvertiseInfo) error {
	if info.Instance == "" || len(info.Instance) > MaxInstanceNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidInstance, info.Instance)
	}
	if info.Port == 0 {
		return ErrInvalidPort
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if server, ok := a.servers[info.Instance]; ok {
		server.Shutdown()
		delete(a.servers, info.Instance)
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := a.register(info.Instance, ServiceTypeIRC, Domain, int(info.Port), EncodeTXT(info), a.interfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", info.Instance, err)
	}
	a.servers[info.Instance] = server
	return nil
}

// Stop withdraws the announcement of instance.
func (a *MDNSAdvertiser) Stop(instance string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if server, ok := a.servers[instance]; ok {
		server.Shutdown()
		delete(a.servers, instance)
	}
}

// StopAll withdraws every announcement.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for instance, server := range a.servers {
		server.Shutdown()
		delete(a.servers, instance)
	}
}
