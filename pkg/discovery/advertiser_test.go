package discovery

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeServer struct {
	instance string
	text     []string
	port     int
	shutdown int
}

func (s *fakeServer) Shutdown() { s.shutdown++ }

func fakeAdvertiser() (*MDNSAdvertiser, *[]*fakeServer) {
	var registered []*fakeServer
	a := NewMDNSAdvertiser(AdvertiserConfig{})
	a.register = func(instance, service, domain string, port int, text []string, _ []net.Interface, _ ...zeroconf.ServerOption) (shutdowner, error) {
		if service != ServiceTypeIRC || domain != Domain {
			return nil, errors.New("unexpected service type")
		}
		s := &fakeServer{instance: instance, text: text, port: port}
		registered = append(registered, s)
		return s, nil
	}
	return a, &registered
}

func TestEncodeTXT(t *testing.T) {
	txt := EncodeTXT(&AdvertiseInfo{Network: "TestNet", TLS: true, Version: "mock-1"})
	assert.Equal(t, []string{"network=TestNet", "tls=true", "version=mock-1"}, txt)

	assert.Equal(t, []string{"tls=false"}, EncodeTXT(&AdvertiseInfo{}))
}

func TestEncodeTXTRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		info := &AdvertiseInfo{
			Network: rapid.StringMatching(`[A-Za-z0-9.-]{0,16}`).Draw(t, "network"),
			Version: rapid.StringMatching(`[a-z0-9.-]{0,12}`).Draw(t, "version"),
			TLS:     rapid.Bool().Draw(t, "tls"),
		}
		svc := &Service{}
		require.NoError(t, applyTXT(svc, StringsToTXTRecords(EncodeTXT(info))))
		assert.Equal(t, info.Network, svc.Network)
		assert.Equal(t, info.Version, svc.Version)
		assert.Equal(t, info.TLS, svc.TLS)
	})
}

func TestAdvertiseReplacesInstance(t *testing.T) {
	a, registered := fakeAdvertiser()
	ctx := context.Background()

	require.NoError(t, a.Advertise(ctx, &AdvertiseInfo{Instance: "mock", Port: 6667}))
	require.NoError(t, a.Advertise(ctx, &AdvertiseInfo{Instance: "mock", Port: 6697, TLS: true}))
	require.Len(t, *registered, 2)

	first, second := (*registered)[0], (*registered)[1]
	assert.Equal(t, 1, first.shutdown)
	assert.Equal(t, 0, second.shutdown)
	assert.Equal(t, 6697, second.port)
	assert.Contains(t, second.text, "tls=true")

	require.NoError(t, a.Advertise(ctx, &AdvertiseInfo{Instance: "other", Port: 6667}))
	a.Stop("mock")
	assert.Equal(t, 1, second.shutdown)

	a.StopAll()
	assert.Equal(t, 1, (*registered)[2].shutdown)
	a.StopAll()
	assert.Equal(t, 1, (*registered)[2].shutdown)
}

func TestAdvertiseValidation(t *testing.T) {
	a, registered := fakeAdvertiser()
	ctx := context.Background()

	err := a.Advertise(ctx, &AdvertiseInfo{Port: 6667})
	assert.ErrorIs(t, err, ErrInvalidInstance)

	err = a.Advertise(ctx, &AdvertiseInfo{Instance: strings.Repeat("x", MaxInstanceNameLen+1), Port: 6667})
	assert.ErrorIs(t, err, ErrInvalidInstance)

	err = a.Advertise(ctx, &AdvertiseInfo{Instance: "mock"})
	assert.ErrorIs(t, err, ErrInvalidPort)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = a.Advertise(cancelled, &AdvertiseInfo{Instance: "mock", Port: 6667})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, *registered)
}

func TestAdvertiseRegisterError(t *testing.T) {
	a := NewMDNSAdvertiser(AdvertiserConfig{})
	a.register = func(string, string, string, int, []string, []net.Interface, ...zeroconf.ServerOption) (shutdowner, error) {
		return nil, errors.New("no multicast")
	}
	err := a.Advertise(context.Background(), &AdvertiseInfo{Instance: "mock", Port: 6667})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register mock: no multicast")
}
