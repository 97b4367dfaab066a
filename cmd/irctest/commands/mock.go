package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ircconform/irctest-go/internal/testharness/mock"
	"github.com/ircconform/irctest-go/internal/testharness/runner"
	"github.com/ircconform/irctest-go/pkg/discovery"
)

// MockOptions holds options for the mock command.
type MockOptions struct {
	*RootOptions
	Listen    string
	Name      string
	Password  string
	TLS       bool
	Advertise string
	Network   string
}

// NewMockCommand creates the mock command.
func NewMockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve the built-in reference server",
		Long: `Runs the in-process reference server until interrupted. It passes the
built-in battery and is useful to try scenarios without a real server.

Example:
  irctest mock --listen 127.0.0.1:6667
  irctest mock --tls --advertise mock --listen :6697`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMock(ctx, opts, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Mock server listening on %s\n", addr)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "127.0.0.1:"+runner.DefaultPort, "listen address")
	cmd.Flags().StringVar(&opts.Name, "name", "", "server name used as reply prefix")
	cmd.Flags().StringVar(&opts.Password, "password", "", "require this password with PASS")
	cmd.Flags().BoolVar(&opts.TLS, "tls", false, "serve TLS with a self-signed certificate")
	cmd.Flags().StringVar(&opts.Advertise, "advertise", "", "announce the server over mDNS under this instance name")
	cmd.Flags().StringVar(&opts.Network, "network", "", "network name for the mDNS announcement")
	return cmd
}

// runMock serves until ctx is done. ready is called with the bound address.
func runMock(ctx context.Context, opts *MockOptions, ready func(addr string)) error {
	config := mock.Config{
		Addr:     opts.Listen,
		Name:     opts.Name,
		Password: opts.Password,
		Logger:   opts.newLogger(os.Stderr),
	}
	if opts.TLS {
		host, _, err := net.SplitHostPort(opts.Listen)
		if err != nil || host == "" {
			host = "localhost"
		}
		conf, err := mock.SelfSignedTLS(host)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create certificate", err)
		}
		config.TLSConfig = conf
	}

	server := mock.New(config)
	if err := server.Start(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start mock server", err)
	}
	defer server.Close()

	addr := server.Addr()
	if opts.Advertise != "" {
		_, portStr, _ := net.SplitHostPort(addr)
		port, _ := strconv.ParseUint(portStr, 10, 16)
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
		err := adv.Advertise(ctx, &discovery.AdvertiseInfo{
			Instance: opts.Advertise,
			Port:     uint16(port),
			Network:  opts.Network,
			TLS:      opts.TLS,
			Version:  "irctest-mock",
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to advertise", err)
		}
		defer adv.StopAll()
	}

	if ready != nil {
		ready(addr)
	}
	<-ctx.Done()
	return nil
}
