package commands

import (
	"net"

	"github.com/spf13/pflag"

	"github.com/ircconform/irctest-go/internal/testharness/runner"
)

// targetFlags are the pieces of the target address that may be given
// separately.
type targetFlags struct {
	Host string
	Port string
}

// apply fills cfg.Target from host and port when no full target is set.
func (t *targetFlags) apply(cfg *runner.Config) {
	if cfg.Target != "" || t.Host == "" {
		return
	}
	port := t.Port
	if port == "" {
		port = runner.DefaultPort
	}
	cfg.Target = net.JoinHostPort(t.Host, port)
}

// bindConnFlags registers the flags that describe how to reach the server.
func bindConnFlags(fs *pflag.FlagSet, cfg *runner.Config, tf *targetFlags) {
	fs.StringVar(&cfg.Target, "target", cfg.Target, "server address (host:port)")
	fs.StringVar(&tf.Host, "host", tf.Host, "server host, when --target is not given")
	fs.StringVar(&tf.Port, "port", tf.Port, "server port, when --target is not given (default "+runner.DefaultPort+")")
	fs.BoolVar(&cfg.TLS, "tls", cfg.TLS, "connect with TLS")
	fs.BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "skip TLS certificate verification")
	fs.StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM bundle of trusted roots for TLS")
	fs.StringVar(&cfg.ServerName, "server-name", cfg.ServerName, "TLS verification name override")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "dial and handshake timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "timeout for every write")
	fs.StringVar(&cfg.ProtocolLog, "protocol-log", cfg.ProtocolLog, "file path for protocol capture (CBOR format)")
}

// bindSelectionFlags registers the scenario source and selection flags.
func bindSelectionFlags(fs *pflag.FlagSet, cfg *runner.Config) {
	fs.StringArrayVar(&cfg.Only, "only", cfg.Only, "run only the named scenario (repeatable)")
	fs.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "comma-separated glob patterns matched against scenario names")
	fs.StringVar(&cfg.Tags, "tags", cfg.Tags, "include only scenarios with any of these tags (comma-separated)")
	fs.StringVar(&cfg.ExcludeTags, "exclude-tags", cfg.ExcludeTags, "exclude scenarios with any of these tags (comma-separated)")
	fs.StringVar(&cfg.TestDir, "tests", cfg.TestDir, "directory of YAML scenarios")
	fs.BoolVar(&cfg.NoBuiltin, "no-builtin", cfg.NoBuiltin, "leave out the built-in battery")
}

// bindRunFlags registers every run flag on fs, bound to cfg.
func bindRunFlags(fs *pflag.FlagSet, cfg *runner.Config, tf *targetFlags) {
	bindConnFlags(fs, cfg, tf)
	bindSelectionFlags(fs, cfg)

	fs.StringVar(&cfg.Password, "pass", cfg.Password, "server password sent with PASS")
	fs.DurationVar(&cfg.ExpectTimeout, "expect-timeout", cfg.ExpectTimeout, "default wait for an expected line")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "matcher polling granularity")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "scenario timeout")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "output format (text|json|junit)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "print scenario headers and the live transcript")
	fs.BoolVar(&cfg.Color, "color", cfg.Color, "colour text output (default: when stdout is a terminal)")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "require exact reply wording")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "find the server with mDNS (_irc._tcp)")
	fs.StringVar(&cfg.DiscoverInstance, "discover-instance", cfg.DiscoverInstance, "mDNS instance name to use")
	fs.DurationVar(&cfg.DiscoverTimeout, "discover-timeout", cfg.DiscoverTimeout, "how long to browse for the server")
	fs.BoolVar(&cfg.StopOnFirstFailure, "stop-on-first-failure", cfg.StopOnFirstFailure, "stop after the first failing scenario")
}

// overlay copies every flag the user set on src into the same-named flag of
// dst. It makes explicit flags win over a config file.
func overlay(dst, src *pflag.FlagSet) error {
	var err error
	src.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		target := dst.Lookup(f.Name)
		if target == nil {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if tv, ok := target.Value.(pflag.SliceValue); ok {
				err = tv.Replace(sv.GetSlice())
				return
			}
		}
		err = target.Value.Set(f.Value.String())
	})
	return err
}
