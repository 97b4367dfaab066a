package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ircconform/irctest-go/internal/testharness/runner"
	"github.com/ircconform/irctest-go/pkg/log"
	"github.com/ircconform/irctest-go/pkg/transport"
)

// shellPollInterval is how long the receive loop waits for each line.
const shellPollInterval = 200 * time.Millisecond

// ShellOptions holds options for the shell command.
type ShellOptions struct {
	*RootOptions
	Label  string
	config *runner.Config
	target targetFlags
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts, Label: "SHELL", config: runner.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Talk to a server interactively",
		Long: `Opens one connection to the server and sends every typed line.
Lines from the server are printed as they arrive.

Example:
  irctest shell --target irc.example.net:6697 --tls`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts)
		},
	}

	bindConnFlags(cmd.Flags(), opts.config, &opts.target)
	cmd.Flags().StringVar(&opts.Label, "label", opts.Label, "connection label in the protocol capture")
	return cmd
}

// dialer builds the transport dialer for the configured target.
func (o *ShellOptions) dialer(logger log.Logger) (*transport.Dialer, error) {
	o.target.apply(o.config)
	if o.config.Target == "" {
		return nil, WrapExitError(ExitCommandError, "no target", runner.ErrNoTarget)
	}
	d := &transport.Dialer{
		Address:        o.config.Target,
		ConnectTimeout: o.config.ConnectTimeout,
		Conn: transport.Config{
			WriteTimeout: o.config.WriteTimeout,
			Logger:       logger,
			Scenario:     "shell",
		},
	}
	if o.config.TLS {
		conf, err := transport.NewClientTLSConfig(transport.TLSOptions{
			ServerName:         o.config.ServerName,
			InsecureSkipVerify: o.config.Insecure,
			CAFile:             o.config.CAFile,
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid TLS settings", err)
		}
		d.TLSConfig = conf
	}
	return d, nil
}

func runShell(ctx context.Context, opts *ShellOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var capture log.Logger = log.NoopLogger{}
	if opts.config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(opts.config.ProtocolLog)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open protocol log", err)
		}
		defer fl.Close()
		capture = fl
	}

	d, err := opts.dialer(capture)
	if err != nil {
		return err
	}
	conn, err := d.Dial(ctx, opts.Label)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer conn.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "irc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	sh := NewShell(conn, rl.Stdout())
	fmt.Fprintf(sh.out, "Connected to %s (type /help for commands)\n", opts.config.Target)

	go func() {
		sh.Receive(ctx)
		// Unblock Readline once the server goes away.
		rl.Close()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(sh.out, "Exiting...")
			return nil
		}
		quit, err := sh.Dispatch(line)
		if err != nil {
			fmt.Fprintf(sh.out, "*** %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Shell relays typed lines to one connection.
type Shell struct {
	conn *transport.Conn
	out  io.Writer
}

// NewShell creates a shell printing to out.
func NewShell(conn *transport.Conn, out io.Writer) *Shell {
	return &Shell{conn: conn, out: out}
}

// Receive prints every incoming line until ctx is done or the connection
// ends.
func (s *Shell) Receive(ctx context.Context) {
	for ctx.Err() == nil {
		line, ok, err := s.conn.NextLine(shellPollInterval)
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				fmt.Fprintf(s.out, "*** %v\n", err)
			}
			return
		}
		if ok {
			fmt.Fprintf(s.out, "<<< %s\n", line)
		}
	}
}

var rawEscapes = strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\\`, `\`)

// Dispatch handles one input line. Lines starting with "/" are shell
// commands; "//" sends a line starting with "/". It reports quit when the
// shell should exit.
func (s *Shell) Dispatch(input string) (quit bool, err error) {
	input = strings.TrimRight(input, "\r\n")
	if strings.TrimSpace(input) == "" {
		return false, nil
	}
	if !strings.HasPrefix(input, "/") || strings.HasPrefix(input, "//") {
		line := strings.TrimPrefix(input, "/")
		return false, s.conn.Send(line)
	}

	cmd, rest, _ := strings.Cut(input[1:], " ")
	switch strings.ToLower(cmd) {
	case "help", "?":
		s.printHelp()

	case "quit", "q":
		msg := rest
		if msg == "" {
			msg = "bye"
		}
		return true, s.conn.Send("QUIT :" + msg)

	case "exit":
		return true, nil

	case "raw":
		if rest == "" {
			return false, errors.New("usage: /raw <bytes>")
		}
		return false, s.conn.SendRaw([]byte(rawEscapes.Replace(rest)))

	case "pause":
		s.conn.Pause()
		fmt.Fprintln(s.out, "*** reading paused")

	case "resume":
		s.conn.Resume()
		fmt.Fprintln(s.out, "*** reading resumed")

	case "status":
		fmt.Fprintf(s.out, "*** %s id=%s paused=%v buffered=%d received=%d\n",
			s.conn.RemoteAddr(), shortenConnID(s.conn.ID()), s.conn.Paused(), s.conn.Buffered(), len(s.conn.Lines()))

	default:
		return false, fmt.Errorf("unknown command: /%s (type /help for commands)", cmd)
	}
	return false, nil
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Shell Commands:
  <line>          - Send the line (CRLF appended)
  //<line>        - Send a line starting with "/"
  /raw <bytes>    - Send bytes as-is; \r and \n are expanded
  /pause          - Stop reading from the socket
  /resume         - Start reading again
  /status         - Show connection state
  /quit [message] - Send QUIT and exit
  /exit           - Exit without QUIT
  /help           - Show this help`)
}
