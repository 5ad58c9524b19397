package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"github.com/dmora/agentbridge"
	"github.com/dmora/agentbridge/engine/acp"
	"github.com/dmora/agentbridge/filter"
	"github.com/dmora/agentbridge/internal/config"
	"github.com/dmora/agentbridge/internal/logging"
)

// Run is the main entry point. Returns exit code.
// sigCh can be nil if signal handling is not needed (e.g., in tests).
func Run(stdin io.Reader, stdout, stderr io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags := flag.NewFlagSet("agentbridge", flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.SetOutput(io.Discard)

	flagHelp := flags.BoolP("help", "h", false, "Show help")
	flagVersion := flags.Bool("version", false, "Show version and exit")
	flagConfig := flags.StringP("config", "c", "", "Read configuration from `file` (.json, .jsonc or .toml)")
	flagWorktree := flags.StringP("worktree", "w", "", "Sandbox root for the agent (default: current directory)")
	flagSession := flags.StringP("session", "s", "", "Session `name`")
	flagMode := flags.String("mode", "", "Initial session `mode` id")
	flagEnv := flags.StringArray("env", nil, "Set `KEY=VALUE` in the agent environment (repeatable)")
	flagLogLevel := flags.String("log-level", "", "Log `level`: debug, info, warn, error")
	flagLogFormat := flags.String("log-format", "", "Log `format`: text, json, logfmt")
	flagOutputLimit := flags.Int("output-limit", 0, "Default output byte limit for agent terminals (0: unlimited)")
	flagGrace := flags.Duration("grace-period", 0, "Time the agent gets to exit at each stop step")
	flagHandshake := flags.Duration("handshake-timeout", 0, "Abort the handshake after this long (0: wait forever)")

	if err := flags.Parse(args[1:]); err != nil {
		fprintf(stderr, "error: %v\n\n", err)
		printUsage(stderr, flags)
		return 1
	}
	if *flagHelp {
		printUsage(stdout, flags)
		return 0
	}
	if *flagVersion {
		fprintf(stdout, "agentbridge %s\n", version)
		return 0
	}

	worktree := *flagWorktree
	if worktree == "" {
		if pwd, ok := env["PWD"]; ok && filepath.IsAbs(pwd) {
			worktree = pwd
		} else {
			wd, err := os.Getwd()
			if err != nil {
				fprintf(stderr, "error: cannot get working directory: %v\n", err)
				return 1
			}
			worktree = wd
		}
	}
	worktree, err := filepath.Abs(worktree)
	if err != nil {
		fprintf(stderr, "error: worktree: %v\n", err)
		return 1
	}

	configPath := *flagConfig
	if configPath == "" {
		configPath = env["AGENTBRIDGE_CONFIG"]
	}
	cfg, err := loadConfig(configPath, worktree)
	if err != nil {
		fprintf(stderr, "error: %v\n", err)
		return 1
	}

	// Flags override the file.
	if flags.Changed("worktree") || cfg.Worktree == "" {
		cfg.Worktree = worktree
	}
	if *flagSession != "" {
		cfg.Session = *flagSession
	}
	if flags.Changed("mode") {
		cfg.Agent.Mode = *flagMode
	}
	if *flagLogLevel != "" {
		cfg.Log.Level = *flagLogLevel
	}
	if *flagLogFormat != "" {
		cfg.Log.Format = *flagLogFormat
	}
	if flags.Changed("output-limit") {
		cfg.Terminal.OutputByteLimit = *flagOutputLimit
	}
	if flags.Changed("grace-period") {
		cfg.GracePeriod = config.Duration(*flagGrace)
	}
	if flags.Changed("handshake-timeout") {
		cfg.HandshakeTimeout = config.Duration(*flagHandshake)
	}
	if rest := flags.Args(); len(rest) > 0 {
		cfg.Agent.Command = rest
	}
	overlay, invalid := agentbridge.ParseEnvAssignments(*flagEnv)
	if len(invalid) > 0 {
		fprintf(stderr, "error: invalid --env %q (want KEY=VALUE)\n", invalid[0])
		return 1
	}
	if len(overlay) > 0 {
		if cfg.Agent.Env == nil {
			cfg.Agent.Env = make(map[string]string, len(overlay))
		}
		for k, v := range overlay {
			cfg.Agent.Env[k] = v
		}
	}
	if len(cfg.Agent.Command) == 0 {
		fprintf(stderr, "error: no agent command (pass it after -- or set agent.command)\n\n")
		printUsage(stderr, flags)
		return 1
	}
	if cfg.Terminal.OutputByteLimit < 0 {
		fprintf(stderr, "error: --output-limit must not be negative\n")
		return 1
	}

	logger, err := logging.FromConfig(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fprintf(stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- session(ctx, stdin, stdout, cfg, logger)
	}()

	if sigCh == nil {
		return <-done
	}
	select {
	case code := <-done:
		return code
	case <-sigCh:
		fprintln(stderr, "Interrupted, stopping agent... (Ctrl+C again to force exit)")
		cancel()
	}
	select {
	case <-done:
		return 130
	case <-sigCh:
		fprintln(stderr, "Forced exit.")
		return 130
	}
}

// loadConfig reads path, or the worktree's project config when path is
// empty. A missing project config yields the defaults.
func loadConfig(path, worktree string) (config.Config, error) {
	if path == "" {
		found, err := config.FindProject(worktree)
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		if err != nil {
			return config.Config{}, err
		}
		path = found
	}
	return config.Load(path)
}

// session runs one agent session until stdin ends, /quit, ctx is
// cancelled or the agent goes away. Returns the exit code.
func session(ctx context.Context, stdin io.Reader, stdout io.Writer, cfg config.Config, logger *log.Logger) int {
	opts := []acp.Option{
		acp.WithLogger(logger),
		acp.WithClientInfo("agentbridge", version),
	}
	if cfg.GracePeriod > 0 {
		opts = append(opts, acp.WithGracePeriod(time.Duration(cfg.GracePeriod)))
	}
	if cfg.HandshakeTimeout > 0 {
		opts = append(opts, acp.WithHandshakeTimeout(time.Duration(cfg.HandshakeTimeout)))
	}
	if cfg.Terminal.OutputByteLimit > 0 {
		opts = append(opts, acp.WithDefaultOutputByteLimit(cfg.Terminal.OutputByteLimit))
	}

	sink := agentbridge.NewChanSink(256)
	defer sink.Close()
	reg := acp.NewRegistry(sink, opts...)
	out := newPrinter(stdout)

	stopCtx, cancelStop := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelStop()
	defer reg.StopAll(stopCtx)

	name := cfg.Session
	err := reg.EnsureSessionStarted(ctx, agentbridge.SessionConfig{
		Name:        name,
		Worktree:    cfg.Worktree,
		Command:     cfg.Agent.Command,
		Env:         cfg.Agent.Env,
		InitialMode: cfg.Agent.Mode,
	})
	events := sink.Events()
	// show prints ev and reports whether the session is over. Events are
	// filtered here rather than through filter.Session: flush must see every
	// event already queued in the sink, with no goroutine hand-off between.
	show := func(ev agentbridge.Event) bool {
		if ev.Session != name {
			return false
		}
		out.Event(ev)
		return filter.IsTerminal(ev)
	}
	// flush prints the events already queued. Updates are published before
	// the prompt reply is delivered, so flushing before a result keeps the
	// output in order.
	flush := func() bool {
		for {
			select {
			case ev := <-events:
				if show(ev) {
					return true
				}
			default:
				return false
			}
		}
	}
	if err != nil {
		flush()
		return 1
	}

	lines := readLines(ctx, stdin)
	results := make(chan promptResult, 1)
	busy := false
	inputDone := false

	for {
		if inputDone && !busy {
			return 0
		}
		select {
		case <-ctx.Done():
			return 130

		case ev := <-events:
			if show(ev) {
				return 1
			}

		case res := <-results:
			busy = false
			if flush() {
				return 1
			}
			out.Result(res.reason, res.err)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				inputDone = true
				continue
			}
			cmd, err := parseLine(line)
			if err != nil {
				out.errorLine(err.Error())
				continue
			}
			switch cmd.kind {
			case cmdNone:
			case cmdHelp:
				fprintf(stdout, "%s", helpText)
			case cmdQuit:
				return 0
			case cmdCancel:
				if err := reg.Cancel(name); err != nil {
					out.errorLine(err.Error())
				}
			case cmdAllow:
				if err := reg.ResolvePermission(name, cmd.id, cmd.option); err != nil {
					out.errorLine(err.Error())
				}
			case cmdPrompt:
				if busy {
					out.errorLine("a turn is in progress; wait for it or /cancel")
					continue
				}
				busy = true
				go func(text string) {
					reason, err := reg.Prompt(ctx, name, text)
					results <- promptResult{reason, err}
				}(cmd.text)
			}
		}
	}
}

type promptResult struct {
	reason agentbridge.StopReason
	err    error
}

// readLines delivers stdin lines until EOF or ctx is cancelled.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func printUsage(w io.Writer, flags *flag.FlagSet) {
	fprintf(w, "Usage: agentbridge [flags] -- <agent> [args...]\n\n")
	fprintf(w, "Flags:\n%s\n", flags.FlagUsages())
	fprintf(w, "%s", helpText)
}

func fprintf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
