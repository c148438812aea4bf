// Command ledgerspace drives the shared-expense ledger from the terminal.
// Each invocation loads the snapshot, applies one command and saves it back;
// "ledgerspace shell" keeps the session open and reads commands from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ledgerspace/internal/advisor"
	"ledgerspace/internal/cache"
	"ledgerspace/internal/cli"
	"ledgerspace/internal/core"
	"ledgerspace/internal/ledger"
	"ledgerspace/internal/log"
	"ledgerspace/internal/ratelimit"
	"ledgerspace/internal/services"
	"ledgerspace/internal/trace"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		return 2
	}

	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := cli.SetupLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	rt, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open ledger: %v\n", err)
		return 1
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close runtime", log.FieldError, err)
		}
	}()

	adviceCache := cache.NewLRUCache[string](cfg.AdvisorCacheSize, cfg.AdvisorCacheTTL)
	var inner advisor.Client
	if cfg.AdvisorURL != "" {
		inner = advisor.NewHTTPClient(cfg.AdvisorURL, cfg.AdvisorAPIKey, nil)
	} else {
		logger.Debug("ADVISOR_URL not set, using fallback categorization")
	}
	logins := ratelimit.NewLimiter(ratelimit.Config{AttemptsPerMinute: cfg.LoginAttemptsPerMinute})
	defer logins.Stop()
	a := &app{
		store:    rt.Store,
		expenses: services.NewExpenseService(rt.Store, advisor.NewFallback(inner, cfg.AdvisorTimeout, adviceCache, logger), logger),
		logins:   logins,
		tracer:   trace.NewTracer(logger, errUsage),
		out:      stdout,
	}

	if args[0] == "shell" {
		caches := cache.NewManager(logger)
		caches.Register(adviceCache)
		caches.StartCleanup(time.Minute)
		defer caches.Stop()
		return shell(ctx, a, stdin, stderr)
	}
	return report(stderr, dispatch(ctx, a, args))
}

// report prints err and maps it to an exit status.
func report(stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		usage(stderr)
		return 2
	case errors.Is(err, ledger.ErrNotPersisted):
		fmt.Fprintf(stderr, "warning: change applied but not saved: %v\n", err)
		return 1
	default:
		fmt.Fprintf(stderr, "rejected (%s): %v\n", core.Kind(err), err)
		return 1
	}
}

// shell runs one command per input line until EOF or "exit". The status is
// that of the last command.
func shell(ctx context.Context, a *app, in io.Reader, stderr io.Writer) int {
	status := 0
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		args, err := splitArgs(line)
		if err != nil {
			status = report(stderr, fmt.Errorf("%w: %v", errUsage, err))
			continue
		}
		if args[0] == "shell" {
			status = report(stderr, fmt.Errorf("%w: already in a shell", errUsage))
			continue
		}
		status = report(stderr, dispatch(ctx, a, args))
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintf(stderr, "read input: %v\n", err)
		return 1
	}
	return status
}

// splitArgs splits a shell line on blanks, honoring single and double quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		pending bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			pending = true
		case r == ' ' || r == '\t':
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if pending {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
