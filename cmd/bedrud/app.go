package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bedrud/bedrud-go"
	"github.com/bedrud/bedrud-go/internal/config"
	"github.com/bedrud/bedrud-go/session"
)

// app carries the root flags and the lazily loaded configuration. Commands that do not
// talk to a backend (version, loadtest) never load it.
type app struct {
	configPath string
	output     string
	logLevel   string

	cfg *config.Config
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	a.cfg = cfg
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// client builds a session client from the configuration. The returned func releases it.
func (a *app) client(cmd *cobra.Command) (*bedrud.Client, func(), error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	ephemeral, err := session.NewFileTier(cfg.RuntimeDir())
	if err != nil {
		return nil, nil, fmt.Errorf("runtime dir: %w", err)
	}

	b := bedrud.New().
		WithConfig(cfg.ClientConfig(appName+"-cli/"+Version)).
		WithLogger(logger).
		WithEphemeralTier(ephemeral).
		WithEventSink(bedrud.NewZerologSink(logger.With().Str("component", "events").Logger()))

	release := func() {}
	switch cfg.Storage.Durable {
	case config.DurableFile:
		dir, err := cfg.StorageDir()
		if err != nil {
			return nil, nil, err
		}
		durable, err := session.NewFileTier(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("storage dir: %w", err)
		}
		b.WithDurableTier(durable)
	case config.DurableRedis:
		rdb, closeRedis, err := openRedis(cfg.Storage.RedisAddr, logger)
		if err != nil {
			return nil, nil, err
		}
		b.WithRedis(rdb)
		release = closeRedis
	}

	c, err := b.Build(cmd.Context())
	if err != nil {
		release()
		return nil, nil, err
	}
	return c, func() {
		_ = c.Close()
		release()
	}, nil
}

// openRedis connects to addr, or to an in-process server when addr is "memory".
func openRedis(addr string, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	if addr == config.RedisInMemory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		logger.Warn().Str("addr", mr.Addr()).Msg("using in-process redis, the durable tier is lost on exit")
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return rdb, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return rdb, func() { _ = rdb.Close() }, nil
}

func (a *app) print(cmd *cobra.Command, v any) error {
	return printValue(cmd.OutOrStdout(), a.output, v)
}

func printValue(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		// Round-trip through JSON so the output uses the wire field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// readPassword returns flagValue or the first line of stdin.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

func withClient(a *app, run func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, release, err := a.client(cmd)
		if err != nil {
			return err
		}
		defer release()
		return run(cmd.Context(), cmd, c, args)
	}
}
