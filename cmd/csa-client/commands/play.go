package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/csa-client/internal/config"
	"github.com/park285/csa-client/internal/csa"
	"github.com/park285/csa-client/internal/obslog"
	"github.com/park285/csa-client/internal/result"
	"github.com/park285/csa-client/internal/timemgr"
	"github.com/park285/csa-client/internal/usi"
)

var (
	configPath string
	repeatFlag int
	ponderFlag bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Connect to the server and play games",
	Long: `Play logs in, accepts the offered game, plays it with the configured engine
and book, logs out and records the result. This repeats for the configured
number of games. Connection and login failures stop the run.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultPath+" when present)")
	playCmd.Flags().IntVarP(&repeatFlag, "repeat", "n", 0, "number of games to play, overrides the config")
	playCmd.Flags().BoolVar(&ponderFlag, "ponder", false, "think on the opponent's time")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if repeatFlag > 0 {
		cfg.Repeat = repeatFlag
	}
	if cmd.Flags().Changed("ponder") {
		cfg.Ponder = ponderFlag
	}

	logger, closeLog, err := obslog.New(logOptions(cfg.Log))
	if err != nil {
		return err
	}
	defer closeLog()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := usi.NewSession(ctx, usi.Config{Path: cfg.Engine.Path, Args: cfg.Engine.Args, Options: cfg.Engine.Options}, logger)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer engine.Close()

	sinks, closers, err := openSinks(cfg.Result, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	recorder := result.NewRecorder(result.Config{
		CSVPath:   cfg.Result.CSV,
		RecordDir: cfg.Result.RecordDir,
		RecordExt: cfg.Result.RecordExt,
		Encoding:  cfg.Result.Encoding,
	}, logger, sinks...)
	t := newTally(recorder, cmd.OutOrStdout())

	client := csa.New(clientConfig(cfg), engine, t, logger)
	runErr := client.Execute(ctx)
	t.summary()
	return runErr
}

func clientConfig(cfg *config.Config) csa.Config {
	return csa.Config{
		Dial: csa.DialConfig{
			Transport:         cfg.Server.Transport,
			Host:              cfg.Server.Host,
			Port:              cfg.Server.Port,
			URL:               cfg.Server.URL,
			KeepAlive:         cfg.Server.KeepAlive,
			KeepAliveIdle:     cfg.Server.KeepAliveIdle,
			KeepAliveInterval: cfg.Server.KeepAliveInterval,
			KeepAliveCount:    cfg.Server.KeepAliveCount,
		},
		User:     cfg.User,
		Password: cfg.Password,
		Repeat:   cfg.Repeat,
		Ponder:   cfg.Ponder,
		Verbose:  cfg.Verbose,
		Time:     timemgr.Policy{Margin: cfg.Time.Margin, MaxPerMove: cfg.Time.MaxPerMove},
		BookPath: cfg.Book.Path,
	}
}

func logOptions(l config.LogConfig) obslog.Options {
	console := true
	if l.Console != nil {
		console = *l.Console
	}
	return obslog.Options{Level: l.Level, Format: l.Format, Console: console, File: l.File, Caller: l.Caller}
}

// openSinks connects the optional result destinations named in the config.
func openSinks(rc config.ResultConfig, logger *zap.Logger) ([]result.Sink, []io.Closer, error) {
	var (
		sinks   []result.Sink
		closers []io.Closer
	)
	if rc.RedisURL != "" {
		store, err := result.NewRedisStoreFromURL(rc.RedisURL)
		if err != nil {
			return nil, closers, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
	}
	if rc.DatabaseURL != "" {
		repo, err := result.NewRepository(rc.DatabaseURL)
		if err != nil {
			return nil, closers, fmt.Errorf("open database: %w", err)
		}
		sinks = append(sinks, repo)
		closers = append(closers, repo)
	}
	if rc.WebhookURL != "" {
		var opts []result.WebhookOption
		if rc.WebhookTimeout > 0 {
			opts = append(opts, result.WithWebhookTimeout(rc.WebhookTimeout))
		}
		sinks = append(sinks, result.NewWebhook(rc.WebhookURL, opts...))
	}
	for _, s := range sinks {
		logger.Info("result sink enabled", zap.String("sink", s.Name()))
	}
	return sinks, closers, nil
}
