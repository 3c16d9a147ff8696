package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	frameanalyzer "github.com/menta2k/frame-analyzer"
	"github.com/menta2k/frame-analyzer/internal/config"
	"github.com/menta2k/frame-analyzer/internal/logging"
	"github.com/menta2k/frame-analyzer/internal/utils"
	"github.com/menta2k/frame-analyzer/pkg/metrics"
	"github.com/menta2k/frame-analyzer/pkg/response"
	"github.com/menta2k/frame-analyzer/pkg/server"
	"github.com/menta2k/frame-analyzer/pkg/store"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

const usageLine = "Usage: frame-analyzer [flags] <frames-dir>"

var longHelp = strings.TrimSpace(`
Detect objects in a directory of video frames and print one JSON document.

Every .png/.jpg frame (configurable) is sent to a vision model through a
bounded worker pool. The output is a JSON array with one entry per frame, or a
single-key JSON object naming the stage that failed. Frames whose analysis
fails are reported with no boxes.
`)

var exampleUsage = strings.TrimSpace(`
  frame-analyzer --model qwen2.5vl:7b ./frames
  frame-analyzer --backend llamacpp --url http://gpu-box:8080 --workers 8 ./frames
  frame-analyzer --config ~/.config/frame-analyzer/config.toml --redis-id job-42 ./frames
  frame-analyzer serve --listen :8085 --redis-addr localhost:6379
`)

// errUsage marks a wrong command line; the usage JSON has already been printed
var errUsage = errors.New("usage error")

// cliFlags holds the values bound to command line flags
type cliFlags struct {
	configPath   string
	backend      string
	url          string
	model        string
	sharing      string
	workers      int
	extensions   []string
	frameTimeout time.Duration
	withStatus   bool
	annotateDir  string
	metricsFile  string
	redisAddr    string
	redisID      string
	listen       string
	logLevel     string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "frame-analyzer: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f cliFlags

	root := &cobra.Command{
		Use:           "frame-analyzer [flags] <frames-dir>",
		Short:         "Detect objects in a directory of video frames",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", frameanalyzer.GetVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				writeFatal(stdout, types.FatalUsage, usageLine)
				return errUsage
			}
			return runAnalyze(cmd, &f, args[0], stdout, stderr)
		},
	}
	root.SetOut(stderr)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", fmt.Sprintf("path to config file, .json/.toml/.yaml (default: %s if present)", config.GetConfigPath()))
	pf.StringVar(&f.backend, "backend", config.BackendOllama, "vision backend: ollama or llamacpp")
	pf.StringVar(&f.url, "url", "", "backend URL (defaults: ollama=http://localhost:11434, llamacpp=http://localhost:8080)")
	pf.StringVar(&f.model, "model", "", "model name (weights reference) served by the backend")
	pf.StringVar(&f.sharing, "sharing", config.SharingShared, "detector sharing: shared, serialized or per-worker")
	pf.IntVarP(&f.workers, "workers", "w", 4, "maximum number of concurrent detector calls")
	pf.StringSliceVar(&f.extensions, "extensions", []string{".png", ".jpg"}, "accepted frame extensions (case-sensitive)")
	pf.DurationVar(&f.frameTimeout, "frame-timeout", 0, "deadline for one frame, 0 disables it")
	pf.BoolVar(&f.withStatus, "with-status", false, `add "status":"ok"|"failed" to every frame entry`)
	pf.StringVar(&f.annotateDir, "annotate-dir", "", "write copies of frames with their boxes drawn into this directory")
	pf.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	pf.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for storing results")
	pf.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.Flags().StringVar(&f.redisID, "redis-id", "", "store the result in Redis under this id")

	root.AddCommand(newServeCmd(&f, stderr))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(stdout, root.Version)
		},
	})
	return root
}

func newServeCmd(f *cliFlags, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /analyze_frames over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd, f, stderr)
			if err != nil {
				return err
			}
			m := metrics.NewCollector(cfg.Metrics.Namespace)
			fa, err := frameanalyzer.New(cfg, logger, frameanalyzer.WithMetrics(m))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var results server.ResultStore
			if cfg.Redis.Addr != "" {
				rs, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer rs.Close()
				results = rs
			} else {
				logger.Warn("no redis address configured, results are not stored")
			}

			srv := server.New(fa, results, fa.Formatter(), m, logger)
			return srv.ListenAndServe(ctx, cfg.Server.Listen)
		},
	}
	cmd.Flags().StringVar(&f.listen, "listen", ":8085", "address to listen on")
	return cmd
}

func runAnalyze(cmd *cobra.Command, f *cliFlags, dir string, stdout, stderr io.Writer) error {
	cfg, logger, err := setup(cmd, f, stderr)
	if err != nil {
		writeFatal(stdout, types.FatalOrchestrator, err.Error())
		return err
	}

	m := metrics.NewCollector(cfg.Metrics.Namespace)
	fa, err := frameanalyzer.New(cfg, logger, frameanalyzer.WithMetrics(m))
	if err != nil {
		writeFatal(stdout, types.FatalOrchestrator, err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := fa.AnalyzeDirectory(ctx, dir)
	body, err := fa.Formatter().Format(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if _, err := stdout.Write(append(body, '\n')); err != nil {
		return err
	}

	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
	}

	if f.redisID != "" {
		if cfg.Redis.Addr == "" {
			return errors.New("--redis-id needs a redis address (--redis-addr or redis.addr)")
		}
		rs, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer rs.Close()
		if err := rs.Save(ctx, f.redisID, body); err != nil {
			return err
		}
		logger.Info("result stored", "key", rs.Key(f.redisID))
	}
	return nil
}

// setup loads the configuration and builds the logger.
// Precedence: defaults, config file, FRAME_ANALYZER_* environment, flags set on the command line.
func setup(cmd *cobra.Command, f *cliFlags, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, nil, err
	}
	cfg.Apply(flagOverrides(cmd.Flags(), f))

	if cfg.Detector.URL == "" {
		cfg.Detector.URL = config.DefaultURL(cfg.Detector.Backend)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, stderr)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("configuration", "backend", cfg.Detector.Backend, "url", cfg.Detector.URL,
		"model", cfg.Detector.Model, "workers", cfg.Orchestrator.MaxConcurrency, "sharing", cfg.Detector.Sharing)
	return cfg, logger, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// flagOverrides returns the values of the flags that were set explicitly
func flagOverrides(fs *pflag.FlagSet, f *cliFlags) config.Overrides {
	var o config.Overrides
	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "backend":
			o.Backend = &f.backend
		case "url":
			o.URL = &f.url
		case "model":
			o.Model = &f.model
		case "sharing":
			o.Sharing = &f.sharing
		case "workers":
			o.MaxConcurrency = &f.workers
		case "extensions":
			o.Extensions = utils.NormalizeExtensions(f.extensions)
		case "frame-timeout":
			o.FrameTimeout = &f.frameTimeout
		case "with-status":
			o.WithStatus = &f.withStatus
		case "annotate-dir":
			o.AnnotateDir = &f.annotateDir
		case "metrics-file":
			o.MetricsFile = &f.metricsFile
		case "redis-addr":
			o.RedisAddr = &f.redisAddr
		case "listen":
			o.Listen = &f.listen
		case "log-level":
			o.LogLevel = &f.logLevel
		}
	})
	return o
}

func openStore(ctx context.Context, cfg *config.Config) (*store.RedisStore, error) {
	return store.NewRedisStore(ctx, store.Options{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Redis.TTL.Std(),
	})
}

func writeFatal(w io.Writer, kind types.FatalKind, msg string) {
	_ = response.Formatter{}.Write(w, types.Fatal(types.NewFatal(kind, nil, "%s", msg)))
}
