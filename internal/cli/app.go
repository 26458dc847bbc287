package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/postai/internal/config"
	"github.com/mark3labs/postai/internal/intent"
	"github.com/mark3labs/postai/internal/llm"
	"github.com/mark3labs/postai/internal/metrics"
	"github.com/mark3labs/postai/internal/pipeline"
	"github.com/mark3labs/postai/internal/registry"
	"github.com/mark3labs/postai/internal/request"
	"github.com/mark3labs/postai/internal/search"
	"github.com/mark3labs/postai/internal/spec"
	"github.com/mark3labs/postai/internal/store"
)

// app holds everything a conversation needs, built from the merged config.
type app struct {
	cfg      *config.Config
	logger   hclog.Logger
	store    store.Store
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
}

// resolveConfig merges defaults, the config file, the env file, POSTAI_*
// variables and finally the flags the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	var envFiles []string
	if envFile = strings.TrimSpace(envFile); envFile != "" {
		envFiles = append(envFiles, envFile)
	}

	cfg, err := config.Load(strings.TrimSpace(path), envFiles...)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("config: %v", err))
	}
	if err := applyFlagOverrides(flags, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, newUsageError(fmt.Sprintf("config: %v", err))
	}
	return cfg, nil
}

func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		if value {
			cfg.Log.Level = "debug"
		}
	}
	if flags.Changed("base-url") {
		value, err := flags.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.Request.BaseURL = strings.TrimSpace(value)
	}
	if flags.Changed("store") {
		value, err := flags.GetString("store")
		if err != nil {
			return err
		}
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(value))
	}
	if flags.Changed("store-dir") {
		value, err := flags.GetString("store-dir")
		if err != nil {
			return err
		}
		cfg.Store.Dir = strings.TrimSpace(value)
	}
	if flags.Changed("model") {
		value, err := flags.GetString("model")
		if err != nil {
			return err
		}
		cfg.LLM.Model = strings.TrimSpace(value)
	}
	if flags.Changed("no-llm") {
		value, err := flags.GetBool("no-llm")
		if err != nil {
			return err
		}
		cfg.LLM.Disabled = value
	}
	return nil
}

func newLogger(cfg *config.Config, out io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "postai",
		Level:      hclog.LevelFromString(cfg.Log.Level),
		JSONFormat: cfg.Log.JSON,
		Output:     out,
	})
}

func loaderOptions(cfg *config.Config) []spec.Option {
	return []spec.Option{
		spec.WithHTTPTimeout(time.Duration(cfg.Loader.TimeoutSeconds) * time.Second),
		spec.WithMaxRetries(cfg.Loader.Attempts()),
	}
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	location := cfg.Store.Dir
	if cfg.Store.Backend == store.BackendSQLite {
		location = cfg.Store.DSN
	}
	st, err := store.Open(cfg.Store.Backend, location, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var completer llm.Completer
	if !cfg.LLM.Disabled {
		client, err := llm.NewClient(llm.Config{
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			APIKey:            cfg.LLM.APIKey,
			Temperature:       float32(cfg.LLM.Temperature),
			Timeout:           time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
			MaxRetries:        cfg.LLM.Retries(),
			Logger:            logger,
		})
		if err != nil {
			_ = st.Close()
			return nil, newUsageError(fmt.Sprintf("llm: %v", err))
		}
		completer = client
	}

	builder := request.NewBuilder(cfg.Request.TimeoutMs)
	for k, v := range cfg.Request.Headers {
		builder.Headers[k] = v
	}

	reg := registry.New()
	reg.SetBaseURLOverride(cfg.Request.BaseURL)

	m := metrics.New()
	deps := pipeline.Deps{
		Registry:    reg,
		Store:       st,
		Builder:     builder,
		Transport:   request.NewHTTPTransport(logger),
		LoadOptions: loaderOptions(cfg),
		Metrics:     m,
		Logger:      logger,
	}
	semantic := completer
	if cfg.Search.DisableSemantic {
		semantic = nil
	}
	deps.Search = search.NewEngine(semantic, cfg.Search.CacheSize, logger)
	if completer != nil {
		deps.Classifier = intent.NewClassifier(completer, logger)
		deps.Understander = intent.NewUnderstander(completer, logger)
		deps.Auth = intent.NewAuthExtractor(completer, logger)
	}

	logger.Debug("configured",
		"config", cfg.Path,
		"store", cfg.Store.Backend,
		"llm", !cfg.LLM.Disabled,
		"model", cfg.LLM.Model,
	)
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		metrics:  m,
		pipeline: pipeline.New(deps),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
