package di

import (
	"io"
	"net/http"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-verifier/internal/adapters/sink"
	"github.com/mikey/email-verifier/internal/config"
	"github.com/mikey/email-verifier/internal/core"
	"github.com/mikey/email-verifier/internal/factory"
	"github.com/mikey/email-verifier/internal/logging"
	"github.com/mikey/email-verifier/internal/upload"
	"github.com/mikey/email-verifier/internal/utils"
)

// Deps is everything a command needs from the container
type Deps struct {
	dig.In

	Config   *config.Config
	Logger   *zap.Logger
	Session  *core.Session
	Loader   *upload.Loader
	Reporter sink.Reporter
	History  factory.HistoryStore
}

// BuildContainer creates and configures a dependency injection container. Command output
// is written to out.
func BuildContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register configuration, with command line overrides applied
	if err := container.Provide(func(flags *CLIFlags) (*config.Config, error) {
		cfg, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		logger, err := logging.InitLogger(cfg)
		if err != nil {
			return nil, err
		}
		if used := cfg.ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		return logger, nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewGatewayFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSinkFactory); err != nil {
		return nil, err
	}

	// Register text processor and upload loader
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory, tp *utils.TextProcessor) *upload.Loader {
		return f.CreateLoader(tp)
	}); err != nil {
		return nil, err
	}

	// Register gateway pieces
	if err := container.Provide(func(f *factory.GatewayFactory) (*core.GatewayPool, error) {
		return f.CreatePool()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.GatewayFactory) (*http.Client, error) {
		return f.CreateHTTPClient()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.GatewayFactory, client *http.Client) core.Submitter {
		return f.CreateSubmitter(client)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.GatewayFactory, client *http.Client) (core.ProxyProber, error) {
		return f.CreateProber(client)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.GatewayFactory) (*core.EventClassifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register result history
	if err := container.Provide(func(f *factory.StoreFactory) (factory.HistoryStore, error) {
		return f.CreateHistoryStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (core.SessionConfig, error) {
		return f.SessionConfig()
	}); err != nil {
		return nil, err
	}

	// Register reporter
	if err := container.Provide(func(f *factory.SinkFactory) (sink.Reporter, error) {
		return f.CreateReporter(out)
	}); err != nil {
		return nil, err
	}

	// Register session
	if err := container.Provide(func(
		pool *core.GatewayPool,
		submitter core.Submitter,
		prober core.ProxyProber,
		classifier *core.EventClassifier,
		history factory.HistoryStore,
		reporter sink.Reporter,
		logger *zap.Logger,
		cfg core.SessionConfig,
	) *core.Session {
		var repo core.ResultRepository
		if history != nil {
			repo = history
		}
		session := core.NewSession(pool, submitter, prober, classifier, repo, logger, cfg)
		session.AddSink(reporter)
		return session
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// Run builds the container and invokes fn with the resolved dependencies. The session is
// closed and the history store stopped when fn returns.
func Run(flags *CLIFlags, out io.Writer, fn func(Deps) error) error {
	container, err := BuildContainer(flags, out)
	if err != nil {
		return err
	}

	var runErr error
	err = container.Invoke(func(deps Deps) {
		defer deps.Logger.Sync()
		defer func() {
			if deps.History != nil {
				deps.History.Stop()
			}
		}()
		defer deps.Session.Close()

		runErr = fn(deps)
	})
	if err != nil {
		return dig.RootCause(err)
	}
	return runErr
}
