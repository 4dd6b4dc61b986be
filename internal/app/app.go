package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"spreadwatch/internal/alerting"
	"spreadwatch/internal/broker"
	"spreadwatch/internal/config"
	"spreadwatch/internal/exchange"
	"spreadwatch/internal/history"
	"spreadwatch/internal/scheduler"
	"spreadwatch/internal/storage"
	"spreadwatch/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives tables printed by show and simulate.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

func (a *App) newSources() ([]exchange.Source, error) {
	pair := a.Config.CurrencyPair()
	sources := make([]exchange.Source, 0, len(a.Config.Exchanges))

	for _, ex := range a.Config.Exchanges {
		var src exchange.Source
		switch ex.Kind {
		case config.KindBitstamp:
			src = exchange.NewBitstamp(exchange.RESTOptions{
				Name:    ex.Name,
				Pair:    pair,
				BaseURL: ex.BaseURL,
				Symbol:  ex.Symbol,
				Timeout: ex.Timeout,
			})
		case config.KindKraken:
			src = exchange.NewKraken(exchange.RESTOptions{
				Name:    ex.Name,
				Pair:    pair,
				BaseURL: ex.BaseURL,
				Symbol:  ex.Symbol,
				Timeout: ex.Timeout,
			})
		case config.KindUniswapV2:
			timeout := ex.Timeout
			if timeout <= 0 {
				timeout = a.Config.Ethereum.RequestTimeout
			}
			src = exchange.NewUniswapV2(exchange.UniswapV2Options{
				Name:          ex.Name,
				Pair:          pair,
				RPCURL:        a.Config.Ethereum.RPCURL,
				PairAddress:   ex.PairAddress,
				BaseIsToken0:  ex.BaseIsToken0,
				BaseDecimals:  ex.BaseDecimals,
				QuoteDecimals: ex.QuoteDecimals,
				FeeBps:        ex.FeeBps,
				Timeout:       timeout,
			})
		case config.KindStatic:
			src = exchange.NewStatic(ex.Name, pair, decimal.NewFromFloat(ex.Ask), decimal.NewFromFloat(ex.Bid))
		default:
			return nil, fmt.Errorf("%w: exchange %q has unknown kind %q", exchange.ErrConfiguration, ex.Name, ex.Kind)
		}

		if ex.TolerateErrors {
			src = exchange.NewTolerant(src, a.Logger)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
}

// newActions builds monitor.actions in order. The returned closer releases
// broker connections.
func (a *App) newActions(ctx context.Context, store storage.RecorderStore) ([]scheduler.Action, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.Logger.Warn().Err(err).Msg("close action")
			}
		}
	}

	actions := make([]scheduler.Action, 0, len(a.Config.Monitor.Actions))
	for _, name := range a.Config.Monitor.Actions {
		var action scheduler.Action
		switch name {
		case config.ActionLog:
			action = scheduler.NewLogAction(a.Logger)
		case config.ActionPriceHistory:
			action = history.NewPriceLog(a.Config.History.PriceFile)
		case config.ActionSpreadHistory:
			action = history.NewSpreadLog(a.Config.History.SpreadFile)
		case config.ActionDatabase:
			if store == nil {
				closeAll()
				return nil, nil, storage.ErrNotConfigured
			}
			action = storage.NewRecorder(store, a.Config.Database.Retention, a.Logger)
		case config.ActionAlert:
			action = alerting.NewAlerter(a.newNotifier(), a.Config.Alerting.ThresholdPct, a.Config.Alerting.Cooldown, a.Logger)
		case config.ActionKafka:
			cfg := a.Config.Kafka
			if cfg.EnsureTopic {
				broker.EnsureTopic(ctx, cfg.Brokers[0], cfg.Topic, a.Logger)
			}
			k := broker.NewKafka(broker.KafkaOptions{
				Brokers:      cfg.Brokers,
				Topic:        cfg.Topic,
				BatchTimeout: cfg.BatchTimeout,
			}, a.Logger)
			closers = append(closers, k.Close)
			action = k
		case config.ActionRedis:
			cfg := a.Config.Redis
			r := broker.NewRedis(broker.RedisOptions{
				Addr:      cfg.Addr,
				Password:  cfg.Password,
				DB:        cfg.DB,
				KeyPrefix: cfg.KeyPrefix,
				Channel:   cfg.Channel,
				TTL:       cfg.TTL,
			}, a.Logger)
			closers = append(closers, r.Close)
			action = r
		default:
			closeAll()
			return nil, nil, fmt.Errorf("%w: unknown action %q", exchange.ErrConfiguration, name)
		}

		if a.Config.IsBestEffort(name) {
			action = scheduler.NewBestEffort(action, a.Logger)
		}
		actions = append(actions, action)
	}
	return actions, closeAll, nil
}

// openStore connects to PostgreSQL when a DSN is configured. A nil store
// means persistence is disabled.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// Run executes the long-running monitor until a signal, Stop condition or
// cycle failure.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorderStore storage.RecorderStore
	if a.Config.HasAction(config.ActionDatabase) {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return storage.ErrNotConfigured
		}
		defer closeStore()

		if key := a.Config.Database.AdvisoryLockKey; key != 0 {
			unlock, acquired, err := store.TryAdvisoryLock(ctx, key)
			if err != nil {
				return err
			}
			if !acquired {
				return storage.ErrLockHeld
			}
			defer unlock()
		}
		recorderStore = store
	}

	sources, err := a.newSources()
	if err != nil {
		return err
	}
	actions, closeActions, err := a.newActions(ctx, recorderStore)
	if err != nil {
		return err
	}
	defer closeActions()

	sched, err := scheduler.New(scheduler.Options{
		Interval:  a.Config.Monitor.Interval,
		RunFor:    a.Config.Monitor.RunFor,
		MaxCycles: a.Config.Monitor.MaxCycles,
	}, sources, actions, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("version", version.Version).
		Str("currency_pair", a.Config.Monitor.CurrencyPair).
		Dur("interval", a.Config.Monitor.Interval).
		Int("exchanges", len(sources)).
		Strs("actions", a.Config.Monitor.Actions).
		Msg("starting spread monitor")

	err = sched.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("spread monitor stopped")
	return nil
}
