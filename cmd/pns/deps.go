package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pepu-name-service/internal/cache"
	"pepu-name-service/internal/chain"
	"pepu-name-service/internal/config"
	"pepu-name-service/internal/notify"
	"pepu-name-service/internal/payment"
	"pepu-name-service/internal/registry"
	"pepu-name-service/internal/storage"
	"pepu-name-service/internal/storage/memory"
	"pepu-name-service/internal/storage/migrations"
	pgstore "pepu-name-service/internal/storage/postgres"
)

// services holds everything built from the config. close releases it in
// reverse order of construction.
type services struct {
	chain     *chain.RPCClient
	validator *payment.Validator
	poller    *payment.Poller
	store     storage.DomainStore
	cache     cache.NameCache
	notifier  notify.Notifier

	closers []func()
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func rpcOptions(c config.ChainConfig) []chain.ClientOption {
	return []chain.ClientOption{
		chain.WithTimeout(c.Timeout),
		chain.WithMaxRetries(c.MaxRetries),
		chain.WithRetryDelay(c.RetryDelay),
		chain.WithMaxDelay(c.MaxRetryDelay),
	}
}

// buildServices dials the chain and opens the store and cache.
func buildServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*services, error) {
	s := &services{}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	client, err := chain.Dial(ctx, cfg.Chain.RPCURL, rpcOptions(cfg.Chain)...)
	if err != nil {
		return nil, err
	}
	s.chain = client
	s.closers = append(s.closers, client.Close)

	pc, err := cfg.ToPayment()
	if err != nil {
		return nil, err
	}
	s.validator, err = payment.NewValidator(client, pc, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Payment.PollEnabled {
		s.poller = payment.NewPoller(s.validator, cfg.PollPolicy(), cfg.Payment.LookbackBlocks, logger)
	}

	s.store, err = openStore(ctx, cfg.Store, logger, s)
	if err != nil {
		return nil, err
	}

	s.cache, err = openCache(ctx, cfg.Cache, s)
	if err != nil {
		return nil, err
	}

	s.notifier = newNotifier(cfg.Notify, logger)

	ok = true
	return s, nil
}

func openStore(ctx context.Context, sc config.StoreConfig, logger *zap.Logger, s *services) (storage.DomainStore, error) {
	switch sc.Driver {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, sc.PostgresDSN, pgstore.WithMaxConns(sc.MaxConns))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return nil, err
		}
		logger.Info("postgres store ready", zap.Strings("migrations", applied))
		return pgstore.NewDomainStore(pool), nil
	case "memory", "":
		logger.Warn("using in-memory store; registrations are lost on restart")
		return memory.NewDomainStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func openCache(ctx context.Context, cc config.CacheConfig, s *services) (cache.NameCache, error) {
	switch cc.Backend {
	case "redis":
		c, err := cache.NewRedis(ctx, cc.RedisURL, cache.DefaultRedisPrefix, cc.TTL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = c.Close() })
		return c, nil
	case "lru":
		return cache.NewLRU(cc.LRUSize)
	case "none", "":
		return cache.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
	}
}

// newNotifier always logs and also posts to Telegram when configured.
func newNotifier(nc config.NotifyConfig, logger *zap.Logger) notify.Notifier {
	log := notify.NewLog(logger)
	if !nc.TelegramEnabled() {
		return log
	}
	return notify.Multi{log, notify.NewTelegram(nc.TelegramToken, nc.TelegramChatID, logger)}
}

// newRegistrar wires the registration gate.
func newRegistrar(cfg *config.Config, s *services, publisher registry.Publisher, logger *zap.Logger) *registry.Registrar {
	opts := []registry.Option{
		registry.WithCache(s.cache),
		registry.WithNotifier(s.notifier),
		registry.WithMaxDomains(cfg.Registry.MaxDomains),
		registry.WithNotifyTimeout(cfg.Registry.NotifyTimeout),
	}
	if publisher != nil {
		opts = append(opts, registry.WithPublisher(publisher))
	}
	if s.poller != nil {
		opts = append(opts, registry.WithPaymentFinder(s.poller))
	}
	return registry.NewRegistrar(s.store, s.validator, logger, opts...)
}

// writeTimeout leaves room for a full payment poll when polling is on.
func writeTimeout(cfg *config.Config) time.Duration {
	d := cfg.Server.WriteTimeout
	if cfg.Payment.PollEnabled {
		d = max(d, cfg.Payment.PollMaxWait+30*time.Second)
	}
	return d
}
