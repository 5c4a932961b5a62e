package main

import (
	"context"
	"errors"
	"fmt"

	"safeguard-bot/internal/admin"
	"safeguard-bot/internal/alert"
	"safeguard-bot/internal/config"
	"safeguard-bot/internal/mev"
	"safeguard-bot/internal/notify"
	"safeguard-bot/internal/recorder"
	"safeguard-bot/internal/storage"
	chstore "safeguard-bot/internal/storage/clickhouse"
	"safeguard-bot/internal/storage/memory"
	pgstore "safeguard-bot/internal/storage/postgres"
)

// stores holds the storage backends selected by configuration.
type stores struct {
	tokens    storage.TokenStore
	txs       storage.TransactionStore
	aggs      storage.AggregateStore
	blacklist storage.BlacklistStore
}

// openStores connects to PostgreSQL (and ClickHouse for aggregates when
// configured), or builds in-memory stores.
func openStores(ctx context.Context, cfg *config.Config, useMemory bool) (*stores, func(), error) {
	if useMemory {
		return &stores{
			tokens:    memory.NewTokenStore(),
			txs:       memory.NewTransactionStore(),
			aggs:      memory.NewAggregateStore(),
			blacklist: memory.NewBlacklistStore(),
		}, func() {}, nil
	}

	if cfg.PostgresDSN == "" {
		return nil, nil, errors.New("POSTGRES_DSN is required")
	}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	st := &stores{
		tokens:    pgstore.NewTokenStore(pool),
		txs:       pgstore.NewTransactionStore(pool),
		aggs:      pgstore.NewAggregateStore(pool),
		blacklist: pgstore.NewBlacklistStore(pool),
	}
	cleanup := pool.Close

	if cfg.AggregateBackend == config.AggregateClickHouse {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		st.aggs = chstore.NewAggregateStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return st, cleanup, nil
}

// adminService builds the admin service over PostgreSQL. When withSender is
// set the service can resend alerts through Telegram.
func (a *app) adminService(ctx context.Context, withSender bool) (*admin.Service, func(), error) {
	st, cleanup, err := openStores(ctx, a.cfg, false)
	if err != nil {
		return nil, nil, err
	}

	filter := mev.NewFilter(mev.FilterOptions{Store: st.blacklist, TTL: a.cfg.BlacklistCacheTTL, Logger: &a.logger})
	opts := admin.ServiceOptions{
		Tokens:       st.tokens,
		Transactions: st.txs,
		Blacklist:    st.blacklist,
		Filter:       filter,
		Logger:       &a.logger,
	}

	if withSender {
		sender, err := notify.NewTelegramSender(notify.TelegramOptions{
			Token:       a.cfg.TelegramBotToken,
			APIEndpoint: a.cfg.TelegramAPIEndpoint,
			Timeout:     a.cfg.HTTPTimeout,
			Logger:      &a.logger,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		rec := recorder.New(recorder.Options{Transactions: st.txs, Logger: &a.logger})
		opts.Gate = alert.NewGate(alert.GateOptions{Policy: a.policy(), Filter: filter, Logger: &a.logger})
		opts.Dispatcher = alert.NewDispatcher(alert.DispatcherOptions{Sender: sender, Marker: rec, Timeout: a.cfg.HTTPTimeout, Logger: &a.logger})
	}

	return admin.NewService(opts), cleanup, nil
}

func (a *app) policy() alert.Policy {
	p := alert.DefaultPolicy()
	p.AlertSells = a.cfg.AlertSells
	p.AlertAllWhenUnconfigured = a.cfg.AlertAllWhenUnconfigured
	return p
}
