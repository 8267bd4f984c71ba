package main

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"family-tasks/internal/config"
	"family-tasks/internal/export"
	"family-tasks/internal/repository"
	"family-tasks/internal/service"
	"family-tasks/internal/store"
)

// app is everything the subcommands share, built around one store.
type app struct {
	cfg         config.Config
	db          *gorm.DB
	store       *store.Store
	subscribers *repository.SubscriberRepository
	tasks       *service.TaskService
	family      *service.FamilyService
	digests     *service.DigestService
	exporter    *export.Exporter
}

// openDB is swapped in tests.
var openDB = repository.NewDB

func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	defer func() {
		if err != nil {
			closeDB(db)
		}
	}()

	members := repository.NewMemberRepository(db)
	if err := members.SeedDefaults(ctx); err != nil {
		return nil, fmt.Errorf("seed family: %w", err)
	}

	st := store.New()
	tasks := service.NewTaskService(st, repository.NewTaskRepository(db))
	n, err := tasks.Hydrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	log.Printf("[info] loaded %d task(s) from %s", n, cfg.DatabaseURL)

	if cfg.SeedDemo {
		added, err := tasks.SeedDemo(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed demo tasks: %w", err)
		}
		if added > 0 {
			log.Printf("[info] seeded %d demo task(s)", added)
		}
	}

	family := service.NewFamilyService(members, st)
	return &app{
		cfg:         cfg,
		db:          db,
		store:       st,
		subscribers: repository.NewSubscriberRepository(db),
		tasks:       tasks,
		family:      family,
		digests:     service.NewDigestService(st, family),
		exporter:    export.NewExporter(st, family),
	}, nil
}

func (a *app) Close() {
	closeDB(a.db)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
