package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/k-iizuka000/ai-todo-sub002/internal/api"
	"github.com/k-iizuka000/ai-todo-sub002/internal/config"
	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/store"
)

// engine bundles the REST client, the event bus, and the four stores.
// One-shot commands build it, load state, run, and tear it down; the serve
// command keeps it alive.
type engine struct {
	cfg      config.Config
	client   *api.Client
	bus      *events.Bus
	tasks    *store.TaskStore
	tags     *store.TagStore
	projects *store.ProjectStore
	schedule *store.ScheduleStore
}

// newEngine wires the stores against the configured backend. The stores
// start empty; call load to pull state.
func newEngine(cfg config.Config, logger *log.Logger) *engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	client := api.New(&api.Config{
		BaseURL:       cfg.APIBaseURL,
		HealthTimeout: cfg.HealthTimeout,
		Logger:        logger,
	})

	bus := events.NewBus()
	tasks := store.NewTaskStore(store.TaskStoreConfig{
		API:    client,
		Bus:    bus,
		Actor:  cfg.Actor,
		Logger: logger,
	})
	tags := store.NewTagStore(store.TagStoreConfig{
		API:    client,
		Bus:    bus,
		Tasks:  tasks,
		Logger: logger,
	})
	projects := store.NewProjectStore(store.ProjectStoreConfig{
		API:    client,
		Bus:    bus,
		Tasks:  tasks,
		Logger: logger,
	})
	schedule := store.NewScheduleStore(store.ScheduleStoreConfig{
		Tasks:  tasks,
		Bus:    bus,
		Logger: logger,
	})

	return &engine{
		cfg:      cfg,
		client:   client,
		bus:      bus,
		tasks:    tasks,
		tags:     tags,
		projects: projects,
		schedule: schedule,
	}
}

// load pulls tasks, tags, and projects from the backend.
func (e *engine) load(ctx context.Context) error {
	if err := e.tasks.Load(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	if err := e.tags.Load(ctx); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	if err := e.projects.Load(ctx); err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	return nil
}

// close tears the stores down. Idempotent.
func (e *engine) close() {
	e.tasks.Close()
	e.tags.Close()
	e.projects.Close()
}

// startEngine is the shared preamble for one-shot commands: config, client,
// stores, initial load.
func startEngine(ctx context.Context) (*engine, error) {
	loader, err := loadConfig(log.New(io.Discard, "", 0))
	if err != nil {
		return nil, err
	}
	cfg := loader.Current()

	e := newEngine(cfg, log.New(io.Discard, "", 0))
	if err := e.load(ctx); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}
