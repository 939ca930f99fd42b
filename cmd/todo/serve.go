package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/k-iizuka000/ai-todo-sub002/internal/cache"
	"github.com/k-iizuka000/ai-todo-sub002/internal/config"
	"github.com/k-iizuka000/ai-todo-sub002/internal/events"
	"github.com/k-iizuka000/ai-todo-sub002/internal/integrity"
	"github.com/k-iizuka000/ai-todo-sub002/internal/live"
	"github.com/k-iizuka000/ai-todo-sub002/internal/prefs"
	"github.com/k-iizuka000/ai-todo-sub002/internal/store"
)

// snapshotInterval is how often dirty state is flushed to the local cache.
const snapshotInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine as a daemon",
	Long: `Run the sync engine in the foreground: load state from the backend,
start the integrity monitor and the live WebSocket feed, and keep the local
snapshot cache current until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		bootLogger := newLogger(config.DefaultConfig(), "[daemon] ")
		loader, err := loadConfig(bootLogger)
		if err != nil {
			fatalf("loading config: %v", err)
		}
		cfg := loader.Current()
		logger := newLogger(cfg, "[daemon] ")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e := newEngine(cfg, logger)
		defer e.close()

		if err := e.client.Health(ctx); err != nil {
			fatalf("backend health check: %v", err)
		}
		if err := e.load(ctx); err != nil {
			fatalf("initial load: %v", err)
		}
		logger.Printf("Loaded %d tasks, %d tags, %d projects from %s",
			e.tasks.Count(), len(e.tags.Tags()), len(e.projects.Projects()), cfg.APIBaseURL)

		// View preferences survive restarts independently of backend state.
		viewPrefs, err := prefs.Load(cfg.PrefsPath)
		if err != nil {
			logger.Printf("Preferences unreadable, using defaults: %v", err)
		}
		applyPrefs(e, viewPrefs)

		snapshot, err := cache.Open(cfg.CachePath)
		if err != nil {
			fatalf("opening snapshot cache: %v", err)
		}
		defer snapshot.Close()

		monitor := integrity.NewMonitor(integrity.Config{
			Tasks:    e.tasks,
			Bus:      e.bus,
			Interval: cfg.MonitorInterval,
			AutoFix:  cfg.AutoFix,
			Logger:   newLogger(cfg, "[monitor] "),
		})
		monitor.Start()
		defer monitor.Stop()

		feed := live.NewServer(live.Config{
			Addr:   cfg.LiveAddr,
			Bus:    e.bus,
			Logger: newLogger(cfg, "[live] "),
		})
		if err := feed.Start(); err != nil {
			fatalf("starting live feed: %v", err)
		}
		defer feed.Stop()

		// Runtime-safe settings apply on config file change; the rest need
		// a restart.
		loader.Watch(func(next config.Config) {
			monitor.SetAutoFix(next.AutoFix)
			if next.APIBaseURL != cfg.APIBaseURL || next.LiveAddr != cfg.LiveAddr {
				logger.Printf("api_base_url/live_addr changes take effect on restart")
			}
		})

		runSnapshotLoop(ctx, e, snapshot, logger)

		logger.Printf("Shutting down")
		savePrefs(e, cfg.PrefsPath, viewPrefs, logger)

		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := snapshot.SaveSnapshot(saveCtx, e.tasks.Tasks(), e.tags.Tags()); err != nil {
			logger.Printf("Final snapshot failed: %v", err)
		}
	},
}

// applyPrefs restores the persisted view state into the project store.
func applyPrefs(e *engine, p prefs.Prefs) {
	e.projects.SetViewMode(store.ViewMode(p.ViewMode))
	e.projects.SetFilter(store.ProjectFilter{
		IncludeArchived: p.IncludeArchived,
		NameQuery:       p.NameQuery,
	})
	if p.SelectedProject != "" {
		// A selection naming a project deleted since last run is dropped.
		_ = e.projects.SelectProject(p.SelectedProject)
	}
}

// savePrefs writes the current view state back to disk.
func savePrefs(e *engine, path string, p prefs.Prefs, logger *log.Logger) {
	p.ViewMode = string(e.projects.CurrentViewMode())
	filter := e.projects.Filter()
	p.IncludeArchived = filter.IncludeArchived
	p.NameQuery = filter.NameQuery
	p.SelectedProject = ""
	if selected, ok := e.projects.SelectedProject(); ok {
		p.SelectedProject = selected.ID
	}
	if err := prefs.Save(path, p); err != nil {
		logger.Printf("Saving preferences failed: %v", err)
	}
}

// runSnapshotLoop flushes the working copy to the cache whenever it has
// changed, at most once per interval. Returns when ctx is cancelled.
func runSnapshotLoop(ctx context.Context, e *engine, snapshot *cache.Store, logger *log.Logger) {
	dirty := make(chan struct{}, 1)
	markDirty := func(events.Event) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	unsubs := []func(){
		e.bus.Subscribe(events.TaskChanged, markDirty),
		e.bus.Subscribe(events.TagUpdated, markDirty),
		e.bus.Subscribe(events.TagDeleted, markDirty),
		e.bus.Subscribe(events.ProjectDeleted, markDirty),
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	// First flush happens immediately so a fresh daemon leaves a snapshot
	// behind even if nothing changes.
	pending := true
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dirty:
			pending = true
		case <-ticker.C:
			if !pending {
				continue
			}
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := snapshot.SaveSnapshot(saveCtx, e.tasks.Tasks(), e.tags.Tags())
			cancel()
			if err != nil {
				logger.Printf("Snapshot failed: %v", err)
				continue
			}
			pending = false
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
