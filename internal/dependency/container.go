// Package dependency wires the lessonmate services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/dig"

	"github.com/lessonmate/lessonmate/internal/agents"
	"github.com/lessonmate/lessonmate/internal/bus"
	"github.com/lessonmate/lessonmate/internal/calendar"
	"github.com/lessonmate/lessonmate/internal/channels"
	"github.com/lessonmate/lessonmate/internal/config"
	"github.com/lessonmate/lessonmate/internal/gateway"
	"github.com/lessonmate/lessonmate/internal/ledger"
	"github.com/lessonmate/lessonmate/internal/mcp"
	"github.com/lessonmate/lessonmate/internal/providers"
	"github.com/lessonmate/lessonmate/internal/router"
	"github.com/lessonmate/lessonmate/internal/scheduler"
	"github.com/lessonmate/lessonmate/internal/schema"
	"github.com/lessonmate/lessonmate/internal/session"
	"github.com/lessonmate/lessonmate/internal/tools"
)

// Container holds the resolved service singletons. Callers use the typed
// getters; they never need to import dig directly.
type Container struct {
	provider  schema.LLMProvider
	router    *router.Router
	gateway   *gateway.Server
	channels  *channels.Manager
	scheduler *scheduler.Scheduler
	bridges   []*mcp.Bridge
}

func (c *Container) Provider() schema.LLMProvider    { return c.provider }
func (c *Container) Router() *router.Router          { return c.router }
func (c *Container) Gateway() *gateway.Server        { return c.gateway }
func (c *Container) Channels() *channels.Manager     { return c.channels }
func (c *Container) Scheduler() *scheduler.Scheduler { return c.scheduler }

// Bridges returns every tool bridge so the caller can stop them on shutdown.
func (c *Container) Bridges() []*mcp.Bridge { return c.bridges }

// Named bridge wrappers so dig can tell the three providers apart.
type (
	StockBridge    struct{ *mcp.Bridge }
	ScheduleBridge struct{ *mcp.Bridge }
	WorkBridge     struct{ *mcp.Bridge }
)

// New builds and wires all services from cfg. ctx is used for provider
// client construction only; it does not bound the services' lifetime.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		func(cfg *config.Config) (schema.LLMProvider, error) {
			return providers.New(ctx, cfg.LLM)
		},
		newSessionManager,
		newExchangeLog,
		newCalendarStore,
		newLedgerStore,
		func() calendar.Pricing { return calendar.DefaultPricing() },
		newStockBridge,
		newScheduleBridge,
		newWorkBridge,
		newSyncTool,
		newAgentRegistry,
		func() *bus.Broadcaster { return bus.NewBroadcaster(64) },
		newClassifier,
		newRouter,
		newGateway,
		newChannelManager,
		newScheduler,
	}
	for _, ctor := range constructors {
		if err := d.Provide(ctor); err != nil {
			return nil, fmt.Errorf("wire services: %w", err)
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		rt *router.Router,
		gw *gateway.Server,
		chans *channels.Manager,
		sched *scheduler.Scheduler,
		stock StockBridge,
		schedule ScheduleBridge,
		work WorkBridge,
	) {
		result = &Container{
			provider:  provider,
			router:    rt,
			gateway:   gw,
			channels:  chans,
			scheduler: sched,
			bridges:   []*mcp.Bridge{stock.Bridge, schedule.Bridge, work.Bridge},
		}
	})
	return result, err
}

func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(cfg.WorkspacePath())
}

func newExchangeLog(cfg *config.Config) *session.ExchangeLog {
	return session.NewExchangeLog(cfg.WorkspacePath())
}

func newCalendarStore(cfg *config.Config) (*calendar.Store, error) {
	return calendar.NewStore(cfg.CalendarPath())
}

func newLedgerStore(cfg *config.Config) (*ledger.Store, error) {
	return ledger.NewStore(cfg.LedgerPath())
}

func invokeTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Tools.InvokeTimeoutSeconds) * time.Second
}

func bridgeConfig(pc config.ToolProviderConfig) mcp.ProviderConfig {
	return mcp.ProviderConfig{Command: pc.Command, Args: pc.Args, Env: pc.Env}
}

func newStockBridge(cfg *config.Config) StockBridge {
	return StockBridge{mcp.NewBridge("stock", bridgeConfig(cfg.Tools.Stock), invokeTimeout(cfg))}
}

func newScheduleBridge(cfg *config.Config) ScheduleBridge {
	return ScheduleBridge{mcp.NewBridge("schedule", bridgeConfig(cfg.Tools.Schedule), invokeTimeout(cfg))}
}

func newWorkBridge(cfg *config.Config) WorkBridge {
	return WorkBridge{mcp.NewBridge("work", bridgeConfig(cfg.Tools.Work), invokeTimeout(cfg))}
}

func newSyncTool(cfg *config.Config, cal *calendar.Store, led *ledger.Store, pricing calendar.Pricing) *tools.SyncLedgerTool {
	return tools.NewSyncLedgerTool(cal, led, pricing, cfg.Sync.LookbackDays)
}

func agentSettings(cfg *config.Config) schema.AgentSettings {
	return schema.NewAgentSettings(
		cfg.LLM.Model,
		cfg.Agents.MaxToolIter,
		cfg.Agents.Temperature,
		cfg.Agents.MaxTokens,
		cfg.Agents.MemoryWindow,
	)
}

// newAgentRegistry builds all four agents. The work agent gets a cross-agent
// invoker that may only reach the schedule agent.
func newAgentRegistry(
	cfg *config.Config,
	provider schema.LLMProvider,
	sessions *session.Manager,
	stock StockBridge,
	schedule ScheduleBridge,
	work WorkBridge,
	syncTool *tools.SyncLedgerTool,
) *agents.Registry {
	settings := agentSettings(cfg)
	registry := agents.NewRegistry()
	invoker := agents.NewInvoker(registry, schema.CategorySchedule)

	registry.Add(agents.NewKnowledgeAgent(provider, settings, sessions))
	registry.Add(agents.NewStockAgent(provider, settings, sessions, stock.Bridge))
	registry.Add(agents.NewScheduleAgent(provider, settings, sessions, schedule.Bridge))
	registry.Add(agents.NewWorkAgent(provider, settings, sessions, work.Bridge, invoker, syncTool))
	return registry
}

func newClassifier(cfg *config.Config, provider schema.LLMProvider, log *session.ExchangeLog, sessions *session.Manager) *router.Classifier {
	return router.NewClassifier(provider, cfg.LLM.Model, log, sessions)
}

func newRouter(classifier *router.Classifier, registry *agents.Registry, broadcaster *bus.Broadcaster, log *session.ExchangeLog) *router.Router {
	return router.New(classifier, registry, broadcaster, log)
}

func newGateway(cfg *config.Config, rt *router.Router, broadcaster *bus.Broadcaster) *gateway.Server {
	return gateway.New(rt, broadcaster, cfg.Gateway.Port)
}

func newChannelManager(cfg *config.Config, rt *router.Router) *channels.Manager {
	return channels.NewManager(cfg, rt)
}

// newScheduler registers the nightly ledger sync when enabled. Cron specs
// are evaluated in the calendar's timezone.
func newScheduler(cfg *config.Config, cal *calendar.Store, syncTool *tools.SyncLedgerTool) (*scheduler.Scheduler, error) {
	s := scheduler.New(cal.Location())
	if cfg.Sync.Enabled {
		err := s.AddJob("ledger-sync", cfg.Sync.Cron, func(ctx context.Context) error {
			added, scanned, err := syncTool.Sync(ctx, cfg.Sync.LookbackDays)
			if err != nil {
				return err
			}
			if added > 0 {
				slog.Info("ledger sync recorded new lessons", "added", added, "scanned", scanned)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}
