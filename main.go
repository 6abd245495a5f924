// Command backend is the Agent Server Core entrypoint: it loads
// configuration, wires the event bus, the ingestion/classification/alert
// pipeline, the budget-gated ReAct loop, the action engine, and the push
// layer into a single root Application, then serves the REST/WebSocket
// surface until an interrupt signal requests graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/argus-core/backend/internal/action"
	"github.com/argus-core/backend/internal/alertengine"
	"github.com/argus-core/backend/internal/auth"
	"github.com/argus-core/backend/internal/budget"
	"github.com/argus-core/backend/internal/bus"
	"github.com/argus-core/backend/internal/classify"
	"github.com/argus-core/backend/internal/client"
	"github.com/argus-core/backend/internal/config"
	"github.com/argus-core/backend/internal/db"
	"github.com/argus-core/backend/internal/handler"
	"github.com/argus-core/backend/internal/ingest"
	"github.com/argus-core/backend/internal/investigation"
	"github.com/argus-core/backend/internal/llm"
	"github.com/argus-core/backend/internal/model"
	"github.com/argus-core/backend/internal/notify"
	"github.com/argus-core/backend/internal/push"
	"github.com/argus-core/backend/internal/react"
	"github.com/argus-core/backend/internal/settings"
	"github.com/argus-core/backend/internal/timeseries"
	"github.com/argus-core/backend/internal/tools"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[main] no .env file found, continuing with process environment")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("[main] failed to build application: %v", err)
	}

	engine := app.router(cfg)
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // /ws holds connections open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[main] argus-core listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] error during shutdown: %v", err)
	}
	log.Println("[main] stopped")
}

// application is the root object the design notes call for: every
// process-wide dependency is constructed once here and handed to its
// consumers explicitly, rather than reached for through a singleton.
type application struct {
	cfg         config.Config
	bus         *bus.Bus
	store       *db.Postgres
	timeseries  *timeseries.Store
	classifier  *classify.Classifier
	budgetMgr   *budget.Manager
	hub         *push.Hub
	actions     *action.Engine
	registry    *tools.Registry
	loop        *react.Loop
	orchestrator *investigation.Orchestrator
	alertEngine *alertengine.Engine
	ingestSvc   *ingest.Service
	authSvc     *auth.AuthService
	settingsSvc *settings.Store
	webhookSvc  *notify.ConfigService
	startedAt   time.Time

	sessionMu    sync.Mutex
	sessionRuns  map[string]map[string]struct{} // connID -> set of runID
}

func buildApplication(ctx context.Context, cfg config.Config) (*application, error) {
	pool, err := db.NewPostgresPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store := db.New(pool)
	tsStore := timeseries.New(pool)

	for _, ensure := range []func(context.Context) error{
		store.EnsureRuleSchema,
		store.EnsureAlertSchema,
		store.EnsureInvestigationSchema,
		store.EnsureAuditSchema,
		store.EnsureWebhookSchema,
		store.EnsureAuthSchema,
		tsStore.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	if err := store.EnsureSimilarityIndex(ctx); err != nil {
		log.Printf("[main] similarity index unavailable, similar-incident search disabled: %v", err)
	}

	eventBus := bus.New()
	classifier := classify.New()

	budgetMgr := budget.New(eventBus, cfg.Budget.HourlyLimit, cfg.Budget.DailyLimit)
	go budgetMgr.Run(ctx)

	go runRetentionSweep(ctx, tsStore, cfg.Retention)

	hub := push.NewHub()
	actionsEngine := action.New(eventBus, hub, store)

	var embeddings *client.EmbeddingClient
	if embeddings, err = client.NewEmbeddingClient(cfg.Embedding); err != nil {
		log.Printf("[main] embedding client unavailable, similar-incident search disabled: %v", err)
		embeddings = nil
	}

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, tsStore, actionsEngine)
	tools.RegisterSimilaritySearch(registry, similarIncidentSearcher(store, embeddings))

	provider, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("construct llm provider: %w", err)
	}
	loop := react.New(provider, registry, budgetMgr, hub, similarityLookup(store, embeddings))

	orchestrator := investigation.New(loop, store, embeddings)

	slackClient := client.NewSlackClient()
	notifier := notify.New(store, slackClient)

	alertEng := alertengine.New(store, eventBus, budgetMgr, orchestrator, notifier)
	if err := alertEng.LoadRules(ctx); err != nil {
		return nil, fmt.Errorf("load alert rules: %w", err)
	}
	if err := seedDefaultRules(ctx, store, alertEng); err != nil {
		return nil, fmt.Errorf("seed default alert rules: %w", err)
	}
	alertEng.Subscribe()

	// Bridges telemetry.raw -> events.classified. The classifier itself is a
	// pure function; this subscription is the only place severity gets
	// assigned to a published Event, per spec.md §4.4/§4.5.
	eventBus.Subscribe(bus.TopicTelemetryRaw, func(msg bus.Message) {
		ev, ok := msg.Payload.(model.Event)
		if !ok {
			return
		}
		ev.Severity = classifier.Classify(ev)
		eventBus.Publish(bus.TopicEventsClassified, ev)
	})

	// Every bus topic that is client-visible per spec.md §6 fans out to every
	// push connection; the bus is the only place these three topics meet the
	// push layer, so alertengine/budget never need to know push exists.
	eventBus.Subscribe(bus.TopicAlertsFired, func(msg bus.Message) {
		hub.Broadcast(model.MsgAlert, msg.Payload)
	})
	eventBus.Subscribe(bus.TopicAlertsState, func(msg bus.Message) {
		hub.Broadcast(model.MsgAlertStateChange, msg.Payload)
	})
	eventBus.Subscribe(bus.TopicBudgetUpdate, func(msg bus.Message) {
		hub.Broadcast(model.MsgBudgetUpdate, msg.Payload)
	})

	ingestSvc := ingest.New(tsStore, eventBus, cfg.Ingest.APIKey)

	authSvc, err := auth.NewAuthService(store, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("construct auth service: %w", err)
	}
	if err := authSvc.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure auth schema: %w", err)
	}
	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			log.Printf("[main] failed to seed admin user: %v", err)
		}
	}

	settingsSvc := settings.New(map[string]string{
		"llm.provider":                 cfg.LLM.Provider,
		"llm.model":                    cfg.LLM.Model,
		"budget.hourly_limit":          strconv.FormatInt(cfg.Budget.HourlyLimit, 10),
		"budget.daily_limit":           strconv.FormatInt(cfg.Budget.DailyLimit, 10),
		"collectors.metrics_interval_s": strconv.Itoa(cfg.Collectors.MetricsIntervalSeconds),
		"public_url":                   cfg.PublicURL,
	})

	webhookSvc := notify.NewConfigService(store)

	app := &application{
		cfg:          cfg,
		bus:          eventBus,
		store:        store,
		timeseries:   tsStore,
		classifier:   classifier,
		budgetMgr:    budgetMgr,
		hub:          hub,
		actions:      actionsEngine,
		registry:     registry,
		loop:         loop,
		orchestrator: orchestrator,
		alertEngine:  alertEng,
		ingestSvc:    ingestSvc,
		authSvc:      authSvc,
		settingsSvc:  settingsSvc,
		webhookSvc:   webhookSvc,
		startedAt:    time.Now(),
		sessionRuns:  make(map[string]map[string]struct{}),
	}
	app.wirePush()
	return app, nil
}

// defaultRuleSeeds mirrors internal/classify's thresholds: one rule per
// signal family, covering the spec's seed-test scenarios (CPU dedup, log
// burst, security finding, SDK exception).
func defaultRuleSeeds() []model.AlertRule {
	now := time.Now()
	return []model.AlertRule{
		{
			ID: "cpu_critical", Name: "CPU critical",
			Kinds: []model.EventKind{model.EventKindMetric}, MinSeverity: model.SeverityNotable,
			Cooldown: 5 * time.Minute, AutoInvestigate: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "memory_critical", Name: "Memory critical",
			Kinds: []model.EventKind{model.EventKindMetric}, MinSeverity: model.SeverityNotable,
			Cooldown: 5 * time.Minute, AutoInvestigate: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "log_error_burst", Name: "Log error burst",
			Kinds: []model.EventKind{model.EventKindLog}, MinSeverity: model.SeverityNotable,
			Cooldown: 2 * time.Minute, AutoInvestigate: true,
			FlapSuppression: true, FlapWindow: time.Minute, FlapThreshold: 20,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "security_finding", Name: "Security finding",
			Kinds: []model.EventKind{model.EventKindSecurity}, MinSeverity: model.SeverityNotable,
			Cooldown: 10 * time.Minute, AutoInvestigate: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "sdk_exception", Name: "SDK exception",
			Kinds: []model.EventKind{model.EventKindSDK}, MinSeverity: model.SeverityNotable,
			Cooldown: 5 * time.Minute, AutoInvestigate: false, CreatedAt: now, UpdatedAt: now,
		},
	}
}

// seedDefaultRules installs the catalog's starter rule set on first start
// only, per spec.md §3's AlertRule lifecycle ("seeded at first start").
func seedDefaultRules(ctx context.Context, store *db.Postgres, eng *alertengine.Engine) error {
	if len(eng.Rules()) > 0 {
		return nil
	}
	for _, rule := range defaultRuleSeeds() {
		if err := store.UpsertRule(ctx, rule); err != nil {
			return err
		}
	}
	return eng.LoadRules(ctx)
}

// similarityLookup adapts the store's pgvector search into the closure
// react.Loop calls to enrich an investigation's closing payload. Returns nil
// (disabling enrichment) if no embedding client is configured.
func similarityLookup(store *db.Postgres, embeddings *client.EmbeddingClient) react.SimilarityLookup {
	if embeddings == nil {
		return nil
	}
	return func(ctx context.Context, summary string, limit int) []model.SimilarIncident {
		vec, _, err := embeddings.EmbedText(ctx, summary)
		if err != nil {
			return nil
		}
		incidents, err := store.NearestSimilar(ctx, vec, limit)
		if err != nil {
			return nil
		}
		return incidents
	}
}

// similarIncidentSearcher adapts the same pgvector search into the
// find_similar_incidents tool, so the model can pull precedent into context
// mid-run instead of only receiving it once the investigation ends.
func similarIncidentSearcher(store *db.Postgres, embeddings *client.EmbeddingClient) tools.SimilarIncidentSearcher {
	if embeddings == nil {
		return nil
	}
	return func(ctx context.Context, text string, limit int) ([]model.SimilarIncident, error) {
		vec, _, err := embeddings.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		return store.NearestSimilar(ctx, vec, limit)
	}
}

// runRetentionSweep purges rows older than cfg.Period from every timeseries
// table on a cfg.Interval tick, until ctx is cancelled. Runs once immediately
// on startup so a long-stopped instance doesn't wait a full interval before
// its first sweep.
func runRetentionSweep(ctx context.Context, tsStore *timeseries.Store, cfg config.RetentionConfig) {
	sweep := func() {
		deleted, err := tsStore.Purge(ctx, cfg.Period)
		if err != nil {
			log.Printf("[main] retention sweep failed: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("[main] retention sweep purged %d rows older than %s", deleted, cfg.Period)
		}
	}
	sweep()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// wirePush connects the push hub's inbound client message callbacks to the
// rest of the application: user chat messages start a session-scoped
// ReActRun, action responses gate the action engine, cancel requests stop a
// run in place, and disconnects tear down any runs that session started.
func (a *application) wirePush() {
	a.hub.OnActionResponse = func(resp model.ActionResponse) {
		if err := a.actions.Approve(resp); err != nil {
			log.Printf("[main] action approval failed for action_id=%s: %v", resp.ActionID, err)
		}
	}

	a.hub.OnCancel = func(connID, runID string) {
		a.loop.Cancel(runID)
	}

	a.hub.OnUserMessage = func(connID, text string) {
		run := &model.ReActRun{
			ID:         uuid.NewString(),
			Initiator:  model.InitiatorUserChat,
			Priority:   model.PriorityRoutine,
			SessionID:  connID,
			StartedAt:  time.Now(),
			Messages:   []model.Turn{{Role: model.RoleUser, Content: text, At: time.Now()}},
		}
		a.trackRun(connID, run.ID)
		go func() {
			defer a.untrackRun(connID, run.ID)
			a.loop.Run(context.Background(), run, chatSystemPrompt)
		}()
	}

	a.hub.OnDisconnect = func(connID string) {
		a.cancelSessionRuns(connID)
	}
}

const chatSystemPrompt = "You are the on-call assistant for an observability platform. " +
	"Investigate using the available tools before answering, and prefer precise, verifiable claims."

func (a *application) trackRun(connID, runID string) {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	runs, ok := a.sessionRuns[connID]
	if !ok {
		runs = make(map[string]struct{})
		a.sessionRuns[connID] = runs
	}
	runs[runID] = struct{}{}
}

func (a *application) untrackRun(connID, runID string) {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	if runs, ok := a.sessionRuns[connID]; ok {
		delete(runs, runID)
		if len(runs) == 0 {
			delete(a.sessionRuns, connID)
		}
	}
}

func (a *application) cancelSessionRuns(connID string) {
	a.sessionMu.Lock()
	runs := a.sessionRuns[connID]
	delete(a.sessionRuns, connID)
	a.sessionMu.Unlock()
	for runID := range runs {
		a.loop.Cancel(runID)
	}
}

func (a *application) router(cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/ping", handler.Ping)
	r.GET("/", handler.Root)
	r.GET("/ws", handler.NewWSHandler(a.hub).Serve)
	r.POST("/ingest", handler.NewIngestHandler(a.ingestSvc).Ingest)

	alertsH := handler.NewAlertsHandler(a.alertEngine)
	rulesH := handler.NewRulesHandler(a.alertEngine)
	invH := handler.NewInvestigationsHandler(a.store)
	budgetH := handler.NewBudgetHandler(a.budgetMgr)
	logsH := handler.NewLogsHandler(a.timeseries)
	securityH := handler.NewSecurityHandler(a.store)
	statusH := handler.NewStatusHandler(a.store, a.budgetMgr, a.bus, a.startedAt)
	settingsH := handler.NewSettingsHandler(a.settingsSvc)
	webhookH := handler.NewWebhookSettingsHandler(a.webhookSvc)
	authH := handler.NewAuthHandler(a.authSvc)

	// Every operator-facing alert/rule/investigation/budget/logs/security/
	// status/settings route requires a valid operator session: acknowledge
	// and resolve attribute the acting operator to the audit log from the
	// JWT identity, never from the request body, so this group is not
	// optional for the mutating routes and is applied uniformly to the
	// read-only ones alongside it for the same operator-session boundary.
	operator := r.Group("/", handler.AuthMiddleware(a.authSvc))
	operator.GET("/alerts", alertsH.List)
	operator.POST("/alerts/:id/acknowledge", alertsH.Acknowledge)
	operator.POST("/alerts/:id/resolve", alertsH.Resolve)
	operator.GET("/rules", rulesH.List)
	operator.POST("/rules/:id/mute", rulesH.Mute)
	operator.POST("/rules/:id/unmute", rulesH.Unmute)
	operator.GET("/investigations", invH.List)
	operator.GET("/budget", budgetH.Get)
	operator.GET("/logs", logsH.List)
	operator.GET("/security", securityH.Get)
	operator.GET("/audit", securityH.Audit)
	operator.GET("/status", statusH.Get)
	operator.GET("/settings", settingsH.Get)
	operator.PUT("/settings", settingsH.Put)

	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/refresh", authH.Refresh)
		authGroup.POST("/logout", authH.Logout)
		authGroup.GET("/config", authH.Config)
		authGroup.GET("/me", handler.AuthMiddleware(a.authSvc), authH.Me)
	}

	settingsGroup := r.Group("/api/v1/settings", handler.AuthMiddleware(a.authSvc))
	{
		settingsGroup.GET("/webhooks", webhookH.ListWebhookConfigs)
		settingsGroup.GET("/webhooks/:id", webhookH.GetWebhookConfig)
		settingsGroup.POST("/webhooks", webhookH.CreateWebhookConfig)
		settingsGroup.PUT("/webhooks/:id", webhookH.UpdateWebhookConfig)
		settingsGroup.DELETE("/webhooks/:id", webhookH.DeleteWebhookConfig)
	}

	return r
}
