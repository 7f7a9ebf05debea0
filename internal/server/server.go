package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/daybook/internal/backup"
	"github.com/dukerupert/daybook/internal/config"
	"github.com/dukerupert/daybook/internal/handler"
	"github.com/dukerupert/daybook/internal/middleware"
	"github.com/dukerupert/daybook/internal/planner"
	"github.com/dukerupert/daybook/internal/push"
	"github.com/dukerupert/daybook/internal/store"
	ws "github.com/dukerupert/daybook/internal/websocket"
)

const unlockTTL = 12 * time.Hour

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	dayH        *handler.DayHandler
	templateH   *handler.TemplateHandler
	settingsH   *handler.SettingsHandler
	pushH       *handler.PushHandler
	writer      *store.Writer
	locker      *middleware.Locker
	rateLimiter *middleware.RateLimiter
	backupMgr   *backup.Manager
	pushSched   *push.Scheduler
	logger      *slog.Logger
}

// New wires the stores, planner, and handlers together. The caller owns the
// database handle; everything else is constructed here.
func New(cfg config.Config, db *sql.DB, files *store.FileStore, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	overrideCache := store.NewOverrideCacheStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	writer := store.NewWriter(files, overrideCache, cfg.WriteDebounce(), logger)
	plannerSvc := planner.NewService(files, overrideCache, writer, logger.With("component", "planner"))

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.S3Bucket,
			Region:    cfg.Backup.S3Region,
			Prefix:    cfg.Backup.S3Prefix,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		DataDir:  cfg.DataDir,
		LocalDir: cfg.Backup.Dir,
		KeepDays: cfg.Backup.KeepDays,
	}, db, backupStore, settingsStore, logger)

	locker := middleware.NewLocker(unlockTTL)

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.Push.Enabled && cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
		pushSched = push.NewScheduler(pushSvc, pushStore, plannerSvc, files, cfg.ReminderLead(), logger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	settingsH := handler.NewSettingsHandler(settingsStore, backupStore, backupMgr, plannerSvc, locker, logger.With("component", "settings"))

	return &Server{
		db:          db,
		hub:         hub,
		dayH:        handler.NewDayHandler(plannerSvc, files, hub, logger.With("component", "day")),
		templateH:   handler.NewTemplateHandler(files, hub, logger.With("component", "template")),
		settingsH:   settingsH,
		pushH:       pushH,
		writer:      writer,
		locker:      locker,
		rateLimiter: middleware.NewRateLimiter(),
		backupMgr:   backupMgr,
		pushSched:   pushSched,
		logger:      logger,
	}, nil
}

// Writer returns the debounced writer so shutdown can flush it.
func (s *Server) Writer() *store.Writer {
	return s.writer
}

// BackupManager returns the backup manager for scheduling.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// PushScheduler returns the reminder scheduler, or nil when push is disabled.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushSched
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Routes available while locked
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/unlock", s.rateLimitedHandler(s.settingsH.Unlock))
	outerMux.Handle("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	// Everything else sits behind the optional PIN lock
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	lock := middleware.RequireUnlocked(s.locker, s.settingsH.PINConfigured)
	outerMux.Handle("/", lock(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Day views
	mux.HandleFunc("GET /api/days/{day}", s.dayH.Get)
	mux.HandleFunc("GET /api/days/{day}/week", s.dayH.Week)

	// One-off activities
	mux.HandleFunc("POST /api/days/{day}/activities", s.dayH.CreateActivity)
	mux.HandleFunc("PUT /api/days/{day}/activities/{id}", s.dayH.UpdateActivity)
	mux.HandleFunc("DELETE /api/days/{day}/activities/{id}", s.dayH.DeleteActivity)
	mux.HandleFunc("POST /api/days/{day}/activities/{id}/toggle", s.dayH.ToggleActivity)
	mux.HandleFunc("POST /api/days/{day}/activities/{id}/items", s.dayH.AddActivityItem)
	mux.HandleFunc("POST /api/days/{day}/activities/{id}/items/{index}/toggle", s.dayH.ToggleActivityItem)
	mux.HandleFunc("DELETE /api/days/{day}/activities/{id}/items/{index}", s.dayH.DeleteActivityItem)

	// Recurring instances (per-day override state)
	mux.HandleFunc("POST /api/days/{day}/recurring/{templateId}/toggle", s.dayH.ToggleInstance)
	mux.HandleFunc("POST /api/days/{day}/recurring/{templateId}/items/toggle", s.dayH.ToggleInstanceItem)
	mux.HandleFunc("POST /api/days/{day}/recurring/{templateId}/items", s.dayH.AddInstanceItem)
	mux.HandleFunc("POST /api/days/{day}/recurring/{templateId}/adhoc/{index}/toggle", s.dayH.ToggleAdHocItem)
	mux.HandleFunc("DELETE /api/days/{day}/recurring/{templateId}/adhoc/{index}", s.dayH.DeleteAdHocItem)

	// Recurring templates
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.HandleFunc("POST /api/templates", s.templateH.Create)
	mux.HandleFunc("PUT /api/templates/{id}", s.templateH.Update)
	mux.HandleFunc("DELETE /api/templates/{id}", s.templateH.Delete)

	// Settings, lock, backups
	mux.HandleFunc("GET /api/settings", s.settingsH.Get)
	mux.HandleFunc("POST /api/settings/pin", s.settingsH.SetPIN)
	mux.HandleFunc("DELETE /api/settings/pin", s.settingsH.ClearPIN)
	mux.HandleFunc("POST /api/lock", s.settingsH.Lock)
	mux.HandleFunc("POST /api/backups", s.settingsH.BackupNow)
	mux.HandleFunc("GET /api/backups", s.settingsH.ListBackups)
	mux.HandleFunc("GET /api/backups/status", s.settingsH.BackupStatus)
	mux.HandleFunc("POST /api/backups/restore", s.settingsH.RestoreBackup)

	// Push subscriptions (only when configured)
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}
}
