package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/daybook/internal/backup"
	"github.com/dukerupert/daybook/internal/middleware"
	"github.com/dukerupert/daybook/internal/planner"
	"github.com/dukerupert/daybook/internal/store"
)

// SettingsHandler covers the settings map, the optional PIN lock, and manual
// backups.
type SettingsHandler struct {
	settings *store.SettingsStore
	backups  *store.BackupStore
	manager  *backup.Manager
	planner  *planner.Service
	locker   *middleware.Locker
	logger   *slog.Logger
}

func NewSettingsHandler(settings *store.SettingsStore, backups *store.BackupStore, manager *backup.Manager, plannerSvc *planner.Service, locker *middleware.Locker, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		backups:  backups,
		manager:  manager,
		planner:  plannerSvc,
		locker:   locker,
		logger:   logger,
	}
}

// PINConfigured reports whether a lock PIN is set. The lock middleware
// consults this per request.
func (h *SettingsHandler) PINConfigured() (bool, error) {
	hash, err := h.settings.Get(store.SettingLockPINHash)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

// Get handles GET /api/settings. The PIN hash never leaves the server; only
// whether a PIN is set is reported.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.GetAll()
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}

	_, pinSet := all[store.SettingLockPINHash]
	delete(all, store.SettingLockPINHash)

	writeJSON(w, http.StatusOK, map[string]any{
		"settings": all,
		"pin_set":  pinSet,
	})
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN handles POST /api/settings/pin
func (h *SettingsHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.PIN) < 4 || len(req.PIN) > 8 || !isDigits(req.PIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be 4-8 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash PIN", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}
	if err := h.settings.Set(store.SettingLockPINHash, string(hash)); err != nil {
		h.logger.Error("store PIN hash", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to set PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

// ClearPIN handles DELETE /api/settings/pin
func (h *SettingsHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Delete(store.SettingLockPINHash); err != nil {
		h.logger.Error("clear PIN", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /api/unlock. A correct PIN mints an unlock token
// delivered as a cookie.
func (h *SettingsHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.settings.Get(store.SettingLockPINHash)
	if err != nil {
		h.logger.Error("get PIN hash", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to verify PIN"})
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no PIN configured"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	token := h.locker.Issue()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.UnlockCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

// Lock handles POST /api/lock, revoking this client's unlock token.
func (h *SettingsHandler) Lock(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.UnlockCookieName); err == nil {
		h.locker.Revoke(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.UnlockCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

// BackupNow handles POST /api/backups
func (h *SettingsHandler) BackupNow(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	rec, err := h.backups.GetByID(id)
	if err != nil || rec == nil {
		writeJSON(w, http.StatusOK, map[string]int64{"id": id})
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// RestoreBackup handles POST /api/backups/restore. Day files and templates
// come back from the archive; the override cache is rebuilt on the next write.
func (h *SettingsHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}

	if err := h.manager.Restore(r.Context(), req.Filename); err != nil {
		h.logger.Error("restore backup", "filename", req.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if h.planner != nil {
		h.planner.Forget()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// ListBackups handles GET /api/backups
func (h *SettingsHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if backups == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// BackupStatus handles GET /api/backups/status
func (h *SettingsHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}
