package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"inboxd/pkg/auth"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterInbox registers the per-user inbox settings routes.
func RegisterInbox(r *mux.Router) {
	r.HandleFunc("/inbox/settings", getInboxSettings).Methods(http.MethodGet)
	r.HandleFunc("/inbox/settings", putInboxSettings).Methods(http.MethodPut)
}

// getInboxSettings returns the actor's out-of-office settings. A user with
// no stored record gets the zero settings.
func getInboxSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	actor, status, msg := auth.ResolveActorFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	settings, err := store.GetInboxSettings(actor)
	if err != nil {
		settings = models.InboxSettings{UserID: actor}
	}
	utils.JSONWrite(w, http.StatusOK, settings)
}

// putInboxSettings replaces the actor's out-of-office settings. Changing any
// hashed field makes every (author, actor) pair eligible for one new
// auto-reply on the next trigger.
func putInboxSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	actor, status, msg := auth.ResolveActorFromRequest(r, "")
	if status != 0 {
		utils.JSONError(w, status, msg)
		return
	}
	var settings models.InboxSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	settings.UserID = actor
	settings.UpdatedTS = time.Now().UTC().UnixNano()
	if settings.FirstDate != 0 && settings.LastDate != 0 && settings.LastDate < settings.FirstDate {
		utils.JSONError(w, http.StatusBadRequest, "last_date before first_date")
		return
	}
	if err := store.SaveInboxSettings(settings); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("inbox_settings_updated", "user", actor, "ooo_enabled", settings.OutOfOfficeEnabled,
		"settings_hash", dispatch.SettingsHash(settings))
	utils.JSONWrite(w, http.StatusOK, settings)
}
