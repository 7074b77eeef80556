package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"inboxd/pkg/dispatch"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/store"
	"inboxd/pkg/utils"

	"github.com/gorilla/mux"
)

var responder *dispatch.Responder

// RegisterAdmin registers admin-only routes onto the admin subrouter.
func RegisterAdmin(r *mux.Router, resp *dispatch.Responder) {
	responder = resp
	r.HandleFunc("/health", adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", adminStats).Methods(http.MethodGet)
	r.HandleFunc("/keys", adminListKeys).Methods(http.MethodGet)
	r.HandleFunc("/keys/{key}", adminGetKey).Methods(http.MethodGet)
	r.HandleFunc("/directory/users", adminLoadUsers).Methods(http.MethodPost)
	r.HandleFunc("/directory/courses", adminLoadCourses).Methods(http.MethodPost)
	r.HandleFunc("/directory/groups", adminLoadGroups).Methods(http.MethodPost)
	r.HandleFunc("/directory/accounts", adminLoadAccounts).Methods(http.MethodPost)
	r.HandleFunc("/autoreply/sweep", adminAutoReplySweep).Methods(http.MethodPost)
	logger.Info("admin_routes_registered")
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get("X-Role-Name") == "admin"
}

// isOperator allows directory maintenance from trusted backend services as
// well as admin keys.
func isOperator(r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	return role == "admin" || role == "backend"
}

func adminHealth(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"inboxd"}`))
}

func adminStats(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	convs, _ := store.ListConversations("")
	var msgCount int64
	for _, c := range convs {
		msgCount += int64(c.MessageCount)
	}
	pm := store.GetPebbleMetrics()
	out := struct {
		Conversations int    `json:"conversations"`
		Messages      int64  `json:"messages"`
		StorageBytes  uint64 `json:"storage_bytes"`
		L0Files       int    `json:"l0_files"`
	}{Conversations: len(convs), Messages: msgCount, StorageBytes: pm.WALBytes, L0Files: pm.L0Files}
	_ = json.NewEncoder(w).Encode(out)
}

// adminListKeys lists keys in the underlying store. Optional query param
// `prefix` can be provided to limit keys by prefix.
func adminListKeys(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	prefix := r.URL.Query().Get("prefix")
	keys, err := store.ListKeys(prefix)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(struct {
		Keys []string `json:"keys"`
	}{Keys: keys})
}

// adminGetKey returns the raw value for a given key. The key path variable
// is URL-unescaped before lookup.
func adminGetKey(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	keyEnc, ok := mux.Vars(r)["key"]
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "missing key")
		return
	}
	// URL path variables are not automatically unescaped by gorilla/mux,
	// so use PathUnescape to recover the original key string.
	key, err := url.PathUnescape(keyEnc)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid key encoding")
		return
	}
	v, err := store.GetKey(key)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write([]byte(v))
}

// Directory loaders accept JSON arrays and upsert each record. They exist to
// materialize the external user/course/group/account directory the resolver
// reads.

func adminLoadUsers(w http.ResponseWriter, r *http.Request) {
	if !isOperator(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	var users []models.User
	if err := json.NewDecoder(r.Body).Decode(&users); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	for _, u := range users {
		if u.ID == "" {
			utils.JSONError(w, http.StatusBadRequest, "user id required")
			return
		}
		if err := store.SaveUser(u); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	logger.Info("directory_users_loaded", "count", len(users))
	utils.JSONWrite(w, http.StatusOK, map[string]int{"loaded": len(users)})
}

func adminLoadCourses(w http.ResponseWriter, r *http.Request) {
	if !isOperator(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	var courses []models.Course
	if err := json.NewDecoder(r.Body).Decode(&courses); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	for _, c := range courses {
		if c.ID == "" {
			utils.JSONError(w, http.StatusBadRequest, "course id required")
			return
		}
		if err := store.SaveCourse(c); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	logger.Info("directory_courses_loaded", "count", len(courses))
	utils.JSONWrite(w, http.StatusOK, map[string]int{"loaded": len(courses)})
}

func adminLoadGroups(w http.ResponseWriter, r *http.Request) {
	if !isOperator(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	var groups []models.Group
	if err := json.NewDecoder(r.Body).Decode(&groups); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	for _, g := range groups {
		if g.ID == "" {
			utils.JSONError(w, http.StatusBadRequest, "group id required")
			return
		}
		if err := store.SaveGroup(g); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	logger.Info("directory_groups_loaded", "count", len(groups))
	utils.JSONWrite(w, http.StatusOK, map[string]int{"loaded": len(groups)})
}

func adminLoadAccounts(w http.ResponseWriter, r *http.Request) {
	if !isOperator(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	var accounts []models.Account
	if err := json.NewDecoder(r.Body).Decode(&accounts); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	for _, a := range accounts {
		if a.ID == "" {
			utils.JSONError(w, http.StatusBadRequest, "account id required")
			return
		}
		if err := store.SaveAccount(a); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	logger.Info("directory_accounts_loaded", "count", len(accounts))
	utils.JSONWrite(w, http.StatusOK, map[string]int{"loaded": len(accounts)})
}

// adminAutoReplySweep forces an out-of-office sweep. Optional query param
// `batch` bounds how many replies one run may send.
func adminAutoReplySweep(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	if responder == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "responder not configured")
		return
	}
	batch := 0
	if bs := r.URL.Query().Get("batch"); bs != "" {
		b, err := strconv.Atoi(bs)
		if err != nil || b < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid batch")
			return
		}
		batch = b
	}
	sent, err := responder.Sweep(time.Now().UTC().UnixNano(), batch)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("autoreply_sweep_forced", "sent", sent)
	utils.JSONWrite(w, http.StatusOK, map[string]int{"sent": sent})
}
