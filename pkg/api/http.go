package api

import (
	"net/http"

	"inboxd/pkg/api/handlers"
	"inboxd/pkg/auth"
	"inboxd/pkg/dispatch"

	"github.com/gorilla/mux"
)

// Handler assembles the versioned API router. Conversation and inbox routes
// require a verified actor (signature for frontend keys, header/body for
// backend keys); admin routes are gated by role inside their handlers.
func Handler(d *dispatch.Dispatcher, resp *dispatch.Responder) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	user := v1.NewRoute().Subrouter()
	user.Use(auth.RequireSignedActor)
	handlers.RegisterConversations(user, d)
	handlers.RegisterInbox(user)

	handlers.RegisterSigning(v1)

	admin := v1.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin, resp)

	return r
}
