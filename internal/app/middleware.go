package app

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hourline/hourline/internal/rest"
	"github.com/hourline/hourline/pkg/actor"
	log "github.com/sirupsen/logrus"
)

const (
	headerUserId    = "X-User-Id"
	headerUserRole  = "X-User-Role"
	headerUserName  = "X-User-Name"
	headerRequestId = "X-Request-Id"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router) {
	r.Use(requestIdMiddleware)
	r.Use(actorMiddleware)
}

func requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestId := req.Header.Get(headerRequestId)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		w.Header().Set(headerRequestId, requestId)
		log.WithFields(log.Fields{
			"requestId": requestId,
			"method":    req.Method,
			"path":      req.URL.Path,
		}).Debug("Handling request")
		next.ServeHTTP(w, req)
	})
}

// actorMiddleware propagates the identity asserted by the upstream auth layer into the context.
// Requests without identity headers continue without an actor and are refused by the services.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userIdHeader := req.Header.Get(headerUserId)
		if userIdHeader == "" {
			next.ServeHTTP(w, req)
			return
		}

		userId, err := strconv.Atoi(userIdHeader)
		if err != nil {
			log.Debugf("invalid user id header: %q", userIdHeader)
			rest.WriteBadRequest(w, "Invalid user ID header", err.Error())
			return
		}
		role, err := actor.ParseRole(req.Header.Get(headerUserRole))
		if err != nil {
			log.Debugf("invalid role header for user %d: %v", userId, err)
			rest.WriteBadRequest(w, "Invalid user role header", err.Error())
			return
		}

		ctx := actor.WithActor(req.Context(), actor.Actor{
			Id:          userId,
			Role:        role,
			DisplayName: req.Header.Get(headerUserName),
		})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
