package rest

import (
	"heartspeak/internal/config"
	"heartspeak/internal/docs"
	"heartspeak/internal/service"
	"heartspeak/internal/transport/rest/handler"
	"heartspeak/internal/transport/rest/middleware"
	"heartspeak/internal/transport/ws"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Container holds all dependencies for the router
type Container struct {
	Config         *config.Config
	AuthService    *service.AuthService
	CallService    *service.CallService
	EmotionService *service.EmotionService
	WSHandler      *ws.Handler
	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	callHandler := handler.NewCallHandler(c.CallService, c.EmotionService, c.Logger)
	webrtcHandler := handler.NewWebRTCHandler(c.Config.WebRTC)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.Config.CORS))
	r.Use(middleware.Logging(c.Logger))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	if c.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(docs.SwaggerInfo.ReadDoc()))
	}).Methods("GET")

	// WebSocket route (authenticates before upgrading)
	v1.HandleFunc("/ws", c.WSHandler.ServeWS).Methods("GET")

	v1.HandleFunc("/webrtc/ice-servers", webrtcHandler.ICEServers).Methods("GET", "OPTIONS")

	// Call routes (require user auth)
	callRoutes := v1.PathPrefix("/calls").Subrouter()
	callRoutes.Use(authMW.RequireUser)

	callRoutes.HandleFunc("/initiate", callHandler.Initiate).Methods("POST", "OPTIONS")
	callRoutes.HandleFunc("/history", callHandler.History).Methods("GET", "OPTIONS")
	callRoutes.HandleFunc("/{id}/join", callHandler.Join).Methods("POST", "OPTIONS")
	callRoutes.HandleFunc("/{id}/reject", callHandler.Reject).Methods("POST", "OPTIONS")
	callRoutes.HandleFunc("/{id}/end", callHandler.End).Methods("POST", "OPTIONS")
	callRoutes.HandleFunc("/{id}/emotion", callHandler.LogEmotion).Methods("POST", "OPTIONS")
	callRoutes.HandleFunc("/{id}/emotions", callHandler.Emotions).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(cfg config.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.AllowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", cfg.AllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.AllowedHeaders)

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
