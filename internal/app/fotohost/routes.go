package fotohost

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Server holds the two HTTP surfaces: the application API and the
// operational endpoints (prometheus metrics, health, JSON pool metrics).
type Server struct {
	appCtx        *AppContext
	appServer     *http.Server
	metricsServer *http.Server
}

func NewServer(appCtx *AppContext) *Server {
	s := &Server{appCtx: appCtx}

	appRouter := mux.NewRouter()
	s.initAppRoutes(appRouter)

	corsOptions := cors.New(cors.Options{
		AllowedOrigins: strings.Split(appCtx.Config.CORSAllowOrigin, ","),
		AllowedHeaders: strings.Split(appCtx.Config.CORSAllowHeaders, ","),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	})

	var appHandler http.Handler = appRouter
	appHandler = corsOptions.Handler(appHandler)
	appHandler = requestID(appHandler)
	appHandler = recoverFromPanic(appHandler)

	s.appServer = &http.Server{
		Addr:    appCtx.Config.ListenAddress,
		Handler: appHandler,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")
	metricsRouter.HandleFunc("/metrics.json", handleMetricsJSON(appCtx)).Methods("GET")
	metricsRouter.HandleFunc("/healthz", handleHealth(appCtx)).Methods("GET")

	s.metricsServer = &http.Server{
		Addr:    appCtx.Config.MetricsAddress,
		Handler: metricsRouter,
	}

	return s
}

func (s *Server) initAppRoutes(router *mux.Router) {
	appCtx := s.appCtx
	admin := requireAdmin(appCtx)
	throttler := NewThrottler(appCtx.Config)

	router.HandleFunc("/", handleDashboard).Methods("GET")
	router.HandleFunc("/register", handleRegister(appCtx)).Methods("POST")
	router.HandleFunc("/login", handleLogin(appCtx)).Methods("POST")
	router.HandleFunc("/profile", handleProfile(appCtx)).Methods("GET")
	router.HandleFunc("/profile", handleDeleteProfile(appCtx)).Methods("DELETE")

	upload := trackMetrics("/upload")(throttler.Throttle(handleUpload(appCtx)))
	router.Handle("/upload", upload).Methods("POST")

	router.Handle("/images", trackMetrics("/images")(handleListImages(appCtx))).Methods("GET")
	router.HandleFunc("/images/{id:[0-9]+}", handleGetImage(appCtx)).Methods("GET")
	router.HandleFunc("/images/{id:[0-9]+}", handleDeleteImage(appCtx)).Methods("DELETE")

	serve := trackMetrics("/files")(handleServeFile(appCtx))
	router.Handle("/files/{user}/{filename}", serve).Methods("GET")

	router.HandleFunc("/statistics", admin(handleStatistics(appCtx))).Methods("GET")
	router.HandleFunc("/statistics/summary", admin(handleStatisticsSummary(appCtx))).Methods("GET")
	router.HandleFunc("/cleanup", admin(handleCleanup(appCtx))).Methods("POST")

	router.HandleFunc("/health", handleHealth(appCtx)).Methods("GET")
}

// Run starts both listeners. Blocks until the application server exits.
func (s *Server) Run() error {
	go func() {
		log.Printf("INFO: metrics listening on %v", s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: metrics server failed - %v", err)
		}
	}()

	log.Printf("INFO: listening on %v", s.appServer.Addr)
	err := s.appServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) {
	if err := s.appServer.Shutdown(ctx); err != nil {
		log.Printf("WARN: app server shutdown - %v", err)
	}
	if err := s.metricsServer.Shutdown(ctx); err != nil {
		log.Printf("WARN: metrics server shutdown - %v", err)
	}
}
