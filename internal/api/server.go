// Package api предоставляет сервисный HTTP эндпоинт: health, метрики
// и защищённый паролем просмотр отслеживаемых позиций.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"signaltrader/internal/api/middleware"
	"signaltrader/internal/config"
	"signaltrader/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PositionSource - источник снимка отслеживаемых позиций
// Реализуется PositionEngine
type PositionSource interface {
	Snapshot() []models.Position
}

// Server - сервисный HTTP сервер
type Server struct {
	server *http.Server
	log    *zap.Logger
}

// NewServer настраивает маршруты и создаёт сервер
//
// Маршруты:
// - GET /healthz   - проверка живости
// - GET /metrics   - Prometheus метрики
// - GET /positions - отслеживаемые позиции (Basic Auth при заданном хеше)
func NewServer(cfg config.ServerConfig, positions PositionSource, log *zap.Logger) *Server {
	router := mux.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))

	router.HandleFunc("/healthz", handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	protected := router.PathPrefix("/positions").Subrouter()
	protected.Use(middleware.PasswordAuth(cfg.PasswordHash, log))
	protected.HandleFunc("", handlePositions(positions, log)).Methods("GET")

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start запускает сервер (блокирует до Shutdown)
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth отвечает на проверку живости
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handlePositions отдаёт снимок отслеживаемых позиций
func handlePositions(positions PositionSource, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := positions.Snapshot()
		if snapshot == nil {
			snapshot = []models.Position{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"count":     len(snapshot),
			"positions": snapshot,
		}); err != nil {
			log.Error("failed to encode positions", zap.Error(err))
		}
	}
}
