package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/cmd/drawing-service/internal/config"
	"github.com/kindlyrobotics/sketchsync/cmd/drawing-service/internal/handlers"
	"github.com/kindlyrobotics/sketchsync/internal/db"
	"github.com/kindlyrobotics/sketchsync/internal/hub"
	"github.com/kindlyrobotics/sketchsync/internal/ratelimit"
	"github.com/kindlyrobotics/sketchsync/internal/registry"
	"github.com/kindlyrobotics/sketchsync/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the frontend host is pinned down
		return true
	},
}

func main() {
	cfg := config.LoadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	conns, err := db.New(cfg.DatabaseURL, cfg.RedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backing stores")
	}
	defer conns.Close()

	var drawings store.Store
	if conns.Postgres != nil {
		pg := store.NewPostgres(conns.Postgres)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate drawings table")
		}
		drawings = pg
	} else {
		log.Warn().Msg("DATABASE_URL not set, drawings will not survive restarts")
		drawings = store.NewMemory()
	}

	presence := hub.NewPresence(conns.Redis, log)
	h := hub.New(presence, log)
	go h.Run()

	roster := registry.New(h)
	limiter := ratelimit.NewLimiter(conns.Redis)

	socket := handlers.NewSocketHandler(h, roster, drawings, limiter, log)
	drawingAPI := handlers.NewDrawingAPI(drawings, h, log)
	sessionAPI := handlers.NewSessionAPI(presence, log)

	r := mux.NewRouter()
	r.HandleFunc("/ws", socket.ServeWs(upgrader))
	r.HandleFunc("/api/drawings/{sessionId}", drawingAPI.SaveDrawing).Methods("POST")
	r.HandleFunc("/api/drawings/{sessionId}", drawingAPI.GetDrawing).Methods("GET")
	r.HandleFunc("/api/sessions/{sessionId}/participants", sessionAPI.GetParticipants).Methods("GET")
	r.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting drawing service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down drawing service")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
