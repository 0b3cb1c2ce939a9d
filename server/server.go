package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"sacraltrack/cache"
	"sacraltrack/config"
	"sacraltrack/core/audio"
	"sacraltrack/db"
	"sacraltrack/logger"
	"sacraltrack/model"
	"sacraltrack/repository"
	"sacraltrack/storage"
)

// Start wires all dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})
	defer logger.Sync()

	store, err := storage.NewClient(
		cfg.MinioEndpoint, cfg.MinioPublicEndpoint,
		cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioRegion, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal("failed to create storage client", logger.ErrorField(err))
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		logger.Fatal("failed to ensure storage bucket", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect GORM database", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.User{}); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	rdb, err := cache.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer rdb.Close()

	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	userRepo := repository.NewGormUserRepository(db.GormDB)

	validator := audio.NewValidator(float64(cfg.MaxDuration))
	transcoder := audio.NewFFmpegTranscoder(cfg.FFmpegPath, cfg.AudioBitrate)
	tracker := audio.NewProcessingTracker()
	progress := cache.NewProgressStore(rdb)
	fileCache := cache.NewFileCache(rdb)
	pipeline := audio.NewPipeline(transcoder, store, progress, tracker, cfg.HLSSegmentTime, 4)

	apiHandler := NewAPIHandler(trackRepo, userRepo, validator, pipeline, tracker, store, progress, fileCache, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Auth
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Tracks
	router.HandleFunc("/api/upload", apiHandler.AuthMiddleware(apiHandler.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteTrackHandler)).Methods(http.MethodDelete)

	// Progress
	router.HandleFunc("/api/progress/{track_id}", apiHandler.GetProgressHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/progress/{track_id}", apiHandler.ProgressWebSocketHandler).Methods(http.MethodGet)

	// Playback
	router.HandleFunc("/stream/{track_id}/playlist.m3u8", apiHandler.StreamPlaylistHandler).Methods(http.MethodGet)
	router.HandleFunc("/storage/buckets/{bucket}/files/{id}/view", apiHandler.ViewFileHandler).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Minute, // uploads can be large
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// corsMiddleware applies permissive CORS headers for browser players.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
