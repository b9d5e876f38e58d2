package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chowlive/cache"
	"chowlive/config"
	"chowlive/core/queue"
	"chowlive/core/room"
	"chowlive/db"
	"chowlive/logger"
	"chowlive/repository"

	"github.com/gorilla/mux"
)

// Start 初始化依赖并启动 HTTP 服务
func Start() {
	cfg := config.Load()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect database", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to migrate database", logger.ErrorField(err))
	}

	roomRepo := repository.NewGormRoomRepository(db.GormDB)
	songRepo := repository.NewGormSongRepository(db.GormDB)
	notifier := cache.NewQueueNotifier(db.RedisClient)
	trackCache := cache.NewTrackCache(db.RedisClient)
	presence := cache.NewPresenceCache(db.RedisClient)

	authority := queue.NewAuthority(songRepo, notifier)
	monitor := room.NewMonitor(roomRepo, songRepo, notifier)

	hub := room.NewHub()
	go hub.Run()
	defer hub.Stop()

	apiHandler := NewAPIHandler(roomRepo, songRepo, authority, monitor, hub, trackCache, presence, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// 认证
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// 房间
	router.HandleFunc("/api/rooms", apiHandler.AuthMiddleware(apiHandler.CreateRoomHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/rooms", apiHandler.ListRoomsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{ref}", apiHandler.GetRoomHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{id}/messages", apiHandler.AuthMiddleware(apiHandler.GetMessagesHandler)).Methods(http.MethodGet)

	// 播放控制
	router.HandleFunc("/api/rooms/{id}/queue", apiHandler.AuthMiddleware(apiHandler.EnqueueHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/pause", apiHandler.AuthMiddleware(apiHandler.PauseHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/skip", apiHandler.AuthMiddleware(apiHandler.SkipHandler)).Methods(http.MethodPost)

	// 曲目
	router.HandleFunc("/api/tracks/{ref}", apiHandler.AuthMiddleware(apiHandler.TrackDetailHandler)).Methods(http.MethodGet)

	// 监听者会话
	router.HandleFunc("/ws/rooms/{ref}", apiHandler.WSHandler).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket 长连接不能设置写超时
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

// corsMiddleware CORS 中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
