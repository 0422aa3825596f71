// Command server runs the room service: HTTP API, realtime feed,
// activity consumer and the expired-room reaper in one process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ramswarooppatel/sharehub/internal/blob"
	"github.com/ramswarooppatel/sharehub/internal/config"
	"github.com/ramswarooppatel/sharehub/internal/database"
	"github.com/ramswarooppatel/sharehub/internal/handler"
	"github.com/ramswarooppatel/sharehub/internal/middleware"
	"github.com/ramswarooppatel/sharehub/internal/queue"
	"github.com/ramswarooppatel/sharehub/internal/realtime"
	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/router"
	"github.com/ramswarooppatel/sharehub/internal/service"
	"github.com/ramswarooppatel/sharehub/internal/tasks"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.Env == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("database connect failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unreachable

	blobs, err := blob.NewDiskStore(cfg.BlobDir, cfg.PublicBaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("blob store init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Realtime hub: local fan-out plus the redis bridge across instances.
	hub := realtime.NewHub(rdb)
	go hub.Run(ctx)

	// Durable activity trail consumer.
	go queue.StartActivityConsumer(ctx)

	// Repositories.
	roomRepo := repository.NewRoomRepo(db)
	requestRepo := repository.NewJoinRequestRepo(db)
	memberRepo := repository.NewMembershipRepo(db)
	fileRepo := repository.NewFileRepo(db)
	noteRepo := repository.NewNoteRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	// Services.
	roomSvc := service.NewRoomService(roomRepo, memberRepo, fileRepo, blobs, hub)
	accessSvc := service.NewAccessService(memberRepo, requestRepo, hub)
	joinSvc := service.NewJoinService(requestRepo, memberRepo, hub)

	// Handlers.
	roomHandler := handler.NewRoomHandler(roomSvc)
	sessionHandler := handler.NewSessionHandler(roomSvc, accessSvc, memberRepo, hub)
	joinHandler := handler.NewJoinHandler(roomSvc, joinSvc)
	fileHandler := handler.NewFileHandler(roomSvc, memberRepo, fileRepo, blobs, hub)
	noteHandler := handler.NewNoteHandler(roomSvc, memberRepo, noteRepo, hub)
	feedHandler := handler.NewFeedHandler(roomSvc, memberRepo, requestRepo, hub)
	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("32M"))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e, fileHandler)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterRooms(e, router.RoomHandlers{
		Rooms:    roomHandler,
		Sessions: sessionHandler,
		Join:     joinHandler,
		Files:    fileHandler,
		Notes:    noteHandler,
		Feed:     feedHandler,
	}, cfg.JWTSecret)

	if cfg.ReaperEnabled {
		reaper, err := tasks.NewReaper(roomRepo, roomSvc, cfg.ReaperSpec)
		if err != nil {
			logrus.WithError(err).Fatal("invalid reaper schedule")
		}
		reaper.Start()
		defer reaper.Stop()
	}

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down")
		_ = e.Shutdown(context.Background())
	}()

	addr := ":" + cfg.Port
	logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		logrus.WithError(err).Info("server stopped")
	}
}
