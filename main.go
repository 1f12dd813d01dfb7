package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mongoutil "PRelay/data/database/mgo/mongoutil"
	config "PRelay/global/config"
	"PRelay/logger"
	"PRelay/middleware"
	midsec "PRelay/middleware/security"
	msgstore "PRelay/module/chat/message"
	"PRelay/module/user"
	"PRelay/service/chat"
	"PRelay/service/chat/handlers"
	"PRelay/service/natsx"
	storage "PRelay/service/storage"
	redissrv "PRelay/service/storage/redis"
	"PRelay/tools/ids"
	"PRelay/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadEnv()
	cfg := config.Global
	defer logger.Sync()

	ids.SetNodeID(100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// mongo: the message store of record
	mongoCli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{
		Uri:         cfg.Mongo.Uri,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MaxRetry:    cfg.Mongo.MaxRetry,
	})
	if err != nil {
		logger.Errorf("mongo connect: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mongoCli.Close(context.Background()) }()
	store := msgstore.NewStore(mongoCli.GetDB())

	// redis: presence/activity mirror
	if err := redissrv.InitRedis(redissrv.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}); err != nil {
		logger.Errorf("redis connect: %v", err)
		os.Exit(1)
	}
	defer func() { _ = redissrv.CloseRedis() }()
	presence := storage.NewPresenceManager(redissrv.GetRedis(), cfg.NodeID, cfg.PresenceTTL)

	srv := chat.NewServer(chat.Options{
		NodeID:         cfg.NodeID,
		Store:          store,
		Presence:       presence,
		RelayTimeout:   cfg.RelayTimeout,
		SendQueueSize:  cfg.SendQueueSize,
		FanoutWorkers:  cfg.FanoutWorkers,
		FanoutQueue:    cfg.FanoutQueue,
		PingInterval:   cfg.PingInterval,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		MaxMessageSize: cfg.MaxMessageSize,
	})
	handlers.RegisterAll(srv)

	// optional inter-gateway deliver bus
	if len(cfg.Nats.Servers) > 0 {
		nc, err := natsx.Connect(natsx.Config{Servers: cfg.Nats.Servers, Name: cfg.Nats.Name})
		if err != nil {
			logger.Errorf("nats connect: %v", err)
			os.Exit(1)
		}
		defer func() { _ = nc.Close() }()
		if err := srv.AttachBridge(chat.NewBridge(nc, cfg.NodeID)); err != nil {
			logger.Errorf("nats subscribe: %v", err)
			os.Exit(1)
		}
		logger.Infof("deliver bridge attached node=%s", cfg.NodeID)
	}

	jwtOpts := security.Options{Secret: cfg.JWT.Secret, Alg: "HS256", TTL: cfg.JWT.TTL}
	authOpts := midsec.DefaultOptions(jwtOpts)
	rest := user.NewHandler(store, presence, jwtOpts, cfg.HistoryLimit)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin())
	r.GET("/ws", srv.HandleWS)
	api := r.Group("/api")
	middleware.POST(api, "/login", rest.Login, authOpts, middleware.RouteOpt{IsAuth: false})
	middleware.GET(api, "/users", rest.Users, authOpts, middleware.RouteOpt{IsAuth: true})
	middleware.GET(api, "/messages/:peer", rest.History, authOpts, middleware.RouteOpt{IsAuth: true})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Infof("gateway listening addr=%s node=%s", cfg.HTTPAddr, cfg.NodeID)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http serve: %v", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	_ = httpSrv.Shutdown(shutdownCtx)
}
