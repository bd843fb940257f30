package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spark-go/internal/config"
	"spark-go/internal/handlers/apiserver"
	appKafka "spark-go/internal/kafka"
	"spark-go/internal/middleware"
	"spark-go/internal/realtime"
	appRedis "spark-go/internal/redis"
	"spark-go/internal/services"
	"spark-go/internal/storage"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("API 服务器配置加载成功。")

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("API 服务器数据库连接成功。")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("数据库表迁移失败: %v", err)
	}

	// 3. 初始化 Redis Client (令牌黑名单)
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	log.Println("成功连接到 Redis")

	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	matchRepo := storage.NewGormMatchRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)

	// 5. 初始化 Kafka Producer 和实时事件分发器
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka 生产者初始化成功 (API Server)。")

	dispatcher := realtime.NewKafkaDispatcher(kfkProducer, cfg.Kafka)

	// 6. 初始化 Services
	authService := services.NewAuthService(userRepo, tokenBlacklist, cfg.Auth, cfg.Discovery)
	profileService := services.NewProfileService(userRepo, cfg.Discovery)
	matchService := services.NewMatchService(userRepo, matchRepo, dispatcher, cfg.Discovery)
	chatService := services.NewChatService(userRepo, matchRepo, messageRepo, dispatcher)

	// 7. 初始化 Handlers
	authHandler := apiserver.NewAuthHandler(authService)
	profileHandler := apiserver.NewProfileHandler(profileService)
	matchHandler := apiserver.NewMatchHandler(matchService)
	messageHandler := apiserver.NewMessageHandler(chatService)

	// 8. 设置 HTTP 路由
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	// 8.1 公开路由
	authRouter := r.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	// 8.2 受保护路由
	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	// 登出需要认证以获取 JTI
	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// 资料路由
	apiRouter.HandleFunc("/profile", profileHandler.GetProfile).Methods(http.MethodGet)
	apiRouter.HandleFunc("/profile", profileHandler.UpdateProfile).Methods(http.MethodPut)
	apiRouter.HandleFunc("/profile/complete", profileHandler.CompleteProfile).Methods(http.MethodPost)
	apiRouter.HandleFunc("/profile/completion", profileHandler.Completion).Methods(http.MethodGet)

	// 发现与配对路由
	apiRouter.HandleFunc("/matches/discover", matchHandler.Discover).Methods(http.MethodGet)
	apiRouter.HandleFunc("/matches/swipe", matchHandler.Swipe).Methods(http.MethodPost)
	apiRouter.HandleFunc("/matches", matchHandler.ListMatches).Methods(http.MethodGet)

	// 消息与会话路由
	apiRouter.HandleFunc("/messages/{matchID:[0-9]+}", messageHandler.ListMessages).Methods(http.MethodGet)
	apiRouter.HandleFunc("/messages", messageHandler.SendMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/conversations", messageHandler.ListConversations).Methods(http.MethodGet)

	// 9. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Printf("API 服务器启动于 %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 API 服务器...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API 服务器强制关闭: %v", err)
	}

	log.Println("API 服务器已成功关闭")
}
