package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spark-go/internal/config"
	"spark-go/internal/handlers/chatserver"
	appKafka "spark-go/internal/kafka"
	"spark-go/internal/realtime"
	appRedis "spark-go/internal/redis"
	"spark-go/internal/services"
	"spark-go/internal/storage"
	"spark-go/internal/websocket"

	"github.com/gorilla/mux"
	kafkaDriver "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	redisDriver "github.com/redis/go-redis/v9"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	log.Println("Chat 服务器配置加载成功。")

	// 2. 初始化数据库连接（WebSocket 的发消息路径需要持久化）
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	log.Println("Chat 服务器数据库连接成功。")

	// 3. 初始化 Redis Client (令牌黑名单，拒绝已登出的连接)
	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("无法连接到 Redis: %v", err)
	}
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)

	// 4. 初始化 Repositories
	userRepo := storage.NewGormUserRepository(db)
	matchRepo := storage.NewGormMatchRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)

	// 5. Kafka 生产者：WebSocket 路径发出的消息也走 Kafka 分发，
	// 保证多个 Chat 服务器实例都能收到事件
	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建 Kafka 生产者: %v", err)
	}
	defer kfkProducer.Close()

	dispatcher := realtime.NewKafkaDispatcher(kfkProducer, cfg.Kafka)

	// 6. 初始化 Services (仅 WebSocket 路径需要的部分)
	matchService := services.NewMatchService(userRepo, matchRepo, dispatcher, cfg.Discovery)
	chatService := services.NewChatService(userRepo, matchRepo, messageRepo, dispatcher)

	// 7. 初始化 WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// 8. 启动 Kafka 消费者：把实时事件信封交给 Hub 投递
	realtimeConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("无法创建实时事件 Kafka 消费者: %v", err)
	}
	defer realtimeConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	go func() {
		topics := []string{cfg.Kafka.RealtimeTopic}
		log.Printf("Kafka 实时事件消费者启动，监听 topic: %s, GroupID: %s", cfg.Kafka.RealtimeTopic, cfg.Kafka.ConsumerGroup)
		err := realtimeConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, func(_ context.Context, msg *kafkaDriver.Message) error {
			var env realtime.Envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				// 无法解析的信封只记录并跳过，不阻塞消费
				log.Printf("错误: 无法解析实时事件信封: %v", err)
				return nil
			}
			hub.Deliver(&env)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka 实时事件消费者错误: %v", err)
		}
		log.Println("Kafka 实时事件消费者 goroutine 已停止。")
	}()

	// 9. 设置 HTTP 路由
	wsHandler := chatserver.NewWebSocketHandler(hub, matchService, chatService, tokenBlacklist, cfg.Auth, cfg.WebSocket)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	// 10. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Chat 服务器启动于 %s (WebSocket 路径: %s)", serverAddr, cfg.Server.WebSocketPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Chat 服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到关闭信号，正在关闭 Chat 服务器...")

	cancelConsumers()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Chat 服务器强制关闭: %v", err)
	}

	log.Println("Chat 服务器已成功关闭")
}
