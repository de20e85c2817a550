package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/J0kerL/Buff-like/internal/config"
	"github.com/J0kerL/Buff-like/internal/consumer"
	"github.com/J0kerL/Buff-like/internal/handler"
	"github.com/J0kerL/Buff-like/internal/infrastructure/cache"
	"github.com/J0kerL/Buff-like/internal/infrastructure/database"
	"github.com/J0kerL/Buff-like/internal/infrastructure/mq"
	"github.com/J0kerL/Buff-like/internal/job"
	"github.com/J0kerL/Buff-like/internal/service"
	"github.com/J0kerL/Buff-like/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka 生产者
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动发件箱轮询任务
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	// 启动结算消费者
	settlementConsumer, err := consumer.NewSettlementConsumer(cfg, service.NewSettlementService(db, cfg))
	if err != nil {
		log.Fatalf("创建结算消费者失败: %v", err)
	}
	go settlementConsumer.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务和消费者
	cancel()
	if err := settlementConsumer.Close(); err != nil {
		log.Printf("关闭结算消费者异常: %v", err)
	}

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
