// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"visamate-go/internal/config"
	"visamate-go/internal/handler"
	"visamate-go/internal/middleware"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
	"visamate-go/internal/service"
	"visamate-go/internal/tool"
	"visamate-go/pkg/database"
	"visamate-go/pkg/embedding"
	"visamate-go/pkg/kafka"
	"visamate-go/pkg/llm"
	"visamate-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与 Kafka
	database.InitPostgres(cfg.Database.Postgres.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	kafka.InitProducer(cfg.Kafka)
	defer kafka.Close()

	// 4. 初始化 Repository
	queryExecutor := repository.NewQueryExecutor(database.DB)
	schemaRepo := repository.NewSchemaRepository(database.DB)
	vectorRepo := repository.NewVectorRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)
	changeRepo := repository.NewChangeRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	dbQueryService := service.NewDBQueryService(queryExecutor, schemaRepo)
	searchService := service.NewSearchService(embeddingClient, vectorRepo)
	conversationService := service.NewConversationService(conversationRepo)

	// 6. 注册模型可调用的工具：搜索与数据库工具直接走进程内服务调用
	registry := tool.NewRegistry(
		tool.NewAssessTravelRiskTool(),
		tool.NewSemanticSearchTool(searchService),
		tool.NewQueryDatabaseTool(dbQueryService),
	)
	chatService := service.NewChatService(llmClient, registry, conversationRepo)

	// 7. 启动后台告警推送（Kafka 未配置时关闭）
	alertCtx, cancelAlerts := context.WithCancel(context.Background())
	defer cancelAlerts()
	if kafka.Enabled() {
		alertService := service.NewAlertService(changeRepo, kafkaAlertPublisher{})
		interval := time.Duration(cfg.Alerts.PollIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go alertService.Run(alertCtx, interval)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	chatHandler := handler.NewChatHandler(chatService)
	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.GET("/chat/ws", chatHandler.ChatWS)
		apiV1.POST("/db-query", handler.NewDBQueryHandler(dbQueryService).Query)
		apiV1.POST("/semantic-search", handler.NewSearchHandler(searchService).Search)
		apiV1.GET("/conversation", handler.NewConversationHandler(conversationService).GetConversation)
	}
	r.GET("/healthz", healthCheck)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	cancelAlerts()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}

// healthCheck 报告服务与数据库连接的存活状态。
func healthCheck(c *gin.Context) {
	sqlDB, err := database.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// kafkaAlertPublisher 把告警事件发到 Kafka，实现 service.AlertPublisher。
type kafkaAlertPublisher struct{}

func (kafkaAlertPublisher) Publish(ctx context.Context, event model.AlertEvent) error {
	return kafka.ProduceAlertEvent(ctx, event)
}
