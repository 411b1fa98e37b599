package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oursparks/couple-cards-backend/api"
	"github.com/oursparks/couple-cards-backend/internal/game"
	"github.com/oursparks/couple-cards-backend/internal/platform/config"
	"github.com/oursparks/couple-cards-backend/internal/platform/database"
	"github.com/oursparks/couple-cards-backend/internal/platform/health"
	"github.com/oursparks/couple-cards-backend/internal/platform/shutdown"
	"github.com/oursparks/couple-cards-backend/internal/platform/startup"
	appsync "github.com/oursparks/couple-cards-backend/internal/sync"
	"github.com/oursparks/couple-cards-backend/pkg/gamelog"
	"github.com/oursparks/couple-cards-backend/pkg/lifecycle"
	"github.com/oursparks/couple-cards-backend/pkg/token"
)

func main() {
	// 1. 加载配置并初始化基础设施
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}
	token.GenerateSecretKey()
	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	logger, err := gamelog.NewZapLogger()
	if err != nil {
		panic(fmt.Sprintf("无法初始化日志器: %v", err))
	}

	// 2. 阻塞式获取初始Run ID
	if err := health.InitializeRunID(); err != nil {
		panic(fmt.Sprintf("Redis不可用，无法启动: %v", err))
	}

	// 3. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}
	game.InitializeService(logger)
	appsync.InitializeSynchronizer(logger)

	// 4. 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 5. 创建生命周期管理器并异步启动后台健康检查器
	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()
	healthHandle, err := gracefulMgr.NewServiceHandle("redis-health-checker")
	if err != nil {
		panic(fmt.Sprintf("无法注册健康检查器: %v", err))
	}
	go health.StartRedisHealthCheck(healthHandle)

	// 6. 装配HTTP服务
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("Failed to start server: " + err.Error())
		}
	}()

	// 7. 阻塞等待停机信号并编排两阶段停机
	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr)
	coordinator.ListenForSignalsAndShutdown(server)
}
