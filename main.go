package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Priyanshusahay12222301/Intevue/cache"
	"github.com/Priyanshusahay12222301/Intevue/handlers"
	"github.com/Priyanshusahay12222301/Intevue/routes"
	"github.com/Priyanshusahay12222301/Intevue/service"
	"github.com/Priyanshusahay12222301/Intevue/websocket"
)

func main() {
	// 加载.env配置（不存在时忽略）
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// 初始化Redis连接（失败时限流功能自动关闭）
	if err := cache.InitRedis(); err != nil {
		log.Printf("Warning: redis init failed: %v", err)
	}

	// 组装会话核心：Hub负责传输，Session持有权威状态，Gateway居中调度
	hub := websocket.NewHub()
	session := service.NewSession(hub)
	gateway := handlers.NewGateway(session, hub)
	api := handlers.NewAPIHandler(session, hub)

	router := routes.SetupRouter(gateway, api)
	srv := routes.StartServer(router)

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 不接受新请求并等待现有请求完成
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	cache.CloseRedis()
	log.Println("Server exited gracefully")
}
