package cache

import (
	"context"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// 全局Redis客户端
var (
	redisClient *redis.Client
	initOnce    sync.Once
	mockMode    bool
)

// InitRedis 初始化Redis连接
// 连接失败时进入模拟模式：依赖Redis的功能（限流）自动退化为关闭
func InitRedis() error {
	var initErr error

	initOnce.Do(func() {
		if os.Getenv("REDIS_MOCK") == "true" {
			log.Println("Redis mock mode forced")
			mockMode = true
			return
		}

		redisAddr := os.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}
		redisPassword := os.Getenv("REDIS_PASSWORD")

		redisDB := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDB = db
			}
		}

		client := redis.NewClient(&redis.Options{
			Addr:        redisAddr,
			Password:    redisPassword,
			DB:          redisDB,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 3 * time.Second,
			PoolSize:    10,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := client.Ping(ctx).Result(); err != nil {
			log.Printf("Redis connection failed: %v, falling back to mock mode", err)
			mockMode = true
			return
		}

		redisClient = client
		log.Printf("Redis connected at %s", redisAddr)
	})

	return initErr
}

// GetRedisClient 获取Redis客户端，模拟模式或未初始化时返回错误
func GetRedisClient() (*redis.Client, error) {
	if mockMode || redisClient == nil {
		return nil, ErrRedisNotAvailable
	}
	return redisClient, nil
}

// MockMode 是否处于模拟模式
func MockMode() bool {
	return mockMode
}

// CloseRedis 关闭Redis连接
func CloseRedis() {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing redis: %v", err)
		}
		redisClient = nil
	}
}
