package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Priyanshusahay12222301/Intevue/cache"
)

// 全局API限流器
var (
	apiLimiter       cache.RateLimiter
	rateLimitEnabled bool
)

// InitRateLimiters 从环境变量初始化API限流器
// 未开启限流或Redis不可用时中间件直接放行
func InitRateLimiters() {
	if os.Getenv("ENABLE_RATE_LIMIT") != "true" {
		return
	}

	if cache.MockMode() {
		log.Println("Rate limiting disabled: redis in mock mode")
		return
	}

	redisClient, err := cache.GetRedisClient()
	if err != nil {
		log.Printf("Rate limiting disabled, redis unavailable: %v", err)
		return
	}

	// 全局速率，默认每秒100请求、突发200
	rateLimit := 100
	if v := os.Getenv("GLOBAL_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateLimit = n
		}
	}

	apiLimiter = cache.NewTokenBucketRateLimiter(redisClient, "api", rateLimit, rateLimit*2)
	rateLimitEnabled = true
	log.Printf("API rate limiter enabled: %d req/s", rateLimit)
}

// RateLimitMiddleware API限流中间件
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rateLimitEnabled || apiLimiter == nil {
			c.Next()
			return
		}

		allowed, err := apiLimiter.Allow(c)
		if err != nil {
			// 限流器故障时放行而不是拒绝服务
			log.Printf("Rate limiter error: %v", err)
			c.Next()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
