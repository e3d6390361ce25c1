package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/go-redis/redis/v8"

	"backend_bilim/database"
)

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Requests     int                       // Количество запросов
	Window       time.Duration             // Временное окно
	KeyGenerator func(*gin.Context) string // Генератор ключей
}

// DefaultKeyGenerator генерирует ключ на основе IP адреса
func DefaultKeyGenerator(c *gin.Context) string {
	return c.ClientIP()
}

// SchoolKeyGenerator генерирует ключ на основе заведения
func SchoolKeyGenerator(c *gin.Context) string {
	schoolID := c.GetString("school_id")
	if schoolID == "" {
		return c.ClientIP()
	}
	return "school:" + schoolID
}

// RateLimit создает middleware для ограничения частоты запросов
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := database.GetRedis()
		if redisClient == nil {
			// Если Redis недоступен, пропускаем rate limiting
			c.Next()
			return
		}

		key := "rate_limit:" + config.KeyGenerator(c)

		// Получаем текущее количество запросов
		current, err := redisClient.Get(database.Ctx, key).Int()
		if err != nil && err != redis.Nil {
			// В случае ошибки Redis пропускаем запрос
			c.Next()
			return
		}

		// Проверяем превышение лимита
		if current >= config.Requests {
			c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per %v",
					config.Requests, config.Window),
				"retry_after": config.Window.Seconds(),
			})
			c.Abort()
			return
		}

		// Увеличиваем счетчик
		pipe := redisClient.Pipeline()
		pipe.Incr(database.Ctx, key)
		if current == 0 {
			// Устанавливаем TTL только для первого запроса
			pipe.Expire(database.Ctx, key, config.Window)
		}
		_, err = pipe.Exec(database.Ctx)
		if err != nil {
			// В случае ошибки пропускаем запрос
			c.Next()
			return
		}

		// Устанавливаем заголовки rate limit
		remaining := config.Requests - current - 1
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		c.Next()
	}
}

// Предустановленные конфигурации rate limiting

// ModerateRateLimit умеренное ограничение для обычных API
func ModerateRateLimit() gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Requests:     100,
		Window:       time.Minute,
		KeyGenerator: SchoolKeyGenerator,
	})
}

// LenientRateLimit мягкое ограничение для публичных endpoints
func LenientRateLimit() gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Requests:     1000,
		Window:       time.Minute,
		KeyGenerator: DefaultKeyGenerator,
	})
}

// AcceptRateLimit строгое ограничение для подтверждения по токену:
// затрудняет перебор токенов
func AcceptRateLimit() gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Requests:     10,
		Window:       time.Minute,
		KeyGenerator: DefaultKeyGenerator,
	})
}
