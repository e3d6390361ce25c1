package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var Redis *redis.Client
var Ctx = context.Background()

// TTL кэшей по типам данных
const (
	CacheTTLPlans = 10 * time.Minute
)

// InitRedis инициализирует подключение к Redis
func InitRedis() error {
	// Получаем настройки Redis из переменных окружения
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")
	dbStr := getEnv("REDIS_DB", "0")

	// Конвертируем номер БД в int
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		db = 0
	}

	// Создаем клиент Redis
	Redis = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	})

	// Проверяем подключение
	if err := Redis.Ping(Ctx).Err(); err != nil {
		return fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	log.Println("✅ Успешно подключено к Redis")
	return nil
}

// GetRedis возвращает экземпляр Redis клиента
func GetRedis() *redis.Client {
	return Redis
}

// CacheSet сохраняет значение в кэш с TTL. Без Redis (тесты, деградация)
// кэш молча отключен.
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	if Redis == nil {
		return nil
	}
	return Redis.Set(Ctx, key, value, ttl).Err()
}

// CacheGet получает значение из кэша
func CacheGet(key string) (string, error) {
	if Redis == nil {
		return "", redis.Nil
	}
	return Redis.Get(Ctx, key).Result()
}

// CacheDel удаляет значение из кэша
func CacheDel(key string) error {
	if Redis == nil {
		return nil
	}
	return Redis.Del(Ctx, key).Err()
}

// CacheSetJSON сохраняет JSON объект в кэш
func CacheSetJSON(key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка сериализации JSON: %w", err)
	}
	return CacheSet(key, string(jsonData), ttl)
}

// CacheGetJSON получает JSON объект из кэша
func CacheGetJSON(key string, dest interface{}) error {
	jsonData, err := CacheGet(key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(jsonData), dest); err != nil {
		return fmt.Errorf("ошибка десериализации JSON: %w", err)
	}

	return nil
}

// TryLock берет эксклюзивную блокировку через SET NX. Возвращает функцию
// освобождения и признак успеха. Без Redis блокировка всегда успешна:
// одиночный экземпляр в ней не нуждается.
func TryLock(key string, ttl time.Duration) (func(), bool) {
	if Redis == nil {
		return func() {}, true
	}

	ok, err := Redis.SetNX(Ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		log.Printf("⚠️  Ошибка взятия блокировки %s: %v", key, err)
		// Redis недоступен — работаем без блокировки
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}

	return func() {
		if err := Redis.Del(Ctx, key).Err(); err != nil {
			log.Printf("⚠️  Ошибка освобождения блокировки %s: %v", key, err)
		}
	}, true
}

// CacheFlushDB очищает текущую БД Redis (для тестов)
func CacheFlushDB() error {
	if Redis == nil {
		return nil
	}
	return Redis.FlushDB(Ctx).Err()
}
