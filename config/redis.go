package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RDB = nil nghĩa là không có Redis, cache sinh nội dung sẽ tự tắt
var RDB *redis.Client

func InitRedis() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Println("REDIS_ADDR chưa cấu hình, bỏ qua cache Redis")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Cache chỉ là lớp phụ, không chặn server khởi động
		log.Println("Không kết nối được Redis:", err)
		return
	}

	RDB = client
	log.Println("redis connected:", addr)
}
