package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	MenuCacheTTLSeconds   int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ReplyDelayMillis      int
	WebhookTimeoutSeconds int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	menuTTL, err := strconv.Atoi(getEnv("MENU_CACHE_TTL_SECONDS", "300"))
	if err != nil || menuTTL < 1 {
		menuTTL = 300
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	replyDelay, err := strconv.Atoi(getEnv("REPLY_DELAY_MILLIS", "1000"))
	if err != nil || replyDelay < 0 {
		replyDelay = 1000
	}
	webhookTimeout, err := strconv.Atoi(getEnv("WEBHOOK_TIMEOUT_SECONDS", "8"))
	if err != nil || webhookTimeout < 1 {
		webhookTimeout = 8
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		MenuCacheTTLSeconds:   menuTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ReplyDelayMillis:      replyDelay,
		WebhookTimeoutSeconds: webhookTimeout,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
