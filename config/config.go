/*
Package config loads service configuration from the environment.

A local .env file is loaded first when present (development convenience);
real environment variables always win. Every setting has a default that
works for local development against the other platform services.
*/
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the loyalty service.
type Config struct {
	Port                 string
	DBPath               string
	UsersServiceURL      string // balance mirror collaborator
	NotificationsService string // event fan-out collaborator
}

// Load reads configuration from .env (if present) and the environment.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("config: loaded .env file")
	}

	return Config{
		Port:                 getEnv("PORT", "5000"),
		DBPath:               getEnv("DB_PATH", "./loyalty.db"),
		UsersServiceURL:      getEnv("USERS_SERVICE", "http://127.0.0.1:3000"),
		NotificationsService: getEnv("NOTIFICATIONS_SERVICE", "http://127.0.0.1:7000"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
