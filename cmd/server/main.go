package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/securebank/ledger/internal/config"
	"github.com/securebank/ledger/internal/database"
	"github.com/securebank/ledger/internal/events"
	"github.com/securebank/ledger/internal/handlers"
	mW "github.com/securebank/ledger/internal/middleware"
	"github.com/securebank/ledger/internal/services"
	"github.com/spf13/viper"
)

func main() {
	// .env feeds both viper and the os.Getenv based ledger config
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	ledgerCfg := config.LoadLedgerConfig()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher services.EventPublisher = services.NoopPublisher{}
	if len(ledgerCfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewPublisher(ledgerCfg.KafkaBrokers, ledgerCfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Printf("Publishing ledger events to %s on %v", ledgerCfg.KafkaTopic, ledgerCfg.KafkaBrokers)
	}

	store := services.NewLedgerStore(db, ledgerCfg)
	guard := services.NewAuthorizationGuard(store)
	audit := services.NewAuditLogger()

	userService := services.NewUserService(db, redisClient)
	accountService := services.NewAccountService(store, guard, audit)
	paymentService := services.NewPaymentService(store, guard, audit, publisher)
	cardService := services.NewCardService(store, guard, audit, publisher)
	transferService := services.NewTransferService(store, guard, audit, publisher, redisClient, ledgerCfg)

	if username, password := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD"); username != "" && password != "" {
		if err := userService.EnsureAdmin(context.Background(), username, os.Getenv("ADMIN_EMAIL"), password); err != nil {
			log.Fatalf("Failed to seed administrator: %v", err)
		}
	}

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	maxBytes := ledgerCfg.MaxRequestBytes
	router := handlers.NewRouter(handlers.Handlers{
		Auth:      handlers.NewAuthHandler(userService, maxBytes),
		Accounts:  handlers.NewAccountHandler(accountService, maxBytes),
		Payments:  handlers.NewPaymentHandler(paymentService, maxBytes),
		Cards:     handlers.NewCardHandler(cardService, maxBytes),
		Transfers: handlers.NewTransferHandler(transferService, maxBytes),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
