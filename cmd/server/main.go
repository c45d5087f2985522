package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ipfsnut/bookmarks-backend/docs"
	"github.com/ipfsnut/bookmarks-backend/internal/database"
	"github.com/ipfsnut/bookmarks-backend/internal/metadata"
	mW "github.com/ipfsnut/bookmarks-backend/internal/middleware"
	"github.com/ipfsnut/bookmarks-backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Bookmarks Backend API
// @version 1.0
// @description API for the book-bookmarking and token-ledger service
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.url", "DATABASE_URL")
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
	viper.BindEnv("system.secret", "SYSTEM_OPERATION_SECRET")
	viper.BindEnv("server.public_url", "PUBLIC_URL")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("server.public_url", "http://localhost:8080")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Bookmarks Backend API"
	docs.SwaggerInfo.Description = "API for the book-bookmarking and token-ledger service"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	authService := services.NewAuthService(db, redisClient)
	tokenService := services.NewTokenService(db)
	bookmarkService := services.NewBookmarkService(db, redisClient)
	userService := services.NewUserService(db)
	bisacService, err := services.NewBisacService()
	if err != nil {
		log.Fatalf("Failed to load BISAC dataset: %v", err)
	}
	metadataService := services.NewMetadataService(metadata.NewDefaultRegistry())

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "x-system-operation", "x-system-secret"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for cover images
	r.Handle("/static/covers/*", http.StripPrefix("/static/covers/",
		mW.StaticFileServer("./static/covers")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Get("/auth/nonce", authService.Nonce)
		r.Post("/auth", authService.Login)
		r.Get("/bisac-codes", bisacService.LookupBisacCodes)
		r.Get("/content-type", metadataService.ClassifyContent)
		r.Get("/bookmarks/{id}/share-qr", bookmarkService.ShareQR)

		// Public read with optional identity (userOnly filtering)
		r.Group(func(r chi.Router) {
			r.Use(mW.OptionalAuthMiddleware)
			r.Get("/bookmarks", bookmarkService.ListBookmarks)
		})

		// Token award accepts either a user token or a system operation
		r.Group(func(r chi.Router) {
			r.Use(mW.SystemOrAuthMiddleware)
			r.Post("/token-award", tokenService.AwardTokens)
		})

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/token-balance", tokenService.GetTokenBalance)

			r.Post("/bookmarks", bookmarkService.CreateBookmark)
			r.Put("/bookmarks", bookmarkService.UpdateBookmark)
			r.Delete("/bookmarks", bookmarkService.DeleteBookmark)

			r.Get("/user", userService.GetUser)
			r.Put("/user", userService.UpdateUser)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
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

	// Wait for interrupt signal
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
