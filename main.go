package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"

	"LIBRIS-backend/internal/catalog/books"
	"LIBRIS-backend/internal/catalog/categories"
	"LIBRIS-backend/internal/lending/ledger"
	"LIBRIS-backend/internal/membership/users"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/db"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	// 動作モード取得
	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}
	if cfg.JWTSecret == "" {
		log.Fatal("[ERROR] jwt_secret is not set in config")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	secret := []byte(cfg.JWTSecret)
	issuer := auth.NewTokenIssuer(secret)

	usersSvc := users.NewService(conn)
	booksSvc := books.NewService(conn)
	categoriesSvc := categories.NewService(conn)
	ledgerSvc := ledger.NewService(conn)

	// /api/v1
	api := r.Group("/api/v1")
	users.RegisterPublicRoutes(api, usersSvc, issuer)

	// 認証必須
	authed := api.Group("", auth.RequireAuth(secret))
	users.RegisterProtectedRoutes(authed, usersSvc)
	books.RegisterRoutes(authed, booksSvc)
	categories.RegisterRoutes(authed, categoriesSvc)
	ledger.RegisterRoutes(authed, ledgerSvc)

	// admin専用
	admin := authed.Group("", auth.RequireRole(string(users.RoleAdmin)))
	users.RegisterAdminRoutes(admin, usersSvc)
	books.RegisterAdminRoutes(admin, booksSvc)
	categories.RegisterAdminRoutes(admin, categoriesSvc)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: r,
	}

	go func() {
		log.Printf("[INFO] listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
