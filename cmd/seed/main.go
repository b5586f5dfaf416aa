// seed: 開発用の初期データ投入ツール。
// admin アカウントとカテゴリ・蔵書のサンプルを実サービス経由で登録する。
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"LIBRIS-backend/internal/catalog/books"
	"LIBRIS-backend/internal/catalog/categories"
	"LIBRIS-backend/internal/membership/users"
	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
)

func main() {
	host := flag.String("host", getEnv("DB_HOST", "127.0.0.1"), "Database host")
	port := flag.Int("port", 3306, "Database port")
	user := flag.String("user", getEnv("DB_USER", "libris"), "Database user")
	password := flag.String("password", getEnv("DB_PASSWORD", "libris"), "Database password")
	dbname := flag.String("db", getEnv("DB_NAME", "librisdb"), "Database name")
	adminEmail := flag.String("admin-email", "admin@libris.local", "Admin account email")
	adminPassword := flag.String("admin-password", "", "Admin account password (required)")
	flag.Parse()

	if *adminPassword == "" {
		log.Fatal("--admin-password is required")
	}

	conn, err := db.Connect(db.DatabaseConfig{
		Host: *host, Port: *port, Username: *user, Password: *password, DBName: *dbname,
	})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := seedAdmin(ctx, conn, *adminEmail, *adminPassword); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	if err := seedCatalog(ctx, conn); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	log.Println("[INFO] seeding done")
}

func seedAdmin(ctx context.Context, conn *sql.DB, email, password string) error {
	svc := users.NewService(conn)
	u, err := svc.Create(ctx, "Libris", "Admin", email, password)
	if apperr.Is(err, apperr.CodeDuplicateKey) {
		log.Printf("[INFO] admin %s already exists, skipping", email)
		return nil
	}
	if err != nil {
		return err
	}

	// ロール昇格はサービスに口を作らず、ここで直接UPDATEする
	if _, err := conn.ExecContext(ctx,
		`UPDATE users SET role = 'admin' WHERE user_id = ?`, u.UserID); err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	log.Printf("[INFO] created admin %s (user_id=%d)", email, u.UserID)
	return nil
}

func seedCatalog(ctx context.Context, conn *sql.DB) error {
	catSvc := categories.NewService(conn)
	bookSvc := books.NewService(conn)

	cats := map[string]int64{}
	for _, name := range []string{"Fiction", "Science", "History"} {
		c, err := catSvc.Create(ctx, name)
		if apperr.Is(err, apperr.CodeDuplicateKey) {
			continue
		}
		if err != nil {
			return err
		}
		cats[name] = c.CategoryID
	}
	if len(cats) < 3 {
		// 既に投入済みの分はIDを引き直す
		list, err := catSvc.List(ctx)
		if err != nil {
			return err
		}
		for _, c := range list {
			if _, ok := cats[c.Name]; !ok {
				cats[c.Name] = c.CategoryID
			}
		}
	}

	samples := []books.CreateBookRequest{
		{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", CategoryID: cats["Fiction"], Quantity: 2},
		{Title: "A Brief History of Time", Author: "Stephen Hawking", ISBN: "9780553380163", CategoryID: cats["Science"], Quantity: 3},
		{Title: "SPQR", Author: "Mary Beard", ISBN: "9781631494222", CategoryID: cats["History"], Quantity: 1},
	}
	for _, in := range samples {
		if in.CategoryID == 0 {
			continue
		}
		b, created, err := bookSvc.Create(ctx, in)
		if err != nil {
			return err
		}
		if created {
			log.Printf("[INFO] created book %q (book_id=%d)", b.Title, b.BookID)
		} else {
			log.Printf("[INFO] restocked book %q (quantity=%d)", b.Title, b.Quantity)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
