package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pressly/goose/v3"

	"github.com/pawpals/pawpark/internal/config"
	"github.com/pawpals/pawpark/internal/database"
	"github.com/pawpals/pawpark/internal/handler"
	"github.com/pawpals/pawpark/internal/middleware"
	"github.com/pawpals/pawpark/internal/queue"
	"github.com/pawpals/pawpark/internal/repository"
	"github.com/pawpals/pawpark/internal/router"
	"github.com/pawpals/pawpark/internal/service"
	"github.com/pawpals/pawpark/migrations"
)

func main() {
	// .env is optional; in deployed environments config comes from the
	// process environment.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		cancel()
		log.Fatalf("migrations: %v", err)
	}
	cancel()

	// Redis is optional: rate limiting fails open and the response
	// cache is skipped when it is unreachable.
	rdb := config.NewRedisClient()

	gardens := repository.NewGardenRepo(db)
	dogs := repository.NewDogRepo(db)
	visits := repository.NewVisitRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	visitSvc := service.NewVisitService(gardens, dogs, visits, queue.Publisher{})

	authH := handler.NewAuthHandler(cfg, users, tokens)
	gardenH := handler.NewGardenHandler(gardens)
	dogH := handler.NewDogHandler(dogs)
	visitH := handler.NewVisitHandler(visitSvc)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	if rdb != nil {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, gardenH, config.LoadCacheConfig(), rdb)
	router.RegisterMember(e, dogH, visitH, cfg.JWTSecret)
	router.RegisterAdmin(e, gardenH, cfg.JWTSecret)

	go queue.StartVisitLogConsumer()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
