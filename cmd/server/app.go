package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"quizzems/internal/collection"
	"quizzems/internal/config"
	"quizzems/internal/quiz"
	"quizzems/internal/score"
	"quizzems/pkg/cache"
	"quizzems/pkg/database"
)

// app holds the dependencies shared by the commands.
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *cache.RedisCache
}

func openApp(cfg *config.Config) (*app, error) {
	dbConfig := &database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		Path:     cfg.Database.Path,
		Verbose:  cfg.Database.Verbose,
	}
	db, err := database.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a := &app{cfg: cfg, db: db}
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			log.Printf("Warning: redis at %s unavailable, running without cache: %v", cfg.Redis.Addr, err)
			rc.Close()
		} else {
			a.redis = rc
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// collectionProvider builds the configured source, read through the cache
// when redis is available.
func (a *app) collectionProvider(ctx context.Context, repo *collection.Repository) (collection.Provider, collection.Invalidator, error) {
	var provider collection.Provider
	switch a.cfg.Collection.Source {
	case "http":
		provider = collection.NewHTTPProvider(a.cfg.Collection.APIURL, &http.Client{Timeout: 10 * time.Second})
	case "sheets":
		sp, err := collection.NewSheetsProvider(ctx, a.cfg.Collection.SheetsCredentialsFile, a.cfg.Collection.SheetsRange)
		if err != nil {
			return nil, nil, err
		}
		provider = sp
	default:
		provider = collection.NewDBProvider(repo)
	}
	log.Printf("Serving collections from %s", a.cfg.Collection.Source)

	if a.redis == nil || a.cfg.Collection.CacheTTL == 0 {
		return provider, nil, nil
	}
	cached := collection.NewCachedProvider(provider, a.redis, a.cfg.Collection.CacheTTL)
	return cached, cached, nil
}

func (a *app) scoreCache() score.Cache {
	if a.redis == nil {
		return nil
	}
	return a.redis
}

func (a *app) scoreReporter(repo *score.Repository) quiz.ScoreReporter {
	if a.cfg.Score.Reporter == "http" {
		return score.NewHTTPReporter(a.cfg.Score.APIURL, &http.Client{Timeout: a.cfg.Quiz.ReportTimeout})
	}
	return score.NewDBReporter(repo, a.scoreCache())
}
