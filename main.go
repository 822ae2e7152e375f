package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paper-scout/config"
	"paper-scout/excel"
	"paper-scout/providers"
	"paper-scout/providers/europepmc"
	"paper-scout/providers/pubmed"
	"paper-scout/providers/semanticscholar"
	"paper-scout/services"
	"paper-scout/storage"
)

var (
	newPapersCounter prometheus.Counter
	searchesCounter  prometheus.Counter
)

func init() {
	newPapersCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "new_papers_added_total",
			Help: "Total number of new papers added to the workbook.",
		},
	)
	searchesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Total number of search runs.",
		},
	)
	prometheus.MustRegister(newPapersCounter, searchesCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Store
	store := excel.NewStore(cfg.ExcelPath, cfg.BackupDir, cfg.KeepBackups, logging)
	logging.Info("Excel-Store initialisiert", zap.String("path", cfg.ExcelPath))

	// Setup Providers
	var enabledProviders []providers.Provider
	for _, name := range cfg.Providers() {
		switch name {
		case "pubmed":
			enabledProviders = append(enabledProviders, pubmed.NewFetcher(cfg, logging))
		case "europepmc":
			enabledProviders = append(enabledProviders, europepmc.NewFetcher(cfg, logging))
		case "semanticscholar":
			enabledProviders = append(enabledProviders, semanticscholar.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	if len(enabledProviders) == 0 {
		logging.Fatal("No valid providers enabled. Check ENABLED_PROVIDERS in .env")
	}
	logging.Info("Active providers loaded", zap.Strings("providers", cfg.Providers()))

	// Setup Services
	searchService := services.NewSearchService(cfg, store, logging, enabledProviders)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupSearchRoutes(router, searchService)
	setupStoreRoutes(router, store, logging)

	// Setup Cron: alle bekannten Suchen wiederholen, danach Backup.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled search job...")
		count, _, err := searchService.RepeatAll(context.Background())
		if err != nil {
			logging.Error("Cron job failed", zap.Error(err))
			return
		}
		logging.Info("Cron job completed", zap.Int("new_papers", count))
		newPapersCounter.Add(float64(count))

		if _, err := store.Backup(); err != nil {
			logging.Warn("Lokales Backup fehlgeschlagen", zap.Error(err))
		}
		uploadWorkbookToS3(cfg, store, logging)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupSearchRoutes(router *gin.Engine, svc *services.SearchService) {
	rg := router.Group("/search")

	rg.POST("/", func(c *gin.Context) {
		type SearchRequest struct {
			Query      string `json:"query" binding:"required"`
			MaxResults int    `json:"max_results"`
			Enrich     bool   `json:"enrich"`
			SendEmail  bool   `json:"send_email"`
		}

		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		result, err := svc.Run(c.Request.Context(), req.Query, services.RunOptions{
			MaxResults: req.MaxResults,
			Enrich:     req.Enrich,
			ForceEmail: req.SendEmail,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		searchesCounter.Inc()
		newPapersCounter.Add(float64(result.Added))
		c.JSON(http.StatusOK, result)
	})

	// Läuft abgekoppelt vom Request: mit mehreren Themen und den Pausen
	// zwischen den Suchen dauert der Durchlauf länger als jeder
	// Write-Timeout.
	rg.POST("/repeat-all", func(c *gin.Context) {
		go func() {
			totalNew, results, err := svc.RepeatAll(context.Background())
			if err != nil {
				svc.Logger.Error("Wiederholung aller Suchen fehlgeschlagen", zap.Error(err))
				return
			}
			newPapersCounter.Add(float64(totalNew))
			svc.Logger.Info("Wiederholung aller Suchen abgeschlossen",
				zap.Int("searches", len(results)), zap.Int("total_new", totalNew))
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "gestartet"})
	})
}

func setupStoreRoutes(router *gin.Engine, store *excel.Store, log *zap.Logger) {
	router.GET("/overview", func(c *gin.Context) {
		entries, err := store.Overview()
		if err != nil {
			log.Error("Overview konnte nicht gelesen werden", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	router.GET("/topics/:sheet/papers", func(c *gin.Context) {
		papers, err := store.TopicPapers(c.Param("sheet"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	router.GET("/stats", func(c *gin.Context) {
		stats, err := store.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	router.GET("/diagnose", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Diagnose())
	})

	router.POST("/repair/basic", func(c *gin.Context) {
		actions, err := store.RepairBasic()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "actions": actions})
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": actions})
	})

	router.POST("/repair/full", func(c *gin.Context) {
		actions, err := store.RepairFull()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "actions": actions})
			return
		}
		c.JSON(http.StatusOK, gin.H{"actions": actions})
	})

	router.GET("/download", func(c *gin.Context) {
		if _, err := os.Stat(store.Path()); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "arbeitsmappe existiert nicht"})
			return
		}
		c.FileAttachment(store.Path(), filepath.Base(store.Path()))
	})
}

// uploadWorkbookToS3 lädt die Arbeitsmappe in den optionalen S3-Speicher.
func uploadWorkbookToS3(cfg *config.Config, store *excel.Store, log *zap.Logger) {
	if !cfg.S3Configured() {
		return
	}

	client, err := storage.NewS3Client(cfg)
	if err != nil {
		log.Error("S3 client creation failed", zap.Error(err))
		return
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		log.Warn("Arbeitsmappe konnte nicht gelesen werden", zap.Error(err))
		return
	}

	key := "workbook/" + time.Now().UTC().Format("2006-01-02T15-04-05Z") + "_" + filepath.Base(store.Path())
	link, err := storage.UploadFile(context.Background(), client, cfg.S3Bucket, key, data, cfg)
	if err != nil {
		log.Error("S3-Upload fehlgeschlagen", zap.Error(err))
		return
	}
	log.Info("Arbeitsmappe nach S3 hochgeladen", zap.String("link", link))
}
