package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/emotune/internal/account"
	"github.com/your-org/emotune/internal/api"
	"github.com/your-org/emotune/internal/api/handlers"
	"github.com/your-org/emotune/internal/api/ws"
	"github.com/your-org/emotune/internal/auth"
	"github.com/your-org/emotune/internal/catalog"
	"github.com/your-org/emotune/internal/config"
	"github.com/your-org/emotune/internal/observability"
	"github.com/your-org/emotune/internal/queue"
	"github.com/your-org/emotune/internal/recommend"
	"github.com/your-org/emotune/internal/storage"
	"github.com/your-org/emotune/internal/vision"
	"github.com/your-org/emotune/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting emotune API service", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	checks := map[string]handlers.Check{"postgres": db.Ping}

	// Accounts
	tokens := auth.NewResetTokenStore(cfg.Reset.TokenTTL)
	go tokens.RunSweeper(ctx, cfg.Reset.SweepInterval)
	accounts := account.NewService(db, auth.NewBcryptHasher(cfg.Reset.BcryptCost), tokens)

	// Emotion classifier. The service still starts without it.
	var classifier vision.Classifier
	libPath := cfg.Classifier.LibraryPath
	if libPath == "" {
		libPath = getONNXLibPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, /detect-emotion will be unavailable", "error", err)
	} else {
		defer ort.DestroyEnvironment()
		onnx, err := vision.NewONNXClassifier(cfg.Classifier)
		if err != nil {
			slog.Warn("emotion model not loaded, /detect-emotion will be unavailable",
				"model", cfg.Classifier.ModelPath, "error", err)
		} else {
			defer onnx.Close()
			classifier = onnx
		}
	}

	// Spotify catalog. Without credentials recommendations answer 500.
	var provider recommend.SearchProvider
	if cfg.Spotify.Enabled() {
		spotifyClient, err := catalog.NewSpotifyClient(ctx, cfg.Spotify)
		if err != nil {
			slog.Warn("spotify client init failed", "error", err)
		} else {
			provider = spotifyClient
		}
	} else {
		slog.Warn("spotify credentials not set, recommendations will be unavailable")
	}
	recommender := recommend.NewRecommender(provider, cfg.Spotify.ResultLimit, cfg.Spotify.Timeout)

	emotionH := handlers.NewEmotionHandler(classifier, cfg.Server.MaxUploadBytes)

	// Capture archive
	if cfg.MinIO.Enabled {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Warn("minio init failed, captures will not be archived", "error", err)
		} else {
			if err := minioStore.EnsureBucket(ctx); err != nil {
				slog.Warn("ensure minio bucket", "error", err)
			}
			emotionH.Archive = minioStore
			checks["minio"] = minioStore.Ping
		}
	}

	// WebSocket hub, fed through NATS when configured and directly otherwise.
	hub := ws.NewHub(cfg.Server.CORSOrigins)
	go hub.Run(ctx)
	emotionH.Publisher = hub

	if cfg.NATS.URL != "" {
		producer, consumer, err := startEventQueue(ctx, cfg.NATS.URL, hub)
		if err != nil {
			slog.Warn("detection event queue unavailable, feeding live feed directly", "error", err)
		} else {
			defer producer.Close()
			defer consumer.Close()
			emotionH.Publisher = producer
			checks["nats"] = func(context.Context) error { return producer.Ping() }
		}
	}

	systemH := handlers.NewSystemHandler(checks, map[string]bool{
		"classifier": classifier != nil,
		"spotify":    recommender.Available(),
		"archive":    emotionH.Archive != nil,
	})

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		MetricsKey:  cfg.Server.MetricsKey,
		Accounts:    accounts,
		Emotion:     emotionH,
		Recommender: recommender,
		System:      systemH,
		Hub:         hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}

// startEventQueue ensures the DETECTIONS stream and forwards consumed events to
// the hub.
func startEventQueue(ctx context.Context, natsURL string, hub *ws.Hub) (*queue.Producer, *queue.Consumer, error) {
	producer, err := queue.NewProducer(natsURL)
	if err != nil {
		return nil, nil, err
	}
	if err := producer.EnsureStream(ctx); err != nil {
		producer.Close()
		return nil, nil, err
	}

	consumer, err := queue.NewConsumer(natsURL)
	if err != nil {
		producer.Close()
		return nil, nil, err
	}

	err = consumer.ConsumeDetections(ctx, "api-detections", func(_ context.Context, evt dto.DetectionEvent) error {
		hub.BroadcastDetection(evt)
		return nil
	})
	if err != nil {
		consumer.Close()
		producer.Close()
		return nil, nil, err
	}

	return producer, consumer, nil
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
