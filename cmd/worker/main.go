// Worker entry point.  "run" processes one request passed as JSON, the
// batch path; "listen" consumes requests from the broker until stopped.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apppredict "github.com/turtacn/VisionServe/internal/application/predict"
	"github.com/turtacn/VisionServe/internal/config"
	"github.com/turtacn/VisionServe/internal/content"
	domainpredict "github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/VisionServe/internal/infrastructure/storage/minio"
	"github.com/turtacn/VisionServe/internal/infrastructure/transport"
	"github.com/turtacn/VisionServe/internal/notify"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "visionserve-worker",
		Short:   "VisionServe prediction worker",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newListenCmd(&configPath))
	return root
}

// runtimeDeps is everything a worker needs to process requests.
type runtimeDeps struct {
	cfg     *config.Config
	logger  logging.Logger
	service *apppredict.Service
	metrics *prometheus.PipelineMetrics
	cleanup []func()
}

func (r *runtimeDeps) close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func buildRuntime(configPath string) (*runtimeDeps, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetDefault(logger)

	rt := &runtimeDeps{cfg: cfg, logger: logger}

	var objectStore transport.ObjectStore
	if cfg.MinIO.Enabled {
		store, err := minio.NewClient(&cfg.MinIO.Config, logger.Named("minio"))
		if err != nil {
			return nil, err
		}
		objectStore = store
	}

	metrics := prometheus.NewPipelineMetrics("visionserve")

	tr := transport.New(transport.Options{
		HTTP:        &cfg.Transport.HTTP,
		ObjectStore: objectStore,
		Logger:      logger.Named("transport"),
		Observer:    metrics,
	})

	var emitter *notify.Emitter
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Config, logger.Named("kafka"))
		if err != nil {
			return nil, err
		}
		rt.cleanup = append(rt.cleanup, func() { _ = producer.Close() })
		emitter = notify.NewEmitter(producer, logger.Named("notify"), notify.WithMetrics(metrics))
	}

	registry := apppredict.NewRegistry(&apppredict.Task{
		Name:      "passthrough",
		Predictor: apppredict.Passthrough{},
		Renderer:  apppredict.EchoRenderer{},
	})

	deps := content.Deps{
		Transport: tr,
		Pool:      transport.NewPool(cfg.Transport.PoolSize),
		Codec:     content.NewFFmpegCodec(),
		Logger:    logger.Named("content"),
		Metrics:   metrics,
	}

	rt.service = apppredict.NewService(cfg.Predict, registry, deps, emitter, metrics, logger.Named("predict"))
	rt.metrics = metrics
	return rt, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	var requestFile string

	cmd := &cobra.Command{
		Use:   "run [request-json]",
		Short: "Process a single prediction request and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			switch {
			case requestFile != "":
				data, err := os.ReadFile(requestFile)
				if err != nil {
					return err
				}
				payload = data
			case len(args) == 1:
				payload = []byte(args[0])
			default:
				return fmt.Errorf("pass the request as an argument or via --request-file")
			}

			var req domainpredict.Request
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("invalid request payload: %w", err)
			}

			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.close()

			resp, err := rt.service.Process(cmd.Context(), &req)
			if err != nil {
				return err
			}

			answer := map[string]interface{}{
				"id":      resp.RequestID,
				"count":   resp.Count,
				"results": resp.Results,
				"metrics": resp.Metrics,
			}
			if resp.File != "" {
				answer["file"] = resp.File
				answer["mime"] = resp.MIME
			}
			out, err := json.MarshalIndent(answer, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&requestFile, "request-file", "", "read the request JSON from a file")
	return cmd
}

func newListenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Consume prediction requests from the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.close()

			if !rt.cfg.Kafka.Enabled {
				return fmt.Errorf("listen mode requires kafka to be enabled")
			}

			consumer, err := kafka.NewConsumer(rt.cfg.Kafka.Config, kafka.TopicRequests,
				rt.cfg.Kafka.GroupID, rt.logger.Named("consumer"))
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metricsSrv := startMetricsServer(rt)
			defer shutdownMetricsServer(metricsSrv, rt)

			rt.logger.Info("Worker listening",
				logging.String("topic", kafka.TopicRequests),
				logging.String("group", rt.cfg.Kafka.GroupID))

			return consumer.Run(ctx, func(ctx context.Context, key, value []byte) error {
				var req domainpredict.Request
				if err := json.Unmarshal(value, &req); err != nil {
					return fmt.Errorf("invalid request payload: %w", err)
				}
				_, err := rt.service.Process(ctx, &req)
				return err
			})
		},
	}
}

func startMetricsServer(rt *runtimeDeps) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", rt.cfg.Server.MetricsPort),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.logger.Error("Metrics server failed", logging.Err(err))
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, rt *runtimeDeps) {
	ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
