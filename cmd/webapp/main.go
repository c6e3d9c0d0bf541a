// Command webapp is the tutorial's sample service: two HTTP handlers
// behind the context bridge middleware. /ping answers directly; /relay
// calls another service (by default its own /ping) through the injecting
// transport, so the sidecar-propagated trace continues across the hop.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stevenc81/jaeger-tracing-example/bridge"
	"github.com/stevenc81/jaeger-tracing-example/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("ERROR config.Load: %+v", err)
		return
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Printf("ERROR newLogger: %+v", err)
		return
	}
	defer func() { _ = logger.Sync() }()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Error("maxprocs.Set", zap.Error(err))
	}

	b := newBridge(cfg.Tracing, logger)
	defer b.Close()

	target := cfg.Server.RelayTarget
	if target == "" {
		target = "http://localhost:" + cfg.Server.Port + "/ping"
	}
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &bridge.Transport{Bridge: b},
	}

	r := mux.NewRouter()
	r.Use(bridge.Middleware(b, "http.request"))
	r.HandleFunc("/ping", handlePing).Methods(http.MethodGet)
	r.HandleFunc("/relay", handleRelay(logger, client, target)).Methods(http.MethodGet)

	server := http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.ListenAndServe", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("addr", server.Addr),
		zap.String("relay_target", target),
	)

	<-ctx.Done()
	stop()
	logger.Info("shutdown (signal received)")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server.Shutdown", zap.Error(err))
	}
}

// handlePing is the leaf endpoint: it reports the trace it ended up on.
func handlePing(w http.ResponseWriter, r *http.Request) {
	span := bridge.GetSpan(r.Context())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message":  "pong",
		"trace_id": span.Context.TraceID,
		"span_id":  span.Context.SpanID,
	})
}

// handleRelay forwards the inbound trace context on an outbound call.
// The Transport starts the client span and injects the headers; this
// handler only has to use the request's context.
func handleRelay(logger *zap.Logger, client *http.Client, target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, http.NoBody)
		if err != nil {
			http.Error(w, "bad relay target", http.StatusInternalServerError)
			return
		}

		resp, err := client.Do(req)
		if err != nil {
			logger.Error("relay request failed", zap.Error(err))
			http.Error(w, "relay failed", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		var body bytes.Buffer
		if _, err := body.ReadFrom(resp.Body); err != nil {
			logger.Error("relay read failed", zap.Error(err))
			http.Error(w, "relay failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		fmt.Fprintf(w, `{"relayed":%s}`, body.String())
	}
}

// newBridge wires the bridge to a collector when one is configured and
// to the log reporter otherwise.
func newBridge(cfg config.TracingConfig, logger *zap.Logger) *bridge.Bridge {
	sampler := bridge.AlwaysSample
	if !cfg.Sample {
		sampler = bridge.NeverSample
	}

	var reporter bridge.Reporter
	if cfg.CollectorURL != "" {
		reporter = bridge.NewBufferedReporter(
			newCollectorSender(cfg.CollectorURL),
			logger, cfg.ReportInterval, cfg.ReportBuffer,
		)
	} else {
		reporter = bridge.NewLogReporter(logger)
	}

	return bridge.New(
		bridge.WithSampler(sampler),
		bridge.WithSharedSpans(cfg.SharedSpans),
		bridge.WithReporter(reporter),
	)
}

// newCollectorSender posts span batches to the collector as JSON.
func newCollectorSender(url string) bridge.Sender {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(batch []bridge.Span) error {
		payload, err := json.Marshal(batch)
		if err != nil {
			return err
		}
		resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("collector returned %s", resp.Status)
		}
		return nil
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
