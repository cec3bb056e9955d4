package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gojosatorou999/jalscan-sih/internal/conf"
	"github.com/gojosatorou999/jalscan-sih/internal/datastore"
	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/observability"
	"github.com/gojosatorou999/jalscan-sih/internal/publish"
	"github.com/gojosatorou999/jalscan-sih/internal/risk"
	"github.com/gojosatorou999/jalscan-sih/internal/weather"
)

// engine bundles the pipeline with the resources it owns.
type engine struct {
	pipeline   *Pipeline
	classifier *risk.Classifier // nil when running rules only
	metrics    *observability.Metrics
	cleanup    func()
}

// buildEngine assembles the full evaluation stack from settings.
func buildEngine(settings *conf.Settings) (*engine, error) {
	if err := conf.ValidateSettings(settings); err != nil {
		return nil, err
	}

	if settings.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: settings.Sentry.DSN}); err != nil {
			analysisLogger.Warn("sentry init failed", "error", err.Error())
		} else {
			errors.SetTelemetryReporter(errors.NewSentryReporter(true))
		}
	}

	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no database output enabled").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	var cleanups []func()
	cleanups = append(cleanups, func() {
		if err := store.Close(); err != nil {
			analysisLogger.Error("datastore close failed", "error", err.Error())
		}
	})

	// A broken model artifact must not take the engine down; the rule
	// engine carries every verdict until the artifact is fixed.
	classifier, err := risk.NewClassifier(settings)
	if err != nil {
		analysisLogger.Error("classifier unavailable, running rules only", "error", err.Error())
		classifier = nil
	}
	predictor := risk.NewFailOpenPredictor(classifier, risk.NewRuleEngine(settings.Risk.HorizonHours))

	var publisher *publish.Publisher
	if settings.Realtime.MQTT.Enabled {
		client := publish.NewMQTTClient(settings.Realtime.MQTT, settings.Main.Name)
		publisher = publish.NewPublisher(client, settings.Realtime.MQTT.Topic)
		cleanups = append(cleanups, client.Disconnect)
	}

	var metrics *observability.Metrics
	if settings.Realtime.Telemetry.Enabled {
		metrics, err = observability.NewMetrics()
		if err != nil {
			return nil, err
		}
	}

	pipeline := NewPipeline(settings, store, predictor, weather.NewStubProvider(),
		publisher, metrics, nil)

	return &engine{
		pipeline:   pipeline,
		classifier: classifier,
		metrics:    metrics,
		cleanup: func() {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		},
	}, nil
}

// reloadModel swaps the classifier's artifact for the configured one.
func (e *engine) reloadModel(settings *conf.Settings) {
	if e.classifier == nil {
		analysisLogger.Warn("model reload requested but no classifier is loaded")
		return
	}
	if err := e.classifier.Reload(settings.Risk.ArtifactPath); err != nil {
		analysisLogger.Error("model reload failed, keeping current artifact", "error", err.Error())
		if e.metrics != nil {
			e.metrics.Risk.ModelReloadTotal.WithLabelValues("error").Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.Risk.ModelReloadTotal.WithLabelValues("ok").Inc()
	}
	analysisLogger.Info("model artifact reloaded", "version", e.classifier.Version())
}

// AssessOnce runs a single evaluation cycle and writes the results to
// stdout as JSON. An empty siteID evaluates every active site.
func AssessOnce(ctx context.Context, settings *conf.Settings, siteID string) error {
	eng, err := buildEngine(settings)
	if err != nil {
		return err
	}
	defer eng.cleanup()

	at := time.Now().UTC()
	var results []*Result
	if siteID != "" {
		result, err := eng.pipeline.EvaluateSite(ctx, siteID, at)
		if err != nil {
			return err
		}
		results = []*Result{result}
	} else {
		results, err = eng.pipeline.EvaluateAll(ctx, at)
		if err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// Realtime runs evaluation cycles on the configured interval until the
// given context is done or the process receives an interrupt or
// termination signal.
func Realtime(ctx context.Context, settings *conf.Settings) error {
	eng, err := buildEngine(settings)
	if err != nil {
		return err
	}
	defer eng.cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGHUP swaps in a fresh model artifact without interrupting the loop.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	if eng.metrics != nil {
		server := observability.NewServer(settings.Realtime.Telemetry.Listen, eng.metrics)
		go func() {
			if err := server.Start(ctx); err != nil {
				analysisLogger.Error("telemetry server failed", "error", err.Error())
			}
		}()
	}

	interval := time.Duration(settings.Realtime.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Printf("%s realtime evaluation started, interval %s\n", settings.Main.Name, interval)
	analysisLogger.Info("realtime evaluation started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			analysisLogger.Info("shutting down")
			return nil
		case <-hup:
			eng.reloadModel(settings)
		case <-ticker.C:
			results, err := eng.pipeline.EvaluateAll(ctx, time.Now().UTC())
			if err != nil {
				analysisLogger.Error("evaluation cycle failed", "error", err.Error())
				continue
			}
			analysisLogger.Info("evaluation cycle complete", "sites", len(results))
		}
	}
}
