// Package main запускает сервис измерения пульса по сигналу фотоплетизмограммы.
// Сервис реализует:
// - периодический сбор отсчетов датчика и полосовую фильтрацию
// - оценку пульса по спектру скользящего окна
// - выдачу записей единственному потребителю по WebSocket или в stdout
// - раздачу записей в Redis, NATS и MQTT
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ppg-service/internal/acquisition"
	"ppg-service/internal/analytics"
	"ppg-service/internal/cache"
	"ppg-service/internal/config"
	"ppg-service/internal/controller"
	"ppg-service/internal/dsp"
	"ppg-service/internal/handlers"
	"ppg-service/internal/heartrate"
	"ppg-service/internal/indicator"
	"ppg-service/internal/link"
	"ppg-service/internal/metrics"
	"ppg-service/internal/publish"
	"ppg-service/internal/queue"
	"ppg-service/internal/sensor"
	"ppg-service/internal/timer"
)

func main() {
	log.Println("Starting PPG Service...")
	log.Printf("Go version: %s", runtime.Version())
	log.Printf("NumCPU: %d", runtime.NumCPU())

	// Загружаем и проверяем конфигурацию до запуска цикла
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	log.Printf("Sampling at %d Hz, window %d/%d, FFT %d, policy %s, exclude DC %v",
		cfg.SampleRate, cfg.NumSamples, cfg.History, cfg.FFTLength, cfg.Policy, cfg.ExcludeDC)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filter, err := buildFilter(cfg)
	if err != nil {
		log.Fatalf("Filter error: %v", err)
	}

	measurements, err := queue.New(cfg.QueueCapacity)
	if err != nil {
		log.Fatalf("Queue error: %v", err)
	}

	timers := timer.NewTable(timer.DefaultCapacity)
	defer timers.Close()

	simCfg := sensor.DefaultConfig()
	simCfg.SampleRate = float64(cfg.SampleRate)
	simCfg.HeartRate = cfg.SimHeartRate
	simCfg.Noise = cfg.SimNoise
	simCfg.FailureRate = cfg.SimFailureRate
	simCfg.Seed = time.Now().UnixNano()

	scheduler, err := acquisition.NewScheduler(timers, sensor.NewPPGSim(simCfg),
		acquisition.NewMonotonicClock(), filter, measurements)
	if err != nil {
		log.Fatalf("Acquisition error: %v", err)
	}
	defer scheduler.Close()

	estimator, err := heartrate.New(cfg.HeartRate(), nil)
	if err != nil {
		log.Fatalf("Estimator error: %v", err)
	}
	log.Printf("Frequency resolution %.4f Hz/bin (±%.1f BPM)",
		cfg.HeartRate().Resolution(), 60*cfg.HeartRate().Resolution())

	status := indicator.New()

	// Канал связи с потребителем
	var (
		downstream controller.Link
		wsLink     *link.WebSocketLink
	)
	switch cfg.LinkMode {
	case config.LinkStdout:
		stdoutLink := link.NewWriterLink(os.Stdout)
		defer stdoutLink.Close()
		downstream = stdoutLink
	default:
		wsLink = link.NewWebSocketLink(cfg.LinkWriteTimeout)
		defer wsLink.Close()
		downstream = wsLink
	}

	// Приемники записей
	tracker := analytics.NewTracker(analytics.WindowSize)
	sinks := []publish.Sink{tracker}

	var store handlers.RecordStore
	if redisCache := connectRedis(ctx, cfg); redisCache != nil {
		defer redisCache.Close()
		sinks = append(sinks, redisCache)
		store = redisCache
	}

	if cfg.NATSURL != "" {
		natsSink, err := publish.NewNATSSink(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Printf("Warning: NATS disabled: %v", err)
		} else {
			defer natsSink.Close()
			sinks = append(sinks, natsSink)
			log.Printf("Publishing records to NATS subject %s", natsSink.Subject())
		}
	}

	if cfg.MQTTBroker != "" {
		mqttSink, err := publish.NewMQTTSink(cfg.MQTTBroker, cfg.MQTTTopic)
		if err != nil {
			log.Printf("Warning: MQTT disabled: %v", err)
		} else {
			defer mqttSink.Close()
			sinks = append(sinks, mqttSink)
			log.Printf("Publishing records to MQTT topic %s", mqttSink.Topic())
		}
	}

	dispatcher := publish.NewDispatcher(cfg.SinkBuffer, publish.DefaultTimeout, sinks...)
	dispatcher.Start()
	defer dispatcher.Stop()
	log.Printf("Record sinks: %v", dispatcher.Sinks())

	ctrlCfg := controller.DefaultConfig()
	ctrlCfg.SamplePeriod = cfg.SamplePeriod()
	ctrlCfg.ReceiveTimeout = cfg.ReceiveTimeout
	ctrlCfg.PollInterval = cfg.PollInterval

	ctrl, err := controller.New(ctrlCfg, controller.Deps{
		Link:        downstream,
		Indicator:   status,
		Acquisition: scheduler,
		Source:      measurements,
		Estimator:   estimator,
		Submitter:   dispatcher,
	})
	if err != nil {
		log.Fatalf("Controller error: %v", err)
	}

	// Создаем обработчики
	handler := handlers.NewHandler(handlers.Deps{
		Pipeline:    ctrl,
		Acquisition: scheduler,
		Queue:       measurements,
		Indicator:   status,
		Tracker:     tracker,
		Store:       store,
	})

	// Настраиваем маршруты
	router := mux.NewRouter()

	// API эндпоинты
	router.HandleFunc("/health", handler.HealthHandler).Methods("GET")
	router.HandleFunc("/stats", handler.StatsHandler).Methods("GET")
	router.HandleFunc("/analyze", handler.AnalysisHandler).Methods("GET")
	router.HandleFunc("/records/latest", handler.LatestRecordsHandler).Methods("GET")
	if wsLink != nil {
		router.Handle("/link", wsLink).Methods("GET")
	}

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// Middleware для логирования
	router.Use(loggingMiddleware)

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}
	// WriteTimeout не задан: соединение /link живет дольше любого таймаута

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server listening on %s", cfg.ServerAddr)
		log.Printf("Endpoints:")
		log.Printf("  GET  /health          - Health check")
		log.Printf("  GET  /stats           - Pipeline statistics")
		log.Printf("  GET  /analyze         - Heart rate analytics")
		log.Printf("  GET  /records/latest  - Latest records from cache")
		log.Printf("  GET  /link            - WebSocket downstream link")
		log.Printf("  GET  /prometheus      - Prometheus metrics")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	g.Go(func() error {
		updateMetricsLoop(gctx, measurements)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		// Контекст с таймаутом для завершения
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if wsLink != nil {
			wsLink.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Service error: %v", err)
	}

	submitted, dropped, failed := dispatcher.Stats()
	st := scheduler.Stats()
	log.Printf("Acquired %d samples (%d read failures, %d dropped), emitted %d records",
		st.Acquired, st.ReadFailures, st.Dropped, ctrl.Emitted())
	log.Printf("Dispatcher: %d submitted, %d dropped, %d sink failures", submitted, dropped, failed)
	log.Println("Server stopped")
}

// buildFilter собирает полосовой фильтр и, при необходимости, сглаживание
func buildFilter(cfg config.Config) (acquisition.Filter, error) {
	bandpass, err := dsp.NewCascade(cfg.FilterOrder, cfg.FilterCoeffs)
	if err != nil {
		return nil, err
	}
	if cfg.FilterSmoothing <= 1 {
		return bandpass, nil
	}
	smoothing, err := dsp.NewMovingAverage[float32](cfg.FilterSmoothing)
	if err != nil {
		return nil, err
	}
	log.Printf("Smoothing filtered signal over %d samples", cfg.FilterSmoothing)
	return dsp.Chain[float32]{bandpass, smoothing}, nil
}

// connectRedis подключается к Redis с повторами. nil - работаем без кэша.
func connectRedis(ctx context.Context, cfg config.Config) *cache.RedisCache {
	if cfg.RedisAddr == "" {
		log.Printf("Redis disabled")
		return nil
	}

	var err error
	for i := 0; i < 5; i++ {
		var redisCache *cache.RedisCache
		redisCache, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			log.Printf("Connected to Redis at %s", cfg.RedisAddr)
			return redisCache
		}
		log.Printf("Redis connection attempt %d failed: %v", i+1, err)
		if i < 4 {
			select {
			case <-time.After(time.Duration(i+1) * time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}

	log.Printf("Warning: Failed to connect to Redis, running without cache: %v", err)
	return nil
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context, q *queue.Queue) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.QueueDepth.Set(float64(q.Len()))
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		case <-ctx.Done():
			return
		}
	}
}
