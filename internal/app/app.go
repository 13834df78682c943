package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"newsdesk/apps/backend/features/job"
	"newsdesk/apps/backend/features/stats"
	"newsdesk/apps/backend/features/task"
	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/keys"
	"newsdesk/apps/backend/internal/metrics"
	"newsdesk/apps/backend/internal/middleware"
	"newsdesk/apps/backend/internal/notify"
	"newsdesk/apps/backend/internal/progress"
	"newsdesk/apps/backend/internal/queue"
	"newsdesk/apps/backend/internal/worker"
)

// DigitalTimeout bounds one attempt at a digital article.
const DigitalTimeout = 5 * time.Minute

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Consumer is a topic handler together with its retry rule and attempt
// deadline.
type Consumer interface {
	nsq.Handler
	Policy() queue.RetryPolicy
	Timeout() time.Duration
}

type Processor interface {
	worker.DocumentProcessor
	worker.TextProcessor
}

type Objects interface {
	worker.ObjectDownloader
	worker.ObjectFetcher
}

// Pipeline is what the document and digital workers run on. It is nil in
// processes that only serve the API or deliver notifications.
type Pipeline struct {
	Processor  Processor
	Objects    Objects
	Bucket     string
	Credential *keys.Assignment
}

type Options struct {
	Pipeline *Pipeline
	// Uploads receives PDFs posted to /tasks/upload; nil refuses uploads.
	Uploads task.ObjectStore
	// Deliverer overrides the notification HTTP client.
	Deliverer notify.Deliverer
}

type App struct {
	Handler   http.Handler
	Consumers map[string]Consumer

	JobService *job.Service
	cfg        *config.Config
}

func New(
	cfg *config.Config,
	db *sql.DB,
	rdb redis.Cmdable,
	taskPub TaskPublisher,
	logger *slog.Logger,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	var credential *keys.Assignment
	if opts.Pipeline != nil {
		credential = opts.Pipeline.Credential
	}
	statsHandler := stats.NewHandler(jobRepo, credential)

	// Feature: Task submission
	taskHandler := task.NewHandler(task.NewService(taskPub, opts.Uploads), cfg.UploadMaxMB)

	progressHandler := progress.NewHandler(progress.NewRedisStore(rdb))

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Instrument(pattern, middleware.CorrelationID(h)))
	}

	route("POST /tasks/document", taskHandler.SubmitDocument)
	route("POST /tasks/images", taskHandler.SubmitImages)
	route("POST /tasks/digital", taskHandler.SubmitDigital)
	route("POST /tasks/upload", taskHandler.Upload)
	route("GET /tasks/{id}/progress", progressHandler.Get)
	route("GET /jobs/failed", jobHandler.List)
	route("POST /jobs/{id}/retry", jobHandler.Retry)
	route("DELETE /jobs/{id}", jobHandler.Discard)
	route("GET /stats", statsHandler.GetStats)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	consumers, err := buildConsumers(cfg, jobRepo, taskPub, opts)
	if err != nil {
		return nil, err
	}

	return &App{
		Handler:    mux,
		Consumers:  consumers,
		JobService: jobService,
		cfg:        cfg,
	}, nil
}

func buildConsumers(cfg *config.Config, dead queue.DeadLetterStore, taskPub TaskPublisher, opts *Options) (map[string]Consumer, error) {
	consumers := make(map[string]Consumer)
	enqueuer := notify.NewEnqueuer(taskPub, cfg.NotifyURL)

	if cfg.EnableDocumentWorker || cfg.EnableDigitalWorker {
		if opts.Pipeline == nil {
			return nil, errors.New("pipeline workers enabled without a pipeline")
		}
	}
	p := opts.Pipeline

	if cfg.EnableDocumentWorker {
		docOpts := worker.Options{
			Retry:   queue.RetryPolicy{MaxRetries: cfg.DocumentMaxRetries, Delay: cfg.DocumentRetryDelay()},
			Timeout: cfg.DocumentTimeout(),
			TempDir: cfg.ScratchDir,
		}
		consumers[config.TopicProcessDocument] = worker.NewDocumentConsumer(p.Processor, p.Objects, p.Bucket, dead, enqueuer, docOpts)
		consumers[config.TopicProcessImages] = worker.NewImagesConsumer(p.Processor, dead, enqueuer, docOpts)
	}

	if cfg.EnableDigitalWorker {
		digOpts := worker.Options{
			Retry:   queue.RetryPolicy{MaxRetries: cfg.DigitalMaxRetries, Delay: cfg.DigitalRetryDelay()},
			Timeout: DigitalTimeout,
		}
		consumers[config.TopicDigitalS3] = worker.NewDigitalS3Consumer(p.Processor, p.Objects, dead, enqueuer, digOpts)
		consumers[config.TopicDigitalRaw] = worker.NewDigitalRawConsumer(p.Processor, dead, enqueuer, digOpts)
	}

	if cfg.EnableNotifyWorker {
		deliverer := opts.Deliverer
		if deliverer == nil {
			deliverer = notify.NewClient(cfg.NotifyTimeout())
		}
		consumers[config.TopicNotify] = notify.NewConsumer(deliverer, dead, cfg.NotifyBaseDelay(), cfg.NotifyMaxRetries)
	}

	return consumers, nil
}

// Run connects the consumers and, when the API role is on, serves HTTP until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	var running []*nsq.Consumer
	defer func() {
		for _, c := range running {
			c.Stop()
		}
		for _, c := range running {
			<-c.StopChan
		}
		slog.Info("consumers stopped")
	}()

	for topic, h := range a.Consumers {
		c, err := a.connect(topic, h)
		if err != nil {
			return err
		}
		running = append(running, c)
	}

	if !a.cfg.EnableAPI {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	wg.Wait()
	return nil
}

func (a *App) connect(topic string, h Consumer) (*nsq.Consumer, error) {
	concurrency := a.cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = h.Policy().MaxAttempts()
	nsqCfg.MaxInFlight = concurrency
	if h.Timeout() > 0 {
		mt, err := msgTimeout(h.Timeout(), a.cfg.NSQMaxMsgTimeout())
		if err != nil {
			return nil, fmt.Errorf("nsq consumer %s: %w", topic, err)
		}
		nsqCfg.MsgTimeout = mt
	}

	c, err := nsq.NewConsumer(topic, config.Channel, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer %s: %w", topic, err)
	}
	c.SetLogger(nsqLogger{}, nsq.LogLevelWarning)
	c.AddConcurrentHandlers(h, concurrency)

	if err := c.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		c.Stop()
		return nil, fmt.Errorf("connect %s consumer to lookupd: %w", topic, err)
	}
	slog.Info("NSQ consumer connected", "topic", topic, "channel", config.Channel, "concurrency", concurrency)
	return c, nil
}

// msgTimeout keeps a message in flight for the whole attempt plus
// config.MsgTimeoutGrace. nsqd rejects anything above its --max-msg-timeout,
// and past it TOUCH no longer extends the deadline.
func msgTimeout(attempt, limit time.Duration) (time.Duration, error) {
	mt := attempt + config.MsgTimeoutGrace
	if limit > 0 && mt > limit {
		return 0, fmt.Errorf("attempt timeout %s plus %s exceeds nsqd max msg timeout %s",
			attempt, config.MsgTimeoutGrace, limit)
	}
	return mt, nil
}

// nsqLogger forwards go-nsq's internal log lines to slog.
type nsqLogger struct{}

func (nsqLogger) Output(_ int, s string) error {
	slog.Warn("nsq", "message", s)
	return nil
}
