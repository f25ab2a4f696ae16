package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voidshard/vidpipe/internal/core"
	"github.com/voidshard/vidpipe/internal/utils"
	"github.com/voidshard/vidpipe/pkg/api"
	"github.com/voidshard/vidpipe/pkg/api/http/server"
	"github.com/voidshard/vidpipe/pkg/blob"
	"github.com/voidshard/vidpipe/pkg/database"
	"github.com/voidshard/vidpipe/pkg/events"
	"github.com/voidshard/vidpipe/pkg/queue"
	"github.com/voidshard/vidpipe/pkg/transcode"
	"github.com/voidshard/vidpipe/pkg/worker"
)

const (
	docServe = `Run the API server, scheduler & workers`
)

type optsQueue struct {
	QueueURL       string `long:"queue-url" env:"QUEUE_URL" description:"Work queue (local:// or redis://)" default:"local://"`
	QueueTLSCaCert string `long:"queue-tls-ca-cert" env:"QUEUE_TLS_CA_CERT" description:"Path to CA certificate for queue TLS"`
	QueueTLSCert   string `long:"queue-tls-cert" env:"QUEUE_TLS_CERT" description:"Path to client certificate for queue TLS"`
	QueueTLSKey    string `long:"queue-tls-key" env:"QUEUE_TLS_KEY" description:"Path to client key for queue TLS"`
	Workers        int    `long:"workers" env:"WORKERS" description:"Jobs this process executes at once (defaults to --max-running)"`
}

type optsBlob struct {
	BlobURL       string `long:"blob-url" env:"BLOB_URL" description:"Blob store (file:///path or s3://bucket/prefix)" default:"file:///tmp/vidpipe/blobs"`
	BlobSecret    string `long:"blob-secret" env:"BLOB_SECRET" description:"Secret signing file store links"`
	BlobPublicURL string `long:"blob-public-url" env:"BLOB_PUBLIC_URL" description:"Where clients reach /blobs on this server" default:"http://localhost:8080/blobs"`
	S3Region      string `long:"s3-region" env:"S3_REGION" description:"S3 region"`
	S3Endpoint    string `long:"s3-endpoint" env:"S3_ENDPOINT" description:"S3 compatible endpoint"`
	S3PathStyle   bool   `long:"s3-path-style" env:"S3_PATH_STYLE" description:"Use path style S3 addressing"`
}

type optsTranscode struct {
	FFmpeg        string        `long:"ffmpeg" env:"FFMPEG" description:"ffmpeg binary" default:"ffmpeg"`
	JobDeadline   time.Duration `long:"job-deadline" env:"JOB_DEADLINE" description:"Hard limit on a single transcode" default:"30m"`
	ScratchDir    string        `long:"scratch-dir" env:"SCRATCH_DIR" description:"Directory for inputs that must be seekable"`
	MaxInputBytes int64         `long:"max-input-bytes" env:"MAX_INPUT_BYTES" description:"Largest input accepted" default:"4294967296"`
	OutputPrefix  string        `long:"output-prefix" env:"OUTPUT_PREFIX" description:"Prefix for output keys (eg. processed/videos/)"`
}

type optsScheduler struct {
	MaxRunning  int           `long:"max-running" env:"MAX_RUNNING" description:"Most jobs running at once" default:"4"`
	MaxAttempts int64         `long:"max-attempts" env:"MAX_ATTEMPTS" description:"Most executions of a job" default:"3"`
	MaxTimeouts int64         `long:"max-timeouts" env:"MAX_TIMEOUTS" description:"Deadline failures tolerated before a job fails" default:"2"`
	RetryBase   time.Duration `long:"retry-base" env:"RETRY_BASE" description:"Base retry delay" default:"2s"`
	RetryMax    time.Duration `long:"retry-max" env:"RETRY_MAX" description:"Max retry delay" default:"2m"`
	CancelGrace time.Duration `long:"cancel-grace" env:"CANCEL_GRACE" description:"Time a worker has to acknowledge a cancel" default:"15s"`
	GlobalFIFO  bool          `long:"global-fifo" env:"GLOBAL_FIFO" description:"Admit strictly in submission order (no owner fairness)"`
}

type optsEvents struct {
	EventsURL   string `long:"events-url" env:"EVENTS_URL" description:"Publish job events (redis:// or kafka://broker,broker)"`
	EventsTopic string `long:"events-topic" env:"EVENTS_TOPIC" description:"Redis channel / kafka topic for events" default:"vidpipe.jobs"`
}

type optsServe struct {
	optsGeneral
	optsDatabase
	optsQueue
	optsBlob
	optsTranscode
	optsScheduler
	optsEvents

	Addr        string        `long:"addr" env:"ADDR" description:"Address to bind to" default:"localhost:8080"`
	OwnerHeader string        `long:"owner-header" env:"OWNER_HEADER" description:"Header carrying the authenticated caller" default:"X-Owner"`
	Formats     []string      `long:"format" env:"FORMATS" env-delim:"," description:"Accepted formats (default: all the transcoder supports)"`
	SubmitRate  float64       `long:"submit-rate" env:"SUBMIT_RATE" description:"Submissions per second per owner (0 is unlimited)"`
	SubmitBurst int           `long:"submit-burst" env:"SUBMIT_BURST" description:"Submission burst per owner" default:"10"`
	ResultTTL   time.Duration `long:"result-ttl" env:"RESULT_TTL" description:"Lifetime of result links" default:"15m"`
	Migrate     bool          `long:"migrate" env:"MIGRATE" description:"Apply database migrations before starting"`
}

func (c *optsServe) Execute(args []string) error {
	// Everything runs in this one process; the scheduler's admission state is in memory
	// so only one `serve` should point at a given database.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := utils.NewLogger(c.level(), c.Pretty)

	dbOpts := &database.Options{URL: c.DatabaseURL}
	if c.Migrate {
		if err := database.Migrate(dbOpts); err != nil {
			return err
		}
	}
	db, err := database.New(dbOpts)
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := blob.New(ctx, &blob.Options{
		URL:       c.BlobURL,
		Secret:    c.BlobSecret,
		PublicURL: c.BlobPublicURL,
		Region:    c.S3Region,
		Endpoint:  c.S3Endpoint,
		PathStyle: c.S3PathStyle,
	})
	if err != nil {
		return err
	}

	notifier, err := events.New(&events.Options{URL: c.EventsURL, Topic: c.EventsTopic})
	if err != nil {
		return err
	}
	defer notifier.Close()

	sched := core.NewScheduler(logger, db, notifier, &core.Options{
		MaxRunning:  c.MaxRunning,
		MaxAttempts: c.MaxAttempts,
		MaxTimeouts: c.MaxTimeouts,
		RetryBase:   c.RetryBase,
		RetryMax:    c.RetryMax,
		JobDeadline: c.JobDeadline,
		CancelGrace: c.CancelGrace,
		GlobalFIFO:  c.GlobalFIFO,
	})

	tlsCfg, err := utils.TLSConfig(c.QueueTLSCaCert, c.QueueTLSCert, c.QueueTLSKey)
	if err != nil {
		return err
	}
	workers := c.Workers
	if workers <= 0 {
		workers = c.MaxRunning
	}
	qu, err := queue.New(logger, sched, &queue.Options{URL: c.QueueURL, TLSConfig: tlsCfg, Workers: workers})
	if err != nil {
		return err
	}

	tc := transcode.NewFFmpeg(logger, &transcode.Options{
		Binary:     c.FFmpeg,
		Deadline:   c.JobDeadline,
		ScratchDir: c.ScratchDir,
	})
	wk := worker.NewWorker(logger, blobs, tc, &worker.Options{
		OutputPrefix:  c.OutputPrefix,
		MaxInputBytes: c.MaxInputBytes,
	})
	if err := qu.Register(wk.Handle); err != nil {
		return err
	}

	if err := sched.Start(ctx, qu); err != nil {
		return err
	}
	defer sched.Close()

	svc := api.NewService(logger, db, sched, blobs, &api.Options{
		Formats:     c.Formats,
		SubmitRate:  c.SubmitRate,
		SubmitBurst: c.SubmitBurst,
		ResultTTL:   c.ResultTTL,
	})

	srvOpts := &server.Options{Addr: c.Addr, OwnerHeader: c.OwnerHeader, Debug: c.Debug}
	if fs, ok := blobs.(*blob.FileStore); ok {
		srvOpts.Blobs = fs
	}
	srv := server.NewServer(logger, srvOpts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(qu.Run)
	g.Go(func() error {
		return srv.ServeForever(svc)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		srv.Close()
		// stop taking reports first; anything in flight is recovered on the next start
		sched.Close()
		return qu.Close()
	})

	err = g.Wait()
	if err == http.ErrServerClosed {
		err = nil
	}
	return err
}
