package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"blogspace/app"
	"blogspace/attachment"
	"blogspace/auth"
	"blogspace/config"
	"blogspace/db"
	"blogspace/events"
	"blogspace/logging"
	"blogspace/metrics"
	"blogspace/routes"
	"blogspace/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTELEndpoint, cfg.OTELServiceName)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	client, err := db.InitDB(ctx, cfg.MongoURI, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	posts := db.NewPostStore(client.Database(cfg.MongoDatabase))
	if err := posts.EnsureIndexes(ctx); err != nil {
		return err
	}

	store, err := attachment.NewMinioStore(attachment.MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Folder:    cfg.Storage.Folder,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.WithField("topic", cfg.KafkaTopic).Info("publishing post events")
	}
	defer publisher.Close()

	m := metrics.New()
	a := &app.App{
		Posts:         posts,
		Images:        attachment.Instrumented(store, m),
		Verifier:      auth.NewTokenVerifier(cfg.Identity.ProjectID, cfg.Identity.CertsURL, nil),
		Events:        publisher,
		Metrics:       m,
		Log:           log,
		MaxImageBytes: cfg.Storage.MaxImageBytes,
	}

	srv := newServer(cfg.Addr(), tracing.Handler(routes.NewRouter(a, cfg.AllowedOrigins), cfg.OTELServiceName))

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("could not start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down cleanly: %w", err)
	}
	return nil
}

// newServer sets no ReadTimeout: uploads are bounded by WriteTimeout and the
// request body cap.
func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}
