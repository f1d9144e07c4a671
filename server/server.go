// a stupid package name...
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/afero"
	"github.com/vidfetch/vidfetch/server/archive"
	"github.com/vidfetch/vidfetch/server/archiver"
	"github.com/vidfetch/vidfetch/server/config"
	"github.com/vidfetch/vidfetch/server/internal/kv"
	"github.com/vidfetch/vidfetch/server/internal/pipeline"
	"github.com/vidfetch/vidfetch/server/internal/progress"
	"github.com/vidfetch/vidfetch/server/internal/queue"
	middlewares "github.com/vidfetch/vidfetch/server/middleware"
	"github.com/vidfetch/vidfetch/server/rest"
	"github.com/vidfetch/vidfetch/server/status"
	"github.com/vidfetch/vidfetch/server/user"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"
)

const shutdownTimeout = 10 * time.Second

type serverConfig struct {
	conf     *config.Config
	mdb      *kv.Store
	db       *sql.DB
	mq       *queue.MessageQueue
	bus      *progress.Bus
	pipeline *pipeline.Pipeline
	archiver *archiver.Archiver
	archive  *archive.Handler
}

// SetupLogging makes a text handler writing to stdout, and to the log file
// when enabled, the default slog logger. The returned closer releases the
// file.
func SetupLogging(conf *config.Config) (io.Closer, error) {
	level, err := config.ParseLevel(conf.Logging.Level)
	if err != nil {
		return nil, err
	}

	var (
		writers = []io.Writer{os.Stdout}
		closer  io.Closer
	)

	// file based logging
	if conf.Logging.EnableFileLogging {
		fd, err := os.OpenFile(conf.Logging.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, fd)
		closer = fd
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	}))

	// make the new logger the default one with all the new writers
	slog.SetDefault(logger)

	if closer == nil {
		closer = io.NopCloser(nil)
	}
	return closer, nil
}

func Run(ctx context.Context, conf *config.Config) error {
	logCloser, err := SetupLogging(conf)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if err := os.MkdirAll(conf.Paths.DatabasePath, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", conf.DatabaseFile())
	if err != nil {
		return err
	}
	defer db.Close()

	archiveHandler, archiveService, err := archive.Container(db)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()

	mdb := kv.NewStore(fs, conf.Paths.DatabasePath)
	if n := mdb.Restore(); n > 0 {
		slog.Info("restored sessions", slog.Int("count", n))
	}

	mq, err := queue.NewMessageQueue(conf.Server.QueueSize)
	if err != nil {
		return err
	}
	mq.SetupConsumers()

	scfg := serverConfig{
		conf:     conf,
		mdb:      mdb,
		db:       db,
		mq:       mq,
		bus:      progress.NewBus(),
		pipeline: pipeline.New(pipeline.Args{Config: conf, Fs: fs}),
		archiver: archiver.New(archiveService, conf.AutoArchive),
		archive:  archiveHandler,
	}

	srv := newServer(scfg)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("vidfetch started",
		slog.String("address", address),
		slog.String("download_path", conf.Paths.DownloadPath),
		slog.Bool("transcoder", scfg.pipeline.Transcoder().Available()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(srv, &scfg)
	})

	return g.Wait()
}

func newServer(c serverConfig) *http.Server {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	baseUrl := c.conf.Server.BaseURL

	r.Route(baseUrl+"/", func(r chi.Router) {
		// Authentication routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", user.Login)
			r.Get("/logout", user.Logout)
		})

		// REST API handlers
		r.Route("/api/v1", rest.ApplyRouter(&rest.ContainerArgs{
			MDB:      c.mdb,
			MQ:       c.mq,
			Bus:      c.bus,
			Pipeline: c.pipeline,
			Archiver: c.archiver,
			Archive:  c.archive,
		}))

		// Status
		r.Route("/status", func(r chi.Router) {
			r.Use(middlewares.ApplyAuthenticationByConfig)
			status.ApplyRouter(c.mdb, c.conf.Paths.DownloadPath)(r)
		})
	})

	return &http.Server{Handler: r}
}

// gracefulShutdown stops accepting requests, cancels the running downloads
// and persists the sessions.
func gracefulShutdown(srv *http.Server, cfg *serverConfig) error {
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)

	cfg.mq.Stop()
	cfg.archiver.Close()

	if perr := cfg.mdb.Persist(); perr != nil {
		slog.Warn("failed to persist sessions", slog.Any("err", perr))
	}

	return err
}
