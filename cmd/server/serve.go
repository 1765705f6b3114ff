package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/conversation"
	"github.com/mindfulchat/mindful-chat/internal/database"
	"github.com/mindfulchat/mindful-chat/internal/identity"
	"github.com/mindfulchat/mindful-chat/internal/outreach"
	"github.com/mindfulchat/mindful-chat/internal/profile"
	"github.com/mindfulchat/mindful-chat/internal/server"
	"github.com/mindfulchat/mindful-chat/internal/streams"
	"github.com/mindfulchat/mindful-chat/internal/voice"
	"github.com/mindfulchat/mindful-chat/internal/voices"
	"github.com/mindfulchat/mindful-chat/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var embedded bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(embedded)
		},
	}
	cmd.Flags().BoolVar(&embedded, "embedded-worker", true, "run background jobs in this process")
	return cmd
}

func serve(embedded bool) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsProduction() {
		if err := database.SeedDevData(a.db, a.store); err != nil {
			log.Warn("Failed to seed development data", "error", err)
		}
	}

	registry, err := voices.Init(ctx, a.db, cfg.VoiceCatalogPath)
	if err != nil {
		return err
	}
	prof, err := profile.NewService(a.db, a.store, registry)
	if err != nil {
		return err
	}

	mail, err := a.mailer()
	if err != nil {
		return err
	}
	openAI, llm := a.completer()

	vendors := voice.Vendors{}
	if clova, err := voice.NewClova(voice.ClovaConfig{
		BaseURL:      cfg.ClovaBaseURL,
		ClientID:     cfg.NaverClientID,
		ClientSecret: cfg.NaverClientSecret,
	}); err != nil {
		log.Warn("Clova voice disabled", "error", err)
	} else {
		vendors.PrimaryTTS, vendors.PrimarySTT = clova, clova
	}
	if openAI != nil {
		fallback := voice.NewOpenAI(openAI.Client())
		vendors.FallbackTTS, vendors.FallbackSTT = fallback, fallback
	}
	bridge := voice.NewBridge(vendors, log)
	media := voice.NewMediaStore(cfg.MediaDir, "/media")

	conversations := conversation.NewService(a.db)
	responder := conversation.NewResponder(conversations, agent.NewPipeline(llm), bridge, media, cfg.HistoryWindowSize, log)

	outreachSvc := outreach.NewService(a.db, llm, mail, log)

	g, ctx := errgroup.WithContext(ctx)

	var layer streams.Layer = streams.NewHub(log)
	if cfg.RedisURL != "" {
		redisLayer, err := streams.NewRedisLayer(cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer redisLayer.Close()
		layer = redisLayer
		g.Go(func() error { return redisLayer.Run(ctx) })
	}

	if embedded {
		stopJobs, err := startBackground(a, outreachSvc)
		if err != nil {
			return err
		}
		defer stopJobs()
	}

	router := server.NewRouter(server.Deps{
		Config:        cfg,
		DB:            a.db,
		Auth:          auth.NewHandlers(a.store, identity.NewBridge(a.db, a.store), mail, cfg, log),
		GoogleEnabled: auth.InitProviders(cfg, log),
		Profile:       prof,
		Conversations: conversations,
		Responder:     responder,
		Voice:         bridge,
		Media:         media,
		Outreach:      outreachSvc,
		Layer:         layer,
	})
	srv := server.NewHTTPServer(cfg, router)

	g.Go(func() error {
		log.Info("Starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Server exited")
	return nil
}

// startBackground runs the outreach jobs through asynq when Redis is
// configured and through an in-process cron otherwise.
func startBackground(a *app, svc *outreach.Service) (func(), error) {
	jobs := worker.NewJobs(svc, a.log)
	if a.cfg.RedisURL == "" {
		return worker.StartLocal(a.cfg, jobs, a.log)
	}

	client, err := worker.NewClient(a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	stopWorker, err := worker.Start(a.cfg, jobs, client, a.log)
	if err != nil {
		client.Close()
		return nil, err
	}
	stopScheduler, err := worker.StartScheduler(a.cfg, a.log)
	if err != nil {
		stopWorker()
		client.Close()
		return nil, err
	}
	return func() {
		stopScheduler()
		stopWorker()
		client.Close()
	}, nil
}
