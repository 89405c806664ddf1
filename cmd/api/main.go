package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
	"github.com/zhouzirui/med-assistant/backend/internal/handler"
	"github.com/zhouzirui/med-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/med-assistant/backend/internal/model/prompt"
	"github.com/zhouzirui/med-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/med-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/service/render"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	prompts, err := prompt.Open(cfg.Chat.PromptsFile, cfg.Chat.DefaultPrompt)
	if err != nil {
		log.Fatalf("failed to load prompts: %v", err)
	}
	models := catalog.NewMemoryStore(catalog.Seed())

	registry := ai.NewRegistryFromConfig(ctx, cfg.AI)
	if len(registry.Names()) == 0 {
		log.Println("warning: no completion backend configured, every request will fail")
		log.Println("请设置 GEMINI_API_KEY / ANTHROPIC_API_KEY / OPENAI_API_KEY / OLLAMA_HOST / ARK_API_KEY 之一")
	}
	if !registry.Available(cfg.Chat.DefaultModel) {
		log.Printf("warning: default model %s has no configured backend", cfg.Chat.DefaultModel)
	}

	var renderer *render.Renderer
	if cfg.Chat.RenderHTML {
		renderer = render.New()
	}

	router := handler.NewRouter(handler.Deps{
		Accumulator:  stream.NewAccumulator(registry),
		Chats:        chat.NewService(),
		Prompts:      prompts,
		Models:       models,
		Availability: registry,
		Renderer:     renderer,
		DefaultModel: cfg.Chat.DefaultModel,
		Timeout:      cfg.Chat.StreamTimeout,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router *handler.Router) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// SSE 订阅是长连接，需要在 http.Server 关闭前主动断开。
	srv.RegisterOnShutdown(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		if err := router.Shutdown(shutdownCtx); err != nil {
			log.Printf("[server] event shutdown: %v", err)
		}
	})

	log.Printf("Medical assistant backend listening on %s", addr)
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
