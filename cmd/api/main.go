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

	"github.com/ctwww/cword/internal/config"
	"github.com/ctwww/cword/internal/event"
	"github.com/ctwww/cword/internal/handler"
	"github.com/ctwww/cword/internal/handler/events"
	"github.com/ctwww/cword/internal/model/persona"
	"github.com/ctwww/cword/internal/service/agent"
	"github.com/ctwww/cword/internal/service/ai"
	conversationService "github.com/ctwww/cword/internal/service/conversation"
	"github.com/ctwww/cword/internal/service/orchestrator"
	"github.com/ctwww/cword/internal/storage"
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

	// 会话落盘
	store, err := storage.NewSessionStore(cfg.Storage.SessionsDir)
	if err != nil {
		log.Printf("warning: session persistence unavailable: %v", err)
		store = nil
	}
	sessions := conversationService.NewService(store)

	personaStore := persona.NewMemoryStore(persona.Seed(cfg.Panel.Language))

	// 生成能力：未配置凭证时面板照常启动，发言接口返回失败。
	var generator agent.Generator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			generator = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	bus := event.NewBus()

	// 立即订阅者：编排事件的结构化日志。
	bus.Subscribe(orchestrator.EventAgentSpoke, func(e event.Event) {
		log.Printf("[panel] %v spoke at %s", e.Data["persona"], e.At.Format(time.RFC3339))
	})
	bus.Subscribe(orchestrator.EventDecisionMade, func(e event.Event) {
		log.Printf("[panel] decision %v recorded: %v", e.Data["decision_id"], e.Data["topic"])
	})

	// 延迟订阅者：WebSocket 事件推送。
	feed := events.NewFeed(bus)

	coordinator := orchestrator.NewCoordinator(bus, buildAgents(personaStore, generator, cfg.AI))

	router := handler.NewRouter(personaStore, sessions, coordinator, feed)
	startServer(ctx, cfg.Server, router)
}

// buildAgents 为每个内置角色构造面板成员。
func buildAgents(store persona.Store, generator agent.Generator, aiCfg config.AIConfig) []agent.Agent {
	if generator == nil {
		generator = unavailableGenerator{}
	}

	maxTokens := 0
	if aiCfg.MaxTokens != nil {
		maxTokens = *aiCfg.MaxTokens
	}
	var temperature float32
	if aiCfg.Temperature != nil {
		temperature = float32(*aiCfg.Temperature)
	}

	specs := store.List()
	agents := make([]agent.Agent, 0, len(specs))
	for _, spec := range specs {
		agents = append(agents, agent.New(spec, generator, maxTokens, temperature))
	}
	return agents
}

// unavailableGenerator 在缺少模型配置时让发言请求得到明确错误。
type unavailableGenerator struct{}

func (unavailableGenerator) Generate(context.Context, string, int, float32) (string, error) {
	return "", errors.New("generation capability is not configured")
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CWord panel backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
