package api

import (
	"log"
	"time"

	api_utils "github.com/ethanbaker/api/pkg/utils"
	"github.com/ethanbaker/coach/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openai/openai-go/v2/option"

	chat_module "github.com/ethanbaker/coach/internal/api/modules/chat"
	health_module "github.com/ethanbaker/coach/internal/api/modules/health"
)

const (
	defaultPruneSchedule = "@every 10m"
	defaultSessionIdle   = 2 * time.Hour
)

// NewEngine builds the development orchestration server around the given chat module
func NewEngine(cfg *utils.Config, chat *chat_module.Module) *gin.Engine {
	// Add app level settings/routes
	engine := gin.Default()
	engine.NoRoute(api_utils.NoRouteHandler)

	// Add trusted proxies
	engine.SetTrustedProxies(nil)

	// Add CORS using gin-contrib/cors (https://github.com/gin-contrib/cors for documentation)
	origins := cfg.GetList("CORS_ALLOWED_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"OPTIONS", "GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Base group '/api' for all API routes
	baseGroup := engine.Group("/api")

	health_module.RegisterRoutes(baseGroup)
	chat_module.RegisterRoutes(baseGroup, cfg, chat)

	return engine
}

// NewResponder picks the model-backed responder when an OpenAI key is configured and the
// scripted one otherwise
func NewResponder(cfg *utils.Config) chat_module.Responder {
	if key := cfg.Get("OPENAI_API_KEY"); key != "" {
		model := cfg.GetWithDefault("OPENAI_MODEL", "gpt-4o-mini")
		instructions := ""
		if file := cfg.Get("COACH_INSTRUCTIONS_FILE"); file != "" {
			instructions = utils.LoadTextWithFallback(file, "")
		}

		log.Printf("[API-MAIN]: Using OpenAI responder with model %s", model)
		return chat_module.NewOpenAIResponder(model, instructions, option.WithAPIKey(key))
	}

	log.Printf("[API-MAIN]: OPENAI_API_KEY not set, using scripted responder")
	return chat_module.ScriptedResponder{
		Delay: time.Duration(cfg.GetIntWithDefault("SCRIPTED_CHUNK_DELAY_MS", 40)) * time.Millisecond,
	}
}

func Start(cfg *utils.Config) {
	// Initialized configuration settings
	port := cfg.GetWithDefault("API_PORT", "8080")

	registry := chat_module.NewRegistry()
	pruner, err := registry.StartPruning(
		cfg.GetWithDefault("SESSION_PRUNE_SCHEDULE", defaultPruneSchedule),
		cfg.GetSeconds("SESSION_IDLE_SECONDS", defaultSessionIdle),
	)
	if err != nil {
		log.Fatal("[API-MAIN]: Failed to schedule session pruning: ", err)
	}
	defer pruner.Stop()

	chat := chat_module.NewModule(registry, NewResponder(cfg), cfg.GetIntWithDefault("MAX_CONCURRENT_STREAMS", 16))
	engine := NewEngine(cfg, chat)

	// Then after performing initial setup, start the server
	if err := engine.Run(":" + port); err != nil {
		log.Fatal("[API-MAIN]: Failed to start server: ", err)
	}
}
