package chat

import (
	"fmt"
	"log"

	"github.com/ethanbaker/api/pkg/api_key"
	"github.com/ethanbaker/coach/pkg/utils"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the chat module
func RegisterRoutes(g *gin.RouterGroup, cfg *utils.Config, m *Module) {
	group := g.Group("/chat")

	// Make api key validator
	validator, err := makeApiKeyValidator(cfg)
	if err != nil {
		log.Printf("[API]: Warning, %v; chat routes are unauthenticated", err)
	} else {
		group.Handlers = append(group.Handlers, api_key.APIKeyHeaderHandler(validator))
	}

	group.POST("/sessions", m.CreateSession) // Issue a new conversation session
	group.POST("/stream", m.Stream)          // Send a message and stream the reply
}

// makeApiKeyValidator checks if the provided API key is valid
func makeApiKeyValidator(cfg *utils.Config) (func(key string) bool, error) {
	apiKey := cfg.Get("API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("API_KEY not set in environment")
	}

	return func(key string) bool {
		return apiKey == key
	}, nil
}
