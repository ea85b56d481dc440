package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethanbaker/coach/internal/stores/session"
	"github.com/ethanbaker/coach/pkg/chat"
	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/ethanbaker/coach/pkg/utils"
	"golang.org/x/oauth2"
)

func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	profile, err := loadProfile(cfg)
	if err != nil {
		log.Fatalf("[COMMANDLINE]: Failed to load profile: %v", err)
	}

	// Build the backend client
	opts := []sdk.Option{sdk.WithTimeout(cfg.GetSeconds("COACH_HTTP_TIMEOUT_SECONDS", 30*time.Second))}
	if token := cfg.Get("COACH_ACCESS_TOKEN"); token != "" {
		opts = append(opts, sdk.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})))
	}
	client := sdk.NewClient(cfg.GetWithDefault("COACH_BASE_URL", "http://localhost:8080"), cfg.Get("COACH_API_KEY"), opts...)

	store, err := loadSessionStore(cfg)
	if err != nil {
		log.Fatalf("[COMMANDLINE]: Failed to initialize session store: %v", err)
	}

	out := &printer{}
	conv, err := chat.NewConversation(chat.Options{
		Key:           cfg.GetWithDefault("COACH_CONVERSATION_KEY", "commandline"),
		Profile:       profile,
		Issuer:        client,
		Opener:        client,
		Store:         store,
		Notifier:      chat.NotifierFunc(func(n chat.Notice) { fmt.Printf("\n! %s\n", n.Message) }),
		OnChange:      out.render,
		IdleTimeout:   cfg.GetSeconds("COACH_STREAM_IDLE_TIMEOUT_SECONDS", chat.DefaultIdleTimeout),
		MaxFrameBytes: cfg.GetIntWithDefault("COACH_MAX_FRAME_BYTES", sdk.DefaultMaxFrameBytes),
	})
	if err != nil {
		log.Fatalf("[COMMANDLINE]: Failed to create conversation: %v", err)
	}

	// Print the greeting, if any
	out.render(conv.Transcript())

	err = startInteractiveSession(context.Background(), conv, out)
	if cerr := closeSessionStore(store); cerr != nil {
		log.Printf("[COMMANDLINE]: Failed to close session store: %v", cerr)
	}
	if err != nil {
		log.Fatalf("[COMMANDLINE]: %v", err)
	}
}

// loadProfile picks the conversation profile from a profiles file or the built-ins
func loadProfile(cfg *utils.Config) (chat.Profile, error) {
	name := cfg.GetWithDefault("COACH_PROFILE", chat.ProfileCommandCenter)

	if file := cfg.Get("COACH_PROFILES_FILE"); file != "" {
		profiles, err := chat.LoadProfiles(file)
		if err != nil {
			return chat.Profile{}, err
		}

		profile, ok := profiles[name]
		if !ok {
			return chat.Profile{}, fmt.Errorf("profile %s not found in %s", name, file)
		}
		return profile, nil
	}

	switch name {
	case chat.ProfileCommandCenter:
		return chat.CommandCenterProfile(), nil
	case chat.ProfileOrganizationChat:
		return chat.OrganizationChatProfile(cfg.Get("COACH_ORGANIZATION_ID")), nil
	default:
		return chat.Profile{}, fmt.Errorf("unknown profile %s", name)
	}
}

// loadSessionStore keeps sessions in MySQL when a database is configured
func loadSessionStore(cfg *utils.Config) (chat.SessionStore, error) {
	if cfg.Get("MYSQL_DSN") == "" && cfg.Get("MYSQL_DATABASE") == "" {
		return chat.NewMemorySessionStore(), nil
	}

	dsn, err := session.DSNFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return session.NewSqlStore(dsn)
}

// closeSessionStore releases the store's resources, if it holds any
func closeSessionStore(store chat.SessionStore) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// startInteractiveSession reads commands and messages until 'exit' or end of input
func startInteractiveSession(ctx context.Context, conv *chat.Conversation, p *printer) error {
	fmt.Println("Coach chat started. Commands: /clear, /abort, exit")

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		errs <- scanner.Err()
		close(lines)
	}()

	var done <-chan struct{}
	fmt.Print("\n> ")

	for {
		select {
		case <-done:
			done = nil
			fmt.Print("\n\n> ")

		case input, ok := <-lines:
			if !ok {
				return <-errs
			}

			switch input {
			case "":
				fmt.Print("> ")
			case "exit":
				conv.Abort()
				return nil
			case "/abort":
				conv.Abort()
			case "/clear":
				p.reset()
				conv.Clear()
				fmt.Print("\n> ")
			default:
				run := conv.SendMessage(ctx, input)
				if run == nil {
					if conv.Busy() {
						fmt.Println("(still replying, type /abort to stop)")
					}
					continue
				}
				done = run.Done()
			}
		}
	}
}
