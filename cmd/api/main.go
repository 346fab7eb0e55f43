package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/data/redisstore"
	"github.com/immihelp/formapi/internal/data/store"
	"github.com/immihelp/formapi/internal/docstore"
	"github.com/immihelp/formapi/internal/formcfg"
	"github.com/immihelp/formapi/internal/formfill"
	"github.com/immihelp/formapi/internal/handlers"
	"github.com/immihelp/formapi/internal/llm"
	"github.com/immihelp/formapi/internal/llm/gemini"
	"github.com/immihelp/formapi/internal/llm/openaillm"
	"github.com/immihelp/formapi/internal/middleware"
	"github.com/immihelp/formapi/internal/pdffill"
	"github.com/immihelp/formapi/internal/rag"
	"github.com/immihelp/formapi/internal/rag/embedding/googleembed"
	"github.com/immihelp/formapi/internal/rag/vectordb/qdrantdb"
	"github.com/immihelp/formapi/internal/server"
	"github.com/immihelp/formapi/pkg/logging"
)

func main() {
	logging.Init()
	logger := logging.NewLogger("main")

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	provider, err := newProvider(serviceContext, settings)
	if err != nil {
		logger.Error("LLM provider failed to initialize, shutting down", "provider", settings.LLMProvider, "error", err)
		os.Exit(1)
	}

	embedder, err := googleembed.NewClient(serviceContext, settings.GoogleAPIKey, config.GoogleEmbeddingModel)
	if err != nil {
		logger.Error("embedding client failed to initialize, shutting down", "error", err)
		os.Exit(1)
	}

	vectorDB, err := qdrantdb.NewClientHolder(serviceContext, settings.QdrantHost, settings.QdrantPort)
	if err != nil {
		logger.Error("qdrant failed to initialize, shutting down", "error", err)
		os.Exit(1)
	}
	defer vectorDB.Close()

	ragService := rag.NewService(vectorDB, provider, embedder)

	chatHistory := newChatStore(serviceContext, settings, logger)

	documents := docstore.NewStore(settings.UploadsDir(), settings.FilledFormsDir())
	formConfigs := formcfg.NewLoader(settings.FormConfigsDir())
	extractor := formfill.NewExtractor(provider)
	filler := pdffill.NewFiller()
	fillService := formfill.NewService(formConfigs, documents, extractor, filler, settings.DataDir)

	h := handlers.NewHandlers(ragService, chatHistory, documents, formConfigs, fillService)
	chain := middleware.NewChain(settings.AuthToken, middleware.DefaultIPRateLimiter())

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(settings.ListenAddr, h, chain)

	<-stopExecution
	logger.Info("Server stopped")
}

func newProvider(ctx context.Context, settings *config.Settings) (llm.Provider, error) {
	if settings.LLMProvider == config.ProviderOpenAI {
		return openaillm.NewClient(settings.OpenAIAPIKey, config.OpenAIModelName), nil
	}
	return gemini.NewClient(ctx, settings.GoogleAPIKey, config.GeminiModelName)
}

// newChatStore prefers redis, falling back to the in-memory store when
// redis is offline so chat still works without history durability.
func newChatStore(ctx context.Context, settings *config.Settings, logger *logging.Logger) store.ChatStore {
	redisBackend, err := redisstore.NewStore(ctx, settings.RedisAddr, config.RedisChatHistoryDB)
	if err != nil {
		logger.Warn("redis is offline, chat history will not survive restarts", "error", err)
		return store.NewInMemoryChatStore()
	}
	return store.NewRedisChatStore(redisBackend)
}
