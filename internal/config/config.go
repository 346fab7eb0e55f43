package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 30 * time.Second //fill-form streams a PDF back, give it room
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//upload handling
	MaxUploadSize = 32 << 20 //32mb

	//session storage layout, relative to the data directory
	UploadsDirName     = "uploads"
	FilledFormsDirName = "filled_forms"
	FormConfigsDirName = "form_configs"

	//llm
	// The extraction and chat calls are the only externally blocking
	// operations in a request. They are bounded by this timeout and
	// surface as ModelUnavailable once it expires.
	LLMCallTimeout           = 30 * time.Second
	GeminiModelName          = "gemini-2.5-flash-lite-preview-09-2025"
	OpenAIModelName          = "gpt-4o-mini"
	ExtractionTemperature    = 0.0
	ChatTemperature  float32 = 0.2

	DefaultExtractionSystemPrompt = "You are an expert at extracting specific information from user-provided text to fill out forms accurately."

	ChatSystemPrompt = "You are a helpful assistant for US immigration questions. " +
		"Answer using only the provided context from official USCIS guidance. " +
		"If the context does not contain the answer, say you do not know and suggest consulting uscis.gov. " +
		"Never invent filing fees, deadlines or eligibility rules."

	//extraction response handling
	NotFoundSentinel = "NOT_FOUND"

	//embeddings
	GoogleEmbeddingModel                = "gemini-embedding-001"
	EmbeddingOutputDimensionality int32 = 1536

	//vectorDB
	KnowledgeBaseCollection = "uscis-knowledge"
	AnswerCacheCollection   = "answer-cache"
	CacheSimilarityCutoff   = 0.97
	SearchTopK              = 3
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1

	//chunking for knowledge base ingestion
	ChunkSizeChars    = 1000
	ChunkOverlapChars = 150
	IngestBatchSize   = 100

	//http client pooling for the openai provider
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DBs we can use
	RedisChatHistoryDB = 0

	RedisChatHistoryTTL = 24 * time.Hour

	//how many past exchanges feed the chat prompt
	ChatHistoryWindow = 5
)
