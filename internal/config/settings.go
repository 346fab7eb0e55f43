package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Settings are the deployment-level knobs: everything an operator would
// change between environments. Tuning constants stay in config.go.
type Settings struct {
	ListenAddr string

	// DataDir is the root for uploads/, filled_forms/ and form_configs/.
	DataDir string

	LLMProvider  string // "gemini" or "openai"
	GoogleAPIKey string
	OpenAIAPIKey string

	QdrantHost string
	QdrantPort int
	RedisAddr  string

	AuthToken string // empty disables bearer auth
}

func defaultSettings() *Settings {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}
	return &Settings{
		ListenAddr:  ServerListenAddr,
		DataDir:     filepath.Join(currentDir, "data"),
		LLMProvider: ProviderGemini,
		QdrantHost:  "127.0.0.1",
		QdrantPort:  QdrantGrpcPort,
		RedisAddr:   RedisAddr,
	}
}

// LoadSettings reads flags and FORMAPI_* environment variables, flags
// winning over env, env over defaults.
func LoadSettings() (*Settings, error) {
	s := defaultSettings()

	viper.SetEnvPrefix("FORMAPI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("listen-addr", s.ListenAddr)
	viper.SetDefault("data-dir", s.DataDir)
	viper.SetDefault("llm-provider", s.LLMProvider)
	viper.SetDefault("google-api-key", "")
	viper.SetDefault("openai-api-key", "")
	viper.SetDefault("qdrant-host", s.QdrantHost)
	viper.SetDefault("qdrant-port", s.QdrantPort)
	viper.SetDefault("redis-addr", s.RedisAddr)
	viper.SetDefault("auth-token", "")

	pflag.String("listen-addr", s.ListenAddr, "server listen address")
	pflag.String("data-dir", s.DataDir, "root directory for uploads, filled forms and form configs")
	pflag.String("llm-provider", s.LLMProvider, "extraction/chat model provider: gemini or openai")
	pflag.String("qdrant-host", s.QdrantHost, "qdrant grpc host")
	pflag.Int("qdrant-port", s.QdrantPort, "qdrant grpc port")
	pflag.String("redis-addr", s.RedisAddr, "redis address for chat history")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	s.ListenAddr = viper.GetString("listen-addr")
	s.DataDir = viper.GetString("data-dir")
	s.LLMProvider = viper.GetString("llm-provider")
	s.GoogleAPIKey = viper.GetString("google-api-key")
	s.OpenAIAPIKey = viper.GetString("openai-api-key")
	s.QdrantHost = viper.GetString("qdrant-host")
	s.QdrantPort = viper.GetInt("qdrant-port")
	s.RedisAddr = viper.GetString("redis-addr")
	s.AuthToken = viper.GetString("auth-token")

	if abs, err := filepath.Abs(s.DataDir); err == nil {
		s.DataDir = abs
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	if s.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if s.LLMProvider != ProviderGemini && s.LLMProvider != ProviderOpenAI {
		return fmt.Errorf("unknown llm provider %q", s.LLMProvider)
	}
	return nil
}

func (s *Settings) UploadsDir() string     { return filepath.Join(s.DataDir, UploadsDirName) }
func (s *Settings) FilledFormsDir() string { return filepath.Join(s.DataDir, FilledFormsDirName) }
func (s *Settings) FormConfigsDir() string { return filepath.Join(s.DataDir, FormConfigsDirName) }
