// kbloader chunks every document in a directory, embeds the chunks and
// upserts them into the knowledge-base collection. Run it once against
// the USCIS guidance corpus before serving chat traffic.
package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/extract"
	"github.com/immihelp/formapi/internal/rag/embedding/googleembed"
	"github.com/immihelp/formapi/internal/rag/ingest"
	"github.com/immihelp/formapi/internal/rag/vectordb/qdrantdb"
	"github.com/immihelp/formapi/pkg/logging"
)

var ingestibleExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".docx": true,
	".rtf":  true,
}

func main() {
	logging.Init()
	logger := logging.NewLogger("kbloader")

	pflag.String("dir", "./knowledge", "directory of documents to ingest")
	pflag.String("qdrant-host", "127.0.0.1", "qdrant grpc host")
	pflag.Int("qdrant-port", config.QdrantGrpcPort, "qdrant grpc port")
	pflag.Parse()

	viper.SetEnvPrefix("FORMAPI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		logger.Error("binding flags failed", "error", err)
		os.Exit(1)
	}

	dir := viper.GetString("dir")
	apiKey := viper.GetString("google-api-key")

	ctx := context.Background()

	embedder, err := googleembed.NewClient(ctx, apiKey, config.GoogleEmbeddingModel)
	if err != nil {
		logger.Error("embedding client failed to initialize", "error", err)
		os.Exit(1)
	}

	vectorDB, err := qdrantdb.NewClientHolder(ctx, viper.GetString("qdrant-host"), viper.GetInt("qdrant-port"))
	if err != nil {
		logger.Error("qdrant failed to initialize", "error", err)
		os.Exit(1)
	}
	defer vectorDB.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("could not read knowledge directory", "dir", dir, "error", err)
		os.Exit(1)
	}

	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() || !ingestibleExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		text := extract.Text(path)
		if strings.TrimSpace(text) == "" || extract.IsFailureMarker(text) {
			logger.Warn("skipping document without extractable text", "file", entry.Name())
			continue
		}

		chunks := ingest.PrepareChunks(text, entry.Name())
		logger.Info("ingesting document", "file", entry.Name(), "chunks", len(chunks))

		if err := ingest.BatchIngest(ctx, chunks, vectorDB, embedder); err != nil {
			logger.Error("ingestion failed", "file", entry.Name(), "error", err)
			os.Exit(1)
		}
		ingested++
	}

	logger.Info("knowledge base loaded", "documents", ingested)
}
