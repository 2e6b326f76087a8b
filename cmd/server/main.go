package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"exam-evaluator/internal/api"
	"exam-evaluator/internal/database"
	"exam-evaluator/internal/embedding"
	"exam-evaluator/internal/evaluator"
	"exam-evaluator/internal/extractor"
)

func main() {
	initEnvVariables()

	// Parse command line flags
	pgConnString := flag.String("pg", defaultPgConnString, "PostgreSQL connection string")
	port := flag.String("port", defaultPort, "HTTP listen port")
	embeddingModel := flag.String("embedding-model", defaultModel, "Ollama model for embeddings")
	uploadDir := flag.String("uploads", defaultUploadDir, "Directory for uploaded documents")
	ocrLangs := flag.String("ocr-langs", defaultOCRLangs, "Comma-separated OCR language hints")
	maxConcurrent := flag.Int("max-concurrent", 3, "Maximum concurrent embedding requests per evaluation")
	flag.Parse()

	ctx := context.Background()

	// Connect to database
	store, err := database.NewStore(*pgConnString)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Initialize database schema
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully")

	if err := os.MkdirAll(*uploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	embedder := embedding.NewOllamaEmbedder(*embeddingModel)
	chain := extractor.Default(strings.Split(*ocrLangs, ",")...)

	orch := evaluator.New(store, chain, embedder)
	orch.MaxConcurrent = *maxConcurrent

	server := api.NewServer(store, orch, *uploadDir, defaultMaxFileSize)

	log.Printf("Evaluation service listening on :%s (model=%s)", *port, *embeddingModel)
	if err := http.ListenAndServe(":"+*port, server.Routes()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
