package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/veneer"
	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transforms"
)

func main() {
	count := flag.Int("count", 1000, "Number of documents to generate")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	flag.Parse()

	// 1. Setup Namespace
	benchDir, err := os.MkdirTemp("", "veneer_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	// Direct file writes simulate an existing directory of hand-written documents.
	fmt.Printf("Generating %d documents in %s...\n", *count, benchDir)
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		content := fmt.Sprintf(`{"title": "Document %d", "date": %q, "tags": ["benchmark", "test"]}`, i, time.Now().Format("2006-01-02"))
		filename := filepath.Join(benchDir, fmt.Sprintf("doc_%d.json", i))
		if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.TODO()

	// Run 1: Cold (every file is ingested, populates the index cache)
	fmt.Println("Opening (Run 1 - Cold)...")
	start := time.Now()
	db, err := veneer.Open(benchDir, veneer.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	fmt.Printf("Run 1 Result: %v (Documents: %d)\n", time.Since(start), db.Info().DocCount)
	db.Close()

	// Run 2: Warm (cache hits skip parsing)
	fmt.Println("Opening (Run 2 - Warm)...")
	start = time.Now()
	db, err = veneer.Open(benchDir, veneer.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	fmt.Printf("Run 2 Result: %v (Documents: %d)\n", time.Since(start), db.Info().DocCount)
	db.Close()

	// Run 3: Transformed writes and reads
	encrypt, err := transforms.Encrypt(bytes.Repeat([]byte{42}, transforms.KeySize), "title")
	if err != nil {
		panic(err)
	}
	db, err = veneer.Open(benchDir, veneer.WithLogger(logger), veneer.WithTransform(encrypt))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	docs := make([]core.Document, *count)
	for i := range docs {
		docs[i] = core.Document{"_id": fmt.Sprintf("enc/%d", i), "title": fmt.Sprintf("Secret %d", i)}
	}
	start = time.Now()
	if _, err := db.BulkDocs(ctx, docs, nil); err != nil {
		panic(err)
	}
	fmt.Printf("Encrypted bulk write: %v\n", time.Since(start))

	start = time.Now()
	resp, err := db.AllDocs(ctx, core.Options{core.OptIncludeDocs: true})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Decrypted listing: %v (Rows: %d)\n", time.Since(start), len(resp.Rows))
}
