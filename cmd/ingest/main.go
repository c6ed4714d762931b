// Command ingest runs local files through the ingestion pipeline and prints
// one JSON event per file.
//
//	UPLOAD_ENDPOINT=https://files.example.com/upload ingest report.pdf shot.png notes.md
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewIngestCommand(afero.NewOsFs(), os.Getenv)
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
