package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/dropzone/internal/config"
	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewIngestCommand builds the ingest command over fs. getenv supplies
// configuration; flags override it.
func NewIngestCommand(fs afero.Fs, getenv config.LookupFunc) *cobra.Command {
	var (
		endpoint    string
		concurrency int
		sniff       bool
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Classify, validate and upload local files.",
		Long: `Ingest runs each file through the same pipeline as the dropzone server:
images are validated and encoded inline, PDFs are uploaded and encoded,
documents are uploaded only. Every file produces one JSON line on stdout,
either a result or a notice. The exit status is 1 if any file failed.

Declared media types come from the file extension, the way a browser
reports them. Use --sniff to detect them from content instead.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]string{}
			if endpoint != "" {
				overrides["UPLOAD_ENDPOINT"] = endpoint
			}
			if concurrency > 0 {
				overrides["INGEST_DROP_CONCURRENCY"] = strconv.Itoa(concurrency)
			}
			if logLevel != "" {
				overrides["LOG_LEVEL"] = logLevel
			}
			cfg, err := config.LoadFrom(func(name string) string {
				if v, ok := overrides[name]; ok {
					return v
				}
				return getenv(name)
			})
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}

			err = run(cmd.Context(), cmd, fs, cfg, args, sniff)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "upload endpoint URL (overrides UPLOAD_ENDPOINT)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "files processed at once (overrides INGEST_DROP_CONCURRENCY)")
	cmd.Flags().BoolVar(&sniff, "sniff", false, "detect declared media types from file content")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, fs afero.Fs, cfg *config.Config, paths []string, sniff bool) error {
	logger := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	uploader, err := core.NewUploader(core.UploaderConfig{
		Endpoint:  cfg.Upload.Endpoint,
		FieldName: cfg.Upload.FieldName,
		Timeout:   cfg.Upload.Timeout,
		Retry:     cfg.RetryPolicy(),
		Limiter:   core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	})
	if err != nil {
		return err
	}

	out := &jsonLines{w: cmd.OutOrStdout()}
	pipeline, err := core.NewPipeline(core.Options{
		Policy:            cfg.SizePolicy(),
		AllowedImageTypes: cfg.Limits.AllowedImageTypes,
		Uploader:          uploader,
		Emitter:           out,
		Notifier:          out,
	})
	if err != nil {
		return err
	}

	ctx = core.ContextWithChannel(ctx, core.ChannelCLI)
	files := make([]core.FileHandle, 0, len(paths))
	var totalBytes int64
	for _, p := range paths {
		mediaType, err := declaredType(fs, p, sniff)
		if err != nil {
			out.Notify(ctx, notice(p, err))
			continue
		}
		f, err := core.NewFSFile(fs, p, mediaType)
		if err != nil {
			out.Notify(ctx, notice(p, err))
			continue
		}
		totalBytes += f.Size
		files = append(files, f)
	}

	report := core.NewBatch(pipeline, cfg.Ingest.DropConcurrency).ProcessAll(ctx, files)
	failed := report.Failed + len(paths) - len(files)

	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d files ingested (%s) in %s\n",
		report.Succeeded, len(paths), humanize.IBytes(uint64(totalBytes)), report.Duration.Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

// declaredType returns the media type a browser would report for path, or
// the sniffed type when sniff is set.
func declaredType(fs afero.Fs, path string, sniff bool) (string, error) {
	if !sniff {
		return mime.TypeByExtension(filepath.Ext(path)), nil
	}
	f, err := fs.Open(path)
	if err != nil {
		return "", &core.ReadError{Filename: path, Err: err}
	}
	defer f.Close()
	m, err := mimetype.DetectReader(f)
	if err != nil {
		return "", &core.ReadError{Filename: path, Err: err}
	}
	return m.String(), nil
}

func notice(path string, err error) core.Notice {
	return core.Notice{Filename: filepath.Base(path), Message: core.MapError(err), Err: err}
}

// jsonLines writes results and notices as one JSON event per line.
type jsonLines struct {
	mu sync.Mutex
	w  io.Writer
}

func (j *jsonLines) Emit(_ context.Context, r core.Result) {
	j.write(core.Event{Kind: core.EventResult, At: time.Now(), Result: r})
}

func (j *jsonLines) Notify(_ context.Context, n core.Notice) {
	j.write(core.Event{Kind: core.EventNotice, At: time.Now(), Notice: &n})
}

func (j *jsonLines) write(ev core.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	json.NewEncoder(j.w).Encode(ev)
}
