package core

// pipeline.go routes a classified file through its category's steps.
//
//	Image:    validate -> encode -> re-check sniffed type -> emit
//	PDF:      validate -> upload -> encode -> emit
//	Document: validate -> upload -> emit
//	Unknown:  reject
//
// Every failure is turned into one Notice and Process returns false; nothing
// panics or returns an error past this boundary, so callers processing many
// files can simply move on to the next one.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/dropzone/internal/logging"
)

// FileUploader is the part of Uploader the pipeline needs.
type FileUploader interface {
	Upload(ctx context.Context, file FileHandle) (UploadReceipt, error)
}

// FileEncoder is the part of Encoder the pipeline needs.
type FileEncoder interface {
	Encode(ctx context.Context, file FileHandle) (string, error)
}

// Options is the immutable configuration of a Pipeline.
type Options struct {
	Policy            SizePolicy
	AllowedImageTypes []string
	Uploader          FileUploader // Required for PDF and document files
	Encoder           FileEncoder  // Default: NewEncoder()
	Emitter           Emitter      // Receives results (required)
	Notifier          Notifier     // Default: LogNotifier
	Observer          Observer     // Optional metrics
}

// Pipeline classifies, validates and routes files.
// It is safe for concurrent use; it holds no per-file state.
type Pipeline struct {
	classifier *Classifier
	policy     SizePolicy
	uploader   FileUploader
	encoder    FileEncoder
	emitter    Emitter
	notifier   Notifier
	observer   Observer
}

// NewPipeline validates opts and builds a Pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Emitter == nil {
		return nil, fmt.Errorf("pipeline: emitter is required")
	}
	if opts.Uploader == nil {
		return nil, fmt.Errorf("pipeline: uploader is required")
	}
	if opts.Policy == (SizePolicy{}) {
		opts.Policy = DefaultSizePolicy()
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Encoder == nil {
		opts.Encoder = NewEncoder()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}

	return &Pipeline{
		classifier: NewClassifier(opts.AllowedImageTypes),
		policy:     opts.Policy,
		uploader:   opts.Uploader,
		encoder:    opts.Encoder,
		emitter:    opts.Emitter,
		notifier:   opts.Notifier,
		observer:   observerOrNoop(opts.Observer),
	}, nil
}

// Policy returns the pipeline's size policy.
func (p *Pipeline) Policy() SizePolicy { return p.policy }

// Process runs file through the pipeline for its category.
// Returns true when a result was emitted, false when the file was rejected.
func (p *Pipeline) Process(ctx context.Context, file FileHandle) bool {
	category := p.classifier.Classify(file)
	return p.run(ctx, file, category)
}

// ProcessImage runs file through the image pipeline without classifying it.
// Used for clipboard images, which are known to be images up front.
func (p *Pipeline) ProcessImage(ctx context.Context, file FileHandle) bool {
	return p.run(ctx, file, CategoryImage)
}

func (p *Pipeline) run(ctx context.Context, file FileHandle, category Category) bool {
	logger := logging.WithFields(ctx,
		"file", file.Name,
		"category", category.String(),
		"size", file.Size,
	)
	if ch := ChannelFromContext(ctx); ch != "" {
		logger = logger.With("channel", ch)
	}

	result, err := p.execute(ctx, logger, file, category)
	if err != nil {
		p.fail(ctx, logger, file, category, err)
		return false
	}

	p.observer.ObserveFile(category, OutcomeSuccess)
	logger.Info("file ingested")
	p.emitter.Emit(ctx, result)
	return true
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, file FileHandle, category Category) (Result, error) {
	if category == CategoryUnknown {
		return nil, &UnsupportedTypeError{Filename: file.Name, MediaType: file.MediaType}
	}
	if err := Validate(file, category, p.policy); err != nil {
		return nil, err
	}

	switch category {
	case CategoryImage:
		return p.image(ctx, file)
	case CategoryPDF:
		return p.pdf(ctx, logger, file)
	default:
		return p.document(ctx, file)
	}
}

func (p *Pipeline) image(ctx context.Context, file FileHandle) (Result, error) {
	mediaType, payload, err := p.encode(ctx, file)
	if err != nil {
		return nil, err
	}
	if !p.classifier.AllowsImage(mediaType) {
		return nil, fmt.Errorf("image %s: content is %s: %w", file.Name, mediaType, ErrRejectedMediaType)
	}
	return ImageResult{
		Payload:   payload,
		MediaType: mediaType,
		Size:      file.Size,
		Filename:  file.Name,
	}, nil
}

func (p *Pipeline) pdf(ctx context.Context, logger *slog.Logger, file FileHandle) (Result, error) {
	receipt, err := p.uploader.Upload(ctx, file)
	if err != nil {
		return nil, err
	}

	_, payload, err := p.encode(ctx, file)
	if err != nil {
		logger.Warn("pdf uploaded but encoding failed", "saved_path", receipt.Path, "error", err)
		return nil, err
	}
	return PDFResult{
		Payload:   payload,
		MediaType: MediaTypePDF,
		Size:      file.Size,
		Filename:  file.Name,
		SavedPath: receipt.Path,
	}, nil
}

func (p *Pipeline) document(ctx context.Context, file FileHandle) (Result, error) {
	receipt, err := p.uploader.Upload(ctx, file)
	if err != nil {
		return nil, err
	}
	return DocumentResult{
		Filename:  file.Name,
		MediaType: file.MediaType,
		Size:      file.Size,
		SavedPath: receipt.Path,
	}, nil
}

func (p *Pipeline) encode(ctx context.Context, file FileHandle) (mediaType, payload string, err error) {
	dataURL, err := p.encoder.Encode(ctx, file)
	if err != nil {
		return "", "", err
	}
	mediaType, payload, err = ParseDataURL(dataURL)
	if err != nil {
		return "", "", &ReadError{Filename: file.Name, Err: err}
	}
	return mediaType, payload, nil
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, file FileHandle, category Category, err error) {
	p.observer.ObserveFile(category, OutcomeFailure)
	msg := MapError(err)
	logger.Debug("file rejected", "code", msg.Code, "error", err)
	p.notifier.Notify(ctx, Notice{
		Filename: file.Name,
		Category: category,
		Message:  msg,
		Err:      err,
	})
}
