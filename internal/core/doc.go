// Package core is the file ingestion engine.
//
// It takes files from any input channel, decides what kind of file each one
// is, checks it against the size policy, and runs it through the matching
// pipeline. Nothing here knows about HTTP handlers, websockets or terminals;
// the web server, the drop zone adapters and the CLI all drive it the same way.
//
// # Categories
//
// [Classifier.Classify] sorts files into four categories using only the
// declared media type and the filename:
//
//   - Image: declared image/* type in the allowed set; encoded inline
//   - PDF: application/pdf or a .pdf name; uploaded, then encoded inline
//   - Document: doc, docx, xls, xlsx, ppt, pptx, txt, csv, md; uploaded only
//   - Unknown: rejected
//
// # Pipeline
//
// [Pipeline.Process] runs one file and reports success as a bool. Successful
// files produce exactly one [Result] on the configured [Emitter]; failed
// files produce exactly one [Notice] on the [Notifier]. [ResultStream]
// implements both and fans events out to subscribers.
//
//	stream := core.NewResultStream(0)
//	pipe, err := core.NewPipeline(core.Options{
//	    Uploader: uploader,
//	    Emitter:  stream,
//	    Notifier: stream,
//	})
//	ok := pipe.Process(ctx, core.NewBytesFile("invoice.pdf", "", data))
//
// # Batches
//
// [Batch.ProcessAll] runs many files, sequentially by default or on a
// bounded worker group, and waits for all of them.
//
// # Uploads
//
// [Uploader] sends one file per multipart request, retries transient
// failures with backoff, and shares an [UploadLimiter] across files.
//
// # Error Handling
//
// Errors are typed ([UnsupportedTypeError], [SizeExceededError],
// [UploadError], [NetworkError], [ReadError]) and mapped to user-facing
// messages with support codes by [MapError].
package core
