// Package dropzone adapts browser input events to the ingestion pipeline.
//
// A Tracker follows drag-enter/leave nesting for one page to decide when the
// drop overlay is visible, and hands dropped files to a batch runner. A
// PasteHandler picks image items out of a clipboard paste and sends them
// through the image pipeline. Sessions keys one Tracker per connected page.
package dropzone
