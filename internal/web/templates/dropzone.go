// Package templates renders the dropzone page and HTML fragments.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
)

// PageProps configures the dropzone page.
type PageProps struct {
	Title             string
	AllowedImageTypes []string
	ImageMaxBytes     int64
	PDFMaxBytes       int64
	DocumentMaxBytes  int64
}

// Page renders the full dropzone page: the drop target, the overlay, the
// result list and the script relaying browser events to the server.
func Page(p PageProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := p.Title
		if title == "" {
			title = "Dropzone"
		}
		_, err := fmt.Fprintf(w, pageHTML,
			templ.EscapeString(title),
			templ.EscapeString(title),
			templ.EscapeString(strings.Join(p.AllowedImageTypes, ", ")),
			templ.EscapeString(humanize.IBytes(uint64(p.ImageMaxBytes))),
			templ.EscapeString(humanize.IBytes(uint64(p.PDFMaxBytes))),
			templ.EscapeString(humanize.IBytes(uint64(p.DocumentMaxBytes))),
			dropzoneScript,
		)
		return err
	})
}

// ErrorAlert renders an inline error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		b.WriteString(`<strong>` + templ.EscapeString(message) + `</strong>`)
		if action != "" {
			b.WriteString(` <span class="alert-action">` + templ.EscapeString(action) + `</span>`)
		}
		if code != "" {
			b.WriteString(` <code>` + templ.EscapeString(code) + `</code>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
#overlay { display: none; position: fixed; inset: 0; background: rgba(30, 90, 200, .15); border: 4px dashed #1e5ac8; }
#overlay.visible { display: block; }
.alert-error { color: #a00; }
li.notice { color: #a00; }
</style>
</head>
<body>
<h1>%s</h1>
<p>Drop or paste files anywhere on this page.</p>
<ul>
<li>Images (%s) up to %s</li>
<li>PDFs up to %s</li>
<li>Documents (doc, docx, xls, xlsx, ppt, pptx, txt, csv, md) up to %s</li>
</ul>
<div id="overlay"></div>
<ol id="results"></ol>
<script>%s</script>
</body>
</html>
`

const dropzoneScript = `
(function () {
  var session = "";
  var overlay = document.getElementById("overlay");
  var results = document.getElementById("results");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws/drag");

  function apply(fb) {
    if (fb) { overlay.classList.toggle("visible", fb.overlay); }
  }
  ws.onmessage = function (m) {
    var msg = JSON.parse(m.data);
    if (msg.type === "session") { session = msg.session; }
    apply(msg.feedback);
  };
  ["dragenter", "dragover", "dragleave", "drop"].forEach(function (name) {
    document.addEventListener(name, function (e) {
      e.preventDefault();
      if (ws.readyState === WebSocket.OPEN) { ws.send(JSON.stringify({ event: name })); }
      if (name === "drop") { upload("/api/drop", "files", e.dataTransfer.files); }
    });
  });
  document.addEventListener("paste", function (e) {
    var items = e.clipboardData ? e.clipboardData.items : [];
    var form = new FormData();
    var images = 0;
    for (var i = 0; i < items.length; i++) {
      if (items[i].kind === "file") {
        var f = items[i].getAsFile();
        if (f) { form.append("items", f, f.name || ""); if (f.type.indexOf("image/") === 0) { images++; } }
      }
    }
    if (images > 0) {
      e.preventDefault();
      fetch("/api/paste", { method: "POST", body: form });
    }
  });
  function upload(url, field, files) {
    var form = new FormData();
    for (var i = 0; i < files.length; i++) { form.append(field, files[i]); }
    fetch(url, { method: "POST", body: form, headers: { "X-Dropzone-Session": session } });
  }
  function show(text, cls) {
    var li = document.createElement("li");
    li.textContent = text;
    if (cls) { li.className = cls; }
    results.appendChild(li);
  }
  var events = new EventSource("/api/events");
  events.addEventListener("result", function (m) {
    var ev = JSON.parse(m.data);
    var r = ev.result;
    show(ev.category + ": " + r.filename + (r.saved_path ? " -> " + r.saved_path : ""));
  });
  events.addEventListener("notice", function (m) {
    var ev = JSON.parse(m.data);
    var n = ev.notice;
    show(n.filename + ": " + n.message.message + " (" + n.message.code + ")", "notice");
  });
})();
`
