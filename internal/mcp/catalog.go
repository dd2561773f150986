// ABOUTME: Browser-facing tool catalog served at GET / for text/html clients.
// ABOUTME: Builds Markdown from the registry and renders it with goldmark.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/sei-mcp-gateway/internal/schema"
)

var catalogMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var catalogPage = template.Must(template.New("catalog").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
code, pre { background: #f6f8fa; border-radius: 4px; }
pre { padding: .75rem; overflow-x: auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #d0d7de; padding: .3rem .6rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// catalogMarkdownSource describes the server and every tool as Markdown.
func (s *Server) catalogMarkdownSource() []byte {
	var b strings.Builder
	info := s.info()

	fmt.Fprintf(&b, "# %s %s\n\n", info.Name, info.Version)
	fmt.Fprintf(&b, "Status: **%s**, %d open session(s).\n\n", info.Status, info.ActiveConnections)

	b.WriteString("## Endpoints\n\n| Method | Path | Purpose |\n|---|---|---|\n")
	b.WriteString("| GET | `/sse` | Open an event stream; the first event names the message endpoint |\n")
	b.WriteString("| POST | `/messages?sessionId=` | Send one JSON-RPC message |\n")
	b.WriteString("| GET | `/health` | Liveness and open sessions |\n")
	b.WriteString("| POST | `/config` | Set the signing key |\n\n")

	b.WriteString("## Tools\n\n")
	if !s.registry.Ready() {
		b.WriteString("_Tools are still loading._\n")
		return []byte(b.String())
	}

	for _, tool := range s.registry.ListTools() {
		fmt.Fprintf(&b, "### `%s`\n\n", tool.Name)
		if tool.Description != "" {
			b.WriteString(tool.Description + "\n\n")
		}
		rendered, err := json.MarshalIndent(schema.ToJSONSchema(tool.InputSchema), "", "  ")
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "```json\n%s\n```\n\n", rendered)
	}
	return []byte(b.String())
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	var body bytes.Buffer
	if err := catalogMarkdown.Convert(s.catalogMarkdownSource(), &body); err != nil {
		s.logger.Error("failed to convert catalog markdown", "error", err)
		body.Reset()
		body.WriteString("<p>Failed to render tool catalog.</p>")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := catalogPage.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: s.serverName,
		Body:  template.HTML(body.String()),
	})
	if err != nil {
		s.logger.Error("failed to render catalog", "error", err)
	}
}
