package server

import (
	"embed"
	"html/template"
	"net/http"

	"resumatch/internal/types"

	oteltrace "go.opentelemetry.io/otel/trace"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// indexPageData feeds the upload form template
type indexPageData struct {
	SemanticMatching bool
}

// indexHandler serves the HTML upload form with the semantic matching banner
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := indexPageData{
		SemanticMatching: s.Matcher != nil && s.Matcher.SemanticEnabled(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.Logger.LogError(err, "Failed to render index page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// renderResultPage renders a match result as the HTML result page
func (s *Server) renderResultPage(w http.ResponseWriter, span oteltrace.Span, result types.MatchResult) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "result.html", result); err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to render result page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
