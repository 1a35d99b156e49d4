// Package server is the local web dashboard: active and archived cards,
// report history, and inline article previews.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/newsforge/newsforge/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed about.md
var aboutMarkdown string

var md = goldmark.New()

// Previewer fetches a readable excerpt of an article URL.
type Previewer interface {
	Fetch(articleURL string) (string, error)
}

// Server is the HTTP server for the dashboard.
type Server struct {
	db        *database.DB
	previewer Previewer
	pages     map[string]*template.Template
	mux       *http.ServeMux
}

// New creates a new Server. previewer may be nil, which disables the
// article preview route.
func New(db *database.DB, previewer Previewer) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"rating": func(r float64) string {
			if r == 0 {
				return "–"
			}
			return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", r), "0"), ".")
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "archived.html", "history.html", "report.html", "about.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, previewer: previewer, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/archived", s.handleArchived)
	s.mux.HandleFunc("/history", s.handleHistory)
	s.mux.HandleFunc("/history/", s.handleReport)
	s.mux.HandleFunc("/about", s.handleAbout)
	s.mux.HandleFunc("/cards/", s.handleCardAction)
}

// categoryGroup is one dashboard section: a category and its cards.
type categoryGroup struct {
	Name  string
	Cards []database.Card
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	cards, err := s.db.GetActiveCards()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Groups": groupByCategory(cards),
		"Total":  len(cards),
	})
}

func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request) {
	cards, err := s.db.GetArchivedCards()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "archived.html", map[string]any{
		"Cards": cards,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	reports, err := s.db.GetAllReports()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "history.html", map[string]any{
		"Reports": reports,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	reportID := strings.TrimPrefix(r.URL.Path, "/history/")
	if reportID == "" {
		http.Redirect(w, r, "/history", http.StatusFound)
		return
	}

	report, err := s.db.GetReport(reportID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.NotFound(w, r)
		return
	}
	cards, _ := s.db.GetCardsForReport(reportID)

	s.render(w, "report.html", map[string]any{
		"Report":       report,
		"Cards":        cards,
		"Distribution": distributionBins(report.RatingDistribution),
	})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, "about.html", map[string]any{
		"Content": renderMarkdown(aboutMarkdown),
	})
}

// handleCardAction serves /cards/{id}/archive and /cards/{id}/preview.
func (s *Server) handleCardAction(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/cards/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	cardID, action := parts[0], parts[1]

	switch action {
	case "archive":
		if r.Method != http.MethodPost {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if _, err := s.db.ArchiveCard(cardID); err != nil {
			log.Printf("Failed to archive card %s: %v", cardID, err)
		}
		http.Redirect(w, r, "/", http.StatusFound)

	case "preview":
		s.handlePreview(w, r, cardID)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, cardID string) {
	if s.previewer == nil {
		http.Error(w, "Previews disabled", http.StatusNotImplemented)
		return
	}

	card, err := s.db.GetCard(cardID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if card == nil {
		http.NotFound(w, r)
		return
	}
	if card.URL == nil || *card.URL == "" {
		http.Error(w, "Card has no article URL", http.StatusUnprocessableEntity)
		return
	}

	text, err := s.previewer.Fetch(*card.URL)
	if err != nil {
		log.Printf("Preview fetch failed for %s: %v", *card.URL, err)
		http.Error(w, "Could not fetch article", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, text)
}

// groupByCategory keeps the card order inside each group; groups are
// ordered by their best-rated card.
func groupByCategory(cards []database.Card) []categoryGroup {
	index := make(map[string]int)
	var groups []categoryGroup
	for _, c := range cards {
		name := c.Category
		if name == "" {
			name = "Uncategorized"
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, categoryGroup{Name: name})
		}
		groups[i].Cards = append(groups[i].Cards, c)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return maxRating(groups[a].Cards) > maxRating(groups[b].Cards)
	})
	return groups
}

func maxRating(cards []database.Card) float64 {
	best := 0.0
	for _, c := range cards {
		if c.Rating > best {
			best = c.Rating
		}
	}
	return best
}

// distributionBin is one histogram row for the report page.
type distributionBin struct {
	Rating int
	Count  int
}

func distributionBins(distribution map[int]int) []distributionBin {
	var bins []distributionBin
	for rating := 10; rating >= 1; rating-- {
		if count, ok := distribution[rating]; ok {
			bins = append(bins, distributionBin{Rating: rating, Count: count})
		}
	}
	return bins
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, previewer Previewer, port int) error {
	srv, err := New(db, previewer)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
