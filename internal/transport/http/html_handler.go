package http

import (
	"html/template"
	"io/fs"
	"net/http"
)

// DashboardPageData carries the values injected into the dashboard page template.
type DashboardPageData struct {
	Title   string
	Version string
	Notice  string
}

// ServeDashboardPage serves the dashboard page from the embedded web assets
func ServeDashboardPage(assets fs.FS, data DashboardPageData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if assets == nil {
			http.Error(w, "Dashboard page not available", http.StatusNotFound)
			return
		}

		// Check if the page exists in the embedded assets
		if _, err := fs.Stat(assets, "index.html"); err != nil {
			http.Error(w, "Dashboard page not found", http.StatusNotFound)
			return
		}

		serveHTML(w, r, assets, "index.html", data)
	}
}

// serveHTML serves an HTML template with proper headers
func serveHTML(w http.ResponseWriter, r *http.Request, assets fs.FS, name string, data interface{}) {
	// Set security headers
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "1; mode=block")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Parse and execute template
	tmpl, err := template.ParseFS(assets, name)
	if err != nil {
		http.Error(w, "Error loading page", http.StatusInternalServerError)
		return
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
}
