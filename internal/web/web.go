// Package web renders the relay's HTML pages.
//
// Pages share a single layout; each page template fills the "title" and "content" blocks.
//
//	index        landing page with the Notion authorize link
//	auth_result  token display and the import form that streams /api/import
//	error        failure page for the OAuth callback
//	login        success page shown by the CLI's local callback server
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by [Pages.Render].
const (
	PageIndex      = "index"
	PageAuthResult = "auth_result"
	PageError      = "error"
	PageLogin      = "login"
)

// IndexData feeds the landing page.
type IndexData struct {
	Configured    bool   // false when the server has no Notion client credentials
	AuthorizePath string // relative URL that redirects to Notion
}

// AuthResultData feeds the page shown after a successful callback.
type AuthResultData struct {
	AccessToken   string
	WorkspaceName string
}

// Detail is one labelled value on an error page.
type Detail struct {
	Label string
	Value string
}

// ErrorData feeds the error page.
type ErrorData struct {
	Title   string
	Message string
	Details []Detail
	Body    string // raw upstream payload, shown preformatted
}

// LoginData feeds the CLI login success page.
type LoginData struct {
	WorkspaceName string
}

// Pages holds the parsed page templates.
type Pages struct {
	pages map[string]*template.Template
}

// New parses the embedded templates. Each page gets its own clone of the layout.
func New() (*Pages, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{PageIndex, PageAuthResult, PageError, PageLogin} {
		clone, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = clone
	}
	return &Pages{pages: pages}, nil
}

// MustNew is [New] for callers that treat a broken embed as a programming error.
func MustNew() *Pages {
	p, err := New()
	if err != nil {
		panic(err)
	}
	return p
}

// Render executes the named page into w.
func (p *Pages) Render(w io.Writer, name string, data any) error {
	tmpl, ok := p.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// Write renders the page into a buffer first so a template error can still become a 500.
func (p *Pages) Write(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := p.Render(&buf, name, data); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
