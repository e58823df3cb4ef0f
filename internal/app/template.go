package app

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin/render"
)

const (
	templateRoot    = "templates"
	htmlContentType = "text/html; charset=utf-8"
)

// sharedDirs hold templates that every page is parsed on top of.
var sharedDirs = []string{"layouts", "partials"}

// TemplateRenderer is a gin HTML renderer where each page under templates/
// is compiled against a shared set of layouts and partials.
//
// Pages are keyed by their path below templates/, such as
// "resource/list.html". A page invokes {{ template "base" . }} and fills the
// layout's blocks. In debug mode the whole set is re-parsed for every render
// so edits on disk show up without a restart.
type TemplateRenderer struct {
	templates map[string]*template.Template
	fs        fs.FS
	funcMap   template.FuncMap
	debug     bool
}

var _ render.HTMLRender = (*TemplateRenderer)(nil)

// NewTemplateRenderer builds a renderer over fsys, which must contain a
// templates/ directory. Release mode parses everything up front and fails on
// the first broken template.
func NewTemplateRenderer(fsys fs.FS, debug bool) (*TemplateRenderer, error) {
	r := &TemplateRenderer{fs: fsys, funcMap: templateFuncMap(), debug: debug}
	if debug {
		return r, nil
	}
	templates, err := r.parseAllTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.templates = templates
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *TemplateRenderer) Instance(name string, data any) render.Render {
	templates := r.templates
	if r.debug {
		var err error
		if templates, err = r.parseAllTemplates(); err != nil {
			return &HTMLInstance{Name: name, err: err}
		}
	}
	return &HTMLInstance{Template: templates[name], Name: name, Data: data}
}

func (r *TemplateRenderer) parseAllTemplates() (map[string]*template.Template, error) {
	shared := template.New("").Funcs(r.funcMap)
	for _, dir := range sharedDirs {
		files, err := fs.Glob(r.fs, path.Join(templateRoot, dir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		for _, f := range files {
			if err := parseInto(shared, r.fs, f, f); err != nil {
				return nil, err
			}
		}
	}

	pages, err := r.discoverPageTemplates()
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}
	templates := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		set, err := shared.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone shared set for %s: %w", p, err)
		}
		name := strings.TrimPrefix(p, templateRoot+"/")
		if err := parseInto(set, r.fs, p, name); err != nil {
			return nil, err
		}
		templates[name] = set
	}
	return templates, nil
}

func parseInto(set *template.Template, fsys fs.FS, file, name string) error {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if _, err := set.New(name).Parse(string(content)); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return nil
}

// discoverPageTemplates lists every .html file under templates/ outside the
// shared directories.
func (r *TemplateRenderer) discoverPageTemplates() ([]string, error) {
	var pages []string
	err := fs.WalkDir(r.fs, templateRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, dir := range sharedDirs {
				if p == path.Join(templateRoot, dir) {
					return fs.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(p, ".html") {
			pages = append(pages, p)
		}
		return nil
	})
	return pages, err
}

func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		// json embeds v in a script or Alpine attribute.
		"json": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return template.JS("null")
			}
			return template.JS(b)
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(time.DateTime)
		},
		"truncate": truncate,
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
		"seq": func(start, end int) []int {
			if start > end {
				return nil
			}
			s := make([]int, 0, end-start+1)
			for i := start; i <= end; i++ {
				s = append(s, i)
			}
			return s
		},
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// HTMLInstance renders one page template.
type HTMLInstance struct {
	Template *template.Template
	Name     string
	Data     any
	err      error
}

// Render implements render.Render.
func (h *HTMLInstance) Render(w http.ResponseWriter) error {
	h.WriteContentType(w)
	switch {
	case h.err != nil:
		return h.err
	case h.Template == nil:
		return fmt.Errorf("template %q not found", h.Name)
	}
	return h.Template.ExecuteTemplate(w, h.Name, h.Data)
}

// WriteContentType implements render.Render. An existing Content-Type wins.
func (h *HTMLInstance) WriteContentType(w http.ResponseWriter) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", htmlContentType)
	}
}
