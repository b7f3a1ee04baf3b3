package echoapi

import (
	"html/template"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/reviewer"
	appfs "github.com/kcci/portal/fs"
)

const (
	pageTemplatesDir = "assets/templates/pages"
	pageLayout       = "_layout.gohtml"
)

// pageRenderer renders the public pages within the shared layout.
type pageRenderer struct {
	conf      *core.Config
	templates map[string]*template.Template // {name: layout+page}
}

var _ echo.Renderer = (*pageRenderer)(nil)

// newPageRenderer parses every page with the shared layout. Pages are named after their file, without ext.
func newPageRenderer(conf *core.Config) (*pageRenderer, error) {
	r := &pageRenderer{conf: conf, templates: make(map[string]*template.Template)}

	entries, err := appfs.FS.ReadDir(pageTemplatesDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading page templates")
	}
	layout := path.Join(pageTemplatesDir, pageLayout)
	for _, de := range entries {
		fname := de.Name()
		if de.IsDir() || strings.HasPrefix(fname, "_") || path.Ext(fname) != ".gohtml" {
			continue
		}
		tmpl, err := template.ParseFS(appfs.FS, layout, path.Join(pageTemplatesDir, fname))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing page template %s", fname)
		}
		r.templates[strings.TrimSuffix(fname, ".gohtml")] = tmpl
	}
	return r, nil
}

type pageData struct {
	AppName         string
	FrontendBaseURL string
	Year            int
	Data            interface{}
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("page template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, pageLayout, pageData{
		AppName:         r.conf.AppName,
		FrontendBaseURL: r.conf.FrontendBaseURL,
		Year:            time.Now().Year(),
		Data:            data,
	})
}

type pages struct {
	reviewers *reviewer.Service
	companies *company.Service
}

func registerPages(e *echo.Echo, reviewers *reviewer.Service, companies *company.Service) {
	p := pages{reviewers: reviewers, companies: companies}

	e.GET("/", p.home)
	e.GET("/about", p.about)
	e.GET("/members", p.members)
}

func (p *pages) home(ctx echo.Context) error {
	comps, err := p.companies.Directory(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "listing company directory")
	}
	revs, err := p.reviewers.Directory(ctx.Request().Context(), "")
	if err != nil {
		return errors.Wrap(err, "listing reviewer directory")
	}
	return ctx.Render(http.StatusOK, "home", map[string]int{
		"CompanyCount":  len(comps),
		"ReviewerCount": len(revs),
	})
}

func (p *pages) about(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "about", nil)
}

func (p *pages) members(ctx echo.Context) error {
	search := core.CleanString(ctx.QueryParam(searchParam))
	comps, err := p.companies.Directory(ctx.Request().Context(), search)
	if err != nil {
		return errors.Wrap(err, "listing company directory")
	}
	revs, err := p.reviewers.Directory(ctx.Request().Context(), search)
	if err != nil {
		return errors.Wrap(err, "listing reviewer directory")
	}
	return ctx.Render(http.StatusOK, "members", struct {
		Search    string
		Companies []company.DirectoryEntry
		Reviewers []reviewer.DirectoryEntry
	}{search, comps, revs})
}
