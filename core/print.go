package core

import (
	htmltmpl "html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const printTemplatesDir = "templates/print"

// PrintData is passed to every printable template.
type PrintData struct {
	School SchoolProfile
	Card   interface{}
	// Receipt is only set for receipts
	Receipt interface{}
}

// Printer renders printable HTML documents (report cards, receipts) from `templates/print/<name>.gohtml`.
type Printer struct {
	school    SchoolProfile
	templates map[string]*htmltmpl.Template
}

func NewPrinter(fsys fs.FS, conf *Config) (*Printer, error) {
	fps, err := fs.Glob(fsys, path.Join(printTemplatesDir, "*.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing print templates")
	}

	p := &Printer{school: conf.School, templates: make(map[string]*htmltmpl.Template, len(fps))}
	for _, fp := range fps {
		tmpl, err := htmltmpl.ParseFS(fsys, fp)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fp)
		}
		p.templates[strings.TrimSuffix(path.Base(fp), ".gohtml")] = tmpl
	}
	return p, nil
}

// Render writes the printable document `name` to w.
func (p *Printer) Render(w io.Writer, name string, data PrintData) error {
	tmpl, ok := p.templates[name]
	if !ok {
		return errors.Errorf("unknown print template %q", name)
	}
	data.School = p.school
	return errors.Wrapf(tmpl.Execute(w, data), "rendering %s", name)
}
