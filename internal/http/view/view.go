// Package view holds the server-rendered pages.
package view

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

const (
	PageLogin       = "login.html"
	PageDashboard   = "dashboard.html"
	PageRemediation = "remediation.html"
)

var funcs = template.FuncMap{
	"amountValue": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"plural": func(n int, word string) string {
		if n == 1 {
			return word
		}
		return word + "s"
	},
}

// Templates parses every page. Pass the result to gin's SetHTMLTemplate.
func Templates() (*template.Template, error) {
	t, err := template.New("pages").Funcs(funcs).ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return t, nil
}

// Remediation is the data of the page shown while the backend is not configured.
type Remediation struct {
	Missing []string
}
