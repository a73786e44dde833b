// Package fragments provides template name constants for the dashboard pages
package fragments

import "strings"

// Page templates
const (
	Index  = "index.html"
	Login  = "login.html"
	Report = "report.html"
)

// Shared partials defined in layout.html
const (
	Header = "header"
	Footer = "footer"
	Alerts = "alerts"
)

// GetAllTemplatePaths returns every named template the server expects to find
func GetAllTemplatePaths() []string {
	return []string{
		Index,
		Login,
		Report,
		Header,
		Footer,
		Alerts,
	}
}

// GetTemplateCategory returns "page" for file templates and "partial" for
// the shared blocks
func GetTemplateCategory(name string) string {
	if strings.HasSuffix(name, ".html") {
		return "page"
	}
	return "partial"
}
