// Package templates holds the templ components for the HTML side of the
// server. Edit the .templ files and run `templ generate` to refresh the
// _templ.go files.
package templates

import "strconv"

// IndexParams feeds the overview page.
type IndexParams struct {
	ActiveSessions  int
	MaxSessions     int
	AddressPrefixes []string
	EmailSuffixes   []string
}

var workflowSteps = []string{
	"POST /api/sessions",
	"POST /api/sessions/{id}/file",
	"POST /api/sessions/{id}/filter",
	"POST /api/sessions/{id}/confirm",
	"GET /api/sessions/{id}/export?set=kept",
	"GET /api/sessions/{id}/history",
}

// columnLabel shows an audit column, blank when the action had none.
func columnLabel(c int) string {
	if c < 0 {
		return ""
	}
	return strconv.Itoa(c)
}

const timeLayout = "2006-01-02 15:04:05"
