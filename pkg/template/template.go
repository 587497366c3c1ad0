// Package template renders the text and HTML bodies of outgoing messages.
package template

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

var funcs = map[string]any{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"formatTime": func(t *time.Time) string {
		if t == nil {
			return ""
		}

		return t.UTC().Format(time.RFC1123)
	},
	"join": strings.Join,
}

// Render executes a text template.
func Render(name, source string, data any) (string, error) {
	tmpl, err := texttemplate.New(name).Funcs(funcs).Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// RenderHTML executes an HTML template. Values are escaped for their context.
func RenderHTML(name, source string, data any) (string, error) {
	tmpl, err := htmltemplate.New(name).Funcs(funcs).Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}
