// Package httprequest provides the input hooks of the http.request node.
package httprequest

import (
	"errors"
	"net/url"
	"strings"

	"github.com/zachsents/minus-sub000/pkg/models"
)

const (
	DefinitionID = "http.request"
	InputURL     = "url"
	InputMethod  = "method"
	InputBody    = "body"
)

var (
	ErrInvalidURL        = errors.New("url must be an absolute http or https address")
	ErrBodyNotAllowed    = errors.New("GET and HEAD requests cannot carry a body")
	ErrUnsupportedMethod = errors.New("unsupported http method")
)

var methods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "OPTIONS": true,
}

func Hooks() map[string]any {
	return map[string]any{
		InputURL:    urlHook{},
		InputMethod: methodHook{},
		InputBody:   bodyHook{},
	}
}

type urlHook struct{}

func (urlHook) ValidateConfiguration(value any) error {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return nil
	}

	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ErrInvalidURL
	}

	return nil
}

type methodHook struct{}

func (methodHook) ValidateConfiguration(value any) error {
	method, ok := value.(string)
	if !ok || method == "" {
		return nil
	}

	if !methods[strings.ToUpper(method)] {
		return ErrUnsupportedMethod
	}

	return nil
}

type bodyHook struct{}

// ValidateInput rejects a body when the sibling method input is configured as GET or HEAD.
func (bodyHook) ValidateInput(input *models.InterfaceInstance, siblings []*models.InterfaceInstance) error {
	if input.Mode == models.ModeConfiguration && isBlank(input.Value) {
		return nil
	}

	for _, sibling := range siblings {
		if sibling.Definition != InputMethod || sibling.Mode != models.ModeConfiguration {
			continue
		}

		method, _ := sibling.Value.(string)
		switch strings.ToUpper(method) {
		case "GET", "HEAD":
			return ErrBodyNotAllowed
		}
	}

	return nil
}

func isBlank(value any) bool {
	if value == nil {
		return true
	}

	text, ok := value.(string)

	return ok && strings.TrimSpace(text) == ""
}
