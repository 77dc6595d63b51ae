package extract

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	ocrTemplate      = template.Must(template.ParseFS(templateFS, "templates/ocr_prompt.tmpl"))
	analysisTemplate = template.Must(template.ParseFS(templateFS, "templates/analysis_prompt.tmpl"))
)

func ocrPrompt() (string, error) {
	return render(ocrTemplate, nil)
}

func analysisPrompt(rawText string) (string, error) {
	return render(analysisTemplate, struct {
		Text    string
		Missing string
	}{Text: rawText, Missing: model.NotAvailable})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
