// Package assets provides embedded static assets for the application.
//
// Prompt texts live under prompts/ and HTML page templates under templates/;
// both are embedded at compile time and parsed once at startup.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// DescribeSystemPrompt frames the listing-writer role for the vision model.
//
//go:embed prompts/describe-system.txt
var DescribeSystemPrompt string

//go:embed prompts/describe.txt
var describeTemplate string

// Pre-parsed so a malformed template fails at startup, not on the first photo.
var describePromptTmpl = template.Must(template.New("describe").Parse(describeTemplate))

// DescribePromptData holds the dynamic parts of the describe prompt.
type DescribePromptData struct {
	// Categories is the comma-separated category list the model picks from.
	Categories string
	// Hint is optional photo metadata; omitted from the prompt when empty.
	Hint string
}

// RenderDescribePrompt renders the listing prompt for a craft photo.
func RenderDescribePrompt(categories []string, hint string) string {
	var buf bytes.Buffer
	// Execution cannot fail on string fields; whatever rendered is returned.
	_ = describePromptTmpl.Execute(&buf, DescribePromptData{
		Categories: strings.Join(categories, ", "),
		Hint:       strings.TrimSpace(hint),
	})
	return strings.TrimSpace(buf.String())
}
