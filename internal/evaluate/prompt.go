// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/review-engine/pkg/types"
)

// judgmentPromptTmpl asks the model to judge one paper against the review
// criteria and appraise its methodological quality.
var judgmentPromptTmpl = template.Must(template.New("judgment").Parse(`You are a systematic-review screening assistant. Judge whether the following paper meets the review criteria.

Respond with a JSON object containing:
- status: "included" if the paper clearly meets the criteria, "excluded" if it clearly fails them, "uncertain" if the abstract does not give enough evidence either way
- confidence: a float between 0.0 and 1.0 indicating how certain you are of the status
- quality: a float between 0.0 and 1.0 appraising the study's methodological quality (design rigor, sample size, reporting) based on the abstract
- rationale: one or two sentences citing the specific criterion that drove the status

Do not include any text outside the JSON object.

Example response:
{"status": "excluded", "confidence": 0.85, "quality": 0.4, "rationale": "Animal study; the review includes only human trials."}

Research question:
{{.Question}}
{{if .Include}}
Inclusion criteria:
{{.Include}}
{{end}}{{if .Exclude}}
Exclusion criteria:
{{.Exclude}}
{{end}}
Paper title:
{{.Title}}

Paper abstract:
{{.Abstract}}
`))

// renderJudgmentPrompt executes the judgment prompt template.
func renderJudgmentPrompt(paper types.PaperData, criteria types.SearchCriteria) string {
	data := struct {
		Question, Include, Exclude, Title, Abstract string
	}{
		Question: criteria.Question,
		Include:  bulleted(criteria.Include),
		Exclude:  bulleted(criteria.Exclude),
		Title:    paper.Title,
		Abstract: paper.Abstract,
	}

	var buf bytes.Buffer
	if err := judgmentPromptTmpl.Execute(&buf, data); err != nil {
		return criteria.Question + "\n\n" + paper.Title + "\n\n" + paper.Abstract
	}
	return buf.String()
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
