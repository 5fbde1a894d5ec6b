// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"bytes"
	"text/template"
)

// picoPromptTmpl asks the model to decompose a clinical research question
// into PICO components. The response must be a bare JSON object.
var picoPromptTmpl = template.Must(template.New("pico").Parse(`You are a systematic-review planning assistant. Decompose the following research question into PICO components.

- population: the group of subjects the question concerns
- intervention: the treatment, exposure, or technique under study
- comparison: the alternative the intervention is measured against (empty string if none)
- outcome: the effect or endpoint being measured

Use the question's own vocabulary. Leave a component as an empty string when the question does not state it; do not invent components.

Respond with a JSON object containing exactly the keys "population", "intervention", "comparison", "outcome". Do not include any text outside the JSON object.

Example response:
{"population": "adults with hypertension", "intervention": "low-sodium diet", "comparison": "standard diet", "outcome": "systolic blood pressure"}

Research question:
{{.Question}}
{{if .Purpose}}
Review purpose:
{{.Purpose}}
{{end}}`))

// renderPICOPrompt executes the PICO prompt template.
func renderPICOPrompt(question, purpose string) string {
	var buf bytes.Buffer
	if err := picoPromptTmpl.Execute(&buf, struct{ Question, Purpose string }{question, purpose}); err != nil {
		// Template and inputs are plain strings; execution cannot fail.
		return question
	}
	return buf.String()
}
