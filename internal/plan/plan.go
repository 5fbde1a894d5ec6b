// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan expands review criteria into a diversified set of search
// queries. The planner extracts PICO components from the research question
// through the inference collaborator and generates semantic, keyword, and
// hybrid queries so no single retrieval strategy biases the candidate pool.
package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/review-engine/internal/llm"
	"github.com/pdiddy/review-engine/pkg/types"
)

// ErrNoUsableQueries reports a question that could not be expanded into at
// least one query of every required type. It is surfaced before any
// retrieval cost is paid.
var ErrNoUsableQueries = errors.New("question yields no usable search queries")

// requiredTypes lists the query types every valid plan must cover.
var requiredTypes = []types.QueryType{types.QuerySemantic, types.QueryKeyword, types.QueryHybrid}

// Planner generates search plans from review criteria.
type Planner struct {
	// LLM extracts PICO components. When extraction fails the planner
	// falls back to keyword heuristics over the question text.
	LLM llm.Client
}

// BuildPlan expands the criteria into a deduplicated multi-strategy query
// set. Returns ErrNoUsableQueries when the question cannot be expanded.
func (p *Planner) BuildPlan(ctx context.Context, criteria types.SearchCriteria) (types.SearchPlan, error) {
	question := strings.TrimSpace(criteria.Question)
	if question == "" {
		return types.SearchPlan{}, fmt.Errorf("building plan: %w", ErrNoUsableQueries)
	}

	pico := p.extractPICO(ctx, question, criteria.Purpose)

	var queries []types.PlannedQuery
	queries = append(queries, semanticQueries(question, criteria, pico)...)
	queries = append(queries, keywordQueries(question, criteria, pico)...)
	queries = append(queries, hybridQueries(question, pico)...)

	queries = Dedup(queries)

	byType := make(map[types.QueryType]int)
	for _, q := range queries {
		byType[q.Type]++
	}
	for _, t := range requiredTypes {
		if byType[t] == 0 {
			return types.SearchPlan{}, fmt.Errorf("no %s query generated: %w", t, ErrNoUsableQueries)
		}
	}

	return types.SearchPlan{
		Question: question,
		PICO:     pico,
		Queries:  queries,
	}, nil
}

// picoResponse is the structured judgment expected from the model.
type picoResponse struct {
	Population   string `json:"population"`
	Intervention string `json:"intervention"`
	Comparison   string `json:"comparison"`
	Outcome      string `json:"outcome"`
}

// extractPICO asks the inference collaborator for the question's PICO
// components. Unparsable output degrades to an empty PICO; the keyword
// heuristics still produce a usable plan.
func (p *Planner) extractPICO(ctx context.Context, question, purpose string) types.PICO {
	if p.LLM == nil {
		return types.PICO{}
	}

	raw, err := p.LLM.Complete(ctx, renderPICOPrompt(question, purpose))
	if err != nil {
		return types.PICO{}
	}

	var resp picoResponse
	if err := llm.ExtractJSON(raw, &resp); err != nil {
		return types.PICO{}
	}

	return types.PICO{
		Population:   strings.TrimSpace(resp.Population),
		Intervention: strings.TrimSpace(resp.Intervention),
		Comparison:   strings.TrimSpace(resp.Comparison),
		Outcome:      strings.TrimSpace(resp.Outcome),
	}
}

func semanticQueries(question string, criteria types.SearchCriteria, pico types.PICO) []types.PlannedQuery {
	queries := []types.PlannedQuery{{
		Text:      question,
		Type:      types.QuerySemantic,
		Rationale: "research question verbatim",
	}}

	if criteria.Purpose != "" {
		queries = append(queries, types.PlannedQuery{
			Text:      question + " " + criteria.Purpose,
			Type:      types.QuerySemantic,
			Rationale: "question expanded with review purpose",
		})
	}

	if pico.Intervention != "" && pico.Outcome != "" {
		text := strings.TrimSpace(strings.Join([]string{pico.Intervention, "effect on", pico.Outcome, pico.Population}, " "))
		queries = append(queries, types.PlannedQuery{
			Text:      text,
			Type:      types.QuerySemantic,
			Rationale: "PICO intervention-outcome restatement",
		})
	}

	return queries
}

func keywordQueries(question string, criteria types.SearchCriteria, pico types.PICO) []types.PlannedQuery {
	var queries []types.PlannedQuery

	if terms := Keywords(question); len(terms) > 0 {
		queries = append(queries, types.PlannedQuery{
			Text:      strings.Join(terms, " AND "),
			Type:      types.QueryKeyword,
			Rationale: "content terms of the question",
		})
	}

	for _, pair := range [][2]string{
		{pico.Intervention, pico.Outcome},
		{pico.Population, pico.Intervention},
		{pico.Intervention, pico.Comparison},
	} {
		if pair[0] != "" && pair[1] != "" {
			queries = append(queries, types.PlannedQuery{
				Text:      pair[0] + " AND " + pair[1],
				Type:      types.QueryKeyword,
				Rationale: "PICO component pair",
			})
		}
	}

	for _, inc := range criteria.Include {
		if terms := Keywords(inc); len(terms) > 0 {
			queries = append(queries, types.PlannedQuery{
				Text:      strings.Join(terms, " AND "),
				Type:      types.QueryKeyword,
				Rationale: "inclusion criterion terms",
			})
		}
	}

	return queries
}

func hybridQueries(question string, pico types.PICO) []types.PlannedQuery {
	var queries []types.PlannedQuery

	terms := Keywords(question)
	if len(terms) > 0 {
		anchor := terms[0]
		if pico.Intervention != "" {
			anchor = pico.Intervention
		}
		queries = append(queries, types.PlannedQuery{
			Text:      anchor + " " + strings.Join(terms, " "),
			Type:      types.QueryHybrid,
			Rationale: "anchored term mix for hybrid retrieval",
		})
	}

	if pico.Outcome != "" && len(terms) > 0 {
		queries = append(queries, types.PlannedQuery{
			Text:      strings.Join(terms, " ") + " " + pico.Outcome,
			Type:      types.QueryHybrid,
			Rationale: "question terms with PICO outcome",
		})
	}

	return queries
}

// Dedup drops empty or whitespace-only queries and removes case-insensitive
// duplicates, preserving the casing of the first occurrence.
func Dedup(queries []types.PlannedQuery) []types.PlannedQuery {
	seen := make(map[string]bool, len(queries))
	var out []types.PlannedQuery
	for _, q := range queries {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		q.Text = text
		out = append(out, q)
	}
	return out
}

// stopwords are terms that carry no retrieval value in a keyword query.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "does": true, "for": true, "from": true,
	"how": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "than": true, "the": true, "to": true, "what": true,
	"when": true, "which": true, "with": true,
}

// Keywords returns the lowercased content terms of text, in order, with
// stopwords and punctuation removed.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '-')
	})

	var terms []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
