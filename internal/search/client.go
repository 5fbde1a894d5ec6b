// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pdiddy/review-engine/internal/httputil"
	"github.com/pdiddy/review-engine/pkg/types"
)

// HTTPSearcher queries a document retrieval service over a JSON HTTP API.
// The service accepts GET /search?q=...&from=...&to=...&limit=... and
// returns {"documents": [{id, title, abstract, date, source, study_type}]}.
type HTTPSearcher struct {
	Config types.RetrievalConfig
	Client *http.Client
}

// searchResponse is the retrieval service response envelope.
type searchResponse struct {
	Documents []searchDocument `json:"documents"`
}

// searchDocument is one hit as returned by the retrieval service.
type searchDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Date      string `json:"date"`
	Source    string `json:"source"`
	StudyType string `json:"study_type"`
}

// Search queries the retrieval service. Rate-limited requests are retried
// with exponential backoff.
func (s *HTTPSearcher) Search(ctx context.Context, query string, f Filters) ([]types.PaperData, error) {
	if s.Config.BaseURL == "" {
		return nil, fmt.Errorf("retrieval base URL not configured")
	}

	limit := f.MaxResults
	if limit <= 0 {
		limit = s.Config.MaxResults
	}

	params := url.Values{
		"q":     {query},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	if !f.DateFrom.IsZero() {
		params.Set("from", f.DateFrom.Format("2006-01-02"))
	}
	if !f.DateTo.IsZero() {
		params.Set("to", f.DateTo.Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Config.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.Config.UserAgent)
	if s.Config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.Config.APIKey)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: s.Config.Timeout}
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval service returned HTTP %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing retrieval response: %w", err)
	}

	papers := make([]types.PaperData, 0, len(sr.Documents))
	for _, doc := range sr.Documents {
		p := types.PaperData{
			ID:        doc.ID,
			Title:     doc.Title,
			Abstract:  doc.Abstract,
			Source:    doc.Source,
			StudyType: doc.StudyType,
		}
		if doc.Date != "" {
			if t, parseErr := time.Parse("2006-01-02", doc.Date); parseErr == nil {
				p.Date = t
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}
