// Package library searches scholarly works on OpenAlex.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"eduvia/internal/config"
	"eduvia/internal/models"
)

// NoAbstract is shown when a work carries no abstract index.
const NoAbstract = "No abstract available."

var ErrEmptyQuery = errors.New("query is required")

// Service queries the works endpoint.
type Service struct {
	baseURL    string
	perPage    int
	mailto     string
	httpClient *http.Client
}

// NewService builds a library client from cfg. hc may be nil.
func NewService(cfg config.LibraryConfig, hc *http.Client) *Service {
	if hc == nil {
		hc = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	return &Service{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		perPage:    perPage,
		mailto:     cfg.Mailto,
		httpClient: hc,
	}
}

type worksResponse struct {
	Results []work `json:"results"`
}

type work struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DisplayName     string `json:"display_name"`
	PublicationYear int    `json:"publication_year"`
	CitedByCount    int    `json:"cited_by_count"`
	OpenAccess      struct {
		IsOA  bool   `json:"is_oa"`
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Search returns one page of works matching query.
func (s *Service) Search(ctx context.Context, query string) ([]models.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", strconv.Itoa(s.perPage))
	if s.mailto != "" {
		params.Set("mailto", s.mailto)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/works?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search works: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search works: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode works: %w", err)
	}
	papers := make([]models.Paper, 0, len(body.Results))
	for _, w := range body.Results {
		papers = append(papers, w.toPaper())
	}
	return papers, nil
}

func (w work) toPaper() models.Paper {
	title := w.Title
	if title == "" {
		title = w.DisplayName
	}
	authors := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		if name := a.Author.DisplayName; name != "" {
			authors = append(authors, name)
		}
	}
	return models.Paper{
		ID:           w.ID,
		Title:        title,
		Year:         w.PublicationYear,
		Authors:      authors,
		CitedByCount: w.CitedByCount,
		OpenAccess:   w.OpenAccess.IsOA,
		OpenURL:      w.OpenAccess.OAURL,
		Abstract:     ReconstructAbstract(w.AbstractInvertedIndex),
	}
}

// ReconstructAbstract rebuilds text from a word -> positions index.
func ReconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return NoAbstract
	}
	type placed struct {
		pos  int
		word string
	}
	var words []placed
	for word, positions := range index {
		for _, pos := range positions {
			if pos >= 0 {
				words = append(words, placed{pos: pos, word: word})
			}
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, w.word)
	}
	return strings.Join(out, " ")
}
