package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/briefmatch/backend/internal/models"
)

// BriefSuggestion is the structured interpretation of a free-text client
// brief.
type BriefSuggestion struct {
	DeliverableType    string   `json:"deliverable_type"`
	Objective          string   `json:"objective"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Source             string   `json:"source"` // "oracle" or "fallback"
}

// BriefOracle turns a raw brief into a suggestion. Implementations may call
// out of process; errors mean the caller falls back to the local classifier.
type BriefOracle interface {
	Suggest(ctx context.Context, brief string) (*BriefSuggestion, error)
}

// suggestionSchema hard-gates whatever the oracle returns. A response that
// does not validate is treated as an oracle failure.
const suggestionSchema = `{
  "type": "object",
  "required": ["deliverable_type", "objective", "acceptance_criteria"],
  "properties": {
    "deliverable_type": {
      "type": "string",
      "enum": ["landing_page", "ad_1min", "bug_fix", "design", "other"]
    },
    "objective": {"type": "string", "minLength": 1},
    "acceptance_criteria": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

// HTTPOracle calls an external brief-analysis endpoint.
type HTTPOracle struct {
	URL    string
	APIKey string
	Client *http.Client

	schema *jsonschema.Schema
}

func NewHTTPOracle(url, apiKey string) (*HTTPOracle, error) {
	schema, err := jsonschema.CompileString("https://briefmatch.dev/schemas/brief_suggestion", suggestionSchema)
	if err != nil {
		return nil, fmt.Errorf("compile suggestion schema: %w", err)
	}
	return &HTTPOracle{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 15 * time.Second},
		schema: schema,
	}, nil
}

func (o *HTTPOracle) Suggest(ctx context.Context, brief string) (*BriefSuggestion, error) {
	body, err := json.Marshal(map[string]string{"brief": brief})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := o.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var s BriefSuggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s.Source = "oracle"
	return &s, nil
}

// fallbackCriteria is the acceptance checklist attached when the oracle is
// unavailable and the brief is classified by keywords alone.
var fallbackCriteria = map[string][]string{
	models.DeliverableLandingPage: {
		"Page loads without errors on desktop and mobile",
		"All copy from the brief is present",
		"Contact or signup action works",
	},
	models.DeliverableAdOneMin: {
		"Video is 60 seconds or shorter",
		"Key message from the brief is covered",
		"Delivered in a web-playable format",
	},
	models.DeliverableBugFix: {
		"Reported issue no longer reproduces",
		"No regressions in surrounding functionality",
	},
	models.DeliverableDesign: {
		"Design covers every screen named in the brief",
		"Source files delivered alongside exports",
	},
	models.DeliverableOther: {
		"Deliverable addresses the objective stated in the brief",
	},
}

// ClassifyBrief is the degraded-path classifier: keyword buckets checked in
// order, first hit wins, unknown briefs land in other.
func ClassifyBrief(brief string) *BriefSuggestion {
	lower := strings.ToLower(brief)
	deliverableType := models.DeliverableOther
	switch {
	case strings.Contains(lower, "landing") || strings.Contains(lower, "website"):
		deliverableType = models.DeliverableLandingPage
	case strings.Contains(lower, "ad") || strings.Contains(lower, "video") || strings.Contains(lower, "commercial"):
		deliverableType = models.DeliverableAdOneMin
	case strings.Contains(lower, "bug") || strings.Contains(lower, "fix") || strings.Contains(lower, "error"):
		deliverableType = models.DeliverableBugFix
	case strings.Contains(lower, "design") || strings.Contains(lower, "ui") || strings.Contains(lower, "ux"):
		deliverableType = models.DeliverableDesign
	}
	return &BriefSuggestion{
		DeliverableType:    deliverableType,
		Objective:          strings.TrimSpace(brief),
		AcceptanceCriteria: fallbackCriteria[deliverableType],
		Source:             "fallback",
	}
}

// BriefService analyses client briefs, preferring the oracle and degrading
// to the keyword classifier. Analyze never fails: a broken oracle is a warn,
// not an error.
type BriefService struct {
	Oracle BriefOracle
	Logger *slog.Logger
}

func NewBriefService(oracle BriefOracle, logger *slog.Logger) *BriefService {
	return &BriefService{Oracle: oracle, Logger: logger}
}

func (b *BriefService) Analyze(ctx context.Context, brief string) *BriefSuggestion {
	if b.Oracle != nil {
		s, err := b.Oracle.Suggest(ctx, brief)
		if err == nil {
			return s
		}
		b.Logger.Warn("brief oracle failed, using fallback classifier", "error", err)
	}
	return ClassifyBrief(brief)
}
