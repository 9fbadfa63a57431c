package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/keyword"
	domainllm "seoflood/app/internal/domain/llm"
)

// ResearcherOptions configures the keyword researcher.
type ResearcherOptions struct {
	Completer    domainllm.Completer
	Logger       *logrus.Logger
	SystemPrompt string
}

type researcher struct {
	completer    domainllm.Completer
	logger       *logrus.Logger
	systemPrompt string
}

var _ keyword.Researcher = (*researcher)(nil)

const defaultResearcherSystemPrompt = `You are an SEO keyword researcher for local service businesses.
Given a seed keyword and an optional location, suggest long-tail search phrases real customers type, mixing commercial, informational and local intent.
Respond with JSON only, in the form {"keywords": ["phrase one", "phrase two"]}. Phrases must be lowercase plain text without numbering or explanation.`

// NewResearcher constructs a keyword.Researcher backed by a Completer.
func NewResearcher(opts ResearcherOptions) (keyword.Researcher, error) {
	if opts.Completer == nil {
		return nil, eris.New("llm completer is required")
	}

	systemPrompt := strings.TrimSpace(opts.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultResearcherSystemPrompt
	}

	return &researcher{
		completer:    opts.Completer,
		logger:       opts.Logger,
		systemPrompt: systemPrompt,
	}, nil
}

func (r *researcher) Research(ctx context.Context, seed, location string, limit int) ([]string, error) {
	trimmedSeed := strings.TrimSpace(seed)
	if trimmedSeed == "" {
		return nil, keyword.ErrMissingSeedKeyword
	}

	if limit <= 0 {
		return nil, eris.New("number of results must be positive")
	}

	prompt := fmt.Sprintf("Seed Keyword: %s\n", trimmedSeed)
	if loc := strings.TrimSpace(location); loc != "" {
		prompt += fmt.Sprintf("Location: %s\n", loc)
	}
	prompt += fmt.Sprintf("Return %d long-tail keywords.", limit)

	content, err := r.completer.Complete(ctx, domainllm.Request{
		SystemInstruction: r.systemPrompt,
		UserInstruction:   prompt,
		ExpectJSON:        true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "researching keywords for %q", trimmedSeed)
	}

	phrases := parseKeywordList(content)
	if len(phrases) == 0 {
		err := eris.New("llm research returned no keywords")
		r.logError(logrus.Fields{"seed": trimmedSeed}, err, "empty keyword list")
		return nil, err
	}

	if len(phrases) > limit {
		phrases = phrases[:limit]
	}
	return phrases, nil
}

func (r *researcher) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil || err == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

// parseKeywordList accepts {"keywords": [...]}, a bare JSON array, or a comma or line
// separated list, and returns the de-duplicated non-empty phrases in order.
func parseKeywordList(content string) []string {
	trimmed := stripCodeFence(strings.TrimSpace(content))

	var raw []string
	var object struct {
		Keywords []string `json:"keywords"`
	}
	switch {
	case strings.HasPrefix(trimmed, "{"):
		if json.Unmarshal([]byte(trimmed), &object) == nil {
			raw = object.Keywords
		}
	case strings.HasPrefix(trimmed, "["):
		if json.Unmarshal([]byte(trimmed), &raw) != nil {
			raw = nil
		}
	default:
		raw = extractCommaSeparated(trimmed)
	}

	seen := make(map[string]struct{}, len(raw))
	phrases := make([]string, 0, len(raw))
	for _, phrase := range raw {
		normalized := normalizePhrase(phrase)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		phrases = append(phrases, normalized)
	}
	return phrases
}

func extractCommaSeparated(content string) []string {
	replacer := strings.NewReplacer("\n", ",", ";", ",")
	parts := strings.Split(replacer.Replace(content), ",")

	results := make([]string, 0, len(parts))
	for _, part := range parts {
		cleaned := strings.TrimSpace(part)
		if cleaned == "" {
			continue
		}
		results = append(results, cleaned)
	}
	return results
}

var listMarkerPattern = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

// normalizePhrase strips list markers and quotes and collapses whitespace.
func normalizePhrase(phrase string) string {
	trimmed := strings.TrimSpace(phrase)
	trimmed = listMarkerPattern.ReplaceAllString(trimmed, "")
	trimmed = strings.Trim(trimmed, "\"'`")
	trimmed = strings.Join(strings.Fields(trimmed), " ")
	return strings.Trim(trimmed, ".,;:!?")
}
