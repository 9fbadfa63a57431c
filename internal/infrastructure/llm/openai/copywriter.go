package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	domainllm "seoflood/app/internal/domain/llm"
	"seoflood/app/internal/domain/page"
)

// CopywriterOptions configures the intro copywriter.
type CopywriterOptions struct {
	Completer    domainllm.Completer
	Logger       *logrus.Logger
	SystemPrompt string
}

type copywriter struct {
	completer    domainllm.Completer
	logger       *logrus.Logger
	systemPrompt string
}

var _ page.Copywriter = (*copywriter)(nil)

const defaultCopywriterSystemPrompt = `You write SEO landing page copy for local service businesses.
Write an engaging introduction for the target keyword that mentions the keyword in the first sentence, names the location when one is given, and ends with a reason to get in touch.
Respond with HTML paragraphs only (<p>, <strong>, <em>, <ul>, <li>). Do not include headings, scripts, styles, links or placeholder text.`

// introShare is the fraction of the page's target word count given to the intro.
const introShare = 4

// NewCopywriter constructs a page.Copywriter backed by a Completer.
func NewCopywriter(opts CopywriterOptions) (page.Copywriter, error) {
	if opts.Completer == nil {
		return nil, eris.New("llm completer is required")
	}

	systemPrompt := strings.TrimSpace(opts.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultCopywriterSystemPrompt
	}

	return &copywriter{
		completer:    opts.Completer,
		logger:       opts.Logger,
		systemPrompt: systemPrompt,
	}, nil
}

func (c *copywriter) WriteIntro(ctx context.Context, record page.PageRecord, settings page.Settings, gen page.GenerationContext) (string, error) {
	keyword := strings.TrimSpace(record.Keyword)
	if keyword == "" {
		return "", eris.New("keyword is required")
	}

	content, err := c.completer.Complete(ctx, domainllm.Request{
		SystemInstruction: c.systemPrompt,
		UserInstruction:   introPrompt(keyword, settings, gen),
	})
	if err != nil {
		return "", eris.Wrapf(err, "writing intro for keyword %q", keyword)
	}

	cleaned, err := cleanGeneratedHTML(content)
	if err != nil {
		err = eris.Wrap(err, "cleaning llm intro")
		c.logError(logrus.Fields{"keyword": keyword, "slug": record.Slug}, err, "invalid llm intro")
		return "", err
	}

	return cleaned, nil
}

func introPrompt(keyword string, settings page.Settings, gen page.GenerationContext) string {
	words := settings.WordCount / introShare
	if words < 60 {
		words = 60
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Main Keyword: %s\n", strings.TrimSpace(gen.MainKeyword))
	fmt.Fprintf(&b, "Target Keyword: %s\n", keyword)
	if loc := strings.TrimSpace(gen.Location); loc != "" {
		fmt.Fprintf(&b, "Location: %s\n", loc)
	}
	if category := strings.TrimSpace(gen.Category); category != "" {
		fmt.Fprintf(&b, "Category: %s\n", category)
	}
	fmt.Fprintf(&b, "Write an introduction of about %d words.", words)
	return b.String()
}

func (c *copywriter) logError(fields logrus.Fields, err error, message string) {
	if c.logger == nil || err == nil {
		return
	}

	entry := c.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
