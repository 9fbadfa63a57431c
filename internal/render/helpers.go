package render

import (
	"context"
	"encoding/json"
	"io"

	"github.com/a-h/templ"
	"github.com/rotisserie/eris"
)

var (
	introTemplate = []string{
		"Searching for {keyword} in {location}? You have come to the right place.",
		"Our {mainKeyword} specialists serve customers across {location} with dependable work and honest pricing.",
	}

	featureTemplate = []struct{ title, body string }{
		{"Experienced Team", "Every {keyword} job is handled by trained {mainKeyword} professionals."},
		{"Fast Response", "We schedule {keyword} visits across {location} quickly, often the same day."},
		{"Transparent Pricing", "Clear quotes for {keyword} with no hidden fees."},
		{"Satisfaction Guaranteed", "If your {mainKeyword} work is not right, we make it right."},
	}

	testimonialTemplate = []struct{ quote, author string }{
		{"Best {keyword} experience we have had in {location}. Highly recommended!", "Sarah M."},
		{"Professional, punctual and fairly priced {mainKeyword} service.", "James R."},
		{"They solved our problem the same day. Will use again.", "Linda K."},
	}
)

// RawHTML returns a templ component that writes the provided HTML without escaping.
// Only cleaned copywriter output is passed through it.
func RawHTML(html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := io.WriteString(w, html)
		return err
	})
}

// StructuredData renders the record's schema markup as a JSON-LD script.
func StructuredData(v View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload, err := json.Marshal(v.Record.SchemaMarkup)
		if err != nil {
			return eris.Wrapf(err, "encoding schema markup for slug %s", v.Record.Slug)
		}

		_, err = io.WriteString(w, `<script type="application/ld+json">`+string(payload)+`</script>`)
		return err
	})
}
