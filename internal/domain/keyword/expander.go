package keyword

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMissingSeedKeyword indicates expansion was requested without a seed phrase.
var ErrMissingSeedKeyword = eris.New("seed keyword is required")

type variant struct {
	pattern  string
	localise bool
}

// The "{s}" token is replaced by the seed. Localised variants get " in {location}" appended
// when a location is supplied.
var variants = []variant{
	{pattern: "{s} near me"},
	{pattern: "{s} services", localise: true},
	{pattern: "best {s}", localise: true},
	{pattern: "{s} reviews"},
	{pattern: "affordable {s}", localise: true},
	{pattern: "licensed {s}"},
	{pattern: "emergency {s}", localise: true},
	{pattern: "24 hour {s}"},
	{pattern: "professional {s}"},
	{pattern: "{s} experts", localise: true},
	{pattern: "local {s}"},
	{pattern: "top rated {s}", localise: true},
	{pattern: "{s} company", localise: true},
	{pattern: "{s} cost"},
	{pattern: "cheap {s}"},
	{pattern: "certified {s}"},
	{pattern: "{s} quotes"},
	{pattern: "{s} contractors", localise: true},
}

// Expand produces the long-tail variants of seed, optionally localised to location.
// The output order is fixed, so the same inputs always yield the same list.
func Expand(seed, location string) ([]string, error) {
	trimmedSeed := strings.TrimSpace(seed)
	if trimmedSeed == "" {
		return nil, ErrMissingSeedKeyword
	}
	trimmedLocation := strings.TrimSpace(location)

	out := make([]string, 0, len(variants))
	for _, v := range variants {
		phrase := strings.ReplaceAll(v.pattern, "{s}", trimmedSeed)
		if v.localise && trimmedLocation != "" {
			phrase += " in " + trimmedLocation
		}
		out = append(out, phrase)
	}

	return out, nil
}

// ExpandInto expands seed and merges the variants into store. The store is untouched on error.
func ExpandInto(store *Store, seed, location string) (ImportResult, error) {
	phrases, err := Expand(seed, location)
	if err != nil {
		return ImportResult{}, err
	}
	return store.Merge(phrases), nil
}
