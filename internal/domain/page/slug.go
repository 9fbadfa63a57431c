package page

import "strings"

// Slugify lower-cases keyword and collapses every run of characters outside [a-z0-9] into a
// single "-", trimming separators at both ends. An all-symbol keyword yields "".
func Slugify(keyword string) string {
	lowered := strings.ToLower(keyword)

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSeparator := false
	for i := 0; i < len(lowered); i++ {
		c := lowered[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingSeparator && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSeparator = false
			b.WriteByte(c)
			continue
		}
		pendingSeparator = true
	}

	return b.String()
}
