package recorder

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"listingpilot/backend/internal/page"
)

// maxTextSelector bounds the text content used for a text selector.
const maxTextSelector = 30

var cssIdent = regexp.MustCompile(`^-?[_a-zA-Z][_a-zA-Z0-9-]*$`)

// BestSelector picks the most specific selector available for a clicked
// element: positional XPath, id, classes, descriptive attributes, short text,
// and finally the bare tag.
func BestSelector(c page.Captured) string {
	tag := strings.ToLower(strings.TrimSpace(c.Tag))
	if tag == "" {
		tag = "*"
	}

	if c.XPath != "" {
		return c.XPath
	}
	if c.ID != "" {
		if cssIdent.MatchString(c.ID) {
			return "#" + c.ID
		}
		return `[id=` + cssString(c.ID) + `]`
	}

	var classes []string
	for _, cls := range c.Classes {
		if cssIdent.MatchString(cls) {
			classes = append(classes, cls)
		}
	}
	if len(classes) > 0 {
		return tag + "." + strings.Join(classes, ".")
	}

	for _, attr := range []struct{ name, value string }{
		{"aria-label", c.AriaLabel},
		{"data-testid", c.TestID},
		{"name", c.Name},
		{"placeholder", c.Placeholder},
		{"role", c.Role},
	} {
		if attr.value != "" {
			return tag + "[" + attr.name + "=" + cssString(attr.value) + "]"
		}
	}

	text := strings.Join(strings.Fields(c.Text), " ")
	if text != "" && utf8.RuneCountInString(text) <= maxTextSelector {
		if literal, ok := xpathString(text); ok {
			return "//" + tag + "[normalize-space(.)=" + literal + "]"
		}
	}
	return tag
}

func cssString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// xpathString quotes s for XPath 1.0, which has no escape sequences.
func xpathString(s string) (string, bool) {
	switch {
	case !strings.Contains(s, `"`):
		return `"` + s + `"`, true
	case !strings.Contains(s, `'`):
		return `'` + s + `'`, true
	}
	return "", false
}
