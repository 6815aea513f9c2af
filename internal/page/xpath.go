package page

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// xpathOf builds the absolute positional path /html[1]/body[1]/div[2]/... by
// counting same-tag preceding siblings at each level.
func xpathOf(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		idx := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode && sib.Data == cur.Data {
				idx++
			}
		}
		parts = append([]string{cur.Data + "[" + strconv.Itoa(idx) + "]"}, parts...)
	}
	if len(parts) == 0 {
		return ""
	}
	return "/" + strings.Join(parts, "/")
}

// resolveXPath evaluates the absolute positional form produced by xpathOf.
// Other XPath expressions are reported as unsupported.
func resolveXPath(root *html.Node, path string) (*html.Node, error) {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return nil, fmt.Errorf("%w %q: only absolute positional paths are evaluated", ErrUnsupportedSelector, path)
	}

	cur := root
	for _, step := range strings.Split(path[1:], "/") {
		tag, idx, err := parseStep(step)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrUnsupportedSelector, path, err)
		}
		var next *html.Node
		seen := 0
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				seen++
				if seen == idx {
					next = c
					break
				}
			}
		}
		if next == nil {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

func parseStep(step string) (string, int, error) {
	open := strings.IndexByte(step, '[')
	if open < 0 {
		if step == "" || strings.ContainsAny(step, "@()*=:") {
			return "", 0, fmt.Errorf("bad step %q", step)
		}
		return strings.ToLower(step), 1, nil
	}
	if !strings.HasSuffix(step, "]") {
		return "", 0, fmt.Errorf("bad step %q", step)
	}
	idx, err := strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil || idx < 1 {
		return "", 0, fmt.Errorf("bad index in %q", step)
	}
	return strings.ToLower(step[:open]), idx, nil
}
