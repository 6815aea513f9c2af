package page

import "strings"

// Kind is the element variant the simulator dispatches on.
type Kind int

const (
	NativeInput Kind = iota
	NativeSelect
	ContentEditable
	CustomWidget
)

func (k Kind) String() string {
	switch k {
	case NativeInput:
		return "native-input"
	case NativeSelect:
		return "native-select"
	case ContentEditable:
		return "contenteditable"
	default:
		return "custom-widget"
	}
}

type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Element is a snapshot of one DOM node taken at query time.
type Element struct {
	Ref             string   `json:"ref"`
	Tag             string   `json:"tag"`
	Type            string   `json:"type"`
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Class           string   `json:"class"`
	Placeholder     string   `json:"placeholder"`
	AriaLabel       string   `json:"ariaLabel"`
	TestID          string   `json:"testId"`
	Role            string   `json:"role"`
	Visible         bool     `json:"visible"`
	ContentEditable bool     `json:"contentEditable"`
	InSearchRegion  bool     `json:"inSearchRegion"`
	ContainerText   string   `json:"containerText"`
	Text            string   `json:"text"`
	Options         []Option `json:"options"`
}

func (e Element) Kind() Kind {
	switch strings.ToLower(e.Tag) {
	case "select":
		return NativeSelect
	case "input", "textarea":
		return NativeInput
	}
	if e.ContentEditable {
		return ContentEditable
	}
	return CustomWidget
}

// Describe is a short label for logs.
func (e Element) Describe() string {
	var b strings.Builder
	b.WriteString(e.Tag)
	if e.ID != "" {
		b.WriteString("#" + e.ID)
	}
	if e.Name != "" {
		b.WriteString("[name=" + e.Name + "]")
	}
	if e.AriaLabel != "" {
		b.WriteString("[aria-label=" + e.AriaLabel + "]")
	}
	return b.String()
}
