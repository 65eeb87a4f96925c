package crawler

import (
	"fmt"
	"strings"
)

// PageMap is a compact inventory of the interactive elements on a page
type PageMap struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
	IsSPA    bool      `json:"isSPA"`
}

// Element is one interactive element
type Element struct {
	Selector    string `json:"selector"`
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Scrolled    bool   `json:"scrolled,omitempty"` // inside a scroll container other than the window
}

// Role classifies an element the way a user would describe it
func (e Element) Role() string {
	switch {
	case e.Tag == "button", e.Tag == "input" && (e.Type == "submit" || e.Type == "button"):
		return "button"
	case e.Tag == "a":
		return "link"
	case e.Tag == "select":
		return "select"
	case e.Tag == "input" && (e.Type == "checkbox" || e.Type == "radio"):
		return e.Type
	case e.Tag == "input", e.Tag == "textarea":
		return "input"
	}
	return e.Tag
}

func (e Element) String() string {
	label := e.Text
	if label == "" {
		label = e.Placeholder
	}
	if label == "" {
		label = e.Name
	}
	if label == "" {
		return fmt.Sprintf("%s %s", e.Role(), e.Selector)
	}
	return fmt.Sprintf("%s %q %s", e.Role(), label, e.Selector)
}

// Matching returns the elements whose visible label contains text,
// case-insensitively
func (m *PageMap) Matching(text string) []Element {
	needle := strings.ToLower(strings.TrimSpace(text))
	var out []Element
	for _, e := range m.Elements {
		for _, s := range []string{e.Text, e.Placeholder, e.Name, e.ID} {
			if s != "" && strings.Contains(strings.ToLower(s), needle) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Ambiguous groups elements that share a visible label, the situations where
// a text-based locator needs a preference
func (m *PageMap) Ambiguous() map[string][]Element {
	groups := make(map[string][]Element)
	for _, e := range m.Elements {
		if e.Text == "" {
			continue
		}
		key := strings.ToLower(e.Text)
		groups[key] = append(groups[key], e)
	}
	for k, g := range groups {
		if len(g) < 2 {
			delete(groups, k)
		}
	}
	return groups
}
