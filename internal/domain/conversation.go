package domain

// Part is one text-bearing segment of a conversation message.
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content is the role-tagged list of parts carried by one conversation event.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates all text parts in array order.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		out += p.Text
	}
	return out
}

// Event is one append-only entry in a conversation session's history.
// Ordering reflects production order and is immutable once recorded.
type Event struct {
	Author  string  `json:"author"`
	Content Content `json:"content"`
}

// Scene mirrors the agent's per-scene video configuration.
type Scene struct {
	Description string   `json:"description"`
	Style       string   `json:"style"`
	Camera      string   `json:"camera"`
	Lens        string   `json:"lens"`
	Lighting    string   `json:"lighting"`
	Environment string   `json:"environment"`
	Audio       string   `json:"audio"`
	Elements    []string `json:"elements"`
	Motion      string   `json:"motion"`
	Ending      string   `json:"ending"`
	Text        string   `json:"text"`
	Keywords    []string `json:"keywords"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// SessionState is the free-form state blob attached to a conversation
// session: scene configuration, theme list, and generated-media URLs.
// Clients replace it wholesale on each authoritative refetch, never
// merging field by field.
type SessionState struct {
	SceneConfig map[string]Scene    `json:"scene_config,omitempty"`
	ThemeList   map[string]string   `json:"theme_list,omitempty"`
	MovieURLs   map[string][]string `json:"movie_urls,omitempty"`
}
