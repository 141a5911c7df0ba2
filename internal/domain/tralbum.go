package domain

// Tralbum is a parsed Bandcamp track or album page.
type Tralbum struct {
	Title  string   `json:"title"`
	Artist string   `json:"artist"`
	Label  string   `json:"label,omitempty"`
	Tags   []string `json:"tags"`
	URL    string   `json:"url"`
	Fans   []string `json:"fans"`
}
