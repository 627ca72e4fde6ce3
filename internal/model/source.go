package model

// Source is an externally cited document, identified by URL. Content
// bearing fields live on Chunk; a source row only carries citation
// identity and display metadata.
type Source struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Ctime   int64  `json:"ctime"`
	Mtime   int64  `json:"mtime"`
}
