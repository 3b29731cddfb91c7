package domain

import "time"

// Song identifies a logical song on the catalog site.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Matches reports whether s is exactly the same song as other. Comparison is case-sensitive.
func (s Song) Matches(other Song) bool {
	return s.Title == other.Title && s.Artist == other.Artist
}

// DownloadRecord links an issued download id to the file it produced.
type DownloadRecord struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Song     Song   `json:"song"`

	// Extra holds any additional fields the client sent along with the song.
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SongPayload renders the record the way the download endpoint returns it:
// the client's song object with id and filename added.
func (r DownloadRecord) SongPayload() map[string]any {
	payload := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		payload[k] = v
	}
	payload["title"] = r.Song.Title
	payload["artist"] = r.Song.Artist
	payload["id"] = r.ID
	payload["filename"] = r.Filename
	return payload
}
