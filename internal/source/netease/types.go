package netease

// searchResponse is the JSON response from the song search endpoint.
type searchResponse struct {
	Result searchResult `json:"result"`
	Code   int          `json:"code"`
}

type searchResult struct {
	Songs     []song `json:"songs"`
	SongCount int    `json:"songCount"`
}

// song is a single track entry from a search.
type song struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Artists []songArtist `json:"artists"`
	Album   songAlbum    `json:"album"`
}

type songArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type songAlbum struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	PicURL string `json:"picUrl"`
}

// lyricResponse is the JSON response from the lyric endpoint. Tlyric holds
// the translated variant when one exists.
type lyricResponse struct {
	Lrc    lyricBody `json:"lrc"`
	Tlyric lyricBody `json:"tlyric"`
	Code   int       `json:"code"`
}

type lyricBody struct {
	Lyric string `json:"lyric"`
}
