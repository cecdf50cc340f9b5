package musicbrainz

// searchResponse is the JSON response from the recording search endpoint.
type searchResponse struct {
	Count      int         `json:"count"`
	Recordings []recording `json:"recordings"`
}

// recording is a single recording entry from a search.
type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Name string `json:"name"`
}

type release struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// caaResponse is the Cover Art Archive release image listing.
type caaResponse struct {
	Images []caaImage `json:"images"`
}

type caaImage struct {
	Image      string            `json:"image"`
	Front      bool              `json:"front"`
	Thumbnails map[string]string `json:"thumbnails"`
}
