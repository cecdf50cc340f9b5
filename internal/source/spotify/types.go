package spotify

type searchResponse struct {
	Tracks trackPage `json:"tracks"`
}

type trackPage struct {
	Items []track `json:"items"`
	Total int     `json:"total"`
}

type track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []artist `json:"artists"`
	Album   album    `json:"album"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []image `json:"images"`
}

type image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
