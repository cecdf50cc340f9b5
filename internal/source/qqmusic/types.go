package qqmusic

type searchResponse struct {
	Code int        `json:"code"`
	Data searchData `json:"data"`
}

type searchData struct {
	Song songList `json:"song"`
}

type songList struct {
	List []song `json:"list"`
}

type song struct {
	SongMid   string   `json:"songmid"`
	SongName  string   `json:"songname"`
	Singer    []singer `json:"singer"`
	AlbumMid  string   `json:"albummid"`
	AlbumName string   `json:"albumname"`
}

type singer struct {
	Name string `json:"name"`
}

type lyricResponse struct {
	Retcode int    `json:"retcode"`
	Lyric   string `json:"lyric"`
	Trans   string `json:"trans"`
}
