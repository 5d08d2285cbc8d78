package spotify

// Artist is a Spotify artist as this application sees it.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Followers  int      `json:"followers"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// Track is a playable track reference.
type Track struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// User is the profile of the authenticated Spotify user.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist is a created Spotify playlist.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ExternalURL string `json:"external_url,omitempty"`
}

// searchResponse is the JSON envelope of the artist search endpoint.
type searchResponse struct {
	Artists struct {
		Items []artistItem `json:"items"`
		Total int          `json:"total"`
	} `json:"artists"`
}

// artistItem is a single artist entry on the wire.
type artistItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Images     []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
}

// topTracksResponse is the JSON envelope of the top-tracks endpoint.
type topTracksResponse struct {
	Tracks []struct {
		URI        string `json:"uri"`
		Name       string `json:"name"`
		Popularity int    `json:"popularity"`
	} `json:"tracks"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Public      bool   `json:"public"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}

// artistFromItem maps a wire artist onto the application type. The first
// image is the primary one.
func artistFromItem(item artistItem) Artist {
	a := Artist{
		ID:         item.ID,
		Name:       item.Name,
		Followers:  item.Followers.Total,
		Genres:     item.Genres,
		Popularity: item.Popularity,
	}
	if len(item.Images) > 0 {
		a.ImageURL = item.Images[0].URL
	}
	return a
}
