package models

// Item represents one ranked entry of a list
type Item struct {
	ID      string `json:"id"`
	ListID  string `json:"list_id,omitempty"`
	Movie   Movie  `json:"movie"`
	Rank    int    `json:"rank"`              // 1-based position
	Comment string `json:"comment,omitempty"` // empty means no comment
}

// RankUpdate assigns a rank to one item; a reorder sends one per item
type RankUpdate struct {
	ID   string `json:"id"`
	Rank int    `json:"rank"`
}

// ItemCreate is the request body for appending a movie to a list
type ItemCreate struct {
	ID         string `json:"id,omitempty"` // optional client-proposed item id
	MovieID    int64  `json:"movie_id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path"`
}

// ItemUpdate is the request body for a partial item update
type ItemUpdate struct {
	Comment *string `json:"comment,omitempty"`
}

// ReorderRequest is the request body carrying a complete rank mapping
type ReorderRequest struct {
	Items []RankUpdate `json:"items"`
}
