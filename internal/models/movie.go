package models

// Movie is a display snapshot of a catalog entry. List items keep their
// copy even when the catalog entry goes away.
type Movie struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path,omitempty"`
}

// DefaultMovies returns the catalog seeded into a fresh database
func DefaultMovies() []Movie {
	return []Movie{
		{ID: 1, Title: "Inception", PosterPath: "/edv5CZvWj09upOsy2Y6IwDhK8bt.jpg"},
		{ID: 2, Title: "The Dark Knight", PosterPath: "/qJ2tW6WMUDux911r6m7haRef0WH.jpg"},
		{ID: 3, Title: "Interstellar", PosterPath: "/gEU2QniE6E77NI6lCU6MxlNBvIx.jpg"},
		{ID: 4, Title: "Pulp Fiction", PosterPath: "/d5iIlFn5s0ImszYzBPb8JPIfbXD.jpg"},
		{ID: 5, Title: "Fight Club", PosterPath: "https://upload.wikimedia.org/wikipedia/en/f/fc/Fight_Club_poster.jpg"},
		{ID: 6, Title: "Forrest Gump", PosterPath: "/arw2vcBveWOVZr6pxd9XTd1TdQa.jpg"},
		{ID: 7, Title: "The Matrix", PosterPath: "/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg"},
		{ID: 8, Title: "The Lord of the Rings: The Return of the King", PosterPath: "/rCzpDGLbOoPwLjy3OAm5NUPOTrC.jpg"},
		{ID: 9, Title: "La La Land", PosterPath: "https://upload.wikimedia.org/wikipedia/en/a/ab/La_La_Land_%28film%29.png"},
		{ID: 10, Title: "Avengers: Endgame", PosterPath: "/or06FN3Dka5tukK1e9sl16pB3iy.jpg"},
	}
}
