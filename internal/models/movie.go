package models

// Movie is a single catalogue entry. ID is assigned by the datastore when the
// row is inserted and is never accepted from clients.
type Movie struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Director string  `json:"director"`
	Year     int     `json:"year"`
	Rating   float64 `json:"rating"`
}
