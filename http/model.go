package http

// ConvertRequest is the POST /api/convert payload.
type ConvertRequest struct {
	Magnet string `json:"magnet" binding:"required"`
}

type Error struct {
	Error string `json:"error"`
}
