package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// IDParam is the path parameter every detail route captures
const IDParam = "id"

// ErrBadID is returned when the id segment is missing or not a positive integer
var ErrBadID = errors.New("router: id must be a positive integer")

// ObjectID returns the id captured by a detail route. Route patterns already
// restrict the segment to digits; values that overflow or are zero still fail.
func ObjectID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, IDParam))
	if err != nil || id <= 0 {
		return 0, ErrBadID
	}
	return id, nil
}
