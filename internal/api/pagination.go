package api

import (
	"net/url"
	"strconv"
)

// parsePagination reads offset and limit. Each is parsed, then checked
// against the maximum, then checked for sign.
func parsePagination(q url.Values, cfg Config) (offset, limit int, err error) {
	if q.Has(ParamOffset) {
		offset, err = strconv.Atoi(q.Get(ParamOffset))
		if err != nil || offset < 0 {
			return 0, 0, BadRequest("offset must be a positive integer")
		}
	}

	limit = cfg.defaultLimit()
	if q.Has(ParamLimit) {
		limit, err = strconv.Atoi(q.Get(ParamLimit))
		if err != nil {
			return 0, 0, BadRequest("limit must be a positive integer")
		}
		if limit > cfg.LimitMax {
			return 0, 0, BadRequest("limit cannot be higher than %d", cfg.LimitMax)
		}
		if limit < 0 {
			return 0, 0, BadRequest("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}
