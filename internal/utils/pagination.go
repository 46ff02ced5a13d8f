package utils

import "github.com/gofiber/fiber/v2"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination holds the page window for listing endpoints.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params. Out-of-range or
// unparseable values fall back to the defaults; limit is capped so a single
// listing request can never pull the whole table.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
