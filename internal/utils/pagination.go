package utils

import (
	"math"
	"strconv"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

// MaxPageLimit caps every paginated query
const MaxPageLimit = 100

// ValidateAndNormalizePagination validates and normalizes pagination parameters
func ValidateAndNormalizePagination(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// BuildPagination calculates pagination metadata
func BuildPagination(total int64, page, limit int) models.Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return models.Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
		Limit:       limit,
	}
}

// CalculateOffset calculates the offset for database queries
func CalculateOffset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}

// ParsePaginationFromQuery parses page and limit query values, falling back to defaultLimit
func ParsePaginationFromQuery(pageStr, limitStr string, defaultLimit int) (int, int) {
	page, _ := strconv.Atoi(pageStr)
	limit, _ := strconv.Atoi(limitStr)
	return ValidateAndNormalizePagination(page, limit, defaultLimit)
}
