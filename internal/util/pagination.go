package util

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps a 1-based page and a page size into the accepted range.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}

func Calculate(page, size int) (from, limit int) {
	page, size = Normalize(page, size)
	return (page - 1) * size, size
}

func Pages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
