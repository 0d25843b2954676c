package util

import (
	"strconv"
	"strings"
)

// ParsePositiveInt 解析正整数，解析失败或非正数时返回 def
func ParsePositiveInt(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// PageParams 规范化分页参数
func PageParams(pageStr, limitStr string) (page, limit int) {
	page = ParsePositiveInt(pageStr, 1)
	limit = ParsePositiveInt(limitStr, DefaultPageSize)
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
