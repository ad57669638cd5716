package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var countRe = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(万|亿|千|[kKmMwW])?`)

// ParseCount reads an engagement counter such as "1,234", "3.4k", "1.2万"
// or "2亿". It returns 0 when no number is present.
func ParseCount(s string) int64 {
	m := countRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	num := strings.ReplaceAll(m[1], ",", "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}

	switch m[2] {
	case "千", "k", "K":
		v *= 1e3
	case "万", "w", "W":
		v *= 1e4
	case "m", "M":
		v *= 1e6
	case "亿":
		v *= 1e8
	}
	return int64(v + 0.5)
}
