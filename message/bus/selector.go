package bus

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const matchAll = "*"

// TagSelector matches message tags. It is parsed from expressions such as
// "ORDER_CREATED", "CUSTOM_EMAIL || ORDER_TIMEOUT_CHECK" or "*".
type TagSelector struct {
	all  bool
	tags []string
}

func ParseSelector(expr string) (TagSelector, error) {
	parts := lo.Map(strings.Split(expr, "||"), func(part string, _ int) string {
		return strings.TrimSpace(part)
	})

	if lo.Contains(parts, "") {
		return TagSelector{}, fmt.Errorf("invalid tag selector %q: empty tag", expr)
	}

	if lo.Contains(parts, matchAll) {
		if len(parts) > 1 {
			return TagSelector{}, fmt.Errorf("invalid tag selector %q: %s cannot be combined", expr, matchAll)
		}
		return TagSelector{all: true}, nil
	}

	return TagSelector{tags: lo.Uniq(parts)}, nil
}

func (s TagSelector) Matches(tag string) bool {
	return s.all || lo.Contains(s.tags, tag)
}

func (s TagSelector) String() string {
	if s.all {
		return matchAll
	}
	return strings.Join(s.tags, " || ")
}
