package matcher

import (
	"strconv"
	"strings"
	"unicode"
)

// maxRangeSpan bounds the number of house numbers a range address expands to.
const maxRangeSpan = 200

// houseNumber is a parsed house number token.
type houseNumber struct {
	num      int
	suffix   string
	rangeEnd int
}

func (h houseNumber) isRange() bool {
	return h.rangeEnd > h.num
}

// parseHouseNumber parses tokens such as "12", "12a" or "12-14".
// next is the token following tok and supplies a detached letter suffix ("12 a").
func parseHouseNumber(tok, next string) (houseNumber, bool) {
	if tok == "" || !unicode.IsDigit(rune(tok[0])) {
		return houseNumber{}, false
	}

	if start, end, ok := strings.Cut(tok, "-"); ok {
		a, errA := leadingNumber(start)
		b, errB := leadingNumber(end)
		if errA != nil || errB != nil {
			return houseNumber{}, false
		}
		if b < a {
			a, b = b, a
		}
		if a == b {
			return houseNumber{num: a}, true
		}
		return houseNumber{num: a, rangeEnd: b}, true
	}

	digits := strings.TrimRightFunc(tok, unicode.IsLetter)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return houseNumber{}, false
	}
	suffix := tok[len(digits):]
	if suffix == "" && len(next) == 1 && unicode.IsLetter(rune(next[0])) {
		suffix = next
	}
	if len(suffix) > 1 {
		return houseNumber{}, false
	}
	return houseNumber{num: n, suffix: suffix}, true
}

func leadingNumber(s string) (int, error) {
	return strconv.Atoi(strings.TrimRightFunc(s, unicode.IsLetter))
}

// houseSet is the set of house numbers an address answers to. A ranged
// address ("12-16") answers to every number of the same parity in the range.
type houseSet struct {
	single houseNumber
	nums   map[int]struct{}
}

func newHouseSet(raw string) (houseSet, bool) {
	tokens := Tokenize(raw)
	if len(tokens) == 0 {
		return houseSet{}, false
	}
	next := ""
	if len(tokens) > 1 {
		next = tokens[1]
	}
	h, ok := parseHouseNumber(tokens[0], next)
	if !ok {
		return houseSet{}, false
	}
	if !h.isRange() {
		return houseSet{single: h}, true
	}

	end := min(h.rangeEnd, h.num+maxRangeSpan)
	nums := make(map[int]struct{})
	for n := h.num; n <= end; n += 2 {
		nums[n] = struct{}{}
	}
	return houseSet{nums: nums}, true
}

// contains reports whether the listing's house number names this address.
// Ranged listing numbers never match exactly.
func (s houseSet) contains(h houseNumber) bool {
	if h.isRange() {
		return false
	}
	if s.nums != nil {
		_, ok := s.nums[h.num]
		return ok && h.suffix == ""
	}
	return s.single.num == h.num && s.single.suffix == h.suffix
}
