package ocr

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// IllegibleScore estimates in 0..1 how unreadable a recognized line is from
// the engine confidence and the share of characters that are neither letters,
// digits nor whitespace. Runs of repeated symbols add a fixed penalty.
func IllegibleScore(l Line) float64 {
	n := utf8.RuneCountInString(l.Text)
	if n == 0 {
		return 1
	}
	var (
		noise, run int
		prev       rune
		repeated   bool
	)
	for _, r := range l.Text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			run = 0
			continue
		}
		noise++
		if r == prev && run > 0 {
			run++
		} else {
			run = 1
		}
		prev = r
		if run >= 3 {
			repeated = true
		}
	}
	score := 0.6*(1-clamp(l.Confidence)) + 0.4*float64(noise)/float64(n)
	if repeated {
		score += 0.2
	}
	return clamp(score)
}

func clamp(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
