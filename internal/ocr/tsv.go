package ocr

import (
	"math"
	"strconv"
	"strings"
)

// tesseract TSV columns
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const levelWord = "5"

type lineKey struct{ block, par, line string }

type lineAcc struct {
	words     []string
	box       Box
	confSum   float64
	confCount int
	hasBox    bool
}

// ParseTSV groups the word rows of tesseract TSV output into lines, keeping
// the order tesseract emitted them. Line confidence is the mean word
// confidence scaled to 0..1; words with conf -1 are ignored.
func ParseTSV(out []byte, page int) []Line {
	var (
		order []lineKey
		acc   = map[lineKey]*lineAcc{}
	)
	for i, ln := range strings.Split(string(out), "\n") {
		if i == 0 || ln == "" {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvColumns || cols[colLevel] != levelWord {
			continue
		}
		word := strings.TrimSpace(cols[colText])
		if word == "" {
			continue
		}

		key := lineKey{cols[colBlock], cols[colPar], cols[colLine]}
		a, ok := acc[key]
		if !ok {
			a = &lineAcc{}
			acc[key] = a
			order = append(order, key)
		}
		a.words = append(a.words, word)
		a.addBox(wordBox(cols))
		if conf, err := strconv.ParseFloat(cols[colConf], 64); err == nil && conf >= 0 {
			a.confSum += conf
			a.confCount++
		}
	}

	lines := make([]Line, 0, len(order))
	for _, key := range order {
		a := acc[key]
		conf := 0.0
		if a.confCount > 0 {
			conf = math.Min(1, a.confSum/float64(a.confCount)/100)
		}
		lines = append(lines, Line{
			Text:       Normalize(strings.Join(a.words, " ")),
			Page:       page,
			Box:        a.box,
			Confidence: conf,
		})
	}
	return lines
}

func wordBox(cols []string) Box {
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(cols[i], 64)
		return v
	}
	return Box{X: f(colLeft), Y: f(colTop), Width: f(colWidth), Height: f(colHeight)}
}

func (a *lineAcc) addBox(b Box) {
	if !a.hasBox {
		a.box, a.hasBox = b, true
		return
	}
	minX, minY := math.Min(a.box.X, b.X), math.Min(a.box.Y, b.Y)
	maxX := math.Max(a.box.X+a.box.Width, b.X+b.Width)
	maxY := math.Max(a.box.Y+a.box.Height, b.Y+b.Height)
	a.box = Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
