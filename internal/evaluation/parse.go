package evaluation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Markers are the labels the model reply is split on.
type Markers struct {
	Score    []string
	Feedback []string
	// Stop ends the feedback early. Empty means feedback runs to the end of the reply.
	Stop []string
}

// DefaultMarkers returns the Korean and English labels with feedback running
// to the end of the reply.
func DefaultMarkers() Markers {
	return Markers{
		Score:    []string{"점수:", "Score:"},
		Feedback: []string{"피드백:", "Feedback:"},
	}
}

// DefaultStopMarkers are the section labels that may follow the feedback.
var DefaultStopMarkers = []string{"개선사항:", "Improvements:"}

// Result is a parsed model reply.
type Result struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Parser extracts a Result from a reply.
type Parser struct {
	markers Markers
}

// NewParser creates a Parser. Missing score or feedback labels fall back to the defaults.
func NewParser(m Markers) *Parser {
	def := DefaultMarkers()
	if len(m.Score) == 0 {
		m.Score = def.Score
	}
	if len(m.Feedback) == 0 {
		m.Feedback = def.Feedback
	}
	return &Parser{markers: m}
}

// Parse reads the score and the feedback from raw. Every shape violation is
// an *ItemError of kind ErrParse carrying raw.
func (p *Parser) Parse(raw string) (Result, error) {
	res, err := p.parse(raw)
	if err != nil {
		return Result{}, &ItemError{Kind: ErrParse, Err: err, Raw: raw}
	}
	return res, nil
}

func (p *Parser) parse(raw string) (Result, error) {
	at, marker := indexAny(raw, p.markers.Score)
	if at < 0 {
		return Result{}, errors.New("score marker not found")
	}
	rest := raw[at+len(marker):]
	lineEnd := strings.IndexByte(rest, '\n')
	if lineEnd < 0 {
		lineEnd = len(rest)
	}

	score, err := parseScore(rest[:lineEnd])
	if err != nil {
		return Result{}, err
	}

	rest = rest[lineEnd:]
	at, marker = indexAny(rest, p.markers.Feedback)
	if at < 0 {
		return Result{}, errors.New("feedback marker not found after score")
	}
	feedback := rest[at+len(marker):]
	if stop, _ := indexAny(feedback, p.markers.Stop); stop >= 0 {
		feedback = feedback[:stop]
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return Result{}, errors.New("feedback is empty")
	}

	return Result{Score: score, Feedback: feedback}, nil
}

// parseScore accepts digits optionally followed by a unit ("85점", "85 points").
func parseScore(field string) (int, error) {
	s := trimDecoration(field)
	s = strings.TrimRightFunc(s, func(r rune) bool { return !isDigit(r) })
	if s == "" {
		return 0, fmt.Errorf("score %q is not a number", strings.TrimSpace(field))
	}
	for _, r := range s {
		if !isDigit(r) {
			return 0, fmt.Errorf("score %q is not a number", strings.TrimSpace(field))
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("score %q: %w", s, err)
	}
	if n < MinScore || n > MaxScore {
		return 0, fmt.Errorf("score %d out of range %d..%d", n, MinScore, MaxScore)
	}
	return n, nil
}

// trimDecoration strips whitespace and markdown emphasis around a score field.
func trimDecoration(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// indexAny returns the earliest occurrence of any of the markers in s.
func indexAny(s string, markers []string) (int, string) {
	best, found := -1, ""
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.Index(s, m); i >= 0 && (best < 0 || i < best) {
			best, found = i, m
		}
	}
	return best, found
}
