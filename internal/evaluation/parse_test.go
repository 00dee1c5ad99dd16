package evaluation

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	p := NewParser(DefaultMarkers())
	feedbacks := []string{
		"좋은 답변입니다.",
		"Clear and complete.\nMentions both causes.",
		"  padded  ",
		"숫자 42 포함",
	}
	for n := MinScore; n <= MaxScore; n++ {
		for _, fb := range feedbacks {
			for _, format := range []string{"Score: %d점\nFeedback: %s", "점수: %d점\n피드백: %s"} {
				raw := fmt.Sprintf(format, n, fb)
				got, err := p.Parse(raw)
				if err != nil {
					t.Fatalf("Parse(%q): %v", raw, err)
				}
				if got.Score != n {
					t.Errorf("Parse(%q) score = %d, want %d", raw, got.Score, n)
				}
				if want := strings.TrimSpace(fb); got.Feedback != want {
					t.Errorf("Parse(%q) feedback = %q, want %q", raw, got.Feedback, want)
				}
			}
		}
	}
}

func TestParseAcceptsUnitsAndDecoration(t *testing.T) {
	tests := []struct {
		raw   string
		score int
		fb    string
	}{
		{"점수: 85점\n피드백: 잘했어요", 85, "잘했어요"},
		{"Score: 70 points\nFeedback: ok", 70, "ok"},
		{"**점수:** 90점\n피드백: 훌륭합니다", 90, "훌륭합니다"},
		{"분석 결과\n\n점수: 100\n\n피드백:\n  완벽합니다.  \n", 100, "완벽합니다."},
		{"Score: 0/\nFeedback: missing", 0, "missing"},
	}
	p := NewParser(DefaultMarkers())
	for _, tt := range tests {
		got, err := p.Parse(tt.raw)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.raw, err)
			continue
		}
		if got.Score != tt.score || got.Feedback != tt.fb {
			t.Errorf("Parse(%q) = %+v, want score %d feedback %q", tt.raw, got, tt.score, tt.fb)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no score marker", "Feedback: fine"},
		{"no feedback marker", "Score: 80"},
		{"non-numeric score", "Score: N/A\nFeedback: cannot grade"},
		{"fraction", "Score: 8/10\nFeedback: good"},
		{"negative", "Score: -5\nFeedback: bad"},
		{"above range", "Score: 101점\nFeedback: too good"},
		{"score on next line", "Score:\n80\nFeedback: good"},
		{"empty feedback", "Score: 80\nFeedback:   \n"},
		{"feedback before score", "Feedback: good\nScore: 80"},
		{"decimal", "Score: 85.5\nFeedback: good"},
	}
	p := NewParser(DefaultMarkers())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.raw)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
			var itemErr *ItemError
			if !errors.As(err, &itemErr) || itemErr.Raw != tt.raw {
				t.Errorf("parse failure must carry the raw reply, got %#v", err)
			}
		})
	}
}

func TestParseStopMarkers(t *testing.T) {
	raw := "점수: 75점\n피드백: 근거가 부족합니다.\n개선사항: 본문을 인용하세요."

	got, err := NewParser(DefaultMarkers()).Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Feedback != "근거가 부족합니다.\n개선사항: 본문을 인용하세요." {
		t.Errorf("without stop markers feedback runs to the end, got %q", got.Feedback)
	}

	m := DefaultMarkers()
	m.Stop = DefaultStopMarkers
	got, err = NewParser(m).Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Feedback != "근거가 부족합니다." {
		t.Errorf("feedback should stop at 개선사항:, got %q", got.Feedback)
	}
}
