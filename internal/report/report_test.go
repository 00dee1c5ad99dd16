package report

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/literable/internal/i18n"
	"github.com/pavelanni/literable/internal/model"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func testReport() *model.Report {
	return &model.Report{
		Student: model.Student{ID: 1, Name: "김민수", School: "한빛중학교", StudentNumber: "2024-07"},
		Passage: model.Passage{ID: 1, Title: "봄비", Body: "봄비가 내린다.\n새싹이 돋는다."},
		Rows: []model.ReportRow{
			{QuestionID: 10, Question: "무엇이 내리나요?", ModelAnswer: "봄비", AnswerText: "비 <script>", Score: intPtr(90), Feedback: strPtr("정확합니다.")},
			{QuestionID: 11, Question: "왜 새싹이 돋나요?", ModelAnswer: "비가 와서", AnswerText: ""},
		},
	}
}

func render(t *testing.T, lang string) string {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	ctx := i18n.WithLanguage(context.Background(), lang)
	var buf bytes.Buffer
	generated := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	if err := Write(ctx, &buf, testReport(), generated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.String()
}

func TestPageKorean(t *testing.T) {
	out := render(t, "ko")
	for _, want := range []string{
		"독해 평가 보고서",
		"김민수", "한빛중학교", "2024-07",
		"문제 1", "문제 2",
		"90점", "정확합니다.",
		"미채점", "답안 없음",
		"90 / 200", "90.0",
		"최고 점수", "최저 점수",
		"2025-03-04 10:30",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Index(out, "문제 1") > strings.Index(out, "문제 2") {
		t.Error("questions must be rendered in order")
	}
}

func TestPageEnglish(t *testing.T) {
	out := render(t, "en")
	for _, want := range []string{"Reading Comprehension Report", "Question 1", "90 points", "Not scored", "1 question scored", "Highest score"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestSummaryAveragesScoredRowsOnly(t *testing.T) {
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	rep := testReport()
	rep.Rows = append(rep.Rows, model.ReportRow{QuestionID: 12, Question: "q", ModelAnswer: "m", AnswerText: "a", Score: intPtr(60)})

	var buf bytes.Buffer
	if err := summary(rep).Render(i18n.WithLanguage(context.Background(), "en"), &buf); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<dt>Total score</dt><dd>150 / 300</dd>",
		"<dt>Average score</dt><dd>75.0</dd>",
		"<dt>Highest score</dt><dd>90</dd>",
		"<dt>Lowest score</dt><dd>60</dd>",
		"2 questions scored",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary %q missing %q", out, want)
		}
	}
}

func TestPageEscapesText(t *testing.T) {
	out := render(t, "en")
	if strings.Contains(out, "<script>") {
		t.Error("student text must be escaped")
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Error("expected escaped student text")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	exp := &model.ResultsExport{
		ExportedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Results: []model.StudentResult{{
			StudentID: 1, Name: "김민수", Average: 90,
			Passages: []model.PassageResult{{PassageID: 1, Title: "봄비", Rows: testReport().Rows}},
		}},
	}
	if err := WriteJSON(&buf, exp); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Error("expected trailing newline")
	}
	if !strings.Contains(buf.String(), "비 <script>") {
		t.Error("HTML characters should not be escaped in JSON export")
	}

	var back model.ResultsExport
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Results) != 1 || *back.Results[0].Passages[0].Rows[0].Score != 90 {
		t.Errorf("unexpected export %+v", back)
	}
}

func TestGradeChart(t *testing.T) {
	dists := [][]model.GradeBucket{
		{{Grade: "A (90-100)", Count: 3}, {Grade: "B (80-89)", Count: 5}, {Grade: "C (70-79)"}, {Grade: "D (60-69)", Count: 1}, {Grade: "F (0-59)", Count: 2}},
		{{Grade: "A (90-100)"}, {Grade: "B (80-89)"}, {Grade: "C (70-79)"}, {Grade: "D (60-69)"}, {Grade: "F (0-59)"}},
		nil,
	}
	for _, dist := range dists {
		var buf bytes.Buffer
		if err := GradeChart(&buf, dist, ChartOptions{Title: "등급 분포"}); err != nil {
			t.Fatalf("GradeChart: %v", err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			t.Fatalf("decode PNG: %v", err)
		}
		if b := img.Bounds(); b.Dx() != chartWidth || b.Dy() != chartHeight {
			t.Errorf("unexpected chart size %v", b)
		}
	}
}

func TestGradeChartColoursBarsByBand(t *testing.T) {
	dist := []model.GradeBucket{
		{Grade: "A (90-100)", Count: 5},
		{Grade: "B (80-89)", Count: 1},
		{Grade: "C (70-79)", Count: 1},
		{Grade: "D (60-69)", Count: 1},
		{Grade: "F (0-59)", Count: 5},
	}
	var buf bytes.Buffer
	if err := GradeChart(&buf, dist, ChartOptions{}); err != nil {
		t.Fatalf("GradeChart: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}

	// Five slots of 108px starting at the margin; bars are 60% of a slot and
	// the tallest ones reach from y=50 to the baseline at y=350.
	tests := []struct {
		x    int
		want color.NRGBA
	}{
		{100, gradeColors["A"]},
		{540, gradeColors["F"]},
	}
	for _, tt := range tests {
		r, g, b, _ := img.At(tt.x, 300).RGBA()
		got := color.NRGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff}
		if got != tt.want {
			t.Errorf("pixel at x=%d = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestGradeColor(t *testing.T) {
	if gradeColor("B (80-89)") != gradeColors["B"] {
		t.Error("label should be coloured by its band letter")
	}
	if gradeColor("") != otherGrade || gradeColor("Z") != otherGrade {
		t.Error("unknown labels should use the fallback colour")
	}
}

func TestGradeChartMissingFont(t *testing.T) {
	var buf bytes.Buffer
	err := GradeChart(&buf, nil, ChartOptions{Title: "등급 분포", FontPath: "/nonexistent/font.ttf"})
	if err == nil {
		t.Fatal("expected error for missing font")
	}
}
