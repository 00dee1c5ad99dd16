package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "ReportTitle"); got != "Reading Comprehension Report" {
		t.Errorf("T(ReportTitle) = %q", got)
	}
	if got := T(ctx, "ModelAnswer"); got != "Model answer" {
		t.Errorf("T(ModelAnswer) = %q", got)
	}
}

func TestTranslateKorean(t *testing.T) {
	ctx := initLang(t, "ko")

	if got := T(ctx, "ReportTitle"); got != "독해 평가 보고서" {
		t.Errorf("T(ReportTitle) = %q, want '독해 평가 보고서'", got)
	}
	if got := Td(ctx, "ScoreN", map[string]any{"Score": 85}); got != "85점" {
		t.Errorf("Td(ScoreN) = %q, want '85점'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsScored", 1); got != "1 question scored" {
		t.Errorf("Tp(QuestionsScored, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsScored", 5); got != "5 questions scored" {
		t.Errorf("Tp(QuestionsScored, 5) = %q", got)
	}

	ko := WithLanguage(context.Background(), "ko")
	if got := Tp(ko, "QuestionsScored", 3); got != "3개 문항 채점 완료" {
		t.Errorf("Tp(QuestionsScored, 3) in ko = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Td(ctx, "QuestionN", map[string]any{"N": 3}); got != "Question 3" {
		t.Errorf("Td(QuestionN, N=3) = %q, want 'Question 3'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestUnsupportedLanguageFallsBack(t *testing.T) {
	ctx := initLang(t, "fr")

	if got := T(ctx, "Feedback"); got != "Feedback" {
		t.Errorf("T(Feedback) = %q, want English fallback", got)
	}
}

func TestMatch(t *testing.T) {
	initLang(t, "en")

	tests := []struct {
		prefs []string
		want  string
	}{
		{[]string{"ko"}, "ko"},
		{[]string{"", "ko-KR,ko;q=0.9,en;q=0.8"}, "ko"},
		{[]string{"en-US"}, "en"},
		{[]string{"fr"}, "en"},
		{nil, "en"},
	}
	for _, tt := range tests {
		if got := Match(tt.prefs...); got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.prefs, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Score")
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports/1/1", nil)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "점수" || rec.Header().Get("Content-Language") != "ko" {
		t.Errorf("Accept-Language ko: got %q, Content-Language %q", got, rec.Header().Get("Content-Language"))
	}

	req = httptest.NewRequest(http.MethodGet, "/reports/1/1?lang=en", nil)
	req.Header.Set("Accept-Language", "ko")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Score" {
		t.Errorf("lang query should win over Accept-Language, got %q", got)
	}
}
