package store

import (
	"errors"
	"testing"

	"github.com/pavelanni/literable/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestStudent(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateStudent(model.Student{Name: name, School: "Hana Middle", StudentNumber: "S-" + name})
	if err != nil {
		t.Fatalf("insertTestStudent: %v", err)
	}
	return id
}

// insertTestPassage creates a passage with n questions and returns the passage and question IDs.
func insertTestPassage(t *testing.T, s *Store, title string, n int) (int64, []int64) {
	t.Helper()
	pID, err := s.CreatePassage(model.Passage{Title: title, Body: "body of " + title})
	if err != nil {
		t.Fatalf("CreatePassage: %v", err)
	}
	var qIDs []int64
	for i := 0; i < n; i++ {
		qID, err := s.InsertQuestion(model.Question{
			PassageID:   pID,
			Text:        title + " question",
			ModelAnswer: "model answer",
			Category:    model.CategoryFactual,
		})
		if err != nil {
			t.Fatalf("InsertQuestion: %v", err)
		}
		qIDs = append(qIDs, qID)
	}
	return pID, qIDs
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.Get(&n, query, args...); err != nil {
		t.Fatalf("countRows %q: %v", query, err)
	}
	return n
}

func TestStudentCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.StudentCount()
	if err != nil {
		t.Fatalf("StudentCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 students, got %d", count)
	}

	id := insertTestStudent(t, s, "Minji")
	insertTestStudent(t, s, "Jisoo")

	st, err := s.GetStudent(id)
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if st.Name != "Minji" || st.StudentNumber != "S-Minji" {
		t.Errorf("unexpected student: %+v", st)
	}

	list, err := s.ListStudents("")
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Jisoo" {
		t.Fatalf("expected 2 students ordered by name, got %+v", list)
	}

	list, err = s.ListStudents("S-Min")
	if err != nil {
		t.Fatalf("ListStudents search: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("search by number: got %+v", list)
	}

	st.School = "Dure High"
	if err := s.UpdateStudent(st); err != nil {
		t.Fatalf("UpdateStudent: %v", err)
	}
	st, _ = s.GetStudent(id)
	if st.School != "Dure High" {
		t.Errorf("expected updated school, got %q", st.School)
	}

	if err := s.DeleteStudent(id); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if _, err := s.GetStudent(id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteStudent(id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestListStudentsEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "100%")
	insertTestStudent(t, s, "1000")

	list, err := s.ListStudents("0%")
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(list) != 1 || list[0].Name != "100%" {
		t.Errorf("expected only the literal match, got %+v", list)
	}
}

func TestPassageAndQuestionCRUD(t *testing.T) {
	s := newTestStore(t)

	pID, err := s.CreatePassageWithQuestions(
		model.Passage{Title: "The Fox", Body: "A quick brown fox."},
		[]model.Question{
			{Text: "What colour is the fox?", ModelAnswer: "Brown", Category: model.CategoryFactual},
			{Text: "Why is it quick?", ModelAnswer: "It is hungry", Category: model.CategoryInferential},
		},
	)
	if err != nil {
		t.Fatalf("CreatePassageWithQuestions: %v", err)
	}

	qs, err := s.ListQuestions(pID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].ID > qs[1].ID {
		t.Error("questions not ordered by ID")
	}
	if qs[1].Category != model.CategoryInferential {
		t.Errorf("expected inferential category, got %q", qs[1].Category)
	}

	q := qs[0]
	q.ModelAnswer = "Brown and red"
	q.Category = model.CategoryNone
	if err := s.UpdateQuestion(q); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	got, err := s.GetQuestion(q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if got.ModelAnswer != "Brown and red" || got.Category != model.CategoryNone {
		t.Errorf("unexpected question after update: %+v", got)
	}

	if _, err := s.InsertQuestion(model.Question{PassageID: 9999, Text: "x", ModelAnswer: "y"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown passage, got %v", err)
	}

	passages, err := s.ListPassages("fox")
	if err != nil {
		t.Fatalf("ListPassages: %v", err)
	}
	if len(passages) != 1 {
		t.Errorf("expected 1 passage matching 'fox', got %d", len(passages))
	}

	if err := s.UpdatePassage(model.Passage{ID: 9999, Title: "t", Body: "b"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing passage, got %v", err)
	}
}

func TestSaveEvaluationIsIdempotentUpsert(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	_, qIDs := insertTestPassage(t, s, "P", 1)

	if _, err := s.SaveAnswer(sID, qIDs[0], "the fox is brown"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.SaveEvaluation(sID, qIDs[0], 70, "ok", nil); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if err := s.SaveEvaluation(sID, qIDs[0], 85, "better", nil); err != nil {
		t.Fatalf("SaveEvaluation again: %v", err)
	}

	n := countRows(t, s, `SELECT COUNT(*) FROM student_answers WHERE student_id = ? AND question_id = ?`, sID, qIDs[0])
	if n != 1 {
		t.Fatalf("expected exactly 1 row, got %d", n)
	}

	a, err := s.GetAnswerFor(sID, qIDs[0])
	if err != nil {
		t.Fatalf("GetAnswerFor: %v", err)
	}
	if a.Score == nil || *a.Score != 85 {
		t.Errorf("expected latest score 85, got %v", a.Score)
	}
	if a.Feedback == nil || *a.Feedback != "better" {
		t.Errorf("expected latest feedback, got %v", a.Feedback)
	}
	if a.Text != "the fox is brown" {
		t.Errorf("answer text must be untouched, got %q", a.Text)
	}

	newText := "the fox is red"
	if err := s.SaveEvaluation(sID, qIDs[0], 90, "fine", &newText); err != nil {
		t.Fatalf("SaveEvaluation with text: %v", err)
	}
	a, _ = s.GetAnswerFor(sID, qIDs[0])
	if a.Text != newText {
		t.Errorf("expected replaced answer text, got %q", a.Text)
	}
}

func TestSaveEvaluationCreatesMissingRow(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	_, qIDs := insertTestPassage(t, s, "P", 1)

	text := "fresh answer"
	if err := s.SaveEvaluation(sID, qIDs[0], 60, "meh", &text); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	a, err := s.GetAnswerFor(sID, qIDs[0])
	if err != nil {
		t.Fatalf("GetAnswerFor: %v", err)
	}
	if a.Text != text || a.Score == nil || *a.Score != 60 {
		t.Errorf("unexpected answer: %+v", a)
	}
}

func TestSaveAnswerClearsScoreOnlyWhenTextChanges(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	_, qIDs := insertTestPassage(t, s, "P", 1)

	id1, err := s.SaveAnswer(sID, qIDs[0], "first")
	if err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := s.SaveEvaluation(sID, qIDs[0], 50, "half", nil); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	id2, err := s.SaveAnswer(sID, qIDs[0], "first")
	if err != nil {
		t.Fatalf("SaveAnswer same text: %v", err)
	}
	if id1 != id2 {
		t.Errorf("upsert must keep the row id: %d != %d", id1, id2)
	}
	a, _ := s.GetAnswer(id1)
	if a.Score == nil {
		t.Error("unchanged text must keep the score")
	}

	if _, err := s.SaveAnswer(sID, qIDs[0], "second"); err != nil {
		t.Fatalf("SaveAnswer new text: %v", err)
	}
	a, _ = s.GetAnswer(id1)
	if a.Score != nil || a.Feedback != nil {
		t.Errorf("changed text must clear score and feedback, got %+v", a)
	}
	if a.Text != "second" {
		t.Errorf("expected new text, got %q", a.Text)
	}
}

func TestRawInsertRejectsDuplicateAnswer(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	_, qIDs := insertTestPassage(t, s, "P", 1)

	if _, err := s.InsertAnswer(model.Answer{StudentID: sID, QuestionID: qIDs[0], Text: "one"}); err != nil {
		t.Fatalf("InsertAnswer: %v", err)
	}
	_, err := s.InsertAnswer(model.Answer{StudentID: sID, QuestionID: qIDs[0], Text: "two"})
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	n := countRows(t, s, `SELECT COUNT(*) FROM student_answers`)
	if n != 1 {
		t.Errorf("expected 1 row after rejected insert, got %d", n)
	}
}

func TestDeletePassageCascades(t *testing.T) {
	s := newTestStore(t)
	s1 := insertTestStudent(t, s, "Minji")
	s2 := insertTestStudent(t, s, "Jisoo")
	pID, qIDs := insertTestPassage(t, s, "Doomed", 2)
	otherPID, otherQIDs := insertTestPassage(t, s, "Kept", 1)

	for _, a := range []struct {
		student, question int64
	}{
		{s1, qIDs[0]}, {s1, qIDs[1]}, {s2, qIDs[0]}, {s1, otherQIDs[0]},
	} {
		if _, err := s.SaveAnswer(a.student, a.question, "answer"); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}

	if err := s.DeletePassage(pID); err != nil {
		t.Fatalf("DeletePassage: %v", err)
	}

	if n := countRows(t, s, `SELECT COUNT(*) FROM questions WHERE passage_id = ?`, pID); n != 0 {
		t.Errorf("expected 0 questions left, got %d", n)
	}
	if n := countRows(t, s, `SELECT COUNT(*) FROM student_answers WHERE question_id IN (?, ?)`, qIDs[0], qIDs[1]); n != 0 {
		t.Errorf("expected 0 answers left, got %d", n)
	}
	answers, err := s.ListAnswers(s1, otherPID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 1 {
		t.Errorf("answers of other passages must survive, got %d", len(answers))
	}
}

func TestDeleteQuestionAndStudentCascade(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	_, qIDs := insertTestPassage(t, s, "P", 2)
	for _, q := range qIDs {
		if _, err := s.SaveAnswer(sID, q, "a"); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}

	if err := s.DeleteQuestion(qIDs[0]); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if n := countRows(t, s, `SELECT COUNT(*) FROM student_answers`); n != 1 {
		t.Fatalf("expected 1 answer after question delete, got %d", n)
	}

	if err := s.DeleteStudent(sID); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if n := countRows(t, s, `SELECT COUNT(*) FROM student_answers`); n != 0 {
		t.Errorf("expected 0 answers after student delete, got %d", n)
	}
}

func TestPendingAnswers(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	pID, qIDs := insertTestPassage(t, s, "P", 4)

	s.SaveAnswer(sID, qIDs[3], "fourth")
	s.SaveAnswer(sID, qIDs[0], "first")
	s.SaveAnswer(sID, qIDs[1], "   ")
	s.SaveAnswer(sID, qIDs[2], "third")
	if err := s.SaveEvaluation(sID, qIDs[2], 80, "good", nil); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	items, err := s.PendingAnswers(sID, pID, false)
	if err != nil {
		t.Fatalf("PendingAnswers: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 pending items, got %d", len(items))
	}
	if items[0].QuestionID != qIDs[0] || items[1].QuestionID != qIDs[3] {
		t.Errorf("pending items not in question order: %+v", items)
	}
	if items[0].AnswerText != "first" || items[0].Category != model.CategoryFactual {
		t.Errorf("unexpected item: %+v", items[0])
	}

	items, err = s.PendingAnswers(sID, pID, true)
	if err != nil {
		t.Fatalf("PendingAnswers rescore: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items with rescore, got %d", len(items))
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	s1 := insertTestStudent(t, s, "Minji")
	s2 := insertTestStudent(t, s, "Jisoo")
	pID, qIDs := insertTestPassage(t, s, "P", 2)

	s.SaveEvaluation(s1, qIDs[0], 95, "great", nil)
	s.SaveEvaluation(s1, qIDs[1], 85, "good", nil)
	s.SaveEvaluation(s2, qIDs[0], 40, "weak", nil)
	s.SaveAnswer(s2, qIDs[1], "unscored")

	overall, err := s.OverallStats()
	if err != nil {
		t.Fatalf("OverallStats: %v", err)
	}
	if overall.Students != 2 || overall.Questions != 2 {
		t.Errorf("unexpected student/question counts: %+v", overall)
	}
	if overall.TotalAnswers != 4 || overall.ScoredAnswers != 3 {
		t.Errorf("unexpected counts: %+v", overall)
	}
	if overall.AverageScore != float64(95+85+40)/3 {
		t.Errorf("unexpected average %f", overall.AverageScore)
	}
	if len(overall.GradeDistribution) != 5 {
		t.Fatalf("expected 5 grade buckets, got %d", len(overall.GradeDistribution))
	}
	want := map[string]int{"A (90-100)": 1, "B (80-89)": 1, "C (70-79)": 0, "D (60-69)": 0, "F (0-59)": 1}
	for _, b := range overall.GradeDistribution {
		if want[b.Grade] != b.Count {
			t.Errorf("bucket %s: expected %d, got %d", b.Grade, want[b.Grade], b.Count)
		}
	}

	st, err := s.StudentStats(s1)
	if err != nil {
		t.Fatalf("StudentStats: %v", err)
	}
	if st.StudentAverage != 90 {
		t.Errorf("expected student average 90, got %f", st.StudentAverage)
	}
	if len(st.Progression) != 2 || st.Progression[0].PassageTitle != "P" {
		t.Errorf("unexpected progression: %+v", st.Progression)
	}

	ps, err := s.PassageStats(pID)
	if err != nil {
		t.Fatalf("PassageStats: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("expected 2 question stats, got %d", len(ps))
	}
	if ps[0].Attempts != 2 || ps[0].AverageScore != 67.5 {
		t.Errorf("unexpected first question stats: %+v", ps[0])
	}
	if ps[1].Attempts != 2 || ps[1].AverageScore != 85 {
		t.Errorf("unexpected second question stats: %+v", ps[1])
	}

	if _, err := s.StudentStats(9999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown student, got %v", err)
	}
}

func TestReportAndExport(t *testing.T) {
	s := newTestStore(t)
	sID := insertTestStudent(t, s, "Minji")
	insertTestStudent(t, s, "NoAnswers")
	pID, qIDs := insertTestPassage(t, s, "P", 2)

	s.SaveAnswer(sID, qIDs[1], "second")
	s.SaveAnswer(sID, qIDs[0], "first")
	s.SaveEvaluation(sID, qIDs[0], 70, "fine", nil)

	rep, err := s.GetReport(sID, pID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if len(rep.Rows) != 2 || rep.Rows[0].AnswerText != "first" {
		t.Fatalf("unexpected rows: %+v", rep.Rows)
	}
	if rep.Rows[1].Score != nil {
		t.Error("second row should be unscored")
	}
	if sum, scored := rep.Total(); sum != 70 || scored != 1 {
		t.Errorf("Total() = %d, %d", sum, scored)
	}

	exp, err := s.ExportResults()
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if len(exp.Results) != 1 {
		t.Fatalf("expected only students with answers, got %d", len(exp.Results))
	}
	if exp.Results[0].Average != 70 {
		t.Errorf("expected average 70, got %f", exp.Results[0].Average)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := setImportedFileHash(s.db, "/some/path.json", "abc123"); err != nil {
		t.Fatalf("setImportedFileHash: %v", err)
	}
	if err := setImportedFileHash(s.db, "/some/path.json", "def456"); err != nil {
		t.Fatalf("setImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestImportPassages(t *testing.T) {
	s := newTestStore(t)
	data := []byte(`[
	  {"title": "봄비", "body": "봄비가 내린다.", "questions": [
	    {"question": "무엇이 내리나요?", "model_answer": "봄비", "category": "사실적 독해"},
	    {"question": "느낌은?", "model_answer": "포근함", "category": "creative"}
	  ]},
	  {"title": "Rain", "body": "It rains.", "questions": [
	    {"question": "Why?", "model_answer": "Clouds"}
	  ]}
	]`)

	res, err := s.ImportPassages("passages.json", data)
	if err != nil {
		t.Fatalf("ImportPassages: %v", err)
	}
	if res.Skipped || res.Passages != 2 || res.Questions != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	passages, _ := s.ListPassages("봄")
	if len(passages) != 1 {
		t.Fatalf("expected one matching passage, got %d", len(passages))
	}
	qs, _ := s.ListQuestions(passages[0].ID)
	if len(qs) != 2 || qs[0].Category != model.CategoryFactual || qs[1].Category != model.CategoryCreative {
		t.Errorf("unexpected questions %+v", qs)
	}

	res, err = s.ImportPassages("passages.json", data)
	if err != nil {
		t.Fatalf("second ImportPassages: %v", err)
	}
	if !res.Skipped || res.Changed {
		t.Errorf("unchanged file should be skipped, got %+v", res)
	}

	res, err = s.ImportPassages("passages.json", append(data, '\n'))
	if err != nil {
		t.Fatalf("changed ImportPassages: %v", err)
	}
	if !res.Skipped || !res.Changed {
		t.Errorf("changed file should be reported and skipped, got %+v", res)
	}
	if n := countRows(t, s, `SELECT COUNT(*) FROM passages`); n != 2 {
		t.Errorf("expected 2 passages, got %d", n)
	}
}

func TestImportPassagesIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	data := []byte(`[
	  {"title": "Good", "body": "b", "questions": [{"question": "q", "model_answer": "m"}]},
	  {"title": "Bad", "body": "b", "questions": [{"question": "q", "model_answer": "m", "category": "poetry"}]}
	]`)

	_, err := s.ImportPassages("bad.json", data)
	if !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if n := countRows(t, s, `SELECT COUNT(*) FROM passages`); n != 0 {
		t.Errorf("failed import must not leave passages, got %d", n)
	}
	if hash, _ := s.GetImportedFileHash("bad.json"); hash != "" {
		t.Error("failed import must not be recorded")
	}

	single := []byte(`{"title": "One", "body": "b", "questions": []}`)
	res, err := s.ImportPassages("one.json", single)
	if err != nil || res.Passages != 1 {
		t.Fatalf("single object import: %+v, %v", res, err)
	}

	if _, err := s.ImportPassages("broken.json", []byte(`{"title":`)); !errors.Is(err, model.ErrInvalid) {
		t.Errorf("expected ErrInvalid for malformed JSON, got %v", err)
	}
}
