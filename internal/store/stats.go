package store

import (
	"github.com/pavelanni/literable/internal/model"
)

// gradeOrder lists every grade band so empty bands still show up in the distribution.
var gradeOrder = []string{"A (90-100)", "B (80-89)", "C (70-79)", "D (60-69)", "F (0-59)"}

// OverallStats aggregates all answers: average score, answer, student and
// question counts and the grade distribution.
func (s *Store) OverallStats() (model.OverallStats, error) {
	var st model.OverallStats
	row := struct {
		Avg    float64 `db:"avg"`
		Total  int     `db:"total"`
		Scored int     `db:"scored"`
	}{}
	err := s.db.Get(&row, `
		SELECT COALESCE(AVG(score), 0.0) AS avg, COUNT(*) AS total, COUNT(score) AS scored
		FROM student_answers`)
	if err != nil {
		return st, err
	}
	st.AverageScore = row.Avg
	st.TotalAnswers = row.Total
	st.ScoredAnswers = row.Scored

	if st.Students, err = s.StudentCount(); err != nil {
		return st, err
	}
	if st.Questions, err = s.QuestionCount(); err != nil {
		return st, err
	}

	var buckets []model.GradeBucket
	err = s.db.Select(&buckets, `
		SELECT
			CASE
				WHEN score >= 90 THEN 'A (90-100)'
				WHEN score >= 80 THEN 'B (80-89)'
				WHEN score >= 70 THEN 'C (70-79)'
				WHEN score >= 60 THEN 'D (60-69)'
				ELSE 'F (0-59)'
			END AS grade,
			COUNT(*) AS count
		FROM student_answers
		WHERE score IS NOT NULL
		GROUP BY grade`)
	if err != nil {
		return st, err
	}
	counts := make(map[string]int, len(buckets))
	for _, b := range buckets {
		counts[b.Grade] = b.Count
	}
	for _, g := range gradeOrder {
		st.GradeDistribution = append(st.GradeDistribution, model.GradeBucket{Grade: g, Count: counts[g]})
	}
	return st, nil
}

// StudentStats compares a student's average with the overall average and
// returns their scores in chronological order.
func (s *Store) StudentStats(studentID int64) (model.StudentStats, error) {
	st := model.StudentStats{StudentID: studentID, Progression: []model.ProgressPoint{}}
	if _, err := s.GetStudent(studentID); err != nil {
		return st, err
	}

	avgs := struct {
		Student float64 `db:"student_avg"`
		Overall float64 `db:"overall_avg"`
	}{}
	err := s.db.Get(&avgs, `
		SELECT
			COALESCE((SELECT AVG(score) FROM student_answers WHERE student_id = ?), 0.0) AS student_avg,
			COALESCE((SELECT AVG(score) FROM student_answers), 0.0) AS overall_avg`, studentID)
	if err != nil {
		return st, err
	}
	st.StudentAverage = avgs.Student
	st.OverallAverage = avgs.Overall

	err = s.db.Select(&st.Progression, `
		SELECT p.title, sa.score, sa.updated_at
		FROM student_answers sa
		JOIN questions q ON sa.question_id = q.id
		JOIN passages p ON q.passage_id = p.id
		WHERE sa.student_id = ? AND sa.score IS NOT NULL
		ORDER BY sa.updated_at, sa.id`, studentID)
	return st, err
}

// PassageStats returns per-question averages and attempt counts for a passage.
func (s *Store) PassageStats(passageID int64) ([]model.QuestionStats, error) {
	if _, err := s.GetPassage(passageID); err != nil {
		return nil, err
	}
	stats := []model.QuestionStats{}
	err := s.db.Select(&stats, `
		SELECT q.id, q.question,
			COALESCE(AVG(sa.score), 0.0) AS average_score,
			COUNT(sa.id) AS attempts
		FROM questions q
		LEFT JOIN student_answers sa ON q.id = sa.question_id
		WHERE q.passage_id = ?
		GROUP BY q.id
		ORDER BY q.id`, passageID)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
