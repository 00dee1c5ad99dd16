package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/literable/internal/model"
)

// ReportRows returns the questions of a passage that the student answered,
// with scores and feedback, in question order.
func (s *Store) ReportRows(studentID, passageID int64) ([]model.ReportRow, error) {
	rows := []model.ReportRow{}
	err := s.db.Select(&rows, `
		SELECT q.id AS question_id, q.question, q.model_answer, sa.answer_text, sa.score, sa.feedback
		FROM questions q
		JOIN student_answers sa ON sa.question_id = q.id
		WHERE sa.student_id = ? AND q.passage_id = ?
		ORDER BY q.id`, studentID, passageID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetReport builds the report for one student and passage.
func (s *Store) GetReport(studentID, passageID int64) (*model.Report, error) {
	st, err := s.GetStudent(studentID)
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", studentID, err)
	}
	p, err := s.GetPassage(passageID)
	if err != nil {
		return nil, fmt.Errorf("get passage %d: %w", passageID, err)
	}
	rows, err := s.ReportRows(studentID, passageID)
	if err != nil {
		return nil, fmt.Errorf("report rows: %w", err)
	}
	return &model.Report{Student: st, Passage: p, Rows: rows}, nil
}

// ExportResults builds export-ready results for every student with answers.
func (s *Store) ExportResults() (*model.ResultsExport, error) {
	students, err := s.ListStudents("")
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	export := &model.ResultsExport{ExportedAt: time.Now().UTC()}
	for _, st := range students {
		passages, err := s.ListPassagesAnsweredBy(st.ID)
		if err != nil {
			return nil, fmt.Errorf("list passages for student %d: %w", st.ID, err)
		}
		if len(passages) == 0 {
			continue
		}

		result := model.StudentResult{
			StudentID:     st.ID,
			Name:          st.Name,
			School:        st.School,
			StudentNumber: st.StudentNumber,
		}
		var sum, scored int
		for _, p := range passages {
			rows, err := s.ReportRows(st.ID, p.ID)
			if err != nil {
				return nil, fmt.Errorf("report rows for student %d passage %d: %w", st.ID, p.ID, err)
			}
			for _, r := range rows {
				if r.Score != nil {
					sum += *r.Score
					scored++
				}
			}
			result.Passages = append(result.Passages, model.PassageResult{
				PassageID: p.ID,
				Title:     p.Title,
				Rows:      rows,
			})
		}
		if scored > 0 {
			result.Average = float64(sum) / float64(scored)
		}
		export.Results = append(export.Results, result)
	}
	return export, nil
}
