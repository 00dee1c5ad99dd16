package store

import (
	"time"

	"github.com/pavelanni/literable/internal/model"
)

const answerColumns = `id, student_id, question_id, answer_text, score, feedback, created_at, updated_at`

// SaveAnswer records a student's answer text for a question, creating the row
// or replacing the text of the existing one. A changed text clears the score
// and feedback, since they graded the old answer.
func (s *Store) SaveAnswer(studentID, questionID int64, text string) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.Get(&id, `
		INSERT INTO student_answers (student_id, question_id, answer_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(student_id, question_id) DO UPDATE SET
			score = CASE WHEN student_answers.answer_text = excluded.answer_text
				THEN student_answers.score ELSE NULL END,
			feedback = CASE WHEN student_answers.answer_text = excluded.answer_text
				THEN student_answers.feedback ELSE NULL END,
			answer_text = excluded.answer_text,
			updated_at = excluded.updated_at
		RETURNING id`,
		studentID, questionID, text, now, now,
	)
	return id, classify(err)
}

// SaveEvaluation upserts a score and feedback for (studentID, questionID).
// A missing row is created with answerText (empty when nil). An existing row
// keeps its answer text unless answerText is non-nil.
func (s *Store) SaveEvaluation(studentID, questionID int64, score int, feedback string, answerText *string) error {
	now := time.Now().UTC()
	replaceText := 0
	text := ""
	if answerText != nil {
		replaceText = 1
		text = *answerText
	}
	_, err := s.db.Exec(`
		INSERT INTO student_answers (student_id, question_id, answer_text, score, feedback, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, question_id) DO UPDATE SET
			score = excluded.score,
			feedback = excluded.feedback,
			updated_at = excluded.updated_at,
			answer_text = CASE WHEN ? = 1 THEN excluded.answer_text ELSE student_answers.answer_text END`,
		studentID, questionID, text, score, feedback, now, now, replaceText,
	)
	return classify(err)
}

// InsertAnswer inserts a new answer row without upsert semantics. A second
// answer for the same (student, question) fails with model.ErrDuplicate.
func (s *Store) InsertAnswer(a model.Answer) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO student_answers (student_id, question_id, answer_text, score, feedback, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.StudentID, a.QuestionID, a.Text, a.Score, a.Feedback, now, now,
	)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// GetAnswer returns an answer by ID.
func (s *Store) GetAnswer(id int64) (model.Answer, error) {
	var a model.Answer
	err := s.db.Get(&a, `SELECT `+answerColumns+` FROM student_answers WHERE id = ?`, id)
	return a, classify(err)
}

// GetAnswerFor returns the answer a student gave to a question.
func (s *Store) GetAnswerFor(studentID, questionID int64) (model.Answer, error) {
	var a model.Answer
	err := s.db.Get(&a,
		`SELECT `+answerColumns+` FROM student_answers WHERE student_id = ? AND question_id = ?`,
		studentID, questionID)
	return a, classify(err)
}

// ListAnswers returns a student's answers ordered by question. A passageID of
// zero lists answers across all passages.
func (s *Store) ListAnswers(studentID, passageID int64) ([]model.Answer, error) {
	query := `SELECT sa.id, sa.student_id, sa.question_id, sa.answer_text, sa.score, sa.feedback,
			sa.created_at, sa.updated_at
		FROM student_answers sa
		JOIN questions q ON sa.question_id = q.id
		WHERE sa.student_id = ?`
	args := []any{studentID}
	if passageID != 0 {
		query += ` AND q.passage_id = ?`
		args = append(args, passageID)
	}
	query += ` ORDER BY q.id`
	answers := []model.Answer{}
	if err := s.db.Select(&answers, query, args...); err != nil {
		return nil, err
	}
	return answers, nil
}

// DeleteAnswer removes an answer by ID.
func (s *Store) DeleteAnswer(id int64) error {
	return checkAffected(s.db.Exec(`DELETE FROM student_answers WHERE id = ?`, id))
}

// PendingAnswers returns the student's non-empty answers for a passage in
// ascending question order. Unless rescore is set, already scored answers are skipped.
func (s *Store) PendingAnswers(studentID, passageID int64, rescore bool) ([]model.PendingItem, error) {
	query := `
		SELECT sa.id AS answer_id, sa.student_id, q.id AS question_id, q.question, q.model_answer,
			q.category, sa.answer_text
		FROM student_answers sa
		JOIN questions q ON sa.question_id = q.id
		WHERE sa.student_id = ? AND q.passage_id = ? AND TRIM(sa.answer_text) <> ''`
	if !rescore {
		query += ` AND sa.score IS NULL`
	}
	query += ` ORDER BY q.id`
	var items []model.PendingItem
	if err := s.db.Select(&items, query, studentID, passageID); err != nil {
		return nil, err
	}
	return items, nil
}
