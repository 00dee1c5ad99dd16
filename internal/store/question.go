package store

import (
	"github.com/pavelanni/literable/internal/model"
)

// InsertQuestion stores a question under an existing passage.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO questions (passage_id, question, model_answer, category) VALUES (?, ?, ?, ?)`,
		q.PassageID, q.Text, q.ModelAnswer, q.Category,
	)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	var q model.Question
	err := s.db.Get(&q,
		`SELECT id, passage_id, question, model_answer, category FROM questions WHERE id = ?`, id)
	return q, classify(err)
}

// ListQuestions returns a passage's questions in ascending ID order.
func (s *Store) ListQuestions(passageID int64) ([]model.Question, error) {
	questions := []model.Question{}
	err := s.db.Select(&questions,
		`SELECT id, passage_id, question, model_answer, category
		 FROM questions WHERE passage_id = ? ORDER BY id`, passageID)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// UpdateQuestion overwrites a question's text, model answer and category.
func (s *Store) UpdateQuestion(q model.Question) error {
	return checkAffected(s.db.Exec(
		`UPDATE questions SET question = ?, model_answer = ?, category = ? WHERE id = ?`,
		q.Text, q.ModelAnswer, q.Category, q.ID,
	))
}

// DeleteQuestion removes a question and, by cascade, its answers.
func (s *Store) DeleteQuestion(id int64) error {
	return checkAffected(s.db.Exec(`DELETE FROM questions WHERE id = ?`, id))
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM questions`)
	return count, err
}
