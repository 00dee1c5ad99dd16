package store

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/pavelanni/literable/internal/model"
)

// CreatePassage stores a passage.
func (s *Store) CreatePassage(p model.Passage) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO passages (title, body) VALUES (?, ?)`, p.Title, p.Body)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// CreatePassageWithQuestions stores a passage and its questions in one transaction.
func (s *Store) CreatePassageWithQuestions(p model.Passage, questions []model.Question) (int64, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	passageID, err := insertPassage(tx, p, questions)
	if err != nil {
		return 0, err
	}
	return passageID, tx.Commit()
}

func insertPassage(tx *sqlx.Tx, p model.Passage, questions []model.Question) (int64, error) {
	res, err := tx.Exec(`INSERT INTO passages (title, body) VALUES (?, ?)`, p.Title, p.Body)
	if err != nil {
		return 0, classify(err)
	}
	passageID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, q := range questions {
		_, err := tx.Exec(
			`INSERT INTO questions (passage_id, question, model_answer, category) VALUES (?, ?, ?, ?)`,
			passageID, q.Text, q.ModelAnswer, q.Category,
		)
		if err != nil {
			return 0, fmt.Errorf("insert question %d: %w", i+1, classify(err))
		}
	}
	return passageID, nil
}

// GetPassage returns a passage by ID.
func (s *Store) GetPassage(id int64) (model.Passage, error) {
	var p model.Passage
	err := s.db.Get(&p, `SELECT id, title, body FROM passages WHERE id = ?`, id)
	return p, classify(err)
}

// ListPassages returns passages ordered by ID. A non-empty search matches the title.
func (s *Store) ListPassages(search string) ([]model.Passage, error) {
	query := `SELECT id, title, body FROM passages`
	var args []any
	if search != "" {
		query += ` WHERE title LIKE ? ESCAPE '\'`
		args = append(args, likePattern(search))
	}
	query += ` ORDER BY id`
	passages := []model.Passage{}
	if err := s.db.Select(&passages, query, args...); err != nil {
		return nil, err
	}
	return passages, nil
}

// UpdatePassage overwrites a passage's title and body.
func (s *Store) UpdatePassage(p model.Passage) error {
	return checkAffected(s.db.Exec(
		`UPDATE passages SET title = ?, body = ? WHERE id = ?`, p.Title, p.Body, p.ID,
	))
}

// DeletePassage removes a passage. Its questions and their answers go with it.
func (s *Store) DeletePassage(id int64) error {
	if err := checkAffected(s.db.Exec(`DELETE FROM passages WHERE id = ?`, id)); err != nil {
		return err
	}
	slog.Info("deleted passage", "id", id)
	return nil
}

// ListPassagesAnsweredBy returns the passages a student has at least one answer for.
func (s *Store) ListPassagesAnsweredBy(studentID int64) ([]model.Passage, error) {
	passages := []model.Passage{}
	err := s.db.Select(&passages, `
		SELECT DISTINCT p.id, p.title, p.body
		FROM passages p
		JOIN questions q ON q.passage_id = p.id
		JOIN student_answers sa ON sa.question_id = q.id
		WHERE sa.student_id = ?
		ORDER BY p.id`, studentID)
	if err != nil {
		return nil, err
	}
	return passages, nil
}
