package store

import (
	"log/slog"

	"github.com/pavelanni/literable/internal/model"
)

// CreateStudent inserts a new student.
func (s *Store) CreateStudent(st model.Student) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO students (name, school, student_number) VALUES (?, ?, ?)`,
		st.Name, st.School, st.StudentNumber,
	)
	if err != nil {
		slog.Error("failed to create student", "name", st.Name, "error", err)
		return 0, classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created student", "id", id, "student_number", st.StudentNumber)
	return id, nil
}

// GetStudent returns a student by ID.
func (s *Store) GetStudent(id int64) (model.Student, error) {
	var st model.Student
	err := s.db.Get(&st,
		`SELECT id, name, school, student_number FROM students WHERE id = ?`, id)
	return st, classify(err)
}

// ListStudents returns students ordered by name. A non-empty search matches
// name or student number as a substring.
func (s *Store) ListStudents(search string) ([]model.Student, error) {
	query := `SELECT id, name, school, student_number FROM students`
	var args []any
	if search != "" {
		query += ` WHERE name LIKE ? ESCAPE '\' OR student_number LIKE ? ESCAPE '\'`
		p := likePattern(search)
		args = append(args, p, p)
	}
	query += ` ORDER BY name, id`
	students := []model.Student{}
	if err := s.db.Select(&students, query, args...); err != nil {
		return nil, err
	}
	return students, nil
}

// UpdateStudent overwrites a student's fields.
func (s *Store) UpdateStudent(st model.Student) error {
	return checkAffected(s.db.Exec(
		`UPDATE students SET name = ?, school = ?, student_number = ? WHERE id = ?`,
		st.Name, st.School, st.StudentNumber, st.ID,
	))
}

// DeleteStudent removes a student and, by cascade, their answers.
func (s *Store) DeleteStudent(id int64) error {
	if err := checkAffected(s.db.Exec(`DELETE FROM students WHERE id = ?`, id)); err != nil {
		return err
	}
	slog.Info("deleted student", "id", id)
	return nil
}

// StudentCount returns the total number of students.
func (s *Store) StudentCount() (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM students`)
	return count, err
}
