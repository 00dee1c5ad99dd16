package model

import "time"

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's graded answers for export.
type StudentResult struct {
	StudentID     int64           `json:"student_id"`
	Name          string          `json:"name"`
	School        string          `json:"school"`
	StudentNumber string          `json:"student_number"`
	Passages      []PassageResult `json:"passages"`
	Average       float64         `json:"average"`
}

// PassageResult holds per-passage answers for export.
type PassageResult struct {
	PassageID int64       `json:"passage_id"`
	Title     string      `json:"title"`
	Rows      []ReportRow `json:"rows"`
}

// GradeBucket is one bar of the grade distribution.
type GradeBucket struct {
	Grade string `db:"grade" json:"grade"`
	Count int    `db:"count" json:"count"`
}

// OverallStats aggregates every scored answer.
type OverallStats struct {
	Students          int           `json:"students"`
	Questions         int           `json:"questions"`
	AverageScore      float64       `json:"average_score"`
	TotalAnswers      int           `json:"total_answers"`
	ScoredAnswers     int           `json:"scored_answers"`
	GradeDistribution []GradeBucket `json:"grade_distribution"`
}

// ProgressPoint is one scored answer on a student's timeline.
type ProgressPoint struct {
	PassageTitle string    `db:"title" json:"passage_title"`
	Score        int       `db:"score" json:"score"`
	At           time.Time `db:"updated_at" json:"at"`
}

// StudentStats compares a student with everyone else.
type StudentStats struct {
	StudentID      int64           `json:"student_id"`
	StudentAverage float64         `json:"student_average"`
	OverallAverage float64         `json:"overall_average"`
	Progression    []ProgressPoint `json:"progression"`
}

// QuestionStats aggregates answers to a single question.
type QuestionStats struct {
	QuestionID   int64   `db:"id" json:"question_id"`
	Question     string  `db:"question" json:"question"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	Attempts     int     `db:"attempts" json:"attempts"`
}
