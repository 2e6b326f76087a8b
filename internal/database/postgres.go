package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"exam-evaluator/internal/models"
)

var (
	// ErrPaperNotFound is returned when a referenced question paper does not exist.
	ErrPaperNotFound = errors.New("question paper not found")

	// ErrDuplicateQuestion is returned when a question number already exists
	// for the paper. Both ingestion paths reject duplicates.
	ErrDuplicateQuestion = errors.New("question number already exists for this paper")
)

const uniqueViolationCode = "23505"

// Store persists papers, questions, students and evaluation results.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore creates a new database connection
func NewStore(connStr string) (*Store, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// Initialize sets up the database tables and indices
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS question_papers (
            id SERIAL PRIMARY KEY,
            paper_name TEXT NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create question_papers table: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS questions (
            id SERIAL PRIMARY KEY,
            paper_id INTEGER NOT NULL REFERENCES question_papers(id),
            question_no INTEGER NOT NULL,
            question_text TEXT NOT NULL,
            model_answer TEXT NOT NULL DEFAULT '',
            max_marks INTEGER NOT NULL,
            UNIQUE (paper_id, question_no)
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create questions table: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS students (
            id SERIAL PRIMARY KEY,
            roll_number TEXT UNIQUE NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create students table: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS results (
            id SERIAL PRIMARY KEY,
            student_id INTEGER NOT NULL REFERENCES students(id),
            paper_id INTEGER NOT NULL REFERENCES question_papers(id),
            total_marks DOUBLE PRECISION NOT NULL DEFAULT 0
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create results table: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS question_results (
            id SERIAL PRIMARY KEY,
            result_id INTEGER NOT NULL REFERENCES results(id),
            question_id INTEGER NOT NULL REFERENCES questions(id),
            marks_awarded DOUBLE PRECISION NOT NULL,
            similarity_percentage DOUBLE PRECISION NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create question_results table: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS questions_paper_idx ON questions (paper_id, question_no);
        CREATE INDEX IF NOT EXISTS question_results_result_idx ON question_results (result_id);
    `)
	if err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}

	return nil
}

// CreatePaper inserts a question paper and returns its id
func (s *Store) CreatePaper(ctx context.Context, name string) (int, error) {
	var id int
	err := s.Pool.QueryRow(ctx, `
        INSERT INTO question_papers (paper_name) VALUES ($1) RETURNING id
    `, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create paper: %w", err)
	}
	return id, nil
}

// GetPaper loads a question paper by id
func (s *Store) GetPaper(ctx context.Context, id int) (*models.Paper, error) {
	var paper models.Paper
	err := s.Pool.QueryRow(ctx, `
        SELECT id, paper_name FROM question_papers WHERE id = $1
    `, id).Scan(&paper.ID, &paper.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaperNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load paper: %w", err)
	}
	return &paper, nil
}

// AddQuestion inserts one question. A duplicate question number for the same
// paper yields ErrDuplicateQuestion.
func (s *Store) AddQuestion(ctx context.Context, q *models.QuestionRecord) error {
	err := s.Pool.QueryRow(ctx, `
        INSERT INTO questions (paper_id, question_no, question_text, model_answer, max_marks)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, q.PaperID, q.QuestionNo, q.QuestionText, q.ModelAnswer, q.MaxMarks).Scan(&q.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("question %d: %w", q.QuestionNo, ErrDuplicateQuestion)
	}
	if err != nil {
		return fmt.Errorf("failed to add question: %w", err)
	}
	return nil
}

// AddQuestions inserts a batch of questions inside one transaction, so a
// duplicate anywhere in the batch leaves no partial state behind.
func (s *Store) AddQuestions(ctx context.Context, paperID int, questions []models.QuestionRecord) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range questions {
		questions[i].PaperID = paperID
		err := tx.QueryRow(ctx, `
            INSERT INTO questions (paper_id, question_no, question_text, model_answer, max_marks)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id
        `, paperID, questions[i].QuestionNo, questions[i].QuestionText,
			questions[i].ModelAnswer, questions[i].MaxMarks).Scan(&questions[i].ID)
		if isUniqueViolation(err) {
			return fmt.Errorf("question %d: %w", questions[i].QuestionNo, ErrDuplicateQuestion)
		}
		if err != nil {
			return fmt.Errorf("failed to add question %d: %w", questions[i].QuestionNo, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit questions: %w", err)
	}
	return nil
}

// GetQuestions returns a paper's questions ordered by question number
func (s *Store) GetQuestions(ctx context.Context, paperID int) ([]models.QuestionRecord, error) {
	rows, err := s.Pool.Query(ctx, `
        SELECT id, paper_id, question_no, question_text, model_answer, max_marks
        FROM questions
        WHERE paper_id = $1
        ORDER BY question_no
    `, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []models.QuestionRecord
	for rows.Next() {
		var q models.QuestionRecord
		if err := rows.Scan(&q.ID, &q.PaperID, &q.QuestionNo, &q.QuestionText, &q.ModelAnswer, &q.MaxMarks); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	return questions, nil
}

// GetOrCreateStudent returns the id for a roll number, creating the student
// row on first sight.
func (s *Store) GetOrCreateStudent(ctx context.Context, rollNumber string) (int, error) {
	var id int
	err := s.Pool.QueryRow(ctx, `
        INSERT INTO students (roll_number) VALUES ($1)
        ON CONFLICT (roll_number) DO UPDATE SET roll_number = EXCLUDED.roll_number
        RETURNING id
    `, rollNumber).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get or create student: %w", err)
	}
	return id, nil
}

// CreateResult opens an evaluation result for a student and paper
func (s *Store) CreateResult(ctx context.Context, studentID, paperID int) (int, error) {
	var id int
	err := s.Pool.QueryRow(ctx, `
        INSERT INTO results (student_id, paper_id) VALUES ($1, $2) RETURNING id
    `, studentID, paperID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create result: %w", err)
	}
	return id, nil
}

// RecordQuestionResult stores one per-question score row
func (s *Store) RecordQuestionResult(ctx context.Context, resultID, questionID int, marksAwarded, similarityPct float64) error {
	_, err := s.Pool.Exec(ctx, `
        INSERT INTO question_results (result_id, question_id, marks_awarded, similarity_percentage)
        VALUES ($1, $2, $3, $4)
    `, resultID, questionID, marksAwarded, similarityPct)
	if err != nil {
		return fmt.Errorf("failed to record question result: %w", err)
	}
	return nil
}

// SetTotal finalizes the aggregate mark on a result
func (s *Store) SetTotal(ctx context.Context, resultID int, total float64) error {
	_, err := s.Pool.Exec(ctx, `
        UPDATE results SET total_marks = $1 WHERE id = $2
    `, total, resultID)
	if err != nil {
		return fmt.Errorf("failed to set total: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() {
	s.Pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
