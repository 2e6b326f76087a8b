// Package evaluator orchestrates one evaluation run: extract the answer
// sheet, score every question of the paper by embedding similarity, and
// persist the aggregate result.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"exam-evaluator/internal/embedding"
	"exam-evaluator/internal/models"
	"exam-evaluator/internal/scoring"
	"exam-evaluator/internal/structurer"
)

var (
	// ErrNoQuestions is returned when a paper has no stored questions.
	ErrNoQuestions = errors.New("no questions found for this paper")

	// ErrNoQuestionsParsed is returned when structuring a question-paper
	// document yields nothing.
	ErrNoQuestionsParsed = errors.New("no questions could be parsed from the document")
)

// Store is the record-keeping surface the orchestrator depends on.
type Store interface {
	GetPaper(ctx context.Context, id int) (*models.Paper, error)
	GetQuestions(ctx context.Context, paperID int) ([]models.QuestionRecord, error)
	AddQuestions(ctx context.Context, paperID int, questions []models.QuestionRecord) error
	GetOrCreateStudent(ctx context.Context, rollNumber string) (int, error)
	CreateResult(ctx context.Context, studentID, paperID int) (int, error)
	RecordQuestionResult(ctx context.Context, resultID, questionID int, marksAwarded, similarityPct float64) error
	SetTotal(ctx context.Context, resultID int, total float64) error
}

// Extractor recovers plain text from a document; it never fails, falling back
// to a sentinel string instead.
type Extractor interface {
	Extract(ctx context.Context, path string) string
}

// Orchestrator composes extraction, structuring, embedding and scoring.
// It holds no per-request state and is safe to invoke concurrently for
// different documents.
type Orchestrator struct {
	store     Store
	extractor Extractor
	embedder  embedding.Embedder

	// MaxConcurrent bounds parallel embedding calls within one evaluation.
	MaxConcurrent int
}

// New creates an orchestrator over the given collaborators.
func New(store Store, ex Extractor, emb embedding.Embedder) *Orchestrator {
	return &Orchestrator{
		store:         store,
		extractor:     ex,
		embedder:      emb,
		MaxConcurrent: 3,
	}
}

// IngestPaperDocument extracts and structures a question-paper document and
// stores the parsed questions for the paper. The whole batch is stored
// atomically; a duplicate question number rejects the document.
func (o *Orchestrator) IngestPaperDocument(ctx context.Context, paperID int, docPath string) ([]models.QuestionRecord, error) {
	if _, err := o.store.GetPaper(ctx, paperID); err != nil {
		return nil, fmt.Errorf("load paper %d: %w", paperID, err)
	}

	text := o.extractor.Extract(ctx, docPath)
	records := structurer.Structure(text)
	if len(records) == 0 {
		return nil, ErrNoQuestionsParsed
	}

	if err := o.store.AddQuestions(ctx, paperID, records); err != nil {
		return nil, fmt.Errorf("store questions: %w", err)
	}
	return records, nil
}

// Evaluate scores one answer sheet against a paper and records the result.
// Per-question scoring runs concurrently, but the returned report preserves
// the stored question order.
func (o *Orchestrator) Evaluate(ctx context.Context, rollNumber string, paperID int, answerPath string) (*models.EvaluationReport, error) {
	paper, err := o.store.GetPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("load paper %d: %w", paperID, err)
	}

	questions, err := o.store.GetQuestions(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	studentText := o.extractor.Extract(ctx, answerPath)

	// The student embedding is computed once, and only when at least one
	// question actually has a model answer to score against.
	var studentEmb []float64
	for _, q := range questions {
		if strings.TrimSpace(q.ModelAnswer) != "" {
			studentEmb, err = o.embedder.EmbedText(ctx, studentText)
			if err != nil {
				return nil, fmt.Errorf("embed answer sheet: %w", err)
			}
			break
		}
	}

	answers := make([]models.ScoredAnswer, len(questions))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.maxConcurrent())
	errChan := make(chan error, len(questions))

	for i := range questions {
		q := questions[i]

		// Empty model answers score zero without an embedding call.
		if strings.TrimSpace(q.ModelAnswer) == "" {
			answers[i] = models.ScoredAnswer{QuestionNo: q.QuestionNo, MaxMarks: q.MaxMarks}
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, q models.QuestionRecord) {
			defer wg.Done()
			defer func() { <-semaphore }()

			modelEmb, err := o.embedder.EmbedText(ctx, q.ModelAnswer)
			if err != nil {
				errChan <- fmt.Errorf("embed model answer %d: %w", q.QuestionNo, err)
				return
			}

			sim := scoring.Similarity(modelEmb, studentEmb)
			answers[i] = models.ScoredAnswer{
				QuestionNo:   q.QuestionNo,
				Similarity:   sim,
				MarksAwarded: scoring.MarkFor(sim, q.MaxMarks),
				MaxMarks:     q.MaxMarks,
			}
		}(i, q)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}

	var total float64
	for _, a := range answers {
		total += a.MarksAwarded
	}
	total = scoring.Round2(total)

	if err := o.persist(ctx, rollNumber, paperID, questions, answers, total); err != nil {
		return nil, err
	}

	return &models.EvaluationReport{
		RollNumber: rollNumber,
		PaperID:    paperID,
		PaperName:  paper.Name,
		TotalMarks: total,
		Answers:    answers,
	}, nil
}

func (o *Orchestrator) persist(ctx context.Context, rollNumber string, paperID int,
	questions []models.QuestionRecord, answers []models.ScoredAnswer, total float64) error {

	studentID, err := o.store.GetOrCreateStudent(ctx, rollNumber)
	if err != nil {
		return fmt.Errorf("resolve student: %w", err)
	}

	resultID, err := o.store.CreateResult(ctx, studentID, paperID)
	if err != nil {
		return fmt.Errorf("create result: %w", err)
	}

	for i, a := range answers {
		simPct := scoring.Round2(a.Similarity * 100)
		if err := o.store.RecordQuestionResult(ctx, resultID, questions[i].ID, a.MarksAwarded, simPct); err != nil {
			return fmt.Errorf("record question %d result: %w", a.QuestionNo, err)
		}
	}

	if err := o.store.SetTotal(ctx, resultID, total); err != nil {
		return fmt.Errorf("finalize total: %w", err)
	}
	return nil
}

func (o *Orchestrator) maxConcurrent() int {
	if o.MaxConcurrent < 1 {
		return 1
	}
	return o.MaxConcurrent
}
