package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"exam-evaluator/internal/database"
	"exam-evaluator/internal/models"
	"exam-evaluator/internal/scoring"
)

type mockStore struct {
	mu sync.Mutex

	papers    map[int]*models.Paper
	questions map[int][]models.QuestionRecord

	addedQuestions []models.QuestionRecord
	students       map[string]int
	resultsCreated int
	recorded       []recordedRow
	totals         map[int]float64
}

type recordedRow struct {
	resultID      int
	questionID    int
	marksAwarded  float64
	similarityPct float64
}

func newMockStore() *mockStore {
	return &mockStore{
		papers:    make(map[int]*models.Paper),
		questions: make(map[int][]models.QuestionRecord),
		students:  make(map[string]int),
		totals:    make(map[int]float64),
	}
}

func (m *mockStore) GetPaper(ctx context.Context, id int) (*models.Paper, error) {
	if p, ok := m.papers[id]; ok {
		return p, nil
	}
	return nil, database.ErrPaperNotFound
}

func (m *mockStore) GetQuestions(ctx context.Context, paperID int) ([]models.QuestionRecord, error) {
	return m.questions[paperID], nil
}

func (m *mockStore) AddQuestions(ctx context.Context, paperID int, questions []models.QuestionRecord) error {
	m.addedQuestions = append(m.addedQuestions, questions...)
	m.questions[paperID] = append(m.questions[paperID], questions...)
	return nil
}

func (m *mockStore) GetOrCreateStudent(ctx context.Context, rollNumber string) (int, error) {
	if id, ok := m.students[rollNumber]; ok {
		return id, nil
	}
	id := len(m.students) + 1
	m.students[rollNumber] = id
	return id, nil
}

func (m *mockStore) CreateResult(ctx context.Context, studentID, paperID int) (int, error) {
	m.resultsCreated++
	return m.resultsCreated, nil
}

func (m *mockStore) RecordQuestionResult(ctx context.Context, resultID, questionID int, marksAwarded, similarityPct float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, recordedRow{resultID, questionID, marksAwarded, similarityPct})
	return nil
}

func (m *mockStore) SetTotal(ctx context.Context, resultID int, total float64) error {
	m.totals[resultID] = total
	return nil
}

// mockEmbedder returns canned vectors per text and counts calls.
type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	vectors map[string][]float64
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// textExtractor returns a fixed string for any path.
type textExtractor struct {
	text string
}

func (e textExtractor) Extract(ctx context.Context, path string) string { return e.text }

func TestEvaluateInvalidPaper(t *testing.T) {
	orch := New(newMockStore(), textExtractor{}, &mockEmbedder{})

	_, err := orch.Evaluate(context.Background(), "R001", 42, "sheet.pdf")
	if !errors.Is(err, database.ErrPaperNotFound) {
		t.Fatalf("Evaluate() error = %v, expected ErrPaperNotFound", err)
	}
}

func TestEvaluateNoQuestions(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Empty Paper"}

	orch := New(store, textExtractor{}, &mockEmbedder{})

	_, err := orch.Evaluate(context.Background(), "R001", 1, "sheet.pdf")
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("Evaluate() error = %v, expected ErrNoQuestions", err)
	}
	if store.resultsCreated != 0 {
		t.Errorf("results created = %d, expected 0 before validation passes", store.resultsCreated)
	}
}

func TestEvaluatePerfectMatch(t *testing.T) {
	answer := "Paris is the capital of France"

	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Geography"}
	store.questions[1] = []models.QuestionRecord{
		{ID: 10, QuestionNo: 1, QuestionText: "What is the capital of France?", ModelAnswer: answer, MaxMarks: 10},
	}

	embedder := &mockEmbedder{vectors: map[string][]float64{
		answer: {0.2, 0.5, 0.8},
	}}

	orch := New(store, textExtractor{text: answer}, embedder)

	report, err := orch.Evaluate(context.Background(), "R001", 1, "sheet.pdf")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if report.TotalMarks < 9.0 {
		t.Errorf("total marks = %v, expected >= 9.0 for an identical answer", report.TotalMarks)
	}
	if len(report.Answers) != 1 {
		t.Fatalf("report has %d answers, expected 1", len(report.Answers))
	}
	if report.Answers[0].Similarity < 0.99 {
		t.Errorf("similarity = %v, expected ~1.0", report.Answers[0].Similarity)
	}
	if report.PaperName != "Geography" || report.RollNumber != "R001" {
		t.Errorf("report header = %+v", report)
	}
}

func TestEvaluateEmptyModelAnswerSkipsEmbedding(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Sketch"}
	store.questions[1] = []models.QuestionRecord{
		{ID: 10, QuestionNo: 1, QuestionText: "Unanswerable?", ModelAnswer: "", MaxMarks: 10},
	}

	embedder := &mockEmbedder{}
	orch := New(store, textExtractor{text: "student text"}, embedder)

	report, err := orch.Evaluate(context.Background(), "R001", 1, "sheet.pdf")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if embedder.callCount() != 0 {
		t.Errorf("embedder was called %d times, expected 0", embedder.callCount())
	}
	if report.Answers[0].Similarity != 0 || report.Answers[0].MarksAwarded != 0 {
		t.Errorf("answer = %+v, expected zero similarity and marks", report.Answers[0])
	}
	if report.TotalMarks != 0 {
		t.Errorf("total = %v, expected 0", report.TotalMarks)
	}
}

func TestEvaluateMixedEmptyAnswers(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Mixed"}
	store.questions[1] = []models.QuestionRecord{
		{ID: 10, QuestionNo: 1, QuestionText: "Q1", ModelAnswer: "real answer", MaxMarks: 10},
		{ID: 11, QuestionNo: 2, QuestionText: "Q2", ModelAnswer: "", MaxMarks: 5},
	}

	embedder := &mockEmbedder{}
	orch := New(store, textExtractor{text: "student text"}, embedder)

	report, err := orch.Evaluate(context.Background(), "R001", 1, "sheet.pdf")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	// One call for the answer sheet, one for the single real model answer.
	if embedder.callCount() != 2 {
		t.Errorf("embedder was called %d times, expected 2", embedder.callCount())
	}
	if report.Answers[1].MarksAwarded != 0 {
		t.Errorf("empty-answer question awarded %v marks", report.Answers[1].MarksAwarded)
	}
}

func TestEvaluateOrderAndAggregateInvariant(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Long Paper"}

	var questions []models.QuestionRecord
	for i := 1; i <= 8; i++ {
		questions = append(questions, models.QuestionRecord{
			ID:          100 + i,
			QuestionNo:  i,
			ModelAnswer: fmt.Sprintf("model answer %d", i),
			MaxMarks:    10,
		})
	}
	store.questions[1] = questions

	embedder := &mockEmbedder{vectors: map[string][]float64{
		"student text":   {1, 1, 0},
		"model answer 3": {1, 1, 0}, // exact match for question 3 only
	}}

	orch := New(store, textExtractor{text: "student text"}, embedder)
	orch.MaxConcurrent = 2

	report, err := orch.Evaluate(context.Background(), "R001", 1, "sheet.pdf")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(report.Answers) != len(questions) {
		t.Fatalf("report has %d answers, expected %d", len(report.Answers), len(questions))
	}

	var sum float64
	for i, a := range report.Answers {
		if a.QuestionNo != questions[i].QuestionNo {
			t.Errorf("answer %d is for question %d, expected stored order to be preserved", i, a.QuestionNo)
		}
		sum += a.MarksAwarded
	}
	if report.TotalMarks != scoring.Round2(sum) {
		t.Errorf("total = %v, expected %v", report.TotalMarks, scoring.Round2(sum))
	}
	if report.Answers[2].Similarity < 0.99 {
		t.Errorf("question 3 similarity = %v, expected ~1.0", report.Answers[2].Similarity)
	}
}

func TestEvaluatePersistsResult(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Persisted"}
	store.questions[1] = []models.QuestionRecord{
		{ID: 10, QuestionNo: 1, ModelAnswer: "answer one", MaxMarks: 10},
		{ID: 11, QuestionNo: 2, ModelAnswer: "answer two", MaxMarks: 5},
	}

	orch := New(store, textExtractor{text: "student text"}, &mockEmbedder{})

	report, err := orch.Evaluate(context.Background(), "R007", 1, "sheet.pdf")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if store.resultsCreated != 1 {
		t.Errorf("results created = %d, expected 1", store.resultsCreated)
	}
	if len(store.recorded) != 2 {
		t.Fatalf("recorded %d question rows, expected 2", len(store.recorded))
	}
	if store.totals[1] != report.TotalMarks {
		t.Errorf("stored total = %v, report total = %v", store.totals[1], report.TotalMarks)
	}
	if _, ok := store.students["R007"]; !ok {
		t.Errorf("student R007 was not created")
	}
}

func TestEmbedderFailureAborts(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Flaky"}
	store.questions[1] = []models.QuestionRecord{
		{ID: 10, QuestionNo: 1, ModelAnswer: "answer", MaxMarks: 10},
	}

	orch := New(store, textExtractor{text: "student"}, failingEmbedder{})

	if _, err := orch.Evaluate(context.Background(), "R001", 1, "sheet.pdf"); err == nil {
		t.Fatal("Evaluate() succeeded, expected embedding error to propagate")
	}
	if store.resultsCreated != 0 {
		t.Errorf("results created = %d, expected no partial persistence", store.resultsCreated)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("embedding service unavailable")
}

func TestIngestPaperDocument(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Uploaded"}

	paperText := "1. What is X? (5 marks)\nAns: X is Y.\n2. What is Z?\nAnswer: Z is W."
	orch := New(store, textExtractor{text: paperText}, &mockEmbedder{})

	records, err := orch.IngestPaperDocument(context.Background(), 1, "paper.pdf")
	if err != nil {
		t.Fatalf("IngestPaperDocument() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("parsed %d records, expected 2", len(records))
	}
	if len(store.addedQuestions) != 2 {
		t.Errorf("stored %d questions, expected 2", len(store.addedQuestions))
	}
	if store.addedQuestions[0].MaxMarks != 5 {
		t.Errorf("first question max marks = %d, expected 5", store.addedQuestions[0].MaxMarks)
	}
}

func TestIngestPaperDocumentNoQuestions(t *testing.T) {
	store := newMockStore()
	store.papers[1] = &models.Paper{ID: 1, Name: "Blank"}

	// Sentinel text carries no numbered markers, so structuring finds nothing.
	orch := New(store, textExtractor{text: "could not extract text"}, &mockEmbedder{})

	_, err := orch.IngestPaperDocument(context.Background(), 1, "scan.png")
	if !errors.Is(err, ErrNoQuestionsParsed) {
		t.Fatalf("IngestPaperDocument() error = %v, expected ErrNoQuestionsParsed", err)
	}
	if len(store.addedQuestions) != 0 {
		t.Errorf("stored %d questions, expected 0", len(store.addedQuestions))
	}
}
