// Package api maps the HTTP surface onto the evaluation orchestrator and the
// record store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"exam-evaluator/internal/database"
	"exam-evaluator/internal/evaluator"
	"exam-evaluator/internal/models"
	"exam-evaluator/internal/scoring"
)

// Store is the slice of the record store the handlers need directly.
type Store interface {
	CreatePaper(ctx context.Context, name string) (int, error)
	AddQuestion(ctx context.Context, q *models.QuestionRecord) error
}

// Evaluator runs the document-driven flows.
type Evaluator interface {
	IngestPaperDocument(ctx context.Context, paperID int, docPath string) ([]models.QuestionRecord, error)
	Evaluate(ctx context.Context, rollNumber string, paperID int, answerPath string) (*models.EvaluationReport, error)
}

// Server holds the handler dependencies.
type Server struct {
	store       Store
	evaluator   Evaluator
	uploadDir   string
	maxFileSize int64
}

// NewServer creates the HTTP server facade.
func NewServer(store Store, ev Evaluator, uploadDir string, maxFileSize int64) *Server {
	return &Server{
		store:       store,
		evaluator:   ev,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/create-question-paper", s.handleCreatePaper)
	mux.HandleFunc("/add-question", s.handleAddQuestion)
	mux.HandleFunc("/upload-question-paper", s.handleUploadPaper)
	mux.HandleFunc("/evaluate-answer-sheet", s.handleEvaluate)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

type apiResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type questionMarks struct {
	QuestionNo           int     `json:"question_no"`
	MarksAwarded         float64 `json:"marks_awarded"`
	MaxMarks             int     `json:"max_marks"`
	SimilarityPercentage float64 `json:"similarity_percentage"`
}

type evaluationResponse struct {
	RollNumber        string          `json:"roll_number"`
	PaperID           int             `json:"paper_id"`
	PaperName         string          `json:"paper_name"`
	TotalMarks        float64         `json:"total_marks"`
	QuestionWiseMarks []questionMarks `json:"question_wise_marks"`
}

func (s *Server) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "only POST requests are allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimSpace(r.FormValue("paper_name"))
	if name == "" {
		sendJSONError(w, "paper_name is required", http.StatusBadRequest)
		return
	}

	id, err := s.store.CreatePaper(r.Context(), name)
	if err != nil {
		log.Printf("ERROR: failed to create paper: %v", err)
		sendJSONError(w, "failed to create question paper", http.StatusInternalServerError)
		return
	}

	sendJSONResponse(w, models.Paper{ID: id, Name: name})
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "only POST requests are allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := questionFromForm(r)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.store.AddQuestion(r.Context(), q); err != nil {
		if errors.Is(err, database.ErrDuplicateQuestion) {
			sendJSONError(w, "question number already exists", http.StatusBadRequest)
			return
		}
		log.Printf("ERROR: failed to add question: %v", err)
		sendJSONError(w, "failed to add question", http.StatusInternalServerError)
		return
	}

	sendJSONResponse(w, apiResponse{
		Status:  "success",
		Message: fmt.Sprintf("Question Q%d added", q.QuestionNo),
	})
}

func (s *Server) handleUploadPaper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "only POST requests are allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(s.maxFileSize); err != nil {
		sendJSONError(w, "file too large or malformed form", http.StatusBadRequest)
		return
	}

	paperID, err := strconv.Atoi(r.FormValue("paper_id"))
	if err != nil {
		sendJSONError(w, "paper_id must be an integer", http.StatusBadRequest)
		return
	}

	path, err := s.receiveFile(r, "file")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.evaluator.IngestPaperDocument(r.Context(), paperID, path)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrPaperNotFound):
			sendJSONError(w, "invalid question paper id", http.StatusNotFound)
		case errors.Is(err, evaluator.ErrNoQuestionsParsed):
			sendJSONError(w, "no questions found in the uploaded document", http.StatusBadRequest)
		case errors.Is(err, database.ErrDuplicateQuestion):
			sendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("ERROR: failed to ingest paper document: %v", err)
			sendJSONError(w, "failed to process question paper", http.StatusInternalServerError)
		}
		return
	}

	sendJSONResponse(w, apiResponse{
		Status:  "success",
		Message: fmt.Sprintf("parsed %d questions", len(records)),
		Data:    records,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "only POST requests are allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(s.maxFileSize); err != nil {
		sendJSONError(w, "file too large or malformed form", http.StatusBadRequest)
		return
	}

	rollNumber := strings.TrimSpace(r.FormValue("roll_number"))
	if rollNumber == "" {
		sendJSONError(w, "roll_number is required", http.StatusBadRequest)
		return
	}

	paperID, err := strconv.Atoi(r.FormValue("paper_id"))
	if err != nil {
		sendJSONError(w, "paper_id must be an integer", http.StatusBadRequest)
		return
	}

	path, err := s.receiveFile(r, "answer_sheet")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := s.evaluator.Evaluate(r.Context(), rollNumber, paperID, path)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrPaperNotFound):
			sendJSONError(w, "invalid question paper id", http.StatusNotFound)
		case errors.Is(err, evaluator.ErrNoQuestions):
			sendJSONError(w, "no questions found for this paper", http.StatusBadRequest)
		default:
			log.Printf("ERROR: evaluation failed: %v", err)
			sendJSONError(w, "failed to evaluate answer sheet", http.StatusInternalServerError)
		}
		return
	}

	sendJSONResponse(w, toEvaluationResponse(report))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, apiResponse{Status: "ok"})
}

// receiveFile validates and persists an uploaded document, returning its
// stable local path. Stored names are uuid-prefixed so repeated uploads of
// the same filename never collide.
func (s *Server) receiveFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("missing %s file", field)
	}
	defer file.Close()

	if !isValidFileType(header.Filename) {
		return "", errors.New("only PDF, JPG, JPEG and PNG files are supported")
	}

	return s.saveUpload(file, header.Filename)
}

func (s *Server) saveUpload(file multipart.File, filename string) (string, error) {
	name := uuid.NewString() + "_" + filepath.Base(filename)
	dst := filepath.Join(s.uploadDir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return dst, nil
}

func questionFromForm(r *http.Request) (*models.QuestionRecord, error) {
	paperID, err := strconv.Atoi(r.FormValue("paper_id"))
	if err != nil {
		return nil, errors.New("paper_id must be an integer")
	}

	questionNo, err := strconv.Atoi(r.FormValue("question_no"))
	if err != nil || questionNo < 1 {
		return nil, errors.New("question_no must be a positive integer")
	}

	questionText := strings.TrimSpace(r.FormValue("question_text"))
	if questionText == "" {
		return nil, errors.New("question_text is required")
	}

	maxMarks, err := strconv.Atoi(r.FormValue("max_marks"))
	if err != nil || maxMarks <= 0 {
		return nil, errors.New("max_marks must be a positive integer")
	}

	return &models.QuestionRecord{
		PaperID:      paperID,
		QuestionNo:   questionNo,
		QuestionText: questionText,
		ModelAnswer:  r.FormValue("model_answer"),
		MaxMarks:     maxMarks,
	}, nil
}

func toEvaluationResponse(report *models.EvaluationReport) evaluationResponse {
	breakdown := make([]questionMarks, 0, len(report.Answers))
	for _, a := range report.Answers {
		breakdown = append(breakdown, questionMarks{
			QuestionNo:           a.QuestionNo,
			MarksAwarded:         a.MarksAwarded,
			MaxMarks:             a.MaxMarks,
			SimilarityPercentage: scoring.Round2(a.Similarity * 100),
		})
	}
	return evaluationResponse{
		RollNumber:        report.RollNumber,
		PaperID:           report.PaperID,
		PaperName:         report.PaperName,
		TotalMarks:        report.TotalMarks,
		QuestionWiseMarks: breakdown,
	}
}

func isValidFileType(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func sendJSONResponse(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: failed to encode response: %v", err)
	}
}

func sendJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(apiResponse{Status: "error", Message: message}); err != nil {
		log.Printf("ERROR: failed to encode error response: %v", err)
	}
}
