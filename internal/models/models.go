package models

// Paper represents a question paper record
type Paper struct {
	ID   int    `json:"paper_id"`
	Name string `json:"paper_name"`
}

// QuestionRecord is a single graded item belonging to a question paper
type QuestionRecord struct {
	ID           int    `json:"id,omitempty"`
	PaperID      int    `json:"paper_id,omitempty"`
	QuestionNo   int    `json:"question_no"`
	QuestionText string `json:"question_text"`
	ModelAnswer  string `json:"model_answer"`
	MaxMarks     int    `json:"max_marks"`
}

// ScoredAnswer is the outcome of scoring one question against a student's
// answer sheet
type ScoredAnswer struct {
	QuestionNo   int     `json:"question_no"`
	Similarity   float64 `json:"similarity"`
	MarksAwarded float64 `json:"marks_awarded"`
	MaxMarks     int     `json:"max_marks"`
}

// EvaluationReport aggregates the per-question scores for one evaluation run.
// Answers keeps the same ordering as the paper's stored question sequence.
type EvaluationReport struct {
	RollNumber string         `json:"roll_number"`
	PaperID    int            `json:"paper_id"`
	PaperName  string         `json:"paper_name"`
	TotalMarks float64        `json:"total_marks"`
	Answers    []ScoredAnswer `json:"question_wise_marks"`
}
