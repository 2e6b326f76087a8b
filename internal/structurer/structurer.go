// Package structurer parses raw question-paper text into ordered question
// records.
package structurer

import (
	"regexp"
	"strconv"
	"strings"

	"exam-evaluator/internal/models"
)

// DefaultMaxMarks is assigned when a question carries no mark specifier.
const DefaultMaxMarks = 10

var (
	// Question marker: optional leading "Q", one or two digits, then "." or
	// ")" at the start of a line.
	questionMarkerRe = regexp.MustCompile(`(?m)^[ \t]*Q?(\d{1,2})[.)][ \t]*`)

	// Answer marker: "Ans"/"Answer"/"A" followed by ":" or "-".
	answerMarkerRe = regexp.MustCompile(`(?i)\b(?:Answer|Ans|A)[ \t]*[:\-][ \t]*`)

	// Trailing mark specifier, e.g. "(5 marks)", "5 m", "[10 marks]".
	markSpecRe = regexp.MustCompile(`(?i)[(\[]?[ \t]*(\d+)[ \t]*(?:marks|mark|m)[ \t]*[)\]]?[ \t]*$`)

	carriageRe = regexp.MustCompile(`\r\n?`)
	blankRunRe = regexp.MustCompile(`\n{2,}`)
)

type block struct {
	no   int
	body string
}

// Structure parses question-paper text into question records, in document
// order. Question numbers are taken verbatim from the matched digits and are
// not deduplicated or validated here. Text with no numbered markers at all
// yields a nil slice.
func Structure(text string) []models.QuestionRecord {
	text = normalize(text)

	markers := questionMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(markers) == 0 {
		return nil
	}

	blocks := make([]block, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		no, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		blocks = append(blocks, block{no: no, body: text[m[1]:end]})
	}

	records := primary(blocks)
	if len(records) == 0 {
		records = fallback(blocks)
	}
	return records
}

// normalize collapses carriage returns to newlines and runs of blank lines to
// a single newline. This intentionally destroys paragraph spacing so the
// line-anchored marker pattern stays tractable.
func normalize(text string) string {
	text = carriageRe.ReplaceAllString(text, "\n")
	return blankRunRe.ReplaceAllString(text, "\n")
}

// primary emits a record for every block that contains an answer marker:
// the text before the marker is the question, the text after it is the model
// answer. Blocks without an answer marker produce no candidate.
func primary(blocks []block) []models.QuestionRecord {
	var records []models.QuestionRecord
	for _, b := range blocks {
		loc := answerMarkerRe.FindStringIndex(b.body)
		if loc == nil {
			continue
		}
		qText, maxMarks := splitMarks(strings.TrimSpace(b.body[:loc[0]]))
		records = append(records, models.QuestionRecord{
			QuestionNo:   b.no,
			QuestionText: qText,
			ModelAnswer:  strings.TrimSpace(b.body[loc[1]:]),
			MaxMarks:     maxMarks,
		})
	}
	return records
}

// fallback turns every block into a question skeleton with an empty model
// answer. It sacrifices answer capture so a paper with numbered markers but
// no answer markers still yields questions.
func fallback(blocks []block) []models.QuestionRecord {
	records := make([]models.QuestionRecord, 0, len(blocks))
	for _, b := range blocks {
		records = append(records, models.QuestionRecord{
			QuestionNo:   b.no,
			QuestionText: strings.TrimSpace(b.body),
			MaxMarks:     DefaultMaxMarks,
		})
	}
	return records
}

// splitMarks strips a trailing mark specifier from the question text and
// returns the declared marks, or DefaultMaxMarks when absent.
func splitMarks(qText string) (string, int) {
	m := markSpecRe.FindStringSubmatch(qText)
	if m == nil {
		return qText, DefaultMaxMarks
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return qText, DefaultMaxMarks
	}
	return strings.TrimSpace(strings.TrimSuffix(qText, m[0])), n
}
