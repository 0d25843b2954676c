package rubric

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// QuestionCount is the number of questions on the rubric (q1..q11).
const QuestionCount = 11

const (
	MinRating = 0
	MaxRating = 3
)

// Rating is an optional rubric rating in [MinRating, MaxRating].
// The zero value is an unanswered question.
type Rating struct {
	value int
	ok    bool
}

// NewRating returns an answered rating, or an unanswered one when v is out of range.
func NewRating(v int) Rating {
	if v < MinRating || v > MaxRating {
		return Rating{}
	}
	return Rating{value: v, ok: true}
}

// ParseRating never fails: blank, non-numeric and out-of-range input is unanswered.
func ParseRating(s string) Rating {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rating{}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return Rating{}
	}
	return NewRating(v)
}

func (r Rating) Value() (int, bool) {
	return r.value, r.ok
}

func (r Rating) Answered() bool {
	return r.ok
}

// String returns the stored form: the decimal rating or "" when unanswered.
func (r Rating) String() string {
	if !r.ok {
		return ""
	}
	return strconv.Itoa(r.value)
}

// AnswerSet holds one student's answers, index 0 is q1.
type AnswerSet [QuestionCount]Rating

// ParseAnswerSet converts raw answer strings. Missing trailing answers are unanswered.
func ParseAnswerSet(raw []string) (AnswerSet, error) {
	var set AnswerSet
	if len(raw) > QuestionCount {
		return set, fmt.Errorf("%w: got %d, rubric has %d questions", ErrTooManyAnswers, len(raw), QuestionCount)
	}
	for i, s := range raw {
		set[i] = ParseRating(s)
	}
	return set, nil
}

// Question returns the rating for a 1-based question number.
func (a AnswerSet) Question(n int) Rating {
	if n < 1 || n > QuestionCount {
		return Rating{}
	}
	return a[n-1]
}

// Strings returns the 11-element string form, "" for unanswered questions.
func (a AnswerSet) Strings() []string {
	out := make([]string, QuestionCount)
	for i, r := range a {
		out[i] = r.String()
	}
	return out
}

func (a AnswerSet) AnsweredCount() int {
	n := 0
	for _, r := range a {
		if r.ok {
			n++
		}
	}
	return n
}

func (a AnswerSet) Complete() bool {
	return a.AnsweredCount() == QuestionCount
}

// QuestionScores is the per-question integer form kept alongside the answers;
// unanswered questions count as 0.
func (a AnswerSet) QuestionScores() []int {
	out := make([]int, QuestionCount)
	for i, r := range a {
		if v, ok := r.Value(); ok {
			out[i] = v
		}
	}
	return out
}

func (a AnswerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Strings())
}

func (a *AnswerSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAnswers, err)
	}
	set, err := ParseAnswerSet(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAnswers, err)
	}
	*a = set
	return nil
}

// EncodeAnswers serializes an answer set for storage as a JSON array of 11 strings.
func EncodeAnswers(a AnswerSet) string {
	// []string never fails to marshal
	data, _ := json.Marshal(a.Strings())
	return string(data)
}

// DecodeAnswers reverses EncodeAnswers.
func DecodeAnswers(s string) (AnswerSet, error) {
	var set AnswerSet
	if err := json.Unmarshal([]byte(s), &set); err != nil {
		if errors.Is(err, ErrMalformedAnswers) {
			return AnswerSet{}, err
		}
		return AnswerSet{}, fmt.Errorf("%w: %v", ErrMalformedAnswers, err)
	}
	return set, nil
}
