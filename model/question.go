package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type QuestionType string

const (
	TextInput    QuestionType = "text_input"
	NumericInput QuestionType = "numeric_input"
	DateInput    QuestionType = "date_input"
	SingleSelect QuestionType = "single_select"
	MultiSelect  QuestionType = "multi_select"
	ImagePrompt  QuestionType = "image_prompt"
	ImageSelect  QuestionType = "image_select"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TextInput, NumericInput, DateInput, SingleSelect, MultiSelect, ImagePrompt, ImageSelect:
		return true
	}
	return false
}

// RequiresOptions reports whether answers are picked from an option list.
func (t QuestionType) RequiresOptions() bool {
	return t == SingleSelect || t == MultiSelect || t == ImageSelect
}

type Option struct {
	ID         int64  `db:"id" json:"id,omitempty"`
	QuestionID int64  `db:"question_id" json:"-"`
	Text       string `db:"text" json:"text"`
	Value      string `db:"value" json:"value"`
	ImageURL   string `db:"image_url" json:"image_url,omitempty"`
	Position   int    `db:"position" json:"order"`
}

// Logic holds the conditional display rule of a question. ShowIf is an expr
// expression over the answers of other questions, named q<id>.
type Logic struct {
	ShowIf string `json:"show_if,omitempty"`
}

func (l *Logic) Scan(src any) error {
	*l = Logic{}
	return scanJSON(src, l)
}

func (l Logic) Value() (driver.Value, error) {
	return jsonValue(l)
}

func (l Logic) compile() (*vm.Program, error) {
	return expr.Compile(l.ShowIf, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
}

func (l Logic) Validate() error {
	if l.ShowIf == "" {
		return nil
	}
	_, err := l.compile()
	return err
}

// Visible evaluates the rule against the submitted answers. A question with
// no rule, or whose rule cannot be evaluated, is visible.
func (l Logic) Visible(answers map[string]any) bool {
	if l.ShowIf == "" {
		return true
	}
	program, err := l.compile()
	if err != nil {
		return true
	}
	out, err := expr.Run(program, answers)
	if err != nil {
		return true
	}
	visible, ok := out.(bool)
	return !ok || visible
}

// VarName is the name under which a question's answer is exposed to logic rules.
func VarName(questionID int64) string {
	return fmt.Sprintf("q%d", questionID)
}

type Question struct {
	ID         int64        `db:"id" json:"id"`
	FormID     int64        `db:"form_id" json:"form_id"`
	SectionID  *int64       `db:"section_id" json:"section_id"`
	Text       string       `db:"text" json:"text"`
	Type       QuestionType `db:"question_type" json:"question_type"`
	Position   int          `db:"position" json:"order"`
	IsRequired bool         `db:"is_required" json:"is_required"`
	Logic      Logic        `db:"logic" json:"logic"`
	ImageURL   string       `db:"image_url" json:"image_url,omitempty"`

	Options []Option `db:"-" json:"options"`
}

var (
	ErrQuestionText    = errors.New("question text is required")
	ErrQuestionType    = errors.New("unknown question type")
	ErrOptionsRequired = errors.New("this question type needs at least one option")
	ErrOptionsNotUsed  = errors.New("this question type does not take options")
	ErrDuplicateOption = errors.New("option values must be unique")
)

// Normalize validates the question against its type and fills option
// defaults: an option without value takes its text, positions follow list order.
func (q *Question) Normalize() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return ErrQuestionText
	}
	if !q.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrQuestionType, q.Type)
	}

	options := q.Options[:0]
	for _, o := range q.Options {
		o.Text = strings.TrimSpace(o.Text)
		o.Value = strings.TrimSpace(o.Value)
		if o.Text == "" && o.Value == "" {
			continue
		}
		if o.Value == "" {
			o.Value = o.Text
		}
		if o.Text == "" {
			o.Text = o.Value
		}
		options = append(options, o)
	}
	q.Options = options

	switch {
	case q.Type.RequiresOptions() && len(q.Options) == 0:
		return ErrOptionsRequired
	case !q.Type.RequiresOptions() && len(q.Options) > 0:
		return ErrOptionsNotUsed
	}

	seen := make(map[string]bool, len(q.Options))
	for i := range q.Options {
		if seen[q.Options[i].Value] {
			return fmt.Errorf("%w: %q", ErrDuplicateOption, q.Options[i].Value)
		}
		seen[q.Options[i].Value] = true
		q.Options[i].Position = i + 1
	}

	if err := q.Logic.Validate(); err != nil {
		return fmt.Errorf("invalid show_if rule: %w", err)
	}
	return nil
}
