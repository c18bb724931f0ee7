package report

import (
	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/performance"
)

// TermFormula combines the marks of the exam types of a term into a single score,
// e.g. "0.3 * opener + 0.7 * end_term".
// Missing exam types take the mean of the present ones. An empty formula is the plain mean.
type TermFormula struct {
	src  string
	expr *govaluate.EvaluableExpression
}

func NewTermFormula(src string) (*TermFormula, error) {
	src = core.CleanString(src)
	if src == "" {
		return &TermFormula{}, nil
	}

	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing term formula %q", src)
	}
	for _, v := range expr.Vars() {
		if !performance.IsExamType(v) {
			return nil, errors.Errorf("term formula %q: unknown exam type %q", src, v)
		}
	}
	return &TermFormula{src: src, expr: expr}, nil
}

func (f *TermFormula) String() string {
	if f.src == "" {
		return "mean"
	}
	return f.src
}

// Score returns the term score of marks (by exam type). ok is false when marks is empty.
func (f *TermFormula) Score(marks map[string]float64) (score float64, ok bool, err error) {
	if len(marks) == 0 {
		return 0, false, nil
	}

	var sum float64
	for _, m := range marks {
		sum += m
	}
	mean := sum / float64(len(marks))
	if f.expr == nil {
		return core.Round2(mean), true, nil
	}

	params := make(map[string]interface{}, len(performance.ExamTypes))
	for _, et := range performance.ExamTypes {
		if m, present := marks[et]; present {
			params[et] = m
		} else {
			params[et] = mean
		}
	}

	res, err := f.expr.Evaluate(params)
	if err != nil {
		return 0, false, errors.Wrap(err, "evaluating term formula")
	}
	val, isFloat := res.(float64)
	if !isFloat {
		return 0, false, errors.Errorf("term formula %q did not return a number", f.src)
	}
	return core.Round2(val), true, nil
}
