package performance

import "github.com/shuleapp/shule/core"

// Level is a performance level of the competency based curriculum.
type Level struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Points  int    `json:"points"`
	Comment string `json:"comment"`
}

var (
	LevelExceeding   = Level{Code: "EE", Name: "Exceeding Expectations", Points: 4, Comment: "Excellent work, keep it up."}
	LevelMeeting     = Level{Code: "ME", Name: "Meeting Expectations", Points: 3, Comment: "Good work, aim higher."}
	LevelApproaching = Level{Code: "AE", Name: "Approaching Expectations", Points: 2, Comment: "Fair, more effort needed."}
	LevelBelow       = Level{Code: "BE", Name: "Below Expectations", Points: 1, Comment: "Needs support and close follow up."}

	Levels = []Level{LevelExceeding, LevelMeeting, LevelApproaching, LevelBelow}
)

// Grading maps marks (0-100) to performance levels.
type Grading struct {
	ExceedingMin   float64
	MeetingMin     float64
	ApproachingMin float64
}

func NewGrading(conf *core.Config) Grading {
	g := Grading{
		ExceedingMin:   conf.Grading.ExceedingMin,
		MeetingMin:     conf.Grading.MeetingMin,
		ApproachingMin: conf.Grading.ApproachingMin,
	}
	if !(g.ExceedingMin > g.MeetingMin && g.MeetingMin > g.ApproachingMin && g.ApproachingMin > 0) {
		return DefaultGrading
	}
	return g
}

var DefaultGrading = Grading{ExceedingMin: 80, MeetingMin: 50, ApproachingMin: 30}

func (g Grading) Level(marks float64) Level {
	switch {
	case marks >= g.ExceedingMin:
		return LevelExceeding
	case marks >= g.MeetingMin:
		return LevelMeeting
	case marks >= g.ApproachingMin:
		return LevelApproaching
	default:
		return LevelBelow
	}
}
