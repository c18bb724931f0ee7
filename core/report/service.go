package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/school"
)

const generationKey = "report:generation"

type Service struct {
	conf        *core.Config
	perfRepo    performance.Repository
	learnerRepo learner.Repository
	schoolRepo  school.Repository
	cache       core.Cache // optional
	mailSvc     core.EmailService
	logger      core.Logger
	grading     performance.Grading
	formula     *TermFormula
	printer     *core.Printer
}

var _ core.RecordsListener = (*Service)(nil)

func NewService(
	conf *core.Config,
	perfRepo performance.Repository,
	learnerRepo learner.Repository,
	schoolRepo school.Repository,
	cache core.Cache,
	mailSvc core.EmailService,
	logger core.Logger,
	printer *core.Printer,
) (*Service, error) {
	formula, err := NewTermFormula(conf.Grading.TermFormula)
	if err != nil {
		return nil, err
	}
	return &Service{
		conf:        conf,
		perfRepo:    perfRepo,
		learnerRepo: learnerRepo,
		schoolRepo:  schoolRepo,
		cache:       cache,
		mailSvc:     mailSvc,
		logger:      logger,
		grading:     performance.NewGrading(conf),
		formula:     formula,
		printer:     printer,
	}, nil
}

// Caching

// RecordsChanged invalidates every cached report by bumping the cache generation.
func (svc *Service) RecordsChanged(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if _, err := svc.cache.Incr(ctx, generationKey); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating report cache: %v", err), err)
	}
}

func (svc *Service) cacheKey(ctx context.Context, kind string, parts ...interface{}) string {
	gen := "0"
	if val, err := svc.cache.Get(ctx, generationKey); err == nil {
		gen = string(val)
	} else if err != core.ErrCacheMiss {
		svc.logger.Warn(fmt.Sprintf("reading report cache generation: %v", err), err)
	}
	strs := make([]string, 0, len(parts)+3)
	strs = append(strs, "report", gen, kind)
	for _, p := range parts {
		strs = append(strs, fmt.Sprint(p))
	}
	return strings.Join(strs, ":")
}

func (svc *Service) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if svc.cache == nil {
		return false
	}
	data, err := svc.cache.Get(ctx, key)
	if err != nil {
		if err != core.ErrCacheMiss {
			svc.logger.Warn(fmt.Sprintf("reading report cache: %v", err), err)
		}
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (svc *Service) toCache(ctx context.Context, key string, val interface{}) {
	if svc.cache == nil {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("encoding report: %v", err), err)
		return
	}
	if err = svc.cache.Set(ctx, key, data, svc.conf.Redis.ReportTTL); err != nil {
		svc.logger.Warn(fmt.Sprintf("writing report cache: %v", err), err)
	}
}

// Aggregation

// classData holds the scores of a class for an academic period.
type classData struct {
	grade    school.Grade
	stream   *school.Stream
	areas    []school.LearningArea
	learners []learner.Learner
	// by learner ID, learning area ID & exam type
	marks map[string]map[string]map[string]float64
	// by learner ID & learning area ID
	scores map[string]map[string]float64
}

func (svc *Service) loadClass(ctx context.Context, q ClassReportQuery) (*classData, error) {
	grade, err := svc.schoolRepo.GetGrade(ctx, q.GradeID)
	if err != nil {
		return nil, errors.Wrap(err, "finding grade")
	}
	data := &classData{
		grade:  grade,
		marks:  make(map[string]map[string]map[string]float64),
		scores: make(map[string]map[string]float64),
	}
	if q.StreamID != "" {
		stream, err := svc.schoolRepo.GetStream(ctx, q.StreamID)
		if err != nil {
			return nil, errors.Wrap(err, "finding stream")
		}
		if stream.GradeID != grade.ID {
			return nil, core.NewFieldError("stream_id", "stream does not belong to the selected grade")
		}
		data.stream = &stream
	}

	recs, err := svc.perfRepo.QueryRecords(ctx, &performance.QueryFilter{
		GradeID:      q.GradeID,
		AcademicYear: q.AcademicYear,
		Term:         q.Term,
		ExamType:     q.ExamType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying performance records")
	}

	// learners with marks in this grade, plus active learners of the class without any
	learnerIDs := make([]string, 0, len(recs))
	seen := make(map[string]bool)
	for _, r := range recs {
		if !seen[r.LearnerID] {
			seen[r.LearnerID] = true
			learnerIDs = append(learnerIDs, r.LearnerID)
		}
	}
	var withMarks []learner.Learner
	if len(learnerIDs) > 0 {
		if withMarks, err = svc.learnerRepo.QueryLearners(ctx, &learner.QueryFilter{IDs: learnerIDs}, nil); err != nil {
			return nil, errors.Wrap(err, "querying learners with marks")
		}
	}
	active, err := svc.learnerRepo.QueryLearners(ctx, &learner.QueryFilter{
		GradeID:  q.GradeID,
		StreamID: q.StreamID,
		Status:   learner.StatusActive,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class learners")
	}

	inClass := make(map[string]bool)
	for _, l := range withMarks {
		if q.StreamID != "" && (l.StreamID == nil || *l.StreamID != q.StreamID) {
			continue
		}
		inClass[l.ID] = true
		data.learners = append(data.learners, l)
	}
	for _, l := range active {
		if !inClass[l.ID] {
			inClass[l.ID] = true
			data.learners = append(data.learners, l)
		}
	}

	for _, r := range recs {
		if !inClass[r.LearnerID] {
			continue
		}
		byArea, ok := data.marks[r.LearnerID]
		if !ok {
			byArea = make(map[string]map[string]float64)
			data.marks[r.LearnerID] = byArea
		}
		byExam, ok := byArea[r.LearningAreaID]
		if !ok {
			byExam = make(map[string]float64)
			byArea[r.LearningAreaID] = byExam
		}
		byExam[r.ExamType] = r.Marks
	}

	withScores := make(map[string]bool)
	for learnerID, byArea := range data.marks {
		scores := make(map[string]float64, len(byArea))
		for areaID, byExam := range byArea {
			score, ok, err := svc.formula.Score(byExam)
			if err != nil {
				return nil, err
			}
			if ok {
				scores[areaID] = score
				withScores[areaID] = true
			}
		}
		data.scores[learnerID] = scores
	}

	areas, err := svc.schoolRepo.QueryLearningAreas(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying learning areas")
	}
	for _, la := range areas {
		if la.IsActive || withScores[la.ID] {
			data.areas = append(data.areas, la)
		}
	}
	return data, nil
}

// learnerRanks ranks the learners of the class with at least one score on their mean score.
func (d *classData) learnerRanks() (means map[string]float64, ranks map[string]int) {
	means = make(map[string]float64)
	ids := make([]string, 0, len(d.scores))
	vals := make([]float64, 0, len(d.scores))
	for learnerID, scores := range d.scores {
		if len(scores) == 0 {
			continue
		}
		var sum float64
		for _, s := range scores {
			sum += s
		}
		mean := sum / float64(len(scores))
		means[learnerID] = mean
		ids = append(ids, learnerID)
		vals = append(vals, mean)
	}

	ranks = make(map[string]int, len(ids))
	for i, rank := range competitionRanks(vals) {
		ranks[ids[i]] = rank
	}
	return means, ranks
}

// subjectRanks ranks the learners of the class on their score in areaID.
func (d *classData) subjectRanks(areaID string) map[string]int {
	ids := make([]string, 0, len(d.scores))
	vals := make([]float64, 0, len(d.scores))
	for learnerID, scores := range d.scores {
		if s, ok := scores[areaID]; ok {
			ids = append(ids, learnerID)
			vals = append(vals, s)
		}
	}
	ranks := make(map[string]int, len(ids))
	for i, rank := range competitionRanks(vals) {
		ranks[ids[i]] = rank
	}
	return ranks
}

func (svc *Service) buildClassReport(q ClassReportQuery, d *classData) ClassReport {
	rep := ClassReport{
		Query:         q,
		Grade:         d.grade,
		Stream:        d.stream,
		LearningAreas: d.areas,
		Learners:      make([]LearnerRow, 0, len(d.learners)),
		Subjects:      make([]SubjectStats, 0, len(d.areas)),
		GeneratedAt:   time.Now().UTC(),
	}
	if rep.LearningAreas == nil {
		rep.LearningAreas = []school.LearningArea{}
	}

	means, ranks := d.learnerRanks()
	var sumOfMeans float64
	for _, l := range d.learners {
		row := LearnerRow{
			LearnerID:       l.ID,
			AdmissionNumber: l.AdmissionNumber,
			Name:            l.FullName(),
			Scores:          make(map[string]float64),
		}
		for areaID, s := range d.scores[l.ID] {
			row.Scores[areaID] = s
			row.Total += s
			row.Count++
		}
		if row.Count > 0 {
			mean := means[l.ID]
			level := svc.grading.Level(mean)
			row.Total = core.Round2(row.Total)
			row.Mean = core.Round2(mean)
			row.Level = level.Code
			row.Points = level.Points
			row.Position = ranks[l.ID]
			sumOfMeans += mean
		}
		rep.Learners = append(rep.Learners, row)
	}
	sort.SliceStable(rep.Learners, func(i, j int) bool {
		a, b := rep.Learners[i], rep.Learners[j]
		switch {
		case a.Position == 0 && b.Position == 0:
			return a.Name < b.Name
		case a.Position == 0:
			return false
		case b.Position == 0:
			return true
		case a.Position != b.Position:
			return a.Position < b.Position
		default:
			return a.Name < b.Name
		}
	})
	if len(ranks) > 0 {
		rep.ClassMean = core.Round2(sumOfMeans / float64(len(ranks)))
	}

	for _, la := range d.areas {
		stats := SubjectStats{
			LearningAreaID: la.ID,
			Code:           la.Code,
			Name:           la.Name,
			Levels:         make(map[string]int, len(performance.Levels)),
		}
		for _, lvl := range performance.Levels {
			stats.Levels[lvl.Code] = 0
		}
		var sum float64
		for _, scores := range d.scores {
			s, ok := scores[la.ID]
			if !ok {
				continue
			}
			if stats.Count == 0 || s > stats.Highest {
				stats.Highest = s
			}
			if stats.Count == 0 || s < stats.Lowest {
				stats.Lowest = s
			}
			stats.Count++
			sum += s
			stats.Levels[svc.grading.Level(s).Code]++
		}
		if stats.Count > 0 {
			stats.Mean = core.Round2(sum / float64(stats.Count))
		}
		rep.Subjects = append(rep.Subjects, stats)
	}
	return rep
}

// ClassReport aggregates the scores of a class: learner totals, means & positions, and per subject statistics.
func (svc *Service) ClassReport(ctx context.Context, q ClassReportQuery) (ClassReport, error) {
	var rep ClassReport
	var key string
	if svc.cache != nil {
		key = svc.cacheKey(ctx, "class", q.GradeID, q.StreamID, q.AcademicYear, q.Term, q.ExamType)
		if svc.fromCache(ctx, key, &rep) {
			return rep, nil
		}
	}

	data, err := svc.loadClass(ctx, q)
	if err != nil {
		return ClassReport{}, err
	}
	rep = svc.buildClassReport(q, data)

	if svc.cache != nil {
		svc.toCache(ctx, key, rep)
	}
	return rep, nil
}

// ReportCard returns the results of a learner for a term, with positions within their grade.
func (svc *Service) ReportCard(ctx context.Context, q ReportCardQuery) (ReportCard, error) {
	var card ReportCard
	var key string
	if svc.cache != nil {
		key = svc.cacheKey(ctx, "card", q.LearnerID, q.AcademicYear, q.Term, q.ExamType)
		if svc.fromCache(ctx, key, &card) {
			return card, nil
		}
	}

	l, err := svc.learnerRepo.GetLearner(ctx, q.LearnerID)
	if err != nil {
		return ReportCard{}, errors.Wrap(err, "finding learner")
	}

	// the grade the learner was in during that term
	gradeID := l.GradeID
	recs, err := svc.perfRepo.QueryRecords(ctx, &performance.QueryFilter{
		LearnerID:    l.ID,
		AcademicYear: q.AcademicYear,
		Term:         q.Term,
		ExamType:     q.ExamType,
	})
	if err != nil {
		return ReportCard{}, errors.Wrap(err, "querying performance records")
	}
	if len(recs) > 0 {
		gradeID = recs[0].GradeID
	}

	data, err := svc.loadClass(ctx, ClassReportQuery{
		GradeID:      gradeID,
		AcademicYear: q.AcademicYear,
		Term:         q.Term,
		ExamType:     q.ExamType,
	})
	if err != nil {
		return ReportCard{}, err
	}

	card = ReportCard{
		Learner:      l,
		Grade:        data.grade,
		AcademicYear: q.AcademicYear,
		Term:         q.Term,
		ExamType:     q.ExamType,
		Subjects:     make([]SubjectResult, 0, len(data.areas)),
		GeneratedAt:  time.Now().UTC(),
	}

	means, ranks := data.learnerRanks()
	scores := data.scores[l.ID]
	for _, la := range data.areas {
		score, ok := scores[la.ID]
		if !ok {
			continue
		}
		level := svc.grading.Level(score)
		subjRanks := data.subjectRanks(la.ID)
		card.Subjects = append(card.Subjects, SubjectResult{
			LearningAreaID:   la.ID,
			LearningAreaCode: la.Code,
			LearningAreaName: la.Name,
			Marks:            data.marks[l.ID][la.ID],
			Score:            score,
			Level:            level.Code,
			LevelName:        level.Name,
			Points:           level.Points,
			Comment:          level.Comment,
			Position:         subjRanks[l.ID],
			OutOf:            len(subjRanks),
		})
		card.Total += score
	}

	if len(card.Subjects) > 0 {
		level := svc.grading.Level(means[l.ID])
		card.Total = core.Round2(card.Total)
		card.Mean = core.Round2(means[l.ID])
		card.Level = level.Code
		card.Points = level.Points
		card.Position = ranks[l.ID]
	}
	card.ClassSize = len(ranks)

	if svc.cache != nil {
		svc.toCache(ctx, key, card)
	}
	return card, nil
}
