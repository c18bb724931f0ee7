package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/shuleapp/shule/core/performance"
)

const (
	resultsSheet  = "Results"
	subjectsSheet = "Subjects"
)

// ExportClassReport returns the class report as an xlsx workbook and its file name.
func (svc *Service) ExportClassReport(ctx context.Context, q ClassReportQuery) (*bytes.Buffer, string, error) {
	rep, err := svc.ClassReport(ctx, q)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, "", errors.Wrap(err, "renaming sheet")
	}
	if err := writeResults(f, rep); err != nil {
		return nil, "", errors.Wrap(err, "writing results")
	}
	if _, err := f.NewSheet(subjectsSheet); err != nil {
		return nil, "", errors.Wrap(err, "adding subjects sheet")
	}
	if err := writeSubjects(f, rep); err != nil {
		return nil, "", errors.Wrap(err, "writing subjects")
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", errors.Wrap(err, "writing workbook")
	}
	return buf, exportFilename(rep), nil
}

func exportFilename(rep ClassReport) string {
	name := rep.Grade.Name
	if rep.Stream != nil {
		name += "-" + rep.Stream.Name
	}
	name = strings.ToLower(strings.Join(strings.Fields(name), "-"))
	fname := fmt.Sprintf("class-report-%s-%d-term%d", name, rep.Query.AcademicYear, rep.Query.Term)
	if rep.Query.ExamType != "" {
		fname += "-" + rep.Query.ExamType
	}
	return fname + ".xlsx"
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeResults(f *excelize.File, rep ClassReport) error {
	title := fmt.Sprintf("%s %d term %d", rep.Grade.Name, rep.Query.AcademicYear, rep.Query.Term)
	if rep.Stream != nil {
		title = fmt.Sprintf("%s %s %d term %d", rep.Grade.Name, rep.Stream.Name, rep.Query.AcademicYear, rep.Query.Term)
	}
	if err := f.SetCellValue(resultsSheet, "A1", title); err != nil {
		return err
	}

	header := []interface{}{"Position", "Adm. No", "Name"}
	for _, la := range rep.LearningAreas {
		header = append(header, la.Code)
	}
	header = append(header, "Total", "Mean", "Level")
	if err := writeRow(f, resultsSheet, 3, header); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(header), 3)
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(resultsSheet, "A3", lastCell, style); err != nil {
		return err
	}

	for i, lr := range rep.Learners {
		values := make([]interface{}, 0, len(header))
		if lr.Position > 0 {
			values = append(values, lr.Position)
		} else {
			values = append(values, "")
		}
		values = append(values, lr.AdmissionNumber, lr.Name)
		for _, la := range rep.LearningAreas {
			if s, ok := lr.Scores[la.ID]; ok {
				values = append(values, s)
			} else {
				values = append(values, "")
			}
		}
		if lr.Count > 0 {
			values = append(values, lr.Total, lr.Mean, lr.Level)
		} else {
			values = append(values, "", "", "")
		}
		if err := writeRow(f, resultsSheet, i+4, values); err != nil {
			return err
		}
	}

	footer := []interface{}{"", "", "Class mean"}
	for range rep.LearningAreas {
		footer = append(footer, "")
	}
	footer = append(footer, "", rep.ClassMean)
	return writeRow(f, resultsSheet, len(rep.Learners)+5, footer)
}

func writeSubjects(f *excelize.File, rep ClassReport) error {
	header := []interface{}{"Code", "Learning area", "Entries", "Mean", "Highest", "Lowest"}
	for _, lvl := range performance.Levels {
		header = append(header, lvl.Code)
	}
	if err := writeRow(f, subjectsSheet, 1, header); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(subjectsSheet, "A1", lastCell, style); err != nil {
		return err
	}

	for i, s := range rep.Subjects {
		values := []interface{}{s.Code, s.Name, s.Count, s.Mean, s.Highest, s.Lowest}
		for _, lvl := range performance.Levels {
			values = append(values, s.Levels[lvl.Code])
		}
		if err := writeRow(f, subjectsSheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}
