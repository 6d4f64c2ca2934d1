package export

import (
	"fmt"
	"strings"

	"parsely-go/internal/processor"
	"parsely-go/internal/types"

	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet    = "Results"
	experienceSheet = "Experience"
)

var resultHeaders = []string{
	"File", "Hash", "Status", "From Cache", "Name", "Emails", "Phones",
	"Skills", "Experience Entries", "Quality Score", "Confidence %", "Error",
}

var experienceHeaders = []string{"File", "Title", "Organization", "Start", "End"}

// BatchXLSX 把批处理结果导出为 xlsx。Results 每个文件一行，Experience 每段经历一行
func BatchXLSX(res *processor.BatchResult) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("批处理结果为空")
	}

	f := excelize.NewFile()
	defer f.Close()

	// 默认的 Sheet1 改名为 Results
	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(experienceSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	writeRow(f, resultsSheet, 1, toAny(resultHeaders))
	writeRow(f, experienceSheet, 1, toAny(experienceHeaders))

	expRow := 2
	for i, it := range res.Items {
		row := []any{it.File, it.Hash, it.Status, it.FromCache}
		if p := it.Parsed; p != nil {
			conf := ""
			if p.ConfidencePercentage != nil {
				conf = fmt.Sprintf("%.2f", *p.ConfidencePercentage)
			}
			row = append(row,
				p.Name,
				strings.Join(p.Emails, ", "),
				strings.Join(p.Phones, ", "),
				flattenSkills(p.Skills),
				len(p.WorkExperience),
				p.ResumeQualityScore,
				conf,
				it.Error,
			)
			for _, e := range p.WorkExperience {
				writeRow(f, experienceSheet, expRow, []any{it.File, e.Title, e.Organization, yearCell(e.StartYear), endYearCell(e)})
				expRow++
			}
		} else {
			row = append(row, "", "", "", "", 0, "", "", it.Error)
		}
		writeRow(f, resultsSheet, i+2, row)
	}

	_ = f.SetColWidth(resultsSheet, "A", "A", 28)
	_ = f.SetColWidth(resultsSheet, "B", "B", 34)
	_ = f.SetColWidth(resultsSheet, "E", "G", 26)
	_ = f.SetColWidth(resultsSheet, "H", "H", 48)
	_ = f.SetColWidth(resultsSheet, "L", "L", 40)
	_ = f.SetColWidth(experienceSheet, "A", "C", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// flattenSkills 按类别固定顺序输出 "类别: a, b; 类别: c"
func flattenSkills(skills map[string][]string) string {
	var parts []string
	for _, cat := range types.SortedSkillCategories(skills) {
		parts = append(parts, cat+": "+strings.Join(skills[cat], ", "))
	}
	return strings.Join(parts, "; ")
}

func yearCell(y *int) any {
	if y == nil {
		return ""
	}
	return *y
}

func endYearCell(e types.ExperienceEntry) any {
	if e.EndYear == nil && e.StartYear != nil {
		return "present"
	}
	return yearCell(e.EndYear)
}
