package parser

import (
	"regexp"
	"strings"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"
)

var (
	gpaLabelRe     = regexp.MustCompile(`(?i)\b(?:c?gpa|cpi|grade)\s*[:=]?\s*(\d{1,2}(?:\.\d{1,2})?)(?:\s*/\s*(\d{1,3}(?:\.\d+)?))?`)
	percentRe      = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,2})?)\s*%`)
	percentLabelRe = regexp.MustCompile(`(?i)\b(?:percentage|marks|aggregate)\s*[:=]?\s*(\d{1,3}(?:\.\d{1,2})?)`)
	ratioRe        = regexp.MustCompile(`\b(\d{1,2}(?:\.\d{1,2})?)\s*/\s*(4|4\.0|5|5\.0|10|100)\b`)
	majorLabelRe   = regexp.MustCompile(`(?i)\bmajor\s*[:\-]\s*([A-Za-z &]+)`)
	inMajorRe      = regexp.MustCompile(`(?i)\s+in\s+(.+)$`)
	gpaTailRe      = regexp.MustCompile(`(?i)\s*(?:\(|\b)(?:c?gpa|cpi|grade|percentage)\b.*$`)
	atSepRe        = regexp.MustCompile(`(?i) at `)
	fromSepRe      = regexp.MustCompile(`(?i) from `)
)

const maxEducationBlockLines = 4

type degreeMatcher struct {
	level string
	words []string
	abbrs []*regexp.Regexp
}

// match 返回命中的关键词文本及其在 s 中的结束位置
func (m degreeMatcher) match(s string) (string, int, bool) {
	for _, re := range m.abbrs {
		if loc := re.FindStringSubmatchIndex(s); loc != nil {
			return s[loc[2]:loc[3]], loc[3], true
		}
	}
	for _, w := range m.words {
		if start, end := indexWord(s, w); start >= 0 {
			return s[start:end], end, true
		}
	}
	return "", 0, false
}

func newDegreeMatcher(level string, kw dictionary.DegreeKeywords) degreeMatcher {
	m := degreeMatcher{level: level, words: kw.Words}
	for _, a := range kw.Abbreviations {
		m.abbrs = append(m.abbrs, regexp.MustCompile(`(?:^|[^A-Za-z.])(`+regexp.QuoteMeta(a)+`)(?:$|[^A-Za-z])`))
	}
	return m
}

// educationExtractor 教育经历：按年份和院校关键词切分条目
type educationExtractor struct {
	degrees      []degreeMatcher // 研究生 -> 本科 -> 高中
	institutions []string
	majors       []string
}

func newEducationExtractor(dict *dictionary.Dictionary) *educationExtractor {
	return &educationExtractor{
		degrees: []degreeMatcher{
			newDegreeMatcher(types.LevelPostgraduate, dict.Degrees.Postgraduate),
			newDegreeMatcher(types.LevelUndergraduate, dict.Degrees.Undergraduate),
			newDegreeMatcher(types.LevelHighSchool, dict.Degrees.HighSchool),
		},
		institutions: dict.InstitutionKeywords,
		majors:       dict.Majors,
	}
}

func (e *educationExtractor) Extract(s types.Section) []types.ExtractionField {
	var out []types.ExtractionField
	for _, block := range e.blocks(contentLines(s.Content)) {
		if f, ok := e.parseBlock(s, block); ok {
			out = append(out, f)
		}
	}
	return out
}

// blocks 出现年份或满 4 行时结束当前条目；已有院校/学位时遇到新的院校/学位行另起条目
func (e *educationExtractor) blocks(lines []string) [][]string {
	var blocks [][]string
	var cur []string
	hasInst, hasDegree := false, false
	closeBlock := func() {
		if len(cur) > 0 {
			blocks = append(blocks, cur)
		}
		cur = nil
		hasInst, hasDegree = false, false
	}
	for _, ln := range lines {
		lineInst := countKeywords(ln, e.institutions) > 0
		_, lineDegree := e.level(ln)
		if len(cur) > 0 && ((lineInst && hasInst) || (lineDegree && hasDegree)) {
			closeBlock()
		}
		cur = append(cur, ln)
		hasInst = hasInst || lineInst
		hasDegree = hasDegree || lineDegree
		if len(yearsIn(ln)) > 0 || len(cur) >= maxEducationBlockLines {
			closeBlock()
		}
	}
	closeBlock()
	return blocks
}

func (e *educationExtractor) level(s string) (string, bool) {
	for _, m := range e.degrees {
		if _, _, ok := m.match(s); ok {
			return m.level, true
		}
	}
	return "", false
}

func (e *educationExtractor) parseBlock(s types.Section, block []string) (types.ExtractionField, bool) {
	joined := strings.Join(block, "\n")
	parts := splitParts(joined)

	var degree, major, institution, level string
	degreeIdx := -1
	for i, p := range parts {
		for _, m := range e.degrees {
			kw, end, ok := m.match(p)
			if !ok {
				continue
			}
			level = m.level
			degreeIdx = i
			degree = cleanDegree(p)
			major = majorFromDegree(p, kw, end)
			break
		}
		if degreeIdx >= 0 {
			break
		}
	}

	for i, p := range parts {
		if i == degreeIdx {
			continue
		}
		if countKeywords(p, e.institutions) > 0 {
			institution = cleanInstitution(p)
			break
		}
	}
	if institution == "" && degreeIdx >= 0 {
		institution = institutionFromDegreePart(parts[degreeIdx], e.institutions)
		if institution != "" {
			degree = cleanDegree(strings.TrimSpace(strings.Replace(parts[degreeIdx], institution, "", 1)))
			degree = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(degree), " from"), " at")
		}
	}

	if major == "" {
		major = e.majorFromBlock(joined)
	}
	year := latestYear(joined)
	gpa := extractGPAText(joined)

	if degree == "" && institution == "" {
		return types.ExtractionField{}, false
	}

	value := degree
	if value == "" {
		value = institution
	}
	method := types.MethodHeuristic
	if level != "" {
		method = types.MethodRegex
	}
	return newField(types.FieldEducation, value, s, method, map[string]string{
		types.AttrDegree:      degree,
		types.AttrMajor:       major,
		types.AttrInstitution: institution,
		types.AttrYear:        year,
		types.AttrGPA:         gpa,
		types.AttrLevel:       level,
	}), true
}

// cleanDegree 去掉学位文本中的年份和 GPA 尾巴
func cleanDegree(p string) string {
	p = gpaTailRe.ReplaceAllString(p, "")
	p = yearRe.ReplaceAllString(p, "")
	return strings.Trim(collapseSpaces(p), " -–—()")
}

func cleanInstitution(p string) string {
	p = gpaTailRe.ReplaceAllString(p, "")
	p = yearRe.ReplaceAllString(p, "")
	return strings.Trim(collapseSpaces(p), " -–—()")
}

// majorFromDegree "X in Major" 或缩写后紧跟专业，如 "B.Sc Computer Science"
func majorFromDegree(part, kw string, end int) string {
	clean := cleanDegree(part)
	if m := inMajorRe.FindStringSubmatch(clean); m != nil {
		return strings.TrimSpace(m[1])
	}
	if end > len(part) {
		return ""
	}
	rest := cleanDegree(part[end:])
	rest = strings.TrimPrefix(strings.TrimPrefix(rest, "of "), "in ")
	if rest != "" && kw != "" && isTitleCasePhrase(rest, 5) && !strings.EqualFold(kw, "bachelor") && !strings.EqualFold(kw, "master") {
		return rest
	}
	return ""
}

// institutionFromDegreePart 同一片段里同时写了学位与院校，如 "BS in CS at State University"
func institutionFromDegreePart(part string, keywords []string) string {
	for _, sep := range []*regexp.Regexp{atSepRe, fromSepRe} {
		if locs := sep.FindAllStringIndex(part, -1); len(locs) > 0 {
			cand := strings.TrimSpace(part[locs[len(locs)-1][1]:])
			if countKeywords(cand, keywords) > 0 {
				return cleanInstitution(cand)
			}
		}
	}
	return ""
}

func (e *educationExtractor) majorFromBlock(block string) string {
	if m := majorLabelRe.FindStringSubmatch(block); m != nil {
		return strings.TrimSpace(m[1])
	}
	best := ""
	for _, mj := range e.majors {
		if start, end := indexWord(block, mj); start >= 0 && end-start > len(best) {
			best = block[start:end]
		}
	}
	return best
}

// extractGPAText 返回原始 GPA 文本，如 "3.7/4"、"85%"、"3.7"
func extractGPAText(block string) string {
	if m := gpaLabelRe.FindStringSubmatch(block); m != nil {
		if m[2] != "" {
			return m[1] + "/" + m[2]
		}
		if rest := block[strings.Index(block, m[0])+len(m[0]):]; strings.HasPrefix(strings.TrimSpace(rest), "%") {
			return m[1] + "%"
		}
		return m[1]
	}
	if m := percentRe.FindStringSubmatch(block); m != nil {
		return m[1] + "%"
	}
	if m := percentLabelRe.FindStringSubmatch(block); m != nil {
		return m[1] + "%"
	}
	if m := ratioRe.FindStringSubmatch(block); m != nil {
		return m[1] + "/" + m[2]
	}
	return ""
}
