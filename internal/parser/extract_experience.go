package parser

import (
	"regexp"
	"strings"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"
)

const monthPattern = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

var (
	dateRangeRe    = regexp.MustCompile(`(?i)\b((?:` + monthPattern + `\s*,?\s*)?(?:\d{1,2}/)?(?:19|20)\d{2})\s*(?:-|–|—|to|until)\s*((?:` + monthPattern + `\s*,?\s*)?(?:\d{1,2}/)?(?:19|20)\d{2}|present|current|now|ongoing|today|date)\b`)
	expPartSplitRe = regexp.MustCompile(`\s+[-–—|@]\s+|[,;|@]|\s+at\s+`)
	presentRe      = regexp.MustCompile(`(?i)^(?:present|current|now|ongoing|today|date)$`)
)

// 结束时间为"至今"时写入 AttrEnd 的值
const endPresent = "present"

// experienceExtractor 工作经历：按日期区间与"项目符号之后的标题行"切分条目
type experienceExtractor struct {
	dict          *dictionary.Dictionary
	titleKeywords []string
	orgSuffixes   []string
}

func newExperienceExtractor(dict *dictionary.Dictionary) *experienceExtractor {
	return &experienceExtractor{
		dict:          dict,
		titleKeywords: dict.TitleKeywords,
		orgSuffixes:   dict.OrgSuffixes,
	}
}

type experienceDraft struct {
	headers []string
	start   string
	end     string
	dated   bool
	bullets []string
}

func (d *experienceDraft) empty() bool {
	return len(d.headers) == 0 && !d.dated && len(d.bullets) == 0
}

func (e *experienceExtractor) Extract(s types.Section) []types.ExtractionField {
	var drafts []*experienceDraft
	var cur *experienceDraft
	begin := func() {
		cur = &experienceDraft{}
		drafts = append(drafts, cur)
	}

	for _, raw := range strings.Split(s.Content, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		bullet := isBulletLine(trimmed)
		text := stripBullet(trimmed)

		if bullet {
			if cur == nil {
				begin()
			}
			if e.verbInitial(text) {
				cur.bullets = append(cur.bullets, text)
			}
			continue
		}

		if loc := dateRangeRe.FindStringSubmatchIndex(text); loc != nil {
			if cur == nil || cur.dated || len(cur.bullets) > 0 {
				begin()
			}
			cur.dated = true
			cur.start = text[loc[2]:loc[3]]
			cur.end = text[loc[4]:loc[5]]
			if rest := collapseSpaces(text[:loc[0]] + " " + text[loc[1]:]); strings.Trim(rest, " ,;|-–—()") != "" {
				cur.headers = append(cur.headers, rest)
			}
			continue
		}

		if cur != nil && (cur.dated || len(cur.headers) > 0) && e.verbInitial(text) && !e.hasTitleKeyword(text) {
			cur.bullets = append(cur.bullets, text)
			continue
		}

		if cur == nil || len(cur.bullets) > 0 {
			begin()
		}
		cur.headers = append(cur.headers, text)
	}

	var out []types.ExtractionField
	for _, d := range drafts {
		if d.empty() {
			continue
		}
		if f, ok := e.toField(s, d); ok {
			out = append(out, f)
		}
	}
	return out
}

func (e *experienceExtractor) toField(s types.Section, d *experienceDraft) (types.ExtractionField, bool) {
	var parts []string
	for _, h := range d.headers {
		for _, p := range expPartSplitRe.Split(h, -1) {
			if t := strings.Trim(strings.TrimSpace(p), "()"); t != "" {
				parts = append(parts, t)
			}
		}
	}
	title, titleIdx := e.pickTitle(parts)
	org := e.pickOrganization(parts, titleIdx)
	if title == "" && org == "" && len(d.bullets) == 0 {
		return types.ExtractionField{}, false
	}

	start := latestYear(d.start)
	end := latestYear(d.end)
	if presentRe.MatchString(strings.TrimSpace(d.end)) {
		end = endPresent
	}

	method := types.MethodHeuristic
	if d.dated {
		method = types.MethodRegex
	}
	value := title
	if value == "" {
		value = org
	}
	return newField(types.FieldExperience, value, s, method, map[string]string{
		types.AttrTitle:        title,
		types.AttrOrganization: org,
		types.AttrStart:        start,
		types.AttrEnd:          end,
		types.AttrBullets:      strings.Join(d.bullets, "\n"),
	}), true
}

// pickTitle 第一个含职位关键词的片段，否则第一个短的首字母大写短语
func (e *experienceExtractor) pickTitle(parts []string) (string, int) {
	for i, p := range parts {
		if e.hasTitleKeyword(p) && !e.hasOrgSuffix(p) {
			return p, i
		}
	}
	for i, p := range parts {
		if isTitleCasePhrase(p, 5) && !e.hasOrgSuffix(p) {
			return p, i
		}
	}
	return "", -1
}

// pickOrganization 优先带机构后缀的片段，否则取职位之后的片段，再否则取第一个非职位片段
func (e *experienceExtractor) pickOrganization(parts []string, titleIdx int) string {
	for i, p := range parts {
		if i != titleIdx && e.hasOrgSuffix(p) {
			return p
		}
	}
	if titleIdx >= 0 && titleIdx+1 < len(parts) {
		return parts[titleIdx+1]
	}
	for i, p := range parts {
		if i != titleIdx {
			return p
		}
	}
	return ""
}

func (e *experienceExtractor) hasTitleKeyword(s string) bool {
	return countKeywords(s, e.titleKeywords) > 0
}

func (e *experienceExtractor) hasOrgSuffix(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(fields[len(fields)-1])
	for _, suf := range e.orgSuffixes {
		if last == strings.ToLower(suf) {
			return true
		}
	}
	return false
}

func (e *experienceExtractor) verbInitial(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	return e.dict.IsActionVerb(fields[0])
}
