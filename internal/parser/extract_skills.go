package parser

import (
	"regexp"
	"strings"
	"unicode"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"
)

// OtherSkillCategory 未命中技能分类的兜底分组
const OtherSkillCategory = "Other"

var (
	skillSplitRe = regexp.MustCompile(`[,;|•·▪●\n]`)
	skillLabelRe = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z &/-]{0,40}):\s*`)
	skillParenRe = regexp.MustCompile(`\s*\([^)]*\)`)
	skillAndRe   = regexp.MustCompile(`(?i)\s+(?:and|&)\s+`)
	otherSkillRe = regexp.MustCompile(`^[A-Za-z][A-Za-z+#.\- ]*$`)
)

const (
	minOtherChars = 3
	maxOtherWords = 4
)

// skillsExtractor 技能：切词后按分类表匹配（含别名），未命中的合格词归入 Other
type skillsExtractor struct {
	dict      *dictionary.Dictionary
	stopwords map[string]struct{}
}

func newSkillsExtractor(dict *dictionary.Dictionary) *skillsExtractor {
	stop := make(map[string]struct{}, len(dict.SkillStopwords))
	for _, w := range dict.SkillStopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &skillsExtractor{dict: dict, stopwords: stop}
}

func (e *skillsExtractor) Extract(s types.Section) []types.ExtractionField {
	var out []types.ExtractionField
	seen := make(map[string]bool)
	emit := func(category, skill string, method types.ExtractionMethod) {
		key := strings.ToLower(category + "\x00" + skill)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, newField(types.FieldSkill, skill, s, method, map[string]string{types.AttrCategory: category}))
	}

	for _, ln := range strings.Split(s.Content, "\n") {
		ln = stripBullet(ln)
		if m := skillLabelRe.FindStringSubmatchIndex(ln); m != nil && len(strings.Fields(ln[m[2]:m[3]])) <= 4 {
			ln = ln[m[1]:]
		}
		for _, tok := range skillSplitRe.Split(ln, -1) {
			for _, cand := range e.candidates(tok) {
				if ref, ok := e.dict.LookupSkill(cand); ok {
					emit(ref.Category, ref.Canonical, types.MethodRegex)
					continue
				}
				if e.acceptOther(cand) {
					emit(OtherSkillCategory, cand, types.MethodHeuristic)
				}
			}
		}
	}
	return out
}

// candidates 整词命中优先，否则再按 "/" 与 "and" 拆开
func (e *skillsExtractor) candidates(tok string) []string {
	t := cleanSkillToken(tok)
	if t == "" {
		return nil
	}
	if _, ok := e.dict.LookupSkill(t); ok {
		return []string{t}
	}
	var out []string
	for _, piece := range strings.Split(t, "/") {
		for _, sub := range skillAndRe.Split(piece, -1) {
			if c := cleanSkillToken(sub); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

func cleanSkillToken(tok string) string {
	t := skillParenRe.ReplaceAllString(tok, "")
	t = stripBullet(t)
	t = strings.TrimRight(strings.TrimSpace(t), ".:")
	return collapseSpaces(t)
}

func (e *skillsExtractor) acceptOther(tok string) bool {
	if len(tok) < minOtherChars || !otherSkillRe.MatchString(tok) {
		return false
	}
	words := strings.Fields(tok)
	if len(words) > maxOtherWords {
		return false
	}
	if _, stop := e.stopwords[strings.ToLower(tok)]; stop {
		return false
	}
	// 以动作动词开头的是句子而不是技能
	return !e.dict.IsActionVerb(words[0])
}

type skillMatcher struct {
	category  string
	canonical string
	re        *regexp.Regexp
}

// summaryExtractor 简介中提到的分类技能，不产出 Other
type summaryExtractor struct {
	matchers []skillMatcher
}

func newSummaryExtractor(dict *dictionary.Dictionary) *summaryExtractor {
	e := &summaryExtractor{}
	for _, c := range dict.Skills {
		for _, skill := range c.Skills {
			e.matchers = append(e.matchers, skillMatcher{
				category:  c.Category,
				canonical: skill,
				re:        skillMentionRe(skill),
			})
		}
	}
	return e
}

// skillMentionRe 三个字符以内的技能名（Go、R、SQL）大小写敏感，避免匹配普通单词
func skillMentionRe(skill string) *regexp.Regexp {
	flags := "(?i)"
	if len([]rune(skill)) <= 3 {
		flags = ""
	}
	tail := `(?:$|[^A-Za-z0-9+#])`
	if last := rune(skill[len(skill)-1]); !unicode.IsLetter(last) && !unicode.IsDigit(last) {
		tail = `(?:$|[^A-Za-z0-9])`
	}
	return regexp.MustCompile(flags + `(?:^|[^A-Za-z0-9+#.])` + regexp.QuoteMeta(skill) + tail)
}

func (e *summaryExtractor) Extract(s types.Section) []types.ExtractionField {
	var out []types.ExtractionField
	for _, m := range e.matchers {
		if m.re.MatchString(s.Content) {
			out = append(out, newField(types.FieldSkill, m.canonical, s, types.MethodRegex,
				map[string]string{types.AttrCategory: m.category}))
		}
	}
	return out
}
