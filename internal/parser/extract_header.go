package parser

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/ner"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
)

var (
	emailRe     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe     = regexp.MustCompile(`\+?\(?\d[\d \t().-]{7,}\d`)
	yearRangeRe = regexp.MustCompile(`^(?:19|20)\d{2}\s*[-–—]\s*(?:19|20)\d{2}$`)
	urlRe       = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s,;<>()]+|\b(?:linkedin\.com|github\.com)/[^\s,;<>()]+`)
	linkedInRe  = regexp.MustCompile(`(?i)linkedin\.com/in/([A-Za-z0-9_-]+)`)
	gitHubRe    = regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9-]+)`)
)

const nameScanLines = 6

// contactExtractor 联系方式：邮箱、电话、URL、LinkedIn/GitHub
type contactExtractor struct{}

func newContactExtractor() *contactExtractor {
	return &contactExtractor{}
}

func (c *contactExtractor) Extract(s types.Section) []types.ExtractionField {
	text := s.Content
	var out []types.ExtractionField
	for _, m := range emailRe.FindAllString(text, -1) {
		out = append(out, newField(types.FieldEmail, m, s, types.MethodRegex, nil))
	}
	for _, m := range phoneRe.FindAllString(text, -1) {
		if !plausiblePhone(m) {
			continue
		}
		out = append(out, newField(types.FieldPhone, strings.TrimSpace(m), s, types.MethodRegex, nil))
	}
	for _, m := range urlRe.FindAllString(text, -1) {
		out = append(out, newField(types.FieldURL, m, s, types.MethodRegex, nil))
	}
	for _, m := range linkedInRe.FindAllStringSubmatch(text, -1) {
		out = append(out, newField(types.FieldLinkedIn, m[1], s, types.MethodRegex, nil))
	}
	for _, m := range gitHubRe.FindAllStringSubmatch(text, -1) {
		out = append(out, newField(types.FieldGitHub, m[1], s, types.MethodRegex, nil))
	}
	return out
}

// plausiblePhone 10-15 位数字，且不是年份区间
func plausiblePhone(candidate string) bool {
	t := strings.TrimSpace(candidate)
	if yearRangeRe.MatchString(t) {
		return false
	}
	digits := 0
	for _, r := range t {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10 && digits <= 15
}

// headerExtractor 头部章节：联系方式 + 姓名（启发式与 NER 交叉验证）
type headerExtractor struct {
	contact    *contactExtractor
	recognizer ner.EntityRecognizer
	keywords   map[string]struct{}
	logger     zerolog.Logger
}

func newHeaderExtractor(dict *dictionary.Dictionary, recognizer ner.EntityRecognizer, contact *contactExtractor, logger zerolog.Logger) *headerExtractor {
	kw := make(map[string]struct{})
	for _, k := range dict.Keywords() {
		kw[k] = struct{}{}
	}
	return &headerExtractor{
		contact:    contact,
		recognizer: recognizer,
		keywords:   kw,
		logger:     logger,
	}
}

func (h *headerExtractor) Extract(s types.Section) []types.ExtractionField {
	out := h.contact.Extract(s)
	if name, ok := h.extractName(s); ok {
		out = append([]types.ExtractionField{name}, out...)
	}
	return out
}

func (h *headerExtractor) extractName(s types.Section) (types.ExtractionField, bool) {
	lines := contentLines(s.Content)
	if len(lines) > nameScanLines {
		lines = lines[:nameScanLines]
	}
	if len(lines) == 0 {
		return types.ExtractionField{}, false
	}
	heuristic := h.heuristicName(lines)

	var nerName string
	entities, err := h.recognizer.Recognize(context.Background(), strings.Join(lines, "\n"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("实体识别失败，仅使用启发式姓名")
	} else if p, ok := ner.FirstPerson(entities); ok {
		nerName = collapseSpaces(p)
	}

	switch {
	case nerName != "" && heuristic != "":
		attrs := map[string]string{types.AttrCrossValidated: "true"}
		if !strings.EqualFold(nerName, heuristic) {
			attrs[types.AttrCrossValidated] = "false"
			attrs[types.AttrHeuristicValue] = heuristic
		}
		return newField(types.FieldPersonName, nerName, s, types.MethodNER, attrs), true
	case nerName != "":
		return newField(types.FieldPersonName, nerName, s, types.MethodNER, nil), true
	case heuristic != "":
		return newField(types.FieldPersonName, heuristic, s, types.MethodHeuristic, nil), true
	}
	return types.ExtractionField{}, false
}

// heuristicName 前六行中第一行由 2-5 个首字母大写的字母词组成、且不含关键词的行
func (h *headerExtractor) heuristicName(lines []string) string {
	for _, ln := range lines {
		if emailRe.MatchString(ln) || urlRe.MatchString(ln) {
			continue
		}
		tokens := strings.Fields(ln)
		if len(tokens) < 2 || len(tokens) > 5 {
			continue
		}
		ok := true
		for _, tok := range tokens {
			if !isNameToken(tok) {
				ok = false
				break
			}
			if _, kw := h.keywords[strings.ToLower(strings.Trim(tok, ".,"))]; kw {
				ok = false
				break
			}
		}
		if ok {
			return collapseSpaces(ln)
		}
	}
	return ""
}

// isNameToken 首字母大写，只含字母及 . - '
func isNameToken(tok string) bool {
	for i, r := range tok {
		if i == 0 {
			if !unicode.IsUpper(r) {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && r != '.' && r != '-' && r != '\'' {
			return false
		}
	}
	return tok != ""
}
