package parser

import (
	"regexp"
	"strings"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"
)

var quotedTitleRe = regexp.MustCompile(`["“]([^"”]{3,})["”]`)

// publicationExtractor 引号标题与期刊/会议关键词同时出现视为论文；
// 章节内只有其中一个信号的行保留为 partial 条目
type publicationExtractor struct {
	venueKeywords []string
}

func newPublicationExtractor(dict *dictionary.Dictionary) *publicationExtractor {
	return &publicationExtractor{venueKeywords: dict.PublicationKeywords}
}

func (e *publicationExtractor) Extract(s types.Section) []types.ExtractionField {
	var out []types.ExtractionField
	for _, ln := range contentLines(s.Content) {
		title := ""
		if m := quotedTitleRe.FindStringSubmatch(ln); m != nil {
			title = strings.TrimSpace(m[1])
		}
		venue := e.venue(ln, title)
		if title == "" && venue == "" {
			continue
		}

		attrs := map[string]string{
			types.AttrVenue: venue,
			types.AttrYear:  latestYear(ln),
		}
		method := types.MethodRegex
		if title == "" || venue == "" {
			attrs[types.AttrPartial] = "true"
			method = types.MethodHeuristic
		}
		if title == "" {
			title = strings.TrimSpace(yearRe.ReplaceAllString(ln, ""))
			title = strings.Trim(title, " ,.;()")
		}
		out = append(out, newField(types.FieldPublication, title, s, method, attrs))
	}
	return out
}

// venue 取含期刊/会议关键词的片段（不在引号标题内）
func (e *publicationExtractor) venue(line, title string) string {
	rest := line
	if title != "" {
		rest = strings.Replace(rest, title, "", 1)
	}
	for _, p := range splitParts(rest) {
		p = strings.Trim(p, " \"“”.()")
		if p == "" {
			continue
		}
		if countKeywords(p, e.venueKeywords) > 0 {
			return strings.TrimSpace(yearRe.ReplaceAllString(p, ""))
		}
	}
	return ""
}
