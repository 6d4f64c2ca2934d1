package parser

import (
	"regexp"
	"strconv"
	"strings"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"
)

// testScoreExtractor 考试名（大小写敏感）后 15 个字符内的数字，且落在有效区间内
type testScoreExtractor struct {
	dict *dictionary.Dictionary
	re   *regexp.Regexp
}

func newTestScoreExtractor(dict *dictionary.Dictionary) *testScoreExtractor {
	names := dict.TestNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	re := regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b[^0-9\n]{0,15}(\d{1,4}(?:\.\d)?)\b`)
	return &testScoreExtractor{dict: dict, re: re}
}

func (e *testScoreExtractor) Extract(s types.Section) []types.ExtractionField {
	var out []types.ExtractionField
	for _, m := range e.re.FindAllStringSubmatch(s.Content, -1) {
		test, raw := m[1], m[2]
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		r, ok := e.dict.TestRange(test)
		if !ok || score < r.Min || score > r.Max {
			continue
		}
		out = append(out, newField(types.FieldTestScore, raw, s, types.MethodRegex,
			map[string]string{types.AttrTest: test}))
	}
	return out
}
