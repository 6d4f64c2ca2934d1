package parser

import (
	"strings"
	"unicode"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// headingStopwords 计算词重叠时忽略的虚词
var headingStopwords = map[string]struct{}{
	"and": {}, "of": {}, "the": {}, "my": {}, "a": {}, "an": {}, "for": {},
}

type headingVariant struct {
	sectionType types.SectionType
	text        string
	tokens      []string
}

// SectionClassifier 把标题文本映射到规范章节类型。纯函数，无内部状态
type SectionClassifier struct {
	variants []headingVariant
}

// Match 一次分类的详细结果
type Match struct {
	Type       types.SectionType
	Score      float64
	Similarity float64
	Variant    string
}

// NewSectionClassifier 根据词典构建分类器，变体按固定的类型顺序展开
func NewSectionClassifier(dict *dictionary.Dictionary) *SectionClassifier {
	c := &SectionClassifier{}
	for _, t := range types.AllSectionTypes() {
		for _, v := range dict.Headings[t] {
			nv := NormalizeHeading(v)
			if nv == "" {
				continue
			}
			c.variants = append(c.variants, headingVariant{
				sectionType: t,
				text:        nv,
				tokens:      contentTokens(nv),
			})
		}
	}
	return c
}

// Classify 返回最匹配的章节类型及分数 [0,1]。没有任何相似度时返回 Other, 0
func (c *SectionClassifier) Classify(heading string) (types.SectionType, float64) {
	m := c.Best(heading)
	return m.Type, m.Score
}

// Best 返回最佳匹配。平分时依次比较：编辑距离相似度更高、变体更长、词典顺序更靠前
func (c *SectionClassifier) Best(heading string) Match {
	h := NormalizeHeading(heading)
	best := Match{Type: types.SectionOther}
	if h == "" {
		return best
	}
	hTokens := contentTokens(h)
	for _, v := range c.variants {
		sim := levenshtein.Similarity(h, v.text, nil)
		score := sim
		if overlap := diceOverlap(hTokens, v.tokens); overlap > score {
			score = overlap
		}
		if better(score, sim, v.text, best) {
			best = Match{Type: v.sectionType, Score: score, Similarity: sim, Variant: v.text}
		}
	}
	return best
}

func better(score, sim float64, variant string, cur Match) bool {
	if score != cur.Score {
		return score > cur.Score
	}
	if sim != cur.Similarity {
		return sim > cur.Similarity
	}
	// 变体更长视为更具体；相同长度保持先出现者
	return len(variant) > len(cur.Variant)
}

// NormalizeHeading 小写、NFKC 折叠、去除标点和项目符号、& 转 and、合并空白
func NormalizeHeading(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "&", " and ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func contentTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		if _, stop := headingStopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// diceOverlap 2|A∩B| / (|A|+|B|)
func diceOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]int, len(b))
	for _, t := range b {
		set[t]++
	}
	common := 0
	for _, t := range a {
		if set[t] > 0 {
			set[t]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(a)+len(b))
}
