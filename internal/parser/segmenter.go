package parser

import (
	"fmt"
	"strings"
	"unicode"

	"parsely-go/internal/types"
)

// SegmenterConfig 分段阈值，均来自配置
type SegmenterConfig struct {
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	HeadingnessThreshold float64 `yaml:"headingness_threshold"`
	MaxHeadingWords      int     `yaml:"max_heading_words"`
	MaxHeadingChars      int     `yaml:"max_heading_chars"`
}

// DefaultSegmenterConfig 默认阈值
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SimilarityThreshold:  0.72,
		HeadingnessThreshold: 0.5,
		MaxHeadingWords:      6,
		MaxHeadingChars:      60,
	}
}

// Validate 阈值必须落在 (0,1]
func (c SegmenterConfig) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return types.NewConfigurationError("segmenter", fmt.Sprintf("similarity_threshold=%v 超出 (0,1]", c.SimilarityThreshold), nil)
	}
	if c.HeadingnessThreshold <= 0 || c.HeadingnessThreshold > 1 {
		return types.NewConfigurationError("segmenter", fmt.Sprintf("headingness_threshold=%v 超出 (0,1]", c.HeadingnessThreshold), nil)
	}
	if c.MaxHeadingWords <= 0 || c.MaxHeadingChars <= 0 {
		return types.NewConfigurationError("segmenter", "max_heading_words/max_heading_chars 必须为正数", nil)
	}
	return nil
}

// SectionSegmenter 把原始文本切分为有序、不重叠且覆盖全文的章节
type SectionSegmenter struct {
	classifier *SectionClassifier
	cfg        SegmenterConfig
}

// NewSectionSegmenter 创建分段器
func NewSectionSegmenter(classifier *SectionClassifier, cfg SegmenterConfig) (*SectionSegmenter, error) {
	if classifier == nil {
		return nil, types.NewConfigurationError("segmenter", "classifier 不能为空", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SectionSegmenter{classifier: classifier, cfg: cfg}, nil
}

type line struct {
	start, end int // 不含换行符
	next       int // 下一行起点
	text       string
}

type boundary struct {
	start      int
	bodyStart  int
	typ        types.SectionType
	heading    string
	confidence float64
}

// Segment 切分文本。返回值永不为空，相邻章节首尾相接，覆盖 [0, len(text))
func (s *SectionSegmenter) Segment(text string) []types.Section {
	lines := splitLines(text)
	var bounds []boundary
	for i, ln := range lines {
		trimmed := strings.TrimSpace(ln.text)
		if trimmed == "" {
			continue
		}
		prevBlank := i == 0 || isBlank(lines[i-1].text)
		nextBlank := i == len(lines)-1 || isBlank(lines[i+1].text)
		if s.inBulletRun(lines, i) {
			continue
		}
		if b, ok := s.detect(ln, trimmed, prevBlank, nextBlank); ok {
			bounds = append(bounds, b)
		}
	}

	if len(bounds) == 0 {
		return []types.Section{{
			Type:    types.SectionOther,
			Start:   0,
			End:     len(text),
			Ordinal: 0,
			Content: text,
		}}
	}

	var sections []types.Section
	if lead := text[:bounds[0].start]; strings.TrimSpace(lead) != "" {
		sections = append(sections, types.Section{
			Type:    types.SectionHeader,
			Start:   0,
			End:     bounds[0].start,
			Content: lead,
		})
	} else {
		// 只有空白的前导文本并入第一个章节
		bounds[0].start = 0
	}
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1].start
		}
		sections = append(sections, types.Section{
			Type:              b.typ,
			Heading:           b.heading,
			HeadingConfidence: b.confidence,
			Start:             b.start,
			BodyStart:         b.bodyStart,
			End:               end,
			Content:           text[b.bodyStart:end],
		})
	}
	for i := range sections {
		sections[i].Ordinal = i
	}
	return sections
}

// detect 判断一行是否为章节边界，支持 "Heading: body" 行内形式
func (s *SectionSegmenter) detect(ln line, trimmed string, prevBlank, nextBlank bool) (boundary, bool) {
	if score := s.Headingness(trimmed, prevBlank, nextBlank); score >= s.cfg.HeadingnessThreshold {
		m := s.classifier.Best(strings.TrimSuffix(trimmed, ":"))
		if m.Score >= s.cfg.SimilarityThreshold {
			return boundary{
				start:      ln.start,
				bodyStart:  ln.next,
				typ:        m.Type,
				heading:    trimmed,
				confidence: m.Score,
			}, true
		}
	}

	idx := strings.Index(ln.text, ":")
	if idx <= 0 {
		return boundary{}, false
	}
	prefix := strings.TrimSpace(ln.text[:idx])
	if prefix == "" || strings.TrimSpace(ln.text[idx+1:]) == "" {
		return boundary{}, false
	}
	if s.Headingness(prefix+":", prevBlank, false) < s.cfg.HeadingnessThreshold {
		return boundary{}, false
	}
	m := s.classifier.Best(prefix)
	if m.Score < s.cfg.SimilarityThreshold {
		return boundary{}, false
	}
	return boundary{
		start:      ln.start,
		bodyStart:  ln.start + idx + 1,
		typ:        m.Type,
		heading:    prefix,
		confidence: m.Score,
	}, true
}

// Headingness 结构性标题分 [0,1]：长度 0.35，大写 0.3，结尾冒号 0.15，空行隔离 0.2。
// 含数字或以句末标点结尾减半，项目符号行为 0。
func (s *SectionSegmenter) Headingness(text string, prevBlank, nextBlank bool) float64 {
	t := strings.TrimSpace(text)
	if t == "" || isBulletLine(t) {
		return 0
	}
	words := strings.Fields(t)
	if len(words) > s.cfg.MaxHeadingWords || len([]rune(t)) > s.cfg.MaxHeadingChars {
		return 0
	}

	score := 0.25
	if len(words) <= 3 {
		score = 0.35
	}
	score += 0.3 * capitalization(words)
	if strings.HasSuffix(t, ":") {
		score += 0.15
	}
	if prevBlank {
		score += 0.1
	}
	if nextBlank {
		score += 0.1
	}

	if strings.IndexFunc(t, unicode.IsDigit) >= 0 {
		score *= 0.5
	}
	if strings.HasSuffix(t, ".") || strings.HasSuffix(t, "?") || strings.HasSuffix(t, "!") {
		score *= 0.5
	}
	if score > 1 {
		score = 1
	}
	return score
}

// capitalization 全大写记 1，每个实词首字母大写记 2/3，否则按首字母大写比例折算
func capitalization(words []string) float64 {
	letters, upper := 0, 0
	titled, counted := 0, 0
	for _, w := range words {
		first := true
		for _, r := range w {
			if !unicode.IsLetter(r) {
				continue
			}
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
			if first {
				first = false
				if _, stop := headingStopwords[strings.ToLower(w)]; stop {
					continue
				}
				counted++
				if unicode.IsUpper(r) {
					titled++
				}
			}
		}
	}
	if letters == 0 {
		return 0
	}
	if upper == letters {
		return 1
	}
	if counted > 0 && titled == counted {
		return 2.0 / 3.0
	}
	if counted == 0 {
		return 0
	}
	return float64(titled) / float64(counted) / 3
}

// inBulletRun 夹在两个项目符号行之间、且没有空行隔开的行不作为边界
func (s *SectionSegmenter) inBulletRun(lines []line, i int) bool {
	if i == 0 || i == len(lines)-1 {
		return false
	}
	prev := strings.TrimSpace(lines[i-1].text)
	next := strings.TrimSpace(lines[i+1].text)
	return prev != "" && next != "" && isBulletLine(prev) && isBulletLine(next)
}

// splitLines 按 \n 切分并保留字节偏移，\r 视为行内容的一部分，在 TrimSpace 时去除
func splitLines(text string) []line {
	var lines []line
	start := 0
	for start < len(text) {
		idx := strings.IndexByte(text[start:], '\n')
		if idx < 0 {
			lines = append(lines, line{start: start, end: len(text), next: len(text), text: text[start:]})
			break
		}
		end := start + idx
		lines = append(lines, line{start: start, end: end, next: end + 1, text: text[start:end]})
		start = end + 1
	}
	return lines
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
