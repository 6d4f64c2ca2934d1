package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	bulletPrefixRe = regexp.MustCompile(`^\s*(?:[-*•●▪◦·○➢✓►–—>]+\s*|\(?\d{1,2}[.)]\s+)`)
	yearRe         = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	partSplitRe    = regexp.MustCompile(`\s+[-–—|]\s+|[,;|\n]`)
)

// isBulletLine 以项目符号或序号开头的行
func isBulletLine(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	loc := bulletPrefixRe.FindStringIndex(t)
	return loc != nil && loc[1] > 0 && loc[1] < len(t)
}

// stripBullet 去掉行首的项目符号
func stripBullet(s string) string {
	t := strings.TrimSpace(s)
	if !isBulletLine(t) {
		return t
	}
	return strings.TrimSpace(bulletPrefixRe.ReplaceAllString(t, ""))
}

// contentLines 返回去空白、去项目符号后的非空行
func contentLines(content string) []string {
	var out []string
	for _, ln := range strings.Split(content, "\n") {
		if t := stripBullet(ln); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitParts 按逗号、分号、竖线与两侧带空格的破折号切分
func splitParts(s string) []string {
	var out []string
	for _, p := range partSplitRe.Split(s, -1) {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// collapseSpaces 合并连续空白
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// containsWord 大小写不敏感的整词包含判断，keyword 可以是多词短语
func containsWord(text, keyword string) bool {
	start, _ := indexWord(text, keyword)
	return start >= 0
}

// indexWord 返回 keyword 在 text 中首次整词出现的字节区间，未命中返回 -1。
// 按 rune 窗口做大小写折叠比较，偏移始终落在原文上
func indexWord(text, keyword string) (int, int) {
	n := utf8.RuneCountInString(keyword)
	if n == 0 {
		return -1, -1
	}
	for start := 0; start < len(text); {
		end := start
		for i := 0; i < n && end < len(text); i++ {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
		}
		if strings.EqualFold(text[start:end], keyword) &&
			wordBoundaryBefore(text, start) && wordBoundaryAfter(text, end) {
			return start, end
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		start += size
	}
	return -1, -1
}

// countKeywords 统计命中的关键词个数
func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if containsWord(text, kw) {
			n++
		}
	}
	return n
}

// firstKeyword 返回第一个命中的关键词
func firstKeyword(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if containsWord(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := rune(s[i-1])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// yearsIn 返回文本中出现的全部四位年份字符串
func yearsIn(s string) []string {
	return yearRe.FindAllString(s, -1)
}

// latestYear 返回最大的年份，无年份返回空串
func latestYear(s string) string {
	latest := ""
	for _, y := range yearsIn(s) {
		if y > latest {
			latest = y
		}
	}
	return latest
}

// isTitleCasePhrase 短语中每个实词首字母大写
func isTitleCasePhrase(s string, maxWords int) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > maxWords {
		return false
	}
	for _, w := range words {
		if _, stop := headingStopwords[strings.ToLower(w)]; stop {
			continue
		}
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}
