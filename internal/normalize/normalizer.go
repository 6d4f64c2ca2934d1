// Package normalize 提供按字段族划分的纯规范化函数。所有函数幂等：Normalize(Normalize(v)) == Normalize(v)
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"parsely-go/internal/types"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinYear 年份合理性下界
const DefaultMinYear = 1950

var (
	emailValidRe  = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}$`)
	fourDigitRe   = regexp.MustCompile(`\b\d{4}\b`)
	numberRe      = regexp.MustCompile(`\d+(?:\.\d+)?`)
	handleValidRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// ScoreRange 考试分数区间
type ScoreRange struct {
	Min, Max float64
}

// Normalizer 规范化器。当前年份在构造时注入，保证结果可复现
type Normalizer struct {
	currentYear int
	minYear     int
	ranges      map[string]ScoreRange
}

// New 创建规范化器，ranges 的键为大写考试名
func New(currentYear int, ranges map[string]ScoreRange) *Normalizer {
	r := make(map[string]ScoreRange, len(ranges))
	for k, v := range ranges {
		r[strings.ToUpper(k)] = v
	}
	return &Normalizer{currentYear: currentYear, minYear: DefaultMinYear, ranges: r}
}

// CurrentYear 注入的当前年份
func (n *Normalizer) CurrentYear() int {
	return n.currentYear
}

// Whitespace NFKC 折叠并合并空白
func Whitespace(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Name 清理空白；全小写或全大写的词转为首字母大写，大小写混合的词保持原样
func Name(s string) (string, error) {
	s = Whitespace(s)
	if strings.IndexFunc(s, unicode.IsLetter) < 0 {
		return "", types.NewNormalizationReject("name", "姓名不含字母")
	}
	// cases.Caser 有状态，不能跨 goroutine 共享，每次调用新建
	caser := cases.Title(language.English)
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if isUniformCase(tok) {
			tokens[i] = caser.String(strings.ToLower(tok))
		}
	}
	return strings.Join(tokens, " "), nil
}

// isUniformCase 全部字母同为小写或同为大写（单字母大写缩写除外）
func isUniformCase(tok string) bool {
	lower, upper := 0, 0
	for _, r := range tok {
		if unicode.IsLower(r) {
			lower++
		} else if unicode.IsUpper(r) {
			upper++
		}
	}
	if lower == 0 && upper <= 1 {
		return false
	}
	return lower == 0 || upper == 0
}

// Email 小写并校验格式
func Email(s string) (string, error) {
	e := strings.ToLower(strings.Trim(Whitespace(s), " .,;:<>()"))
	if !emailValidRe.MatchString(e) {
		return "", types.NewNormalizationReject("email", fmt.Sprintf("邮箱格式无效: %q", s))
	}
	return e, nil
}

// Phone 只保留数字（含检测到的国家码），长度 10-15
func Phone(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 || len(digits) > 15 {
		return "", types.NewNormalizationReject("phone", fmt.Sprintf("电话号码位数 %d 不在 10-15 之间", len(digits)))
	}
	return digits, nil
}

// Year 解析四位年份，范围 [1950, currentYear+1]
func (n *Normalizer) Year(s string) (int, error) {
	m := fourDigitRe.FindString(s)
	if m == "" {
		return 0, types.NewNormalizationReject("year", fmt.Sprintf("无法解析年份: %q", s))
	}
	y, _ := strconv.Atoi(m)
	if y < n.minYear || y > n.currentYear+1 {
		return 0, types.NewNormalizationReject("year", fmt.Sprintf("年份 %d 超出 [%d, %d]", y, n.minYear, n.currentYear+1))
	}
	return y, nil
}

// YearText 年份的幂等字符串形式
func (n *Normalizer) YearText(s string) (string, error) {
	y, err := n.Year(s)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(y), nil
}

// ParseGPA 解析 GPA/百分比文本为 {value, scale}：
// "x/10" -> 10，"85%" -> 100，无满分时 <=4 -> 4、<=10 -> 10、<=100 -> 100
func ParseGPA(s string) (types.GPA, error) {
	raw := Whitespace(s)
	nums := numberRe.FindAllString(raw, -1)
	if len(nums) == 0 {
		return types.GPA{}, types.NewNormalizationReject("gpa", fmt.Sprintf("无法解析GPA: %q", s))
	}
	value, _ := strconv.ParseFloat(nums[0], 64)

	var scale float64
	switch {
	case strings.Contains(raw, "%"):
		scale = 100
	case strings.Contains(raw, "/") && len(nums) >= 2:
		scale, _ = strconv.ParseFloat(nums[1], 64)
	case value <= 4:
		scale = 4
	case value <= 10:
		scale = 10
	case value <= 100:
		scale = 100
	default:
		return types.GPA{}, types.NewNormalizationReject("gpa", fmt.Sprintf("GPA %v 无法推断满分", value))
	}
	return NormalizeGPA(types.GPA{Value: value, Scale: scale})
}

// NormalizeGPA 保留两位小数并校验 0 <= value <= scale
func NormalizeGPA(g types.GPA) (types.GPA, error) {
	g.Value = round2(g.Value)
	g.Scale = round2(g.Scale)
	if g.Scale <= 0 || g.Value < 0 || g.Value > g.Scale {
		return types.GPA{}, types.NewNormalizationReject("gpa", fmt.Sprintf("GPA %v/%v 不合理", g.Value, g.Scale))
	}
	return g, nil
}

// FormatGPA 与 ParseGPA 互逆的文本形式
func FormatGPA(g types.GPA) string {
	return strconv.FormatFloat(g.Value, 'f', -1, 64) + "/" + strconv.FormatFloat(g.Scale, 'f', -1, 64)
}

// GPAText GPA 文本的幂等规范形式
func GPAText(s string) (string, error) {
	g, err := ParseGPA(s)
	if err != nil {
		return "", err
	}
	return FormatGPA(g), nil
}

// TestScore 校验考试分数区间，返回大写考试名与分数
func (n *Normalizer) TestScore(test, raw string) (string, float64, error) {
	name := strings.ToUpper(Whitespace(test))
	r, ok := n.ranges[name]
	if !ok {
		return "", 0, types.NewNormalizationReject("test_score", fmt.Sprintf("未知考试 %q", test))
	}
	m := numberRe.FindString(raw)
	if m == "" {
		return "", 0, types.NewNormalizationReject("test_score", fmt.Sprintf("无法解析分数 %q", raw))
	}
	score, _ := strconv.ParseFloat(m, 64)
	if score < r.Min || score > r.Max {
		return "", 0, types.NewNormalizationReject("test_score", fmt.Sprintf("%s 分数 %v 超出 [%v, %v]", name, score, r.Min, r.Max))
	}
	return name, score, nil
}

// URL 去掉尾部标点，补全 https:// 前缀，主机名小写
func URL(s string) (string, error) {
	u := strings.TrimRight(Whitespace(s), ".,;:)]}>\"'")
	if u == "" {
		return "", types.NewNormalizationReject("url", "URL为空")
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	idx := strings.Index(u, "://") + 3
	rest := u[idx:]
	host, path := rest, ""
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		host, path = rest[:slash], rest[slash:]
	}
	if !strings.Contains(host, ".") || strings.ContainsAny(host, " @") {
		return "", types.NewNormalizationReject("url", fmt.Sprintf("URL主机名无效: %q", s))
	}
	return strings.ToLower(u[:idx]) + strings.ToLower(host) + path, nil
}

// Handle LinkedIn/GitHub 用户名：小写，去掉首尾斜杠
func Handle(s string) (string, error) {
	h := strings.ToLower(strings.Trim(Whitespace(s), "/@ "))
	if !handleValidRe.MatchString(h) {
		return "", types.NewNormalizationReject("handle", fmt.Sprintf("用户名无效: %q", s))
	}
	return h, nil
}

// Text 条目文本（证书、奖项、论文标题）：清理空白与首尾的分隔符
func Text(s string) string {
	return strings.Trim(Whitespace(s), " ,;|-–—")
}

// Dedup 大小写不敏感去重，保留首次出现的顺序与写法
func Dedup(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		key := strings.ToLower(Whitespace(it))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
