// Package dictionary 加载规范章节标题、技能分类与各类关键词表。
// 词典在进程启动时加载一次，之后只读，可在多个 goroutine 间无锁共享。
package dictionary

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"parsely-go/internal/types"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed dictionary.yaml
var defaultYAML []byte

// SkillCategory 技能分类及其规范技能名
type SkillCategory struct {
	Category string   `yaml:"category" validate:"required"`
	Skills   []string `yaml:"skills" validate:"required,min=1,dive,required"`
}

// DegreeKeywords 某一学历层级的关键词。Words 大小写不敏感，Abbreviations 大小写敏感
type DegreeKeywords struct {
	Words         []string `yaml:"words" validate:"required,min=1,dive,required"`
	Abbreviations []string `yaml:"abbreviations" validate:"dive,required"`
}

// Degrees 三个学历层级的关键词
type Degrees struct {
	HighSchool    DegreeKeywords `yaml:"high_school" validate:"required"`
	Undergraduate DegreeKeywords `yaml:"undergraduate" validate:"required"`
	Postgraduate  DegreeKeywords `yaml:"postgraduate" validate:"required"`
}

// TestRange 标准化考试的有效分数区间
type TestRange struct {
	Test string  `yaml:"test" validate:"required"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max" validate:"gtfield=Min"`
}

// Dictionary 只读的规范词典
type Dictionary struct {
	Headings            map[types.SectionType][]string `yaml:"headings" validate:"required,min=1,dive,min=1,dive,required"`
	Skills              []SkillCategory                `yaml:"skills" validate:"required,min=1,dive"`
	SkillAliases        map[string]string              `yaml:"skill_aliases"`
	SkillStopwords      []string                       `yaml:"skill_stopwords"`
	ActionVerbs         []string                       `yaml:"action_verbs" validate:"required,min=1,dive,required"`
	TitleKeywords       []string                       `yaml:"title_keywords" validate:"required,min=1,dive,required"`
	Degrees             Degrees                        `yaml:"degrees" validate:"required"`
	InstitutionKeywords []string                       `yaml:"institution_keywords" validate:"required,min=1,dive,required"`
	OrgSuffixes         []string                       `yaml:"org_suffixes" validate:"dive,required"`
	CertKeywords        []string                       `yaml:"cert_keywords" validate:"required,min=1,dive,required"`
	IssuerKeywords      []string                       `yaml:"issuer_keywords" validate:"dive,required"`
	AwardKeywords       []string                       `yaml:"award_keywords" validate:"required,min=1,dive,required"`
	PublicationKeywords []string                       `yaml:"publication_keywords" validate:"required,min=1,dive,required"`
	Majors              []string                       `yaml:"majors" validate:"dive,required"`
	NameStopwords       []string                       `yaml:"name_stopwords" validate:"dive,required"`
	TestRanges          []TestRange                    `yaml:"test_ranges" validate:"required,min=1,dive"`

	skillIndex map[string]SkillRef
	verbSet    map[string]struct{}
	rangeIndex map[string]TestRange
}

// SkillRef 技能索引项
type SkillRef struct {
	Category  string
	Canonical string
}

var (
	defaultOnce sync.Once
	defaultDict *Dictionary
	defaultErr  error
)

// Default 返回内置词典，只解析一次
func Default() (*Dictionary, error) {
	defaultOnce.Do(func() {
		defaultDict, defaultErr = Load(defaultYAML)
	})
	return defaultDict, defaultErr
}

// LoadFile 从外部文件加载词典，路径为空时返回内置词典
func LoadFile(path string) (*Dictionary, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewConfigurationError("dictionary.load", fmt.Sprintf("读取词典文件 %s 失败", path), err)
	}
	return Load(data)
}

// Load 解析并校验词典。任何结构或语义错误都返回 ConfigurationError
func Load(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, types.NewConfigurationError("dictionary.load", "解析词典YAML失败", err)
	}
	if err := validator.New().Struct(&d); err != nil {
		return nil, types.NewConfigurationError("dictionary.validate", "词典字段校验失败", err)
	}
	if err := d.check(); err != nil {
		return nil, err
	}
	d.buildIndexes()
	return &d, nil
}

// check 做 validator 覆盖不到的语义检查
func (d *Dictionary) check() error {
	for t := range d.Headings {
		if !t.Valid() {
			return types.NewConfigurationError("dictionary.validate", fmt.Sprintf("未知章节类型 %q", t), nil)
		}
	}
	seenVariant := make(map[string]types.SectionType)
	for _, t := range types.AllSectionTypes() {
		for _, v := range d.Headings[t] {
			key := strings.ToLower(strings.TrimSpace(v))
			if prev, ok := seenVariant[key]; ok && prev != t {
				return types.NewConfigurationError("dictionary.validate",
					fmt.Sprintf("标题变体 %q 同时属于 %s 和 %s", v, prev, t), nil)
			}
			seenVariant[key] = t
		}
	}
	seenCat := make(map[string]bool)
	for _, c := range d.Skills {
		if strings.EqualFold(c.Category, "Other") {
			return types.NewConfigurationError("dictionary.validate", "技能分类 Other 为保留名称", nil)
		}
		if seenCat[c.Category] {
			return types.NewConfigurationError("dictionary.validate", fmt.Sprintf("技能分类 %q 重复", c.Category), nil)
		}
		seenCat[c.Category] = true
	}
	for alias, target := range d.SkillAliases {
		if !d.hasSkill(target) {
			return types.NewConfigurationError("dictionary.validate",
				fmt.Sprintf("技能别名 %q 指向未知技能 %q", alias, target), nil)
		}
	}
	seenTest := make(map[string]bool)
	for _, r := range d.TestRanges {
		if r.Min < 0 {
			return types.NewConfigurationError("dictionary.validate", fmt.Sprintf("考试 %s 分数下限为负", r.Test), nil)
		}
		if seenTest[strings.ToUpper(r.Test)] {
			return types.NewConfigurationError("dictionary.validate", fmt.Sprintf("考试 %s 重复", r.Test), nil)
		}
		seenTest[strings.ToUpper(r.Test)] = true
	}
	return nil
}

func (d *Dictionary) hasSkill(name string) bool {
	for _, c := range d.Skills {
		for _, s := range c.Skills {
			if s == name {
				return true
			}
		}
	}
	return false
}

func (d *Dictionary) buildIndexes() {
	d.skillIndex = make(map[string]SkillRef)
	for _, c := range d.Skills {
		for _, s := range c.Skills {
			key := strings.ToLower(s)
			// 同名技能出现在多个分类时以先出现者为准
			if _, ok := d.skillIndex[key]; !ok {
				d.skillIndex[key] = SkillRef{Category: c.Category, Canonical: s}
			}
		}
	}
	for alias, target := range d.SkillAliases {
		key := strings.ToLower(alias)
		if _, ok := d.skillIndex[key]; !ok {
			d.skillIndex[key] = d.skillIndex[strings.ToLower(target)]
		}
	}
	d.verbSet = make(map[string]struct{}, len(d.ActionVerbs))
	for _, v := range d.ActionVerbs {
		d.verbSet[strings.ToLower(v)] = struct{}{}
	}
	d.rangeIndex = make(map[string]TestRange, len(d.TestRanges))
	for _, r := range d.TestRanges {
		r.Test = strings.ToUpper(r.Test)
		d.rangeIndex[r.Test] = r
	}
}

// LookupSkill 大小写不敏感查找技能（含别名）
func (d *Dictionary) LookupSkill(token string) (SkillRef, bool) {
	ref, ok := d.skillIndex[strings.ToLower(strings.TrimSpace(token))]
	return ref, ok
}

// IsActionVerb 判断单词是否为动作动词，做简单的词形还原
func (d *Dictionary) IsActionVerb(word string) bool {
	w := strings.ToLower(strings.Trim(word, ".,;:()"))
	if w == "" {
		return false
	}
	if _, ok := d.verbSet[w]; ok {
		return true
	}
	for _, stem := range verbStems(w) {
		if _, ok := d.verbSet[stem]; ok {
			return true
		}
	}
	return false
}

// verbStems 生成过去式/进行时/第三人称的候选原形
func verbStems(w string) []string {
	var out []string
	switch {
	case strings.HasSuffix(w, "ied") && len(w) > 4:
		out = append(out, w[:len(w)-3]+"y")
	case strings.HasSuffix(w, "ed") && len(w) > 3:
		out = append(out, w[:len(w)-2], w[:len(w)-1])
		if n := len(w) - 2; n >= 2 && w[n-1] == w[n-2] {
			out = append(out, w[:n-1])
		}
	case strings.HasSuffix(w, "ing") && len(w) > 4:
		out = append(out, w[:len(w)-3], w[:len(w)-3]+"e")
	case strings.HasSuffix(w, "es") && len(w) > 3:
		out = append(out, w[:len(w)-2], w[:len(w)-1])
	case strings.HasSuffix(w, "s") && len(w) > 2:
		out = append(out, w[:len(w)-1])
	}
	return out
}

// TestRange 返回考试的有效区间，test 大小写不敏感
func (d *Dictionary) TestRange(test string) (TestRange, bool) {
	r, ok := d.rangeIndex[strings.ToUpper(test)]
	return r, ok
}

// TestRangeMap 返回考试区间的副本，供规范化器使用
func (d *Dictionary) TestRangeMap() map[string]TestRange {
	out := make(map[string]TestRange, len(d.rangeIndex))
	for k, v := range d.rangeIndex {
		out[k] = v
	}
	return out
}

// TestNames 按词典顺序返回考试名称
func (d *Dictionary) TestNames() []string {
	names := make([]string, 0, len(d.TestRanges))
	for _, r := range d.TestRanges {
		names = append(names, strings.ToUpper(r.Test))
	}
	return names
}

// SkillCategories 按词典顺序返回技能分类名
func (d *Dictionary) SkillCategories() []string {
	out := make([]string, 0, len(d.Skills))
	for _, c := range d.Skills {
		out = append(out, c.Category)
	}
	return out
}

// Keywords 返回所有非人名的关键词（小写），用于姓名识别时排除
func (d *Dictionary) Keywords() []string {
	set := make(map[string]struct{})
	add := func(words ...string) {
		for _, w := range words {
			for _, tok := range strings.Fields(strings.ToLower(w)) {
				set[strings.Trim(tok, ".,")] = struct{}{}
			}
		}
	}
	for _, variants := range d.Headings {
		add(variants...)
	}
	add(d.NameStopwords...)
	add(d.TitleKeywords...)
	add(d.InstitutionKeywords...)
	add(d.OrgSuffixes...)
	add(d.Degrees.HighSchool.Words...)
	add(d.Degrees.Undergraduate.Words...)
	add(d.Degrees.Postgraduate.Words...)
	delete(set, "")
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
