package types

import "sort"

// SectionType 表示简历章节的规范类型
type SectionType string

const (
	// SectionHeader 头部/联系方式章节（第一个标题之前的文本）
	SectionHeader SectionType = "HEADER"
	// SectionEducation 教育经历章节
	SectionEducation SectionType = "EDUCATION"
	// SectionExperience 工作经历章节
	SectionExperience SectionType = "EXPERIENCE"
	// SectionSkills 技能章节
	SectionSkills SectionType = "SKILLS"
	// SectionCertifications 证书章节
	SectionCertifications SectionType = "CERTIFICATIONS"
	// SectionAchievements 获奖/荣誉章节
	SectionAchievements SectionType = "ACHIEVEMENTS"
	// SectionPublications 论文发表章节
	SectionPublications SectionType = "PUBLICATIONS"
	// SectionTestScores 标准化考试成绩章节
	SectionTestScores SectionType = "TEST_SCORES"
	// SectionSummary 个人简介章节
	SectionSummary SectionType = "SUMMARY"
	// SectionOther 未分类内容
	SectionOther SectionType = "OTHER"
)

// sectionTypeOrder 固定的类型顺序，所有需要遍历类型的地方都按此顺序，保证确定性
var sectionTypeOrder = []SectionType{
	SectionHeader,
	SectionSummary,
	SectionEducation,
	SectionExperience,
	SectionSkills,
	SectionCertifications,
	SectionAchievements,
	SectionPublications,
	SectionTestScores,
	SectionOther,
}

// AllSectionTypes 按固定顺序返回全部规范章节类型
func AllSectionTypes() []SectionType {
	out := make([]SectionType, len(sectionTypeOrder))
	copy(out, sectionTypeOrder)
	return out
}

// Valid 判断是否为已知的规范类型
func (t SectionType) Valid() bool {
	for _, known := range sectionTypeOrder {
		if t == known {
			return true
		}
	}
	return false
}

// RawDocument 单次解析调用的输入文档
type RawDocument struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Section 分段器产出的章节，创建后不可修改。
// Start/End 为原文中的字节偏移 [Start, End)，Content = text[BodyStart:End]。
type Section struct {
	Type              SectionType `json:"type"`
	Heading           string      `json:"heading,omitempty"`
	HeadingConfidence float64     `json:"heading_confidence"`
	Start             int         `json:"start"`
	BodyStart         int         `json:"body_start"`
	End               int         `json:"end"`
	Ordinal           int         `json:"ordinal"`
	Content           string      `json:"-"`
}

// Len 返回章节跨度长度
func (s Section) Len() int {
	return s.End - s.Start
}

// Ref 返回章节引用，用于字段溯源
func (s Section) Ref() SectionRef {
	return SectionRef{Type: s.Type, Ordinal: s.Ordinal}
}

// SectionRef 字段来源章节引用
type SectionRef struct {
	Type    SectionType `json:"type"`
	Ordinal int         `json:"ordinal"`
}

// ExtractionMethod 字段抽取方法标签
type ExtractionMethod string

const (
	MethodRegex     ExtractionMethod = "regex"
	MethodNER       ExtractionMethod = "ner"
	MethodHeuristic ExtractionMethod = "heuristic"
	// MethodFallback 只在评分阶段出现，表示没有可靠来源的兜底值
	MethodFallback ExtractionMethod = "fallback"
)

// FieldName 抽取字段名称
type FieldName string

const (
	FieldPersonName    FieldName = "name"
	FieldEmail         FieldName = "email"
	FieldPhone         FieldName = "phone"
	FieldURL           FieldName = "url"
	FieldLinkedIn      FieldName = "linkedin"
	FieldGitHub        FieldName = "github"
	FieldEducation     FieldName = "education"
	FieldExperience    FieldName = "experience"
	FieldSkill         FieldName = "skill"
	FieldCertification FieldName = "certification"
	FieldAchievement   FieldName = "achievement"
	FieldPublication   FieldName = "publication"
	FieldTestScore     FieldName = "test_score"
)

// 字段属性键
const (
	AttrCrossValidated = "cross_validated" // "true" 表示两个独立信号一致, "false" 表示冲突
	AttrHeuristicValue = "heuristic"
	AttrDegree         = "degree"
	AttrMajor          = "major"
	AttrInstitution    = "institution"
	AttrYear           = "year"
	AttrGPA            = "gpa"
	AttrLevel          = "level"
	AttrTitle          = "title"
	AttrOrganization   = "organization"
	AttrStart          = "start"
	AttrEnd            = "end"
	AttrBullets        = "bullets"
	AttrCategory       = "category"
	AttrIssuer         = "issuer"
	AttrVenue          = "venue"
	AttrTest           = "test"
	AttrPartial        = "partial"
)

// 教育层级
const (
	LevelHighSchool    = "high_school"
	LevelUndergraduate = "undergraduate"
	LevelPostgraduate  = "postgraduate"
)

// ExtractionField 抽取器产出的原始字段，作为规范化的输入
type ExtractionField struct {
	Name       FieldName         `json:"name"`
	Value      string            `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Section    SectionRef        `json:"section"`
	Method     ExtractionMethod  `json:"method"`
}

// Attr 读取属性，不存在时返回空串
func (f ExtractionField) Attr(key string) string {
	if f.Attributes == nil {
		return ""
	}
	return f.Attributes[key]
}

// GPA 成绩及其满分
type GPA struct {
	Value float64 `json:"value"`
	Scale float64 `json:"scale"`
}

// EducationEntry 规范化后的教育经历
type EducationEntry struct {
	Degree         string `json:"degree,omitempty"`
	Major          string `json:"major,omitempty"`
	Institution    string `json:"institution,omitempty"`
	GraduationYear *int   `json:"graduationYear,omitempty"`
	GPA            *GPA   `json:"gpa,omitempty"`
}

// Education 按层级归档的教育经历
type Education struct {
	HighSchool    *EducationEntry `json:"highSchool,omitempty"`
	Undergraduate *EducationEntry `json:"undergraduate,omitempty"`
	Postgraduate  *EducationEntry `json:"postgraduate,omitempty"`
}

// ExperienceEntry 规范化后的工作经历，EndYear 为 nil 表示至今
type ExperienceEntry struct {
	Title        string   `json:"title"`
	Organization string   `json:"organization"`
	StartYear    *int     `json:"startYear"`
	EndYear      *int     `json:"endYear"`
	Bullets      []string `json:"bullets"`
}

// CertificationEntry 证书
type CertificationEntry struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Year   *int   `json:"year,omitempty"`
}

// PublicationEntry 论文
type PublicationEntry struct {
	Title string `json:"title"`
	Venue string `json:"venue,omitempty"`
	Year  *int   `json:"year,omitempty"`
}

// TestScoreEntry 考试成绩
type TestScoreEntry struct {
	Test  string  `json:"test"`
	Score float64 `json:"score"`
}

// ResumeSchema 最终输出的结构化简历，组装完成后不再修改
type ResumeSchema struct {
	Name                 string               `json:"name"`
	Emails               []string             `json:"emails"`
	Phones               []string             `json:"phones"`
	URLs                 []string             `json:"urls"`
	LinkedInHandles      []string             `json:"linkedin_handles"`
	GitHubHandles        []string             `json:"github_handles"`
	Education            Education            `json:"education"`
	WorkExperience       []ExperienceEntry    `json:"workExperience"`
	Certifications       []CertificationEntry `json:"certifications"`
	Achievements         []string             `json:"achievements"`
	Publications         []PublicationEntry   `json:"publications"`
	TestScores           map[string]float64   `json:"testScores"`
	Skills               map[string][]string  `json:"skills"`
	ResumeQualityScore   float64              `json:"resume_quality_score"`
	ConfidencePercentage *float64             `json:"confidence_percentage,omitempty"`
}

// NewEmptySchema 返回所有集合均已初始化的空 schema，序列化时输出 [] / {} 而不是 null
func NewEmptySchema() *ResumeSchema {
	return &ResumeSchema{
		Emails:          []string{},
		Phones:          []string{},
		URLs:            []string{},
		LinkedInHandles: []string{},
		GitHubHandles:   []string{},
		WorkExperience:  []ExperienceEntry{},
		Certifications:  []CertificationEntry{},
		Achievements:    []string{},
		Publications:    []PublicationEntry{},
		TestScores:      map[string]float64{},
		Skills:          map[string][]string{},
	}
}

// NLPModel 选择外部实体识别能力
type NLPModel string

const (
	NLPModelFast     NLPModel = "fast"
	NLPModelAccurate NLPModel = "accurate"
)

// ParseNLPModel 解析模型名称，空串返回 fast
func ParseNLPModel(s string) (NLPModel, bool) {
	switch NLPModel(s) {
	case "", NLPModelFast:
		return NLPModelFast, true
	case NLPModelAccurate:
		return NLPModelAccurate, true
	}
	return NLPModelFast, false
}

// ParseOptions 解析选项
type ParseOptions struct {
	IncludeConfidence bool     `json:"include_confidence"`
	NLPModel          NLPModel `json:"nlp_model"`
}

// Intptr 返回 int 指针
func Intptr(v int) *int {
	return &v
}

// SortedSkillCategories 技能类别按字母序，Other 排最后
func SortedSkillCategories(skills map[string][]string) []string {
	cats := make([]string, 0, len(skills))
	for c := range skills {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if (cats[i] == "Other") != (cats[j] == "Other") {
			return cats[j] == "Other"
		}
		return cats[i] < cats[j]
	})
	return cats
}
