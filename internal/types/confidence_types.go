package types

// Category 质量评分的顶层类别
type Category string

const (
	CategoryName           Category = "name"
	CategoryEmail          Category = "email"
	CategoryPhone          Category = "phone"
	CategoryLinks          Category = "links"
	CategoryEducation      Category = "education"
	CategoryExperience     Category = "experience"
	CategorySkills         Category = "skills"
	CategoryCertifications Category = "certifications"
	CategoryAchievements   Category = "achievements"
	CategoryPublications   Category = "publications"
	CategoryTestScores     Category = "test_scores"
)

var categoryOrder = []Category{
	CategoryName,
	CategoryEmail,
	CategoryPhone,
	CategoryLinks,
	CategoryEducation,
	CategoryExperience,
	CategorySkills,
	CategoryCertifications,
	CategoryAchievements,
	CategoryPublications,
	CategoryTestScores,
}

// AllCategories 固定顺序的全部类别
func AllCategories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// FieldEvidence 规范化后单个字段的评分依据
type FieldEvidence struct {
	Category Category         `json:"category"`
	Field    FieldName        `json:"field"`
	Section  SectionRef       `json:"section"`
	Method   ExtractionMethod `json:"method"`
	// Agreement 交叉验证一致度：1 一致, 0.5 无第二信号, 0 冲突
	Agreement float64 `json:"agreement"`
	// Plausibility 取值合理性 [0,1]
	Plausibility float64 `json:"plausibility"`
}

// DraftSchema 评分器的输入：schema 及其字段证据
type DraftSchema struct {
	Schema   *ResumeSchema
	Evidence []FieldEvidence
}

// FieldConfidence 单字段置信度
type FieldConfidence struct {
	Category   Category         `json:"category"`
	Field      FieldName        `json:"field"`
	Section    SectionRef       `json:"section"`
	Method     ExtractionMethod `json:"method"`
	Confidence float64          `json:"confidence"`
}

// ConfidenceReport 置信度报告。类别分数在 [0,1]，质量分在 [0,100]
type ConfidenceReport struct {
	Categories           map[Category]float64 `json:"categories"`
	Fields               []FieldConfidence    `json:"fields"`
	ConfidencePercentage float64              `json:"confidence_percentage"`
	QualityScore         float64              `json:"quality_score"`
}
