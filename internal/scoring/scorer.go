// Package scoring 计算字段置信度与整体质量分
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"parsely-go/internal/types"
)

// 字段置信度 = 方法可靠度·0.5 + 交叉验证·0.2 + 合理性·0.3
const (
	reliabilityWeight  = 0.5
	agreementWeight    = 0.2
	plausibilityWeight = 0.3
)

// MethodReliability 抽取方法的可靠度：ner/regex > heuristic > fallback
var MethodReliability = map[types.ExtractionMethod]float64{
	types.MethodRegex:     0.9,
	types.MethodNER:       0.9,
	types.MethodHeuristic: 0.6,
	types.MethodFallback:  0.3,
}

// DefaultWeights 类别权重，总和为 100
func DefaultWeights() map[types.Category]float64 {
	return map[types.Category]float64{
		types.CategoryName:           15,
		types.CategoryEmail:          10,
		types.CategoryPhone:          10,
		types.CategoryLinks:          5,
		types.CategoryEducation:      20,
		types.CategoryExperience:     20,
		types.CategorySkills:         10,
		types.CategoryCertifications: 5,
		types.CategoryAchievements:   2,
		types.CategoryPublications:   2,
		types.CategoryTestScores:     1,
	}
}

// Scorer 纯函数式评分器，创建后只读，可并发使用
type Scorer struct {
	weights map[types.Category]float64
}

// NewScorer 校验权重：类别必须已知、非负，总和为 100（误差 1e-6）
func NewScorer(weights map[types.Category]float64) (*Scorer, error) {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	known := make(map[types.Category]bool)
	for _, c := range types.AllCategories() {
		known[c] = true
	}

	w := make(map[types.Category]float64, len(weights))
	var unknown []string
	sum := 0.0
	for c, v := range weights {
		if !known[c] {
			unknown = append(unknown, string(c))
			continue
		}
		if v < 0 {
			return nil, types.NewConfigurationError("scorer", fmt.Sprintf("类别 %s 权重为负: %v", c, v), nil)
		}
		w[c] = v
		sum += v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, types.NewConfigurationError("scorer", "未知的评分类别: "+strings.Join(unknown, ", "), nil)
	}
	if math.Abs(sum-100) > 1e-6 {
		return nil, types.NewConfigurationError("scorer", fmt.Sprintf("类别权重之和必须为 100，实际为 %v", sum), nil)
	}
	return &Scorer{weights: w}, nil
}

// Weights 返回权重副本
func (s *Scorer) Weights() map[types.Category]float64 {
	out := make(map[types.Category]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

// FieldConfidence 单字段置信度，结果限制在 [0,1]
func FieldConfidence(ev types.FieldEvidence) float64 {
	rel, ok := MethodReliability[ev.Method]
	if !ok {
		rel = MethodReliability[types.MethodFallback]
	}
	v := reliabilityWeight*rel + agreementWeight*clamp01(ev.Agreement) + plausibilityWeight*clamp01(ev.Plausibility)
	return clamp01(v)
}

// Score 计算置信度报告。类别分 = 该类字段置信度均值，缺失类别记 0；
// 质量分 = Σ 权重·类别分，保留两位小数
func (s *Scorer) Score(draft *types.DraftSchema) *types.ConfidenceReport {
	report := &types.ConfidenceReport{
		Categories: make(map[types.Category]float64, len(s.weights)),
		Fields:     []types.FieldConfidence{},
	}
	for _, c := range types.AllCategories() {
		report.Categories[c] = 0
	}
	if draft == nil {
		return report
	}

	sums := map[types.Category]float64{}
	counts := map[types.Category]int{}
	total := 0.0
	for _, ev := range draft.Evidence {
		conf := FieldConfidence(ev)
		report.Fields = append(report.Fields, types.FieldConfidence{
			Category:   ev.Category,
			Field:      ev.Field,
			Section:    ev.Section,
			Method:     ev.Method,
			Confidence: round(conf, 4),
		})
		sums[ev.Category] += conf
		counts[ev.Category]++
		total += conf
	}

	quality := 0.0
	for _, c := range types.AllCategories() {
		if counts[c] == 0 {
			continue
		}
		mean := clamp01(sums[c] / float64(counts[c]))
		report.Categories[c] = round(mean, 4)
		quality += s.weights[c] * mean
	}
	report.QualityScore = clamp(round(quality, 2), 0, 100)
	if len(draft.Evidence) > 0 {
		report.ConfidencePercentage = clamp(round(total/float64(len(draft.Evidence))*100, 2), 0, 100)
	}
	return report
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
