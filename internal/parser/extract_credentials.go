package parser

import (
	"strings"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/types"
)

// credentialExtractor 证书与获奖共用：按关键词计数分类，平局时取章节类型
type credentialExtractor struct {
	certKeywords   []string
	issuerKeywords []string
	awardKeywords  []string
}

func newCredentialExtractor(dict *dictionary.Dictionary) *credentialExtractor {
	return &credentialExtractor{
		certKeywords:   dict.CertKeywords,
		issuerKeywords: dict.IssuerKeywords,
		awardKeywords:  dict.AwardKeywords,
	}
}

func (e *credentialExtractor) Extract(s types.Section) []types.ExtractionField {
	var out []types.ExtractionField
	seen := make(map[string]bool)
	for _, ln := range contentLines(s.Content) {
		if len([]rune(ln)) < 3 {
			continue
		}
		key := strings.ToLower(collapseSpaces(ln))
		if seen[key] {
			continue
		}
		seen[key] = true

		issuer, hasIssuer := firstKeyword(ln, e.issuerKeywords)
		certHits := countKeywords(ln, e.certKeywords)
		if hasIssuer {
			certHits++
		}
		awardHits := countKeywords(ln, e.awardKeywords)

		name := types.FieldAchievement
		switch {
		case certHits > awardHits:
			name = types.FieldCertification
		case certHits == awardHits && s.Type == types.SectionCertifications:
			name = types.FieldCertification
		}

		// 关键词决定分类时记为 regex，只能依靠章节类型兜底时记为 heuristic
		method := types.MethodRegex
		if certHits == awardHits {
			method = types.MethodHeuristic
		}
		attrs := map[string]string{types.AttrYear: latestYear(ln)}
		if name == types.FieldCertification && hasIssuer {
			attrs[types.AttrIssuer] = issuer
		}
		out = append(out, newField(name, ln, s, method, attrs))
	}
	return out
}
