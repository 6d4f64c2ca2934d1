// Package ner 提供命名实体识别能力。fast 模型为进程内规则识别，accurate 模型调用远程 NER 服务。
package ner

import (
	"context"
	"strings"
	"unicode"
)

// 实体标签
const (
	LabelPerson = "PERSON"
	LabelOrg    = "ORG"
)

// Entity 识别出的实体
type Entity struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// EntityRecognizer 实体识别接口，外部能力视为黑盒
type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// FirstPerson 返回第一个 PERSON 实体
func FirstPerson(entities []Entity) (string, bool) {
	for _, e := range entities {
		if e.Label == LabelPerson && strings.TrimSpace(e.Text) != "" {
			return strings.TrimSpace(e.Text), true
		}
	}
	return "", false
}

// RuleRecognizer 基于大小写模式的规则识别器。
// 连续 2-3 个形如 "Xxxx" 的词且不含关键词识别为 PERSON，含机构后缀的大写词串识别为 ORG。
type RuleRecognizer struct {
	keywords    map[string]struct{}
	orgSuffixes map[string]struct{}
	particles   map[string]struct{}
}

// NewRuleRecognizer 创建规则识别器。keywords 为不可能出现在人名里的词（小写）
func NewRuleRecognizer(keywords, orgSuffixes []string) *RuleRecognizer {
	r := &RuleRecognizer{
		keywords:    toSet(keywords),
		orgSuffixes: toSet(orgSuffixes),
		particles:   toSet([]string{"van", "von", "de", "da", "del", "der", "di", "le", "la", "bin", "al"}),
	}
	return r
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}

// Recognize 逐行扫描，实体不跨行
func (r *RuleRecognizer) Recognize(_ context.Context, text string) ([]Entity, error) {
	var out []Entity
	for _, line := range strings.Split(text, "\n") {
		out = append(out, r.recognizeLine(line)...)
	}
	return out, nil
}

func (r *RuleRecognizer) recognizeLine(line string) []Entity {
	var out []Entity
	var run []string
	flush := func() {
		if len(run) == 0 {
			return
		}
		if ent, ok := r.classifyRun(run); ok {
			out = append(out, ent)
		}
		run = run[:0]
	}
	for _, raw := range strings.Fields(line) {
		tok := strings.Trim(raw, ",;:()[]\"'")
		breaks := tok != raw && strings.ContainsAny(raw, ",;:()[]")
		if isCapitalized(tok) || (len(run) > 0 && r.isParticle(tok)) {
			run = append(run, tok)
		} else {
			flush()
		}
		if breaks {
			flush()
		}
	}
	flush()
	return out
}

func (r *RuleRecognizer) isParticle(tok string) bool {
	_, ok := r.particles[strings.ToLower(tok)]
	return ok
}

func (r *RuleRecognizer) classifyRun(run []string) (Entity, bool) {
	// 去掉末尾的连接词
	for len(run) > 0 && r.isParticle(run[len(run)-1]) {
		run = run[:len(run)-1]
	}
	if len(run) == 0 {
		return Entity{}, false
	}
	last := strings.ToLower(strings.TrimSuffix(run[len(run)-1], "."))
	if _, ok := r.orgSuffixes[last]; ok {
		return Entity{Label: LabelOrg, Text: strings.Join(run, " ")}, true
	}
	if _, ok := r.orgSuffixes[last+"."]; ok {
		return Entity{Label: LabelOrg, Text: strings.Join(run, " ")}, true
	}
	if len(run) < 2 || len(run) > 3 {
		return Entity{}, false
	}
	for _, tok := range run {
		if _, kw := r.keywords[strings.ToLower(tok)]; kw {
			return Entity{}, false
		}
		if !isNameShaped(tok) && !r.isParticle(tok) {
			return Entity{}, false
		}
	}
	return Entity{Label: LabelPerson, Text: strings.Join(run, " ")}, true
}

// isCapitalized 首字母大写
func isCapitalized(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}

// isNameShaped 首字母大写、其余为小写字母，允许连字符和撇号，如 O'Neil、Jean-Luc
func isNameShaped(tok string) bool {
	runes := []rune(tok)
	if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for i, r := range runes[1:] {
		switch {
		case unicode.IsLower(r):
		case (r == '-' || r == '\'') && i+2 < len(runes):
		case unicode.IsUpper(r) && i > 0 && (runes[i] == '-' || runes[i] == '\''):
		default:
			return false
		}
	}
	return true
}
