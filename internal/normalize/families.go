package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"parsely-go/internal/types"
)

// 证据取值
const (
	agreementConfirmed = 1.0
	agreementSingle    = 0.5
	agreementConflict  = 0.0
)

const endPresent = "present"

var (
	yearTokenRe  = regexp.MustCompile(`\(?\b(?:19|20)\d{2}\b\)?`)
	schoolWordRe = regexp.MustCompile(`(?i)\bschool\b`)
)

// family 一个字段族的规范化步骤。apply 只写自己负责的 schema 字段，
// 失败时 reset 把这些字段恢复为空
type family struct {
	category types.Category
	apply    func(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error
	reset    func(s *types.ResumeSchema)
}

var families = []family{
	{types.CategoryName, applyName, func(s *types.ResumeSchema) { s.Name = "" }},
	{types.CategoryEmail, applyEmails, func(s *types.ResumeSchema) { s.Emails = []string{} }},
	{types.CategoryPhone, applyPhones, func(s *types.ResumeSchema) { s.Phones = []string{} }},
	{types.CategoryLinks, applyLinks, func(s *types.ResumeSchema) {
		s.URLs, s.LinkedInHandles, s.GitHubHandles = []string{}, []string{}, []string{}
	}},
	{types.CategoryEducation, applyEducation, func(s *types.ResumeSchema) { s.Education = types.Education{} }},
	{types.CategoryExperience, applyExperience, func(s *types.ResumeSchema) { s.WorkExperience = []types.ExperienceEntry{} }},
	{types.CategorySkills, applySkills, func(s *types.ResumeSchema) { s.Skills = map[string][]string{} }},
	{types.CategoryCertifications, applyCertifications, func(s *types.ResumeSchema) { s.Certifications = []types.CertificationEntry{} }},
	{types.CategoryAchievements, applyAchievements, func(s *types.ResumeSchema) { s.Achievements = []string{} }},
	{types.CategoryPublications, applyPublications, func(s *types.ResumeSchema) { s.Publications = []types.PublicationEntry{} }},
	{types.CategoryTestScores, applyTestScores, func(s *types.ResumeSchema) { s.TestScores = map[string]float64{} }},
}

// Build 把抽取字段规范化为草稿 schema 与评分证据。
// 返回的错误都是可恢复的：被拒绝的值已被丢弃；某个字段族 panic 时该族清空并丢弃其证据
func (n *Normalizer) Build(fields []types.ExtractionField) (*types.DraftSchema, []error) {
	draft := &types.DraftSchema{Schema: types.NewEmptySchema()}
	var errs []error
	for _, fam := range families {
		errs = append(errs, n.runFamily(fam, fields, draft)...)
	}
	return draft, errs
}

func (n *Normalizer) runFamily(fam family, fields []types.ExtractionField, draft *types.DraftSchema) (errs []error) {
	mark := len(draft.Evidence)
	defer func() {
		if rec := recover(); rec != nil {
			fam.reset(draft.Schema)
			draft.Evidence = draft.Evidence[:mark]
			errs = append(errs, fmt.Errorf("规范化字段族 %s 失败: %v", fam.category, rec))
		}
	}()
	return fam.apply(n, fields, draft)
}

func filterFields(fields []types.ExtractionField, names ...types.FieldName) []types.ExtractionField {
	var out []types.ExtractionField
	for _, f := range fields {
		for _, name := range names {
			if f.Name == name {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func evidence(c types.Category, f types.ExtractionField, agreement, plausibility float64) types.FieldEvidence {
	return types.FieldEvidence{
		Category:     c,
		Field:        f.Name,
		Section:      f.Section,
		Method:       f.Method,
		Agreement:    agreement,
		Plausibility: plausibility,
	}
}

// applyName 取第一个通过规范化的姓名
func applyName(_ *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	for _, f := range filterFields(fields, types.FieldPersonName) {
		name, err := Name(f.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		agreement := agreementSingle
		switch f.Attr(types.AttrCrossValidated) {
		case "true":
			agreement = agreementConfirmed
		case "false":
			agreement = agreementConflict
		}
		d.Schema.Name = name
		d.Evidence = append(d.Evidence, evidence(types.CategoryName, f, agreement, namePlausibility(name)))
		return errs
	}
	return errs
}

// namePlausibility 2-5 个纯字母词视为合理
func namePlausibility(name string) float64 {
	tokens := strings.Fields(name)
	if len(tokens) < 2 || len(tokens) > 5 {
		return 0.5
	}
	for _, tok := range tokens {
		for _, r := range tok {
			if !unicode.IsLetter(r) && r != '.' && r != '-' && r != '\'' {
				return 0.5
			}
		}
	}
	return 1
}

// applyList 通用的"规范化 + 去重"列表族
func applyList(c types.Category, fields []types.ExtractionField, fn func(string) (string, error), target *[]string, d *types.DraftSchema) []error {
	var errs []error
	seen := make(map[string]bool)
	for _, f := range fields {
		v, err := fn(f.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		*target = append(*target, v)
		d.Evidence = append(d.Evidence, evidence(c, f, agreementSingle, 1))
	}
	return errs
}

func applyEmails(_ *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	return applyList(types.CategoryEmail, filterFields(fields, types.FieldEmail), Email, &d.Schema.Emails, d)
}

func applyPhones(_ *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	return applyList(types.CategoryPhone, filterFields(fields, types.FieldPhone), Phone, &d.Schema.Phones, d)
}

func applyLinks(_ *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	errs = append(errs, applyList(types.CategoryLinks, filterFields(fields, types.FieldURL), URL, &d.Schema.URLs, d)...)
	errs = append(errs, applyList(types.CategoryLinks, filterFields(fields, types.FieldLinkedIn), Handle, &d.Schema.LinkedInHandles, d)...)
	errs = append(errs, applyList(types.CategoryLinks, filterFields(fields, types.FieldGitHub), Handle, &d.Schema.GitHubHandles, d)...)
	return errs
}

type educationCandidate struct {
	entry     types.EducationEntry
	level     string
	field     types.ExtractionField
	checks    int
	passed    int
	schoolish bool
}

func (n *Normalizer) educationCandidate(f types.ExtractionField) (educationCandidate, []error) {
	var errs []error
	c := educationCandidate{
		level: f.Attr(types.AttrLevel),
		field: f,
		entry: types.EducationEntry{
			Degree:      Whitespace(f.Attr(types.AttrDegree)),
			Major:       Whitespace(f.Attr(types.AttrMajor)),
			Institution: Whitespace(f.Attr(types.AttrInstitution)),
		},
	}
	if raw := f.Attr(types.AttrYear); raw != "" {
		c.checks++
		if y, err := n.Year(raw); err == nil {
			c.entry.GraduationYear = types.Intptr(y)
			c.passed++
		} else {
			errs = append(errs, err)
		}
	}
	if raw := f.Attr(types.AttrGPA); raw != "" {
		c.checks++
		if g, err := ParseGPA(raw); err == nil {
			c.entry.GPA = &g
			c.passed++
		} else {
			errs = append(errs, err)
		}
	}
	c.schoolish = schoolWordRe.MatchString(c.entry.Institution) || schoolWordRe.MatchString(c.entry.Degree)
	return c, errs
}

// applyEducation 有学位关键词的条目按层级直接归档；其余按毕业年份升序依次填入空位，
// 早的进低层级。没有 "school" 字样且条目少于空位时不占用高中位
func applyEducation(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	slots := map[string]*educationCandidate{}
	var unknown []educationCandidate

	for _, f := range filterFields(fields, types.FieldEducation) {
		c, cerrs := n.educationCandidate(f)
		errs = append(errs, cerrs...)
		if c.level == "" {
			unknown = append(unknown, c)
			continue
		}
		if _, taken := slots[c.level]; taken {
			continue
		}
		cc := c
		slots[c.level] = &cc
	}

	var free []string
	for _, level := range []string{types.LevelHighSchool, types.LevelUndergraduate, types.LevelPostgraduate} {
		if _, taken := slots[level]; !taken {
			free = append(free, level)
		}
	}
	sort.SliceStable(unknown, func(i, j int) bool {
		yi, yj := unknown[i].entry.GraduationYear, unknown[j].entry.GraduationYear
		if yi == nil || yj == nil {
			return yi != nil && yj == nil
		}
		return *yi < *yj
	})
	if len(free) > 0 && free[0] == types.LevelHighSchool && len(unknown) < len(free) {
		schoolish := false
		for _, c := range unknown {
			schoolish = schoolish || c.schoolish
		}
		if !schoolish {
			free = free[1:]
		}
	}
	chrono := map[string]bool{}
	for i := 0; i < len(unknown) && i < len(free); i++ {
		c := unknown[i]
		slots[free[i]] = &c
		chrono[free[i]] = true
	}

	for _, level := range []string{types.LevelHighSchool, types.LevelUndergraduate, types.LevelPostgraduate} {
		c, ok := slots[level]
		if !ok {
			continue
		}
		entry := c.entry
		switch level {
		case types.LevelHighSchool:
			d.Schema.Education.HighSchool = &entry
		case types.LevelUndergraduate:
			d.Schema.Education.Undergraduate = &entry
		case types.LevelPostgraduate:
			d.Schema.Education.Postgraduate = &entry
		}
		agreement := agreementConfirmed
		if chrono[level] {
			agreement = agreementSingle
		}
		plausibility := 0.5
		if c.checks > 0 {
			plausibility = float64(c.passed) / float64(c.checks)
		}
		d.Evidence = append(d.Evidence, evidence(types.CategoryEducation, c.field, agreement, plausibility))
	}
	return errs
}

type experienceCandidate struct {
	entry  types.ExperienceEntry
	field  types.ExtractionField
	checks int
	passed int
	merged bool
}

func (n *Normalizer) experienceCandidate(f types.ExtractionField) (experienceCandidate, []error) {
	var errs []error
	c := experienceCandidate{
		field: f,
		entry: types.ExperienceEntry{
			Title:        Whitespace(f.Attr(types.AttrTitle)),
			Organization: Whitespace(f.Attr(types.AttrOrganization)),
			Bullets:      []string{},
		},
	}
	if raw := f.Attr(types.AttrStart); raw != "" {
		c.checks++
		if y, err := n.Year(raw); err == nil {
			c.entry.StartYear = types.Intptr(y)
			c.passed++
		} else {
			errs = append(errs, err)
		}
	}
	switch raw := f.Attr(types.AttrEnd); raw {
	case endPresent:
	case "":
		// 单个年份的条目起止同年
		if c.entry.StartYear != nil {
			c.entry.EndYear = types.Intptr(*c.entry.StartYear)
		}
	default:
		c.checks++
		if y, err := n.Year(raw); err == nil {
			c.entry.EndYear = types.Intptr(y)
			c.passed++
		} else {
			errs = append(errs, err)
		}
	}
	if c.entry.StartYear != nil && c.entry.EndYear != nil {
		c.checks++
		if *c.entry.EndYear >= *c.entry.StartYear {
			c.passed++
		}
	}
	for _, b := range strings.Split(f.Attr(types.AttrBullets), "\n") {
		if b = Whitespace(b); b != "" {
			c.entry.Bullets = append(c.entry.Bullets, b)
		}
	}
	c.entry.Bullets = Dedup(c.entry.Bullets)
	return c, errs
}

// Overlaps 两段经历时间是否重叠，EndYear 为 nil 视为至今。无开始年份的条目不参与比较
func Overlaps(a, b types.ExperienceEntry, currentYear int) bool {
	if a.StartYear == nil || b.StartYear == nil {
		return false
	}
	endA, endB := currentYear, currentYear
	if a.EndYear != nil {
		endA = *a.EndYear
	}
	if b.EndYear != nil {
		endB = *b.EndYear
	}
	return *a.StartYear <= endB && *b.StartYear <= endA
}

// MergeExperience 合并同一组织的两段重叠经历：要点取并集，开始取最早，任一方至今则结果至今
func MergeExperience(a, b types.ExperienceEntry) types.ExperienceEntry {
	out := a
	out.Bullets = Dedup(append(append([]string{}, a.Bullets...), b.Bullets...))
	if out.Title == "" {
		out.Title = b.Title
	}
	if b.StartYear != nil && (out.StartYear == nil || *b.StartYear < *out.StartYear) {
		out.StartYear = types.Intptr(*b.StartYear)
	}
	switch {
	case a.EndYear == nil || b.EndYear == nil:
		out.EndYear = nil
	case *b.EndYear > *a.EndYear:
		out.EndYear = types.Intptr(*b.EndYear)
	}
	return out
}

func applyExperience(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	var cands []experienceCandidate
	for _, f := range filterFields(fields, types.FieldExperience) {
		c, cerrs := n.experienceCandidate(f)
		errs = append(errs, cerrs...)
		cands = append(cands, c)
	}
	merged := mergeCandidates(cands, n.currentYear)

	for _, c := range merged {
		d.Schema.WorkExperience = append(d.Schema.WorkExperience, c.entry)
		agreement := agreementSingle
		if c.merged {
			agreement = agreementConfirmed
		}
		plausibility := 0.5
		if c.checks > 0 {
			plausibility = float64(c.passed) / float64(c.checks)
		}
		d.Evidence = append(d.Evidence, evidence(types.CategoryExperience, c.field, agreement, plausibility))
	}
	return errs
}

// mergeCandidates 反复合并同组织且时间重叠的条目直到不再变化，
// 合并后时间范围变宽可能与更早保留的条目重叠。结果保持首次出现的顺序
func mergeCandidates(cands []experienceCandidate, currentYear int) []experienceCandidate {
	merged := append([]experienceCandidate(nil), cands...)
	for changed := true; changed; {
		changed = false
	scan:
		for i := range merged {
			for j := i + 1; j < len(merged); j++ {
				if !sameRole(merged[i].entry, merged[j].entry, currentYear) {
					continue
				}
				m := &merged[i]
				m.entry = MergeExperience(m.entry, merged[j].entry)
				m.merged = true
				m.checks += merged[j].checks
				m.passed += merged[j].passed
				merged = append(merged[:j], merged[j+1:]...)
				changed = true
				break scan
			}
		}
	}
	return merged
}

func sameRole(a, b types.ExperienceEntry, currentYear int) bool {
	return a.Organization != "" &&
		strings.EqualFold(a.Organization, b.Organization) &&
		Overlaps(a, b, currentYear)
}

type skillCandidate struct {
	category  string
	name      string
	field     types.ExtractionField
	inSkills  bool
	inSummary bool
}

// applySkills 技能章节与简介中提到的技能合并；两处都出现的技能交叉验证通过
func applySkills(_ *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	index := map[string]int{}
	var cands []skillCandidate
	for _, f := range filterFields(fields, types.FieldSkill) {
		category := Whitespace(f.Attr(types.AttrCategory))
		name := Whitespace(f.Value)
		if category == "" || name == "" {
			continue
		}
		key := strings.ToLower(category + "\x00" + name)
		i, ok := index[key]
		if !ok {
			i = len(cands)
			index[key] = i
			cands = append(cands, skillCandidate{category: category, name: name, field: f})
		}
		c := &cands[i]
		if f.Section.Type == types.SectionSummary {
			c.inSummary = true
		} else {
			c.inSkills = true
		}
		if f.Method == types.MethodRegex && c.field.Method != types.MethodRegex {
			c.field.Method = types.MethodRegex
		}
	}

	for _, c := range cands {
		d.Schema.Skills[c.category] = append(d.Schema.Skills[c.category], c.name)
		agreement := agreementSingle
		if c.inSkills && c.inSummary {
			agreement = agreementConfirmed
		}
		plausibility := 1.0
		if c.field.Method != types.MethodRegex {
			plausibility = 0.5
		}
		d.Evidence = append(d.Evidence, evidence(types.CategorySkills, c.field, agreement, plausibility))
	}
	return nil
}

// credentialAgreement 关键词分类与章节类型一致为 1，冲突为 0，仅靠章节兜底为 0.5
func credentialAgreement(f types.ExtractionField, sectionType types.SectionType) float64 {
	if f.Method == types.MethodHeuristic {
		return agreementSingle
	}
	if f.Section.Type == sectionType {
		return agreementConfirmed
	}
	return agreementConflict
}

// stripYears 去掉条目文本中的年份
func stripYears(s string) string {
	return Text(yearTokenRe.ReplaceAllString(s, ""))
}

func (n *Normalizer) optionalYear(raw string) (*int, float64, error) {
	if raw == "" {
		return nil, 1, nil
	}
	y, err := n.Year(raw)
	if err != nil {
		return nil, 0, err
	}
	return types.Intptr(y), 1, nil
}

func applyCertifications(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	seen := map[string]bool{}
	for _, f := range filterFields(fields, types.FieldCertification) {
		name := stripYears(f.Value)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		year, plausibility, err := n.optionalYear(f.Attr(types.AttrYear))
		if err != nil {
			errs = append(errs, err)
		}
		d.Schema.Certifications = append(d.Schema.Certifications, types.CertificationEntry{
			Name:   name,
			Issuer: Whitespace(f.Attr(types.AttrIssuer)),
			Year:   year,
		})
		d.Evidence = append(d.Evidence, evidence(types.CategoryCertifications, f,
			credentialAgreement(f, types.SectionCertifications), plausibility))
	}
	return errs
}

func applyAchievements(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	seen := map[string]bool{}
	for _, f := range filterFields(fields, types.FieldAchievement) {
		text := Text(f.Value)
		key := strings.ToLower(text)
		if text == "" || seen[key] {
			continue
		}
		seen[key] = true
		_, plausibility, err := n.optionalYear(f.Attr(types.AttrYear))
		if err != nil {
			errs = append(errs, err)
		}
		d.Schema.Achievements = append(d.Schema.Achievements, text)
		d.Evidence = append(d.Evidence, evidence(types.CategoryAchievements, f,
			credentialAgreement(f, types.SectionAchievements), plausibility))
	}
	return errs
}

func applyPublications(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	seen := map[string]bool{}
	for _, f := range filterFields(fields, types.FieldPublication) {
		title := Text(f.Value)
		key := strings.ToLower(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		year, plausibility, err := n.optionalYear(f.Attr(types.AttrYear))
		if err != nil {
			errs = append(errs, err)
		}
		agreement := agreementConfirmed
		if f.Attr(types.AttrPartial) == "true" {
			agreement = agreementSingle
			plausibility *= 0.5
		}
		d.Schema.Publications = append(d.Schema.Publications, types.PublicationEntry{
			Title: title,
			Venue: Text(f.Attr(types.AttrVenue)),
			Year:  year,
		})
		d.Evidence = append(d.Evidence, evidence(types.CategoryPublications, f, agreement, plausibility))
	}
	return errs
}

// applyTestScores 同一考试保留第一次出现的分数；再次出现相同分数视为交叉验证，不同分数视为冲突
func applyTestScores(n *Normalizer, fields []types.ExtractionField, d *types.DraftSchema) []error {
	var errs []error
	evidenceAt := map[string]int{}
	for _, f := range filterFields(fields, types.FieldTestScore) {
		test, score, err := n.TestScore(f.Attr(types.AttrTest), f.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, ok := d.Schema.TestScores[test]; ok {
			ev := &d.Evidence[evidenceAt[test]]
			if prev == score {
				if ev.Agreement != agreementConflict {
					ev.Agreement = agreementConfirmed
				}
			} else {
				ev.Agreement = agreementConflict
			}
			continue
		}
		d.Schema.TestScores[test] = score
		evidenceAt[test] = len(d.Evidence)
		d.Evidence = append(d.Evidence, evidence(types.CategoryTestScores, f, agreementSingle, 1))
	}
	return errs
}
