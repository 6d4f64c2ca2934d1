package parser

import (
	"context"
	"errors"
	"testing"

	"parsely-go/internal/dictionary"
	"parsely-go/internal/ner"
	"parsely-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	entities []ner.Entity
	err      error
}

func (s stubRecognizer) Recognize(context.Context, string) ([]ner.Entity, error) {
	return s.entities, s.err
}

func newTestRegistry(t *testing.T, rec ner.EntityRecognizer) *Registry {
	t.Helper()
	dict, err := dictionary.Default()
	require.NoError(t, err)
	r, err := NewRegistry(dict, rec, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func section(typ types.SectionType, ordinal int, content string) types.Section {
	return types.Section{Type: typ, Ordinal: ordinal, Content: content, End: len(content)}
}

func fieldsNamed(fields []types.ExtractionField, name types.FieldName) []types.ExtractionField {
	var out []types.ExtractionField
	for _, f := range fields {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

func values(fields []types.ExtractionField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Value)
	}
	return out
}

const headerSample = "Jane Roe\njane.roe@example.com | +1 (555) 123-4567\nlinkedin.com/in/janeroe github.com/janeroe\n2018 - 2022\n"

func TestNewRegistryValidation(t *testing.T) {
	dict, err := dictionary.Default()
	require.NoError(t, err)

	_, err = NewRegistry(nil, stubRecognizer{}, zerolog.Nop())
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = NewRegistry(dict, nil, zerolog.Nop())
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestHeaderExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	fields := r.Extract(section(types.SectionHeader, 0, headerSample))

	require.NotEmpty(t, fields)
	assert.Equal(t, types.FieldPersonName, fields[0].Name)
	assert.Equal(t, "Jane Roe", fields[0].Value)
	assert.Equal(t, types.MethodHeuristic, fields[0].Method)

	assert.Equal(t, []string{"jane.roe@example.com"}, values(fieldsNamed(fields, types.FieldEmail)))
	assert.Equal(t, []string{"+1 (555) 123-4567"}, values(fieldsNamed(fields, types.FieldPhone)))
	assert.Equal(t, []string{"linkedin.com/in/janeroe", "github.com/janeroe"}, values(fieldsNamed(fields, types.FieldURL)))
	assert.Equal(t, []string{"janeroe"}, values(fieldsNamed(fields, types.FieldLinkedIn)))
	assert.Equal(t, []string{"janeroe"}, values(fieldsNamed(fields, types.FieldGitHub)))

	for _, f := range fields {
		assert.Equal(t, types.SectionRef{Type: types.SectionHeader, Ordinal: 0}, f.Section)
	}
}

func TestHeaderNameCrossValidation(t *testing.T) {
	agree := newTestRegistry(t, stubRecognizer{entities: []ner.Entity{{Label: ner.LabelPerson, Text: "Jane  Roe"}}})
	name := agree.Extract(section(types.SectionHeader, 0, headerSample))[0]
	assert.Equal(t, "Jane Roe", name.Value)
	assert.Equal(t, types.MethodNER, name.Method)
	assert.Equal(t, "true", name.Attr(types.AttrCrossValidated))

	conflict := newTestRegistry(t, stubRecognizer{entities: []ner.Entity{{Label: ner.LabelPerson, Text: "Jane Doe"}}})
	name = conflict.Extract(section(types.SectionHeader, 0, headerSample))[0]
	assert.Equal(t, "Jane Doe", name.Value)
	assert.Equal(t, "false", name.Attr(types.AttrCrossValidated))
	assert.Equal(t, "Jane Roe", name.Attr(types.AttrHeuristicValue))

	failing := newTestRegistry(t, stubRecognizer{err: errors.New("ner down")})
	name = failing.Extract(section(types.SectionHeader, 0, headerSample))[0]
	assert.Equal(t, "Jane Roe", name.Value)
	assert.Equal(t, types.MethodHeuristic, name.Method)
}

func TestOtherSectionExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})

	first := r.Extract(section(types.SectionOther, 0, "Jane Roe\njane@example.com\nSAT 1500"))
	assert.Len(t, fieldsNamed(first, types.FieldPersonName), 1)
	assert.Len(t, fieldsNamed(first, types.FieldEmail), 1)
	assert.Equal(t, []string{"1500"}, values(fieldsNamed(first, types.FieldTestScore)))

	later := r.Extract(section(types.SectionOther, 3, "Jane Roe\njane@example.com"))
	assert.Empty(t, fieldsNamed(later, types.FieldPersonName))
	assert.Len(t, fieldsNamed(later, types.FieldEmail), 1)
}

func TestExperienceExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "Software Engineer, Acme Corp    Jan 2020 - Present\n" +
		"- Built a payments platform in Go\n" +
		"- Led a team of 4\n" +
		"Data Analyst at Globex Inc\n" +
		"2017 - 2019\n" +
		"- Analyzed sales data\n"

	fields := r.Extract(section(types.SectionExperience, 1, content))
	require.Len(t, fields, 2)

	first := fields[0]
	assert.Equal(t, types.FieldExperience, first.Name)
	assert.Equal(t, "Software Engineer", first.Value)
	assert.Equal(t, types.MethodRegex, first.Method)
	assert.Equal(t, "Acme Corp", first.Attr(types.AttrOrganization))
	assert.Equal(t, "2020", first.Attr(types.AttrStart))
	assert.Equal(t, "present", first.Attr(types.AttrEnd))
	assert.Equal(t, "Built a payments platform in Go\nLed a team of 4", first.Attr(types.AttrBullets))

	second := fields[1]
	assert.Equal(t, "Data Analyst", second.Attr(types.AttrTitle))
	assert.Equal(t, "Globex Inc", second.Attr(types.AttrOrganization))
	assert.Equal(t, "2017", second.Attr(types.AttrStart))
	assert.Equal(t, "2019", second.Attr(types.AttrEnd))
	assert.Equal(t, "Analyzed sales data", second.Attr(types.AttrBullets))
}

func TestEducationExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "Master of Science in Data Science\n" +
		"Carnegie Mellon University, 2021\n" +
		"B.S. in Computer Science, Stanford University, 2019, GPA: 3.8/4.0\n"

	fields := r.Extract(section(types.SectionEducation, 2, content))
	require.Len(t, fields, 2)

	ms := fields[0]
	assert.Equal(t, types.FieldEducation, ms.Name)
	assert.Equal(t, "Master of Science in Data Science", ms.Attr(types.AttrDegree))
	assert.Equal(t, "Data Science", ms.Attr(types.AttrMajor))
	assert.Equal(t, "Carnegie Mellon University", ms.Attr(types.AttrInstitution))
	assert.Equal(t, "2021", ms.Attr(types.AttrYear))
	assert.Equal(t, types.LevelPostgraduate, ms.Attr(types.AttrLevel))
	assert.Empty(t, ms.Attr(types.AttrGPA))
	assert.Equal(t, types.MethodRegex, ms.Method)

	bs := fields[1]
	assert.Equal(t, "B.S. in Computer Science", bs.Value)
	assert.Equal(t, "Computer Science", bs.Attr(types.AttrMajor))
	assert.Equal(t, "Stanford University", bs.Attr(types.AttrInstitution))
	assert.Equal(t, "2019", bs.Attr(types.AttrYear))
	assert.Equal(t, "3.8/4.0", bs.Attr(types.AttrGPA))
	assert.Equal(t, types.LevelUndergraduate, bs.Attr(types.AttrLevel))
}

func TestExtractGPAText(t *testing.T) {
	assert.Equal(t, "3.7/4", extractGPAText("CGPA 3.7/4"))
	assert.Equal(t, "85%", extractGPAText("Percentage: 85%"))
	assert.Equal(t, "85%", extractGPAText("Aggregate 85"))
	assert.Equal(t, "9.1/10", extractGPAText("scored 9.1/10 overall"))
	assert.Equal(t, "", extractGPAText("no grades here"))
}

func TestSkillsExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "Languages: Go, Python, golang\n" +
		"Frameworks: React / Node.js and Django\n" +
		"Basket Weaving, Led a team\n"

	fields := r.Extract(section(types.SectionSkills, 1, content))
	got := make([]string, 0, len(fields))
	for _, f := range fields {
		got = append(got, f.Attr(types.AttrCategory)+":"+f.Value)
	}
	assert.Equal(t, []string{
		"Languages:Go",
		"Languages:Python",
		"Frameworks:React",
		"Frameworks:Node.js",
		"Frameworks:Django",
		"Other:Basket Weaving",
	}, got)

	other := fields[len(fields)-1]
	assert.Equal(t, types.MethodHeuristic, other.Method)
	assert.Equal(t, types.MethodRegex, fields[0].Method)
}

func TestSummaryExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	fields := r.Extract(section(types.SectionSummary, 1,
		"Experienced engineer working with Go and Kubernetes; I go hiking"))
	assert.Equal(t, []string{"Go", "Kubernetes"}, values(fields))
	for _, f := range fields {
		assert.NotEqual(t, OtherSkillCategory, f.Attr(types.AttrCategory))
	}
}

func TestCredentialExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "- AWS Certified Solutions Architect (2021)\n" +
		"- Dean's List 2019\n" +
		"- AWS Certified Solutions Architect (2021)\n" +
		"- Kubernetes course\n"

	fields := r.Extract(section(types.SectionCertifications, 4, content))
	require.Len(t, fields, 3)

	assert.Equal(t, types.FieldCertification, fields[0].Name)
	assert.Equal(t, "AWS", fields[0].Attr(types.AttrIssuer))
	assert.Equal(t, "2021", fields[0].Attr(types.AttrYear))
	assert.Equal(t, types.MethodRegex, fields[0].Method)

	assert.Equal(t, types.FieldAchievement, fields[1].Name)
	assert.Equal(t, "2019", fields[1].Attr(types.AttrYear))

	assert.Equal(t, types.FieldCertification, fields[2].Name)
	assert.Equal(t, types.MethodHeuristic, fields[2].Method)

	// 同样没有关键词的行在获奖章节归为 achievement
	achievements := r.Extract(section(types.SectionAchievements, 5, "Kubernetes course"))
	require.Len(t, achievements, 1)
	assert.Equal(t, types.FieldAchievement, achievements[0].Name)
}

func TestPublicationExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "\"Fast Resume Parsing\" - Journal of Applied NLP, 2022\n" +
		"IEEE Conference on Something 2021\n" +
		"Unrelated line\n"

	fields := r.Extract(section(types.SectionPublications, 6, content))
	require.Len(t, fields, 2)

	assert.Equal(t, "Fast Resume Parsing", fields[0].Value)
	assert.Equal(t, "Journal of Applied NLP", fields[0].Attr(types.AttrVenue))
	assert.Equal(t, "2022", fields[0].Attr(types.AttrYear))
	assert.Equal(t, types.MethodRegex, fields[0].Method)
	assert.Empty(t, fields[0].Attr(types.AttrPartial))

	assert.Equal(t, "IEEE Conference on Something", fields[1].Value)
	assert.Equal(t, "true", fields[1].Attr(types.AttrPartial))
	assert.Equal(t, types.MethodHeuristic, fields[1].Method)
}

func TestTestScoreExtraction(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	fields := r.Extract(section(types.SectionTestScores, 7, "SAT: 1450, GRE 330, TOEFL 200, ACT 36"))

	got := make([]string, 0, len(fields))
	for _, f := range fields {
		got = append(got, f.Attr(types.AttrTest)+"="+f.Value)
	}
	assert.Equal(t, []string{"SAT=1450", "GRE=330", "ACT=36"}, got)
}

func TestRegistryRecoversFromPanic(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	r.table[types.SectionSkills] = ExtractorFunc(func(types.Section) []types.ExtractionField {
		panic("boom")
	})
	var fields []types.ExtractionField
	assert.NotPanics(t, func() {
		fields = r.Extract(section(types.SectionSkills, 1, "Go"))
	})
	assert.Nil(t, fields)
}

func TestRegistryUnknownTypeFallsBackToOther(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	fields := r.Extract(section(types.SectionType("MYSTERY"), 2, "reach me at a@b.io"))
	assert.Equal(t, []string{"a@b.io"}, values(fieldsNamed(fields, types.FieldEmail)))
}

func TestExperienceDropsNonVerbBullets(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "Software Engineer, Acme Corp    2020 - Present\n" +
		"- Built a payments platform\n" +
		"- Responsible for on-call rotation\n" +
		"- Tools: Jira, Confluence\n" +
		"- Led a team of 4\n"

	fields := r.Extract(section(types.SectionExperience, 1, content))
	require.Len(t, fields, 1)
	assert.Equal(t, "Built a payments platform\nLed a team of 4", fields[0].Attr(types.AttrBullets))
}

func TestIndexWordKeepsOriginalOffsets(t *testing.T) {
	s := "İstanbul İİ Bachelor of Science"
	start, end := indexWord(s, "bachelor")
	require.GreaterOrEqual(t, start, 0)
	assert.Equal(t, "Bachelor", s[start:end])

	// Ⱥ 小写后字节变长
	s = "ȺȺȺ Data Science"
	start, end = indexWord(s, "data science")
	require.GreaterOrEqual(t, start, 0)
	assert.Equal(t, "Data Science", s[start:end])

	start, _ = indexWord("Bachelors", "bachelor")
	assert.Equal(t, -1, start)
	start, _ = indexWord("anything", "")
	assert.Equal(t, -1, start)
}

func TestDegreeMatchWithTurkishText(t *testing.T) {
	dict, err := dictionary.Default()
	require.NoError(t, err)
	e := newEducationExtractor(dict)
	s := "İstanbul İİ Bachelor of Science, Boğaziçi University"
	kw, end, ok := e.degrees[1].match(s)
	require.True(t, ok)
	assert.Equal(t, "Bachelor", kw)
	assert.Equal(t, "Bachelor", s[end-len("Bachelor"):end])

	assert.Equal(t, "Computer Science", e.majorFromBlock("ȺȺ İİİ Boğaziçi Üniversitesi, Computer Science"))
}

func TestEducationExtractionTurkishInstitution(t *testing.T) {
	r := newTestRegistry(t, stubRecognizer{})
	content := "İstanbul Teknik Üniversitesi, Boğaziçi University, Bachelor Computer Science, 2019\n"

	fields := r.Extract(section(types.SectionEducation, 2, content))
	require.Len(t, fields, 1)
	f := fields[0]
	assert.Equal(t, "Bachelor Computer Science", f.Attr(types.AttrDegree))
	assert.Equal(t, "Computer Science", f.Attr(types.AttrMajor))
	assert.Equal(t, "Boğaziçi University", f.Attr(types.AttrInstitution))
	assert.Equal(t, "2019", f.Attr(types.AttrYear))
	assert.Equal(t, types.LevelUndergraduate, f.Attr(types.AttrLevel))
}
