package normalize

import (
	"testing"

	"parsely-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func experienceField(org, start, end, bullets string) types.ExtractionField {
	return types.ExtractionField{
		Name:   types.FieldExperience,
		Value:  "Engineer",
		Method: types.MethodRegex,
		Attributes: map[string]string{
			types.AttrTitle:        "Engineer",
			types.AttrOrganization: org,
			types.AttrStart:        start,
			types.AttrEnd:          end,
			types.AttrBullets:      bullets,
		},
	}
}

func span(start int, end *int) types.ExperienceEntry {
	return types.ExperienceEntry{Organization: "Acme Inc", StartYear: types.Intptr(start), EndYear: end}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b types.ExperienceEntry
		want bool
	}{
		{"至今与区间重叠", span(2018, nil), span(2016, types.Intptr(2019)), true},
		{"首尾同年", span(2010, types.Intptr(2011)), span(2011, types.Intptr(2015)), true},
		{"不相交", span(2010, types.Intptr(2011)), span(2013, types.Intptr(2014)), false},
		{"两段都至今", span(2020, nil), span(2022, nil), true},
		{"缺开始年份", types.ExperienceEntry{EndYear: types.Intptr(2020)}, span(2019, types.Intptr(2021)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b, 2024))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a, 2024))
		})
	}
}

func TestMergeExperience(t *testing.T) {
	a := span(2018, nil)
	a.Bullets = []string{"Led team"}
	b := span(2016, types.Intptr(2019))
	b.Title = "Engineer"
	b.Bullets = []string{"Designed systems", "Led team"}

	got := MergeExperience(a, b)
	require.NotNil(t, got.StartYear)
	assert.Equal(t, 2016, *got.StartYear)
	assert.Nil(t, got.EndYear)
	assert.Equal(t, "Engineer", got.Title)
	assert.Equal(t, []string{"Led team", "Designed systems"}, got.Bullets)
	assert.Equal(t, []string{"Led team"}, a.Bullets)

	// 两段都有结束年份时取较晚的
	got = MergeExperience(span(2015, types.Intptr(2017)), span(2016, types.Intptr(2020)))
	assert.Equal(t, 2015, *got.StartYear)
	require.NotNil(t, got.EndYear)
	assert.Equal(t, 2020, *got.EndYear)
}

func TestBuildMergesOverlappingExperience(t *testing.T) {
	n := New(2024, nil)
	draft, errs := n.Build([]types.ExtractionField{
		experienceField("Acme Inc", "2018", "present", "Led team"),
		experienceField("Globex", "2012", "2014", "Built pipelines"),
		experienceField("ACME INC", "2016", "2019", "Designed systems\nLed team"),
	})
	require.Empty(t, errs)

	work := draft.Schema.WorkExperience
	require.Len(t, work, 2)
	acme := work[0]
	assert.Equal(t, "Acme Inc", acme.Organization)
	assert.Equal(t, 2016, *acme.StartYear)
	assert.Nil(t, acme.EndYear)
	assert.Equal(t, []string{"Led team", "Designed systems"}, acme.Bullets)

	assert.Equal(t, "Globex", work[1].Organization)
	assert.Equal(t, 2014, *work[1].EndYear)

	var agreements []float64
	for _, ev := range draft.Evidence {
		if ev.Category == types.CategoryExperience {
			agreements = append(agreements, ev.Agreement)
		}
	}
	assert.Equal(t, []float64{agreementConfirmed, agreementSingle}, agreements)
}

func TestBuildKeepsDifferentOrganizationsApart(t *testing.T) {
	n := New(2024, nil)
	draft, errs := n.Build([]types.ExtractionField{
		experienceField("Acme Inc", "2018", "2020", "Led team"),
		experienceField("Globex", "2019", "2021", "Led team"),
		experienceField("", "2019", "2021", "Shipped releases"),
		experienceField("", "2019", "2021", "Maintained services"),
	})
	require.Empty(t, errs)
	assert.Len(t, draft.Schema.WorkExperience, 4)
}

// 合并后范围变宽，与先前不重叠的条目也要继续合并
func TestBuildCascadesExperienceMerge(t *testing.T) {
	n := New(2024, nil)
	draft, errs := n.Build([]types.ExtractionField{
		experienceField("Initech", "2010", "2011", "Built reports"),
		experienceField("Initech", "2015", "2016", "Led migration"),
		experienceField("Initech", "2011", "2015", "Maintained billing"),
	})
	require.Empty(t, errs)

	work := draft.Schema.WorkExperience
	require.Len(t, work, 1)
	assert.Equal(t, 2010, *work[0].StartYear)
	assert.Equal(t, 2016, *work[0].EndYear)
	assert.ElementsMatch(t, []string{"Built reports", "Led migration", "Maintained billing"}, work[0].Bullets)
}

func TestBuildSingleYearExperience(t *testing.T) {
	n := New(2024, nil)
	draft, errs := n.Build([]types.ExtractionField{experienceField("Acme Inc", "2019", "", "Led team")})
	require.Empty(t, errs)
	require.Len(t, draft.Schema.WorkExperience, 1)
	e := draft.Schema.WorkExperience[0]
	assert.Equal(t, 2019, *e.StartYear)
	require.NotNil(t, e.EndYear)
	assert.Equal(t, 2019, *e.EndYear)
}
