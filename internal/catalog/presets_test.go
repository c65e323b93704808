package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanPreset_ParentsFirst(t *testing.T) {
	plan := PlanPreset([]PresetCategory{
		{Name: "Cut", ParentName: "Offense"},
		{Name: "Offense"},
		{Name: "Zone", ParentName: "Defense"},
		{Name: "Defense"},
	})

	want := []PlannedCategory{
		{Name: "Offense", Parent: -1},
		{Name: "Defense", Parent: -1},
		{Name: "Cut", Parent: 0},
		{Name: "Zone", Parent: 1},
	}
	require.Equal(t, want, plan)
}

func TestPlanPreset_SkipsUnnamed(t *testing.T) {
	plan := PlanPreset([]PresetCategory{{Name: ""}, {Name: "A"}})
	require.Len(t, plan, 1)
	require.Equal(t, "A", plan[0].Name)
}

func TestPlanPreset_SuffixIsPerParent(t *testing.T) {
	plan := PlanPreset([]PresetCategory{
		{Name: "A"},
		{Name: "B"},
		{Name: "Cut", ParentName: "A"},
		{Name: "Cut", ParentName: "B"},
		{Name: "Cut", ParentName: "B"},
		{Name: "Cut", ParentName: "B"},
	})

	names := make([]string, 0, len(plan))
	for _, pc := range plan {
		names = append(names, pc.Name)
	}
	require.Equal(t, []string{"A", "B", "Cut", "Cut", "Cut (2)", "Cut (3)"}, names)
}

func TestFlattenCategories(t *testing.T) {
	parent := int64(1)
	tree := []*Category{
		{ID: 1, Name: "Offense", Color: "#f00", Children: []*Category{
			{ID: 3, Name: "Cut", ParentID: &parent},
		}},
		{ID: 2, Name: "Defense", Children: []*Category{}},
	}

	flat := FlattenCategories(tree)
	require.Len(t, flat, 3)
	require.Equal(t, "Cut", flat[1].Name)
	require.Equal(t, "Offense", flat[1].ParentName)
	require.Empty(t, flat[2].ParentName)
}

func TestDecodeCategoryIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    CategoryIDs
		wantErr bool
	}{
		{"", CategoryIDs{}, false},
		{"[]", CategoryIDs{}, false},
		{"[3,1,3,2]", CategoryIDs{3, 1, 2}, false},
		{"not json", nil, true},
	}
	for _, tt := range tests {
		got, err := DecodeCategoryIDs(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidateKeyBinding(t *testing.T) {
	tests := []struct {
		action, key string
		ok          bool
	}{
		{ActionMarkIn, "i", true},
		{ActionMarkOut, "ö", true},
		{ActionMarkIn, "", false},
		{ActionMarkIn, " ", false},
		{ActionMarkIn, "ii", false},
		{"other", "x", false},
	}
	for _, tt := range tests {
		err := ValidateKeyBinding(tt.action, tt.key)
		if tt.ok {
			require.NoError(t, err, "%s=%q", tt.action, tt.key)
		} else {
			require.ErrorIs(t, err, ErrInvalidKeyBinding, "%s=%q", tt.action, tt.key)
		}
	}
}

func TestCategoryJSON_ChildrenOnlyOnHierarchicalReads(t *testing.T) {
	tree := BuildTree([]*Category{{ID: 1, ProjectID: 1, Name: "Offense"}})
	b, err := json.Marshal(tree)
	require.NoError(t, err)
	require.Contains(t, string(b), `"children":[]`)

	flat, err := json.Marshal([]*Category{{ID: 1, ProjectID: 1, Name: "Offense"}})
	require.NoError(t, err)
	require.NotContains(t, string(flat), "children")

	var decoded []*Category
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.NotNil(t, decoded[0].Children)
	require.Empty(t, decoded[0].Children)
}
