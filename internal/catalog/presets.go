package catalog

import "fmt"

// PlannedCategory is a preset blueprint with its final name and the index of its
// parent inside the plan (-1 for top-level).
type PlannedCategory struct {
	Name        string
	Color       string
	Description string
	Parent      int
}

// PlanPreset turns flattened blueprints into creation order: all top-level entries
// first, then children, each in blueprint order. Parent names resolve to the first
// top-level blueprint carrying that name. A child whose parent cannot be resolved is
// created as a top-level category. Sibling name collisions get a numeric suffix.
func PlanPreset(blueprints []PresetCategory) []PlannedCategory {
	plan := make([]PlannedCategory, 0, len(blueprints))
	topByName := make(map[string]int)
	topNames := make(map[string]bool)

	addTop := func(b PresetCategory) {
		name := uniqueName(b.Name, topNames)
		topNames[name] = true
		if _, ok := topByName[b.Name]; !ok {
			topByName[b.Name] = len(plan)
		}
		plan = append(plan, PlannedCategory{Name: name, Color: b.Color, Description: b.Description, Parent: -1})
	}

	var children []PresetCategory
	for _, b := range blueprints {
		if b.Name == "" {
			continue
		}
		if b.ParentName == "" {
			addTop(b)
		} else {
			children = append(children, b)
		}
	}

	childNames := make(map[int]map[string]bool)
	for _, b := range children {
		parent, ok := topByName[b.ParentName]
		if !ok {
			addTop(PresetCategory{Name: b.Name, Color: b.Color, Description: b.Description})
			continue
		}
		used := childNames[parent]
		if used == nil {
			used = make(map[string]bool)
			childNames[parent] = used
		}
		name := uniqueName(b.Name, used)
		used[name] = true
		plan = append(plan, PlannedCategory{Name: name, Color: b.Color, Description: b.Description, Parent: parent})
	}
	return plan
}

// FlattenCategories converts a hierarchical category list into preset blueprints,
// each parent followed by its children.
func FlattenCategories(tree []*Category) []PresetCategory {
	var out []PresetCategory
	for _, top := range tree {
		out = append(out, PresetCategory{Name: top.Name, Color: top.Color, Description: top.Description})
		for _, child := range top.Children {
			out = append(out, PresetCategory{
				Name:        child.Name,
				Color:       child.Color,
				Description: child.Description,
				ParentName:  top.Name,
			})
		}
	}
	return out
}

func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !used[candidate] {
			return candidate
		}
	}
}
