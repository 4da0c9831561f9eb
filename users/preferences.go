package users

// NutrientPreference is one nutrient-display preference row. Every account
// gets a complete copy of the default set at creation so no caller ever
// has to handle a missing-preferences case.
type NutrientPreference struct {
	ViewGroup        string   `json:"view_group"`
	Platform         string   `json:"platform"`
	VisibleNutrients []string `json:"visible_nutrients"`
}

var defaultNutrients = []string{"calories", "protein", "carbs", "fat", "dietary_fiber"}

var allNutrients = []string{
	"calories", "protein", "carbs", "fat", "dietary_fiber", "sugars", "sodium",
	"cholesterol", "saturated_fat", "trans_fat", "potassium",
	"vitamin_a", "vitamin_c", "iron", "calcium",
}

var defaultViewGroups = []struct {
	group    string
	extended bool
}{
	{"summary", false},
	{"quick_info", false},
	{"food_database", true},
	{"goal", true},
	{"report_tabular", true},
	{"report_chart", true},
}

// DefaultPreferences returns a fresh copy of the versioned default
// preference set, one row per view group and platform.
func DefaultPreferences() []NutrientPreference {
	prefs := make([]NutrientPreference, 0, len(defaultViewGroups)*2)
	for _, platform := range []string{"desktop", "mobile"} {
		for _, vg := range defaultViewGroups {
			nutrients := defaultNutrients
			if vg.extended {
				nutrients = allNutrients
			}
			prefs = append(prefs, NutrientPreference{
				ViewGroup:        vg.group,
				Platform:         platform,
				VisibleNutrients: append([]string(nil), nutrients...),
			})
		}
	}
	return prefs
}
