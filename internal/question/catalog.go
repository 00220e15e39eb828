package question

// Module identifies one exam module (a subject test).
type Module struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Default module IDs, in the order a full simulation runs them.
const (
	ModuleCriticalReading = "critical-reading"
	ModuleMathematics     = "mathematics"
	ModuleSocialStudies   = "social-studies"
	ModuleNaturalSciences = "natural-sciences"
	ModuleEnglish         = "english"
)

var defaultModules = []Module{
	{ID: ModuleCriticalReading, Name: "Critical Reading"},
	{ID: ModuleMathematics, Name: "Mathematics"},
	{ID: ModuleSocialStudies, Name: "Social & Civic Studies"},
	{ID: ModuleNaturalSciences, Name: "Natural Sciences"},
	{ID: ModuleEnglish, Name: "English"},
}

// DefaultModules returns the five modules of a full simulation.
func DefaultModules() []Module {
	out := make([]Module, len(defaultModules))
	copy(out, defaultModules)
	return out
}

// DefaultModuleIDs returns the IDs of DefaultModules in order.
func DefaultModuleIDs() []string {
	ids := make([]string, len(defaultModules))
	for i, m := range defaultModules {
		ids[i] = m.ID
	}
	return ids
}

// ModuleName returns the display name of a default module, or the ID
// itself when the module is not in the catalog.
func ModuleName(id string) string {
	for _, m := range defaultModules {
		if m.ID == id {
			return m.Name
		}
	}
	return id
}
