package constraint

// CheckExclusion vetoes specific checks of a parameter for a specific call
type CheckExclusion interface {
	Profiles() []string
	When() string
	IsActive(validated, value interface{}, cycle ValidationCycle) (bool, error)
	IsCheckExcluded(check Check, validated, value interface{}, cycle ValidationCycle) (bool, error)
}

// ExclusionBase implements the profile and when handling of exclusions
type ExclusionBase struct {
	profiles []string
	when     string
}

// Profiles returns the configured profiles, or the default profile
func (e *ExclusionBase) Profiles() []string {
	if len(e.profiles) == 0 {
		return []string{DefaultProfile}
	}
	return e.profiles
}

func (e *ExclusionBase) When() string { return e.when }

func (e *ExclusionBase) SetProfiles(profiles ...string) {
	e.profiles = append([]string(nil), profiles...)
}

func (e *ExclusionBase) SetWhen(expr string) { e.when = expr }

// IsActive evaluates the when expression like Base.IsActive
func (e *ExclusionBase) IsActive(validated, value interface{}, cycle ValidationCycle) (bool, error) {
	if e.when == "" {
		return true, nil
	}
	return EvaluateCondition(cycle, e.when, map[string]interface{}{
		"_this":  validated,
		"_value": value,
	})
}
