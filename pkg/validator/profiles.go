package validator

import "sync"

// profileSet tracks enabled profiles. With allEnabled every profile not
// explicitly disabled is enabled; otherwise only explicitly enabled ones.
type profileSet struct {
	mu         sync.RWMutex
	allEnabled bool
	enabled    map[string]struct{}
	disabled   map[string]struct{}
}

func newProfileSet() *profileSet {
	return &profileSet{
		allEnabled: true,
		enabled:    make(map[string]struct{}),
		disabled:   make(map[string]struct{}),
	}
}

func (p *profileSet) enable(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled[name] = struct{}{}
	delete(p.disabled, name)
}

func (p *profileSet) disable(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled[name] = struct{}{}
	delete(p.enabled, name)
}

func (p *profileSet) setAll(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allEnabled = enabled
	p.enabled = make(map[string]struct{})
	p.disabled = make(map[string]struct{})
}

func (p *profileSet) isEnabled(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.allEnabled {
		_, off := p.disabled[name]
		return !off
	}
	_, on := p.enabled[name]
	return on
}

// EnableProfile enables checks of the named profile
func (v *Validator) EnableProfile(name string) { v.profiles.enable(name) }

// DisableProfile disables checks of the named profile
func (v *Validator) DisableProfile(name string) { v.profiles.disable(name) }

// EnableAllProfiles enables every profile and forgets individual settings
func (v *Validator) EnableAllProfiles() { v.profiles.setAll(true) }

// DisableAllProfiles disables every profile and forgets individual settings
func (v *Validator) DisableAllProfiles() { v.profiles.setAll(false) }

func (v *Validator) IsProfileEnabled(name string) bool { return v.profiles.isEnabled(name) }

// profilesActive reports whether any of profiles is enabled for the cycle.
// Profiles given to the validation call replace the validator's settings.
func (v *Validator) profilesActive(cycle *Cycle, profiles []string) bool {
	if callProfiles := cycle.Profiles(); len(callProfiles) > 0 {
		for _, p := range profiles {
			for _, cp := range callProfiles {
				if p == cp {
					return true
				}
			}
		}
		return false
	}
	for _, p := range profiles {
		if v.profiles.isEnabled(p) {
			return true
		}
	}
	return false
}

// ProfilesActive reports whether any of profiles is enabled for cycle
func (v *Validator) ProfilesActive(cycle *Cycle, profiles []string) bool {
	return v.profilesActive(cycle, profiles)
}
