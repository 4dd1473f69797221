package linebot

// PushPolicy is the allow-list for outbound push targets. Pushing to an
// arbitrary recipient is never allowed.
type PushPolicy struct {
	allowed []string
	set     map[string]bool
}

func NewPushPolicy(allowedGroupIDs []string) *PushPolicy {
	p := &PushPolicy{set: make(map[string]bool, len(allowedGroupIDs))}
	for _, id := range allowedGroupIDs {
		if id == "" || p.set[id] {
			continue
		}
		p.set[id] = true
		p.allowed = append(p.allowed, id)
	}
	return p
}

// Allowed reports whether the target may receive pushes.
func (p *PushPolicy) Allowed(target string) bool {
	return p.set[target]
}

// Default returns the first configured group, the fallback target when a
// push request names none. Empty when nothing is configured.
func (p *PushPolicy) Default() string {
	if len(p.allowed) == 0 {
		return ""
	}
	return p.allowed[0]
}
