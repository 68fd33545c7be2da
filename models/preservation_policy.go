package models

// PreservationPolicy decides whether a resource carries preservation
// obligations. The audit and the cloud verifier treat the answer as
// an opaque boolean.
type PreservationPolicy interface {
	ShouldPreserve(resource *Resource) bool
}

// PreservationPolicyFunc adapts a plain function to PreservationPolicy.
type PreservationPolicyFunc func(resource *Resource) bool

func (fn PreservationPolicyFunc) ShouldPreserve(resource *Resource) bool {
	return fn(resource)
}

// DefaultPreservationPolicy preserves resources whose Preserve flag is
// set, unless their type appears in ExcludedTypes.
type DefaultPreservationPolicy struct {
	ExcludedTypes []string
}

func NewDefaultPreservationPolicy(excludedTypes []string) *DefaultPreservationPolicy {
	return &DefaultPreservationPolicy{ExcludedTypes: excludedTypes}
}

func (policy *DefaultPreservationPolicy) ShouldPreserve(resource *Resource) bool {
	if resource == nil || !resource.Preserve {
		return false
	}
	for _, excluded := range policy.ExcludedTypes {
		if resource.Type == excluded {
			return false
		}
	}
	return true
}
