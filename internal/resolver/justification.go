package resolver

import "fmt"

// Policy identifies the rule that put a package in the build set.
type Policy int

const (
	// PolicyDiffFailed marks every candidate when the change set is unknown.
	PolicyDiffFailed Policy = iota

	// PolicyPlatformFilter is the caller-supplied filter hook.
	PolicyPlatformFilter

	// PolicyChanged selects packages containing a changed file.
	PolicyChanged

	// PolicyDependency selects packages depending on a package whose public
	// surface changed.
	PolicyDependency
)

// String returns the short policy label.
func (p Policy) String() string {
	switch p {
	case PolicyDiffFailed:
		return "diff-failed"
	case PolicyPlatformFilter:
		return "platform-filter"
	case PolicyChanged:
		return "changed"
	case PolicyDependency:
		return "dependency"
	default:
		return fmt.Sprintf("policy-%d", int(p))
	}
}

// MarshalText encodes the policy as its label.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy label.
func (p *Policy) UnmarshalText(text []byte) error {
	for _, candidate := range []Policy{PolicyDiffFailed, PolicyPlatformFilter, PolicyChanged, PolicyDependency} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown policy %q", text)
}

// Decision records why one package must be built.
type Decision struct {
	Package string `json:"package"`
	Policy  Policy `json:"policy"`
	Reason  string `json:"reason"`

	// DependsOn is the public-changed package for PolicyDependency.
	DependsOn string `json:"dependsOn,omitempty"`
}

// BuildJustification maps every package that must be built to the first
// reason it qualified. Packages keep the order in which they were decided.
type BuildJustification struct {
	order     []string
	decisions map[string]Decision
}

func newJustification() *BuildJustification {
	return &BuildJustification{decisions: make(map[string]Decision)}
}

// record stores d unless the package already has a decision.
func (j *BuildJustification) record(d Decision) bool {
	if _, ok := j.decisions[d.Package]; ok {
		return false
	}
	j.decisions[d.Package] = d
	j.order = append(j.order, d.Package)
	return true
}

// Len returns the number of packages to build.
func (j *BuildJustification) Len() int {
	return len(j.order)
}

// Packages returns the packages to build in decision order.
func (j *BuildJustification) Packages() []string {
	out := make([]string, len(j.order))
	copy(out, j.order)
	return out
}

// Decision returns the decision for pkg.
func (j *BuildJustification) Decision(pkg string) (Decision, bool) {
	d, ok := j.decisions[pkg]
	return d, ok
}

// Reason returns the reason string for pkg.
func (j *BuildJustification) Reason(pkg string) (string, bool) {
	d, ok := j.decisions[pkg]
	return d.Reason, ok
}

// Decisions returns every decision in decision order.
func (j *BuildJustification) Decisions() []Decision {
	out := make([]Decision, 0, len(j.order))
	for _, pkg := range j.order {
		out = append(out, j.decisions[pkg])
	}
	return out
}

// Reasons returns the package -> reason mapping.
func (j *BuildJustification) Reasons() map[string]string {
	out := make(map[string]string, len(j.order))
	for pkg, d := range j.decisions {
		out[pkg] = d.Reason
	}
	return out
}

// DiffFailedReason is the reason given to every candidate when the change
// set could not be computed.
func DiffFailedReason(code int) string {
	return fmt.Sprintf("Policy 0 - Failed to diff (%d)", code)
}

const (
	platformFilterReason = "Policy 1 - Platform Function - Filter Packages"
	changedReason        = "Policy 2 - Build any package that has changed"
)

func dependencyReason(pkg string) string {
	return "Policy 3 - Package depends on " + pkg
}

// BuildEverything marks every candidate with the diff failure reason. It is
// the safe answer when the change set is unavailable.
func BuildEverything(candidates []string, code int) *BuildJustification {
	j := newJustification()
	reason := DiffFailedReason(code)
	for _, pkg := range candidates {
		j.record(Decision{Package: pkg, Policy: PolicyDiffFailed, Reason: reason})
	}
	return j
}
