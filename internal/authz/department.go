package authz

import "strings"

// DepartmentContains reports whether parent contains target in the
// hyphen-delimited department hierarchy. Containment is directional:
// "IT" contains "IT-Support" and "IT-Support-L2", but "IT-Support" does not
// contain "IT", and a department always contains itself.
func DepartmentContains(parent, target string) bool {
	if parent == "" || target == "" {
		return false
	}
	parentSegs := strings.Split(parent, "-")
	targetSegs := strings.Split(target, "-")
	if len(parentSegs) > len(targetSegs) {
		return false
	}
	for i, seg := range parentSegs {
		if seg != targetSegs[i] {
			return false
		}
	}
	return true
}
