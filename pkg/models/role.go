package models

// Role identifies one of the fixed agent identities in a workbench session.
type Role string

const (
	// RolePlanner decomposes user requests into worker tasks.
	RolePlanner Role = "planner"
	// RoleStatic is the static-analysis worker (disassembly, strings, hashes).
	RoleStatic Role = "static"
	// RoleDynamic is the dynamic-analysis worker (sandbox, runtime tooling).
	RoleDynamic Role = "dynamic"
	// RoleVerifier reviews worker outputs for unsupported claims.
	RoleVerifier Role = "verifier"
	// RoleReporter writes the final user-facing answer.
	RoleReporter Role = "reporter"
)

// WorkerRoles lists the roles the planner may assign tasks to.
func WorkerRoles() []Role {
	return []Role{RoleStatic, RoleDynamic}
}

// IsWorker returns true if the role is one tasks can be assigned to.
func (r Role) IsWorker() bool {
	switch r {
	case RoleStatic, RoleDynamic:
		return true
	default:
		return false
	}
}

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RolePlanner, RoleStatic, RoleDynamic, RoleVerifier, RoleReporter:
		return true
	default:
		return false
	}
}
