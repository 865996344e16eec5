// Package identity carries the caller identity that collaborators
// supply on every mutating call. Authentication and role gating happen
// outside this core; we only record who asked.
package identity

// User identifies the person behind a mutating call.
type User struct {
	ID   string
	Name string
	Role string // e.g. "technician", "sales", "manager"
}

// AttributionName returns the name to record in audit fields, falling
// back to the ID when the display name is empty.
func (u User) AttributionName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
