package models

// User is an addressable directory entry. Contexts lists the context codes
// the user is visible in (courses, groups, accounts).
type User struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Contexts []string `json:"contexts,omitempty"`
}

// Enrollment ties a user to a course with a role and an active flag.
type Enrollment struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"` // student | teacher | ta | observer
	Active bool   `json:"active"`
}

// Course workflow states.
const (
	CourseAvailable = "available"
	CourseCompleted = "completed"
)

type Course struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	WorkflowState string       `json:"workflow_state,omitempty"`
	AccountID     string       `json:"account_id,omitempty"`
	Enrollments   []Enrollment `json:"enrollments,omitempty"`
}

// Group is a member set under a parent context. Non-collaborative groups
// require elevated capability to message.
type Group struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	Collaborative bool     `json:"collaborative"`
	Context       string   `json:"context,omitempty"` // parent context code
	Members       []string `json:"members,omitempty"`
}

type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// Admins hold account-level grants (send-to-anyone, concluded-course read,
	// tag management)
	Admins []string `json:"admins,omitempty"`
	// SignatureBlockEnabled gates signature appending on auto-replies for
	// users under this account
	SignatureBlockEnabled bool `json:"signature_block_enabled,omitempty"`
}
