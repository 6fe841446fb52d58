package models

// Notice is a one-shot message shown to the user after a redirect
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// NoticeKind classifies notices for display
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// LoginView is the payload of GET /login
type LoginView struct {
	Notices []Notice `json:"notices"`
	Next    string   `json:"next,omitempty"`
}

// UserDashboardView is the payload of GET /user
type UserDashboardView struct {
	Username string         `json:"username"`
	Files    []FileListItem `json:"files"`
	Notices  []Notice       `json:"notices"`
}

// AdminDashboardView is the payload of GET /admin
type AdminDashboardView struct {
	Username string         `json:"username"`
	Users    []UserListItem `json:"users"`
	Files    []FileListItem `json:"files"`
	Notices  []Notice       `json:"notices"`
}
