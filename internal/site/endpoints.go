// Package site drives the attendance site itself: authenticated sessions
// with persisted cookie jars, quiz page fetching and parsing, and answer
// submission.
package site

import "strings"

// Endpoints names the site-specific pages and form fields. They are
// configuration: a site-side rename must not require a code change.
type Endpoints struct {
	Base        string // scheme://host, no trailing slash
	LoginPage   string
	TakeLogin   string
	Attendance  string
	SubmitField string
}

// DefaultEndpoints returns the conventional page layout for the site.
func DefaultEndpoints(base string) Endpoints {
	return Endpoints{
		Base:        strings.TrimRight(base, "/"),
		LoginPage:   "login.php",
		TakeLogin:   "takelogin.php",
		Attendance:  "attendance.php",
		SubmitField: "answer",
	}
}

func (e Endpoints) loginURL() string      { return e.Base + "/" + e.LoginPage }
func (e Endpoints) takeLoginURL() string  { return e.Base + "/" + e.TakeLogin }
func (e Endpoints) attendanceURL() string { return e.Base + "/" + e.Attendance }
