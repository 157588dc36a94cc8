package domain

import (
	"time"

	"github.com/diagnosis/justbook-waitlist/internal/utils"
)

type Registrant struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"date"`
}

// OptOut is an append-only record; the same email may appear more than once.
type OptOut struct {
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	LeftAt time.Time `json:"date"`
}

type Stats struct {
	Signups    int `json:"signups"`
	SurveyTaps int `json:"surveyTaps"`
}

type AdminData struct {
	Registered []Registrant `json:"registered"`
	OptOuts    []OptOut     `json:"optOuts"`
	Stats      Stats        `json:"stats"`
}

type JoinRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UnsubscribeRequest struct {
	Email string `json:"email"`
}

type JoinResult struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
}

// WarningNotifyFailed is attached to a successful join whose welcome email was not delivered.
const WarningNotifyFailed = "Joined, but confirmation email failed."

func (r *JoinRequest) Normalize() {
	r.Name = utils.NormalizeName(r.Name)
	r.Email = utils.NormalizeEmail(r.Email)
}

func (r *JoinRequest) Validate(requireName bool) error {
	if r.Email == "" {
		return InvalidInput("Email is required")
	}
	if !utils.IsValidEmail(r.Email) {
		return InvalidInput("Please enter a valid email address")
	}
	if requireName && r.Name == "" {
		return InvalidInput("Name is required")
	}
	return nil
}

func (r *UnsubscribeRequest) Normalize() {
	r.Email = utils.NormalizeEmail(r.Email)
}

func (r *UnsubscribeRequest) Validate() error {
	if r.Email == "" {
		return InvalidInput("Email is required")
	}
	return nil
}
