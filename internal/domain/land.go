package domain

import (
	"fmt"
	"time"
)

// LandStatus is the verification status of a parcel
type LandStatus string

const (
	LandPending  LandStatus = "pending"
	LandVerified LandStatus = "verified"
)

const (
	// FirstVerificationStep is the step of a freshly registered parcel
	FirstVerificationStep = 1
	// VerificationComplete is the step recorded once all four stages have passed
	VerificationComplete = 5
)

// Land represents a registered parcel
type Land struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Area             float64    `json:"area"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Country          string     `json:"country"`
	Pincode          string     `json:"pincode"`
	Coordinates      string     `json:"coordinates,omitempty"`
	Description      string     `json:"description,omitempty"`
	OwnerID          string     `json:"ownerId"`
	OwnerName        string     `json:"ownerName"`
	OwnerEmail       string     `json:"ownerEmail"`
	Status           LandStatus `json:"status"`
	VerificationStep int        `json:"verificationStep"`
	Documents        []string   `json:"documents"`
	CertificateID    *string    `json:"certificateId"`
	RegisteredAt     time.Time  `json:"registeredAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Version          int64      `json:"version"`
}

// IsVerified reports whether the parcel completed all verification stages
func (l *Land) IsVerified() bool {
	return l.Status == LandVerified
}

// Validate checks the status/step/certificate invariant
func (l *Land) Validate() error {
	if l.VerificationStep < FirstVerificationStep || l.VerificationStep > VerificationComplete {
		return fmt.Errorf("land %s: verification step %d out of range", l.ID, l.VerificationStep)
	}
	verified := l.Status == LandVerified
	hasCert := l.CertificateID != nil && *l.CertificateID != ""
	complete := l.VerificationStep == VerificationComplete
	if verified != hasCert || verified != complete {
		return fmt.Errorf("land %s: status %q, step %d and certificate disagree", l.ID, l.Status, l.VerificationStep)
	}
	if l.Status != LandPending && l.Status != LandVerified {
		return fmt.Errorf("land %s: unknown status %q", l.ID, l.Status)
	}
	return nil
}

// Clone returns a deep copy
func (l Land) Clone() Land {
	if l.Documents != nil {
		docs := make([]string, len(l.Documents))
		copy(docs, l.Documents)
		l.Documents = docs
	}
	if l.CertificateID != nil {
		id := *l.CertificateID
		l.CertificateID = &id
	}
	return l
}
