// Package verification drives a parcel through its four verification stages.
// The transition rules in this file are pure; executors.go simulates the work of
// each stage and runner.go schedules it per user.
package verification

import (
	"fmt"
	"strings"
	"time"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

// Stage is one verification step. Its value equals the land's verificationStep
// while the stage is next in line.
type Stage int

const (
	StageDocuments Stage = iota + 1
	StageNotary
	StageProof
	StageMint
)

var stageNames = map[Stage]string{
	StageDocuments: "documents",
	StageNotary:    "notary",
	StageProof:     "proof",
	StageMint:      "mint",
}

// Stages lists every stage in order
func Stages() []Stage {
	return []Stage{StageDocuments, StageNotary, StageProof, StageMint}
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is one of the four stages
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStage accepts a stage name or its number
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for stage, n := range stageNames {
		if n == name || fmt.Sprint(int(stage)) == name {
			return stage, nil
		}
	}
	return 0, domain.Validation("unknown verification stage %q", name)
}

// StageInput carries what the user supplies when starting a stage
type StageInput struct {
	Documents      []string `json:"documents,omitempty"`
	Appointment    string   `json:"appointment,omitempty"`
	NFTName        string   `json:"nftName,omitempty"`
	NFTDescription string   `json:"nftDescription,omitempty"`
}

// StageRequest is handed to an executor
type StageRequest struct {
	Land  domain.Land
	Stage Stage
	Input StageInput
}

// StageResult is what a finished executor produced
type StageResult struct {
	Reference     string            `json:"reference,omitempty"`
	Documents     []string          `json:"documents,omitempty"`
	CertificateID string            `json:"certificateId,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// ValidateInput checks the stage-specific input rules
func ValidateInput(stage Stage, input StageInput) error {
	switch stage {
	case StageDocuments:
		n := 0
		for _, d := range input.Documents {
			if strings.TrimSpace(d) != "" {
				n++
			}
		}
		if n == 0 {
			return domain.Validation("please select at least one document")
		}
	case StageNotary:
		if strings.TrimSpace(input.Appointment) == "" {
			return domain.Validation("please select appointment date and time")
		}
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(input.Appointment)); err != nil {
			return domain.Validation("appointment must be an RFC 3339 timestamp")
		}
	case StageProof, StageMint:
	default:
		return domain.Validation("unknown verification stage %d", int(stage))
	}
	return nil
}

// CanStart reports whether stage is the next stage of land
func CanStart(land *domain.Land, stage Stage) error {
	if !stage.Valid() {
		return domain.Validation("unknown verification stage %d", int(stage))
	}
	if land.IsVerified() {
		return domain.Precondition("land is already verified")
	}
	if land.VerificationStep != int(stage) {
		next := Stage(land.VerificationStep)
		return domain.Precondition("stage %s is not available, next stage is %s", stage, next)
	}
	return nil
}

// Apply records a completed stage on land. Mint marks the land verified and
// attaches the certificate.
func Apply(land *domain.Land, stage Stage, result StageResult, now time.Time) error {
	if err := CanStart(land, stage); err != nil {
		return err
	}

	switch stage {
	case StageDocuments:
		land.Documents = append(land.Documents, result.Documents...)
	case StageMint:
		if result.CertificateID == "" {
			return fmt.Errorf("mint finished without a certificate id")
		}
		certificate := result.CertificateID
		land.CertificateID = &certificate
		land.Status = domain.LandVerified
	}

	land.VerificationStep = int(stage) + 1
	land.UpdatedAt = now
	return nil
}
