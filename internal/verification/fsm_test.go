package verification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

func pendingLand() *domain.Land {
	return &domain.Land{ID: "l1", Title: "Plot", Area: 10, OwnerID: "u1", Status: domain.LandPending, VerificationStep: 1}
}

func TestParseStage(t *testing.T) {
	for name, want := range map[string]Stage{"documents": StageDocuments, "Notary": StageNotary, "3": StageProof, " mint ": StageMint} {
		got, err := ParseStage(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}
	_, err := ParseStage("escrow")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStageJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Stage Stage `json:"stage"`
	}{StageProof})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"proof"}`, string(data))

	var in struct {
		Stage Stage `json:"stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"stage":"mint"}`), &in))
	assert.Equal(t, StageMint, in.Stage)
}

func TestValidateInput(t *testing.T) {
	assert.ErrorIs(t, ValidateInput(StageDocuments, StageInput{}), domain.ErrValidation)
	assert.ErrorIs(t, ValidateInput(StageDocuments, StageInput{Documents: []string{"  "}}), domain.ErrValidation)
	assert.NoError(t, ValidateInput(StageDocuments, StageInput{Documents: []string{"deed.pdf"}}))

	assert.ErrorIs(t, ValidateInput(StageNotary, StageInput{}), domain.ErrValidation)
	assert.ErrorIs(t, ValidateInput(StageNotary, StageInput{Appointment: "tomorrow"}), domain.ErrValidation)
	assert.NoError(t, ValidateInput(StageNotary, StageInput{Appointment: "2026-05-01T10:00:00Z"}))

	assert.NoError(t, ValidateInput(StageProof, StageInput{}))
	assert.NoError(t, ValidateInput(StageMint, StageInput{}))
}

func TestCanStartEnforcesOrder(t *testing.T) {
	tests := []struct {
		step    int
		allowed Stage
	}{
		{1, StageDocuments},
		{2, StageNotary},
		{3, StageProof},
		{4, StageMint},
	}
	for _, tt := range tests {
		land := pendingLand()
		land.VerificationStep = tt.step
		for _, stage := range Stages() {
			err := CanStart(land, stage)
			if stage == tt.allowed {
				assert.NoError(t, err, "step %d stage %s", tt.step, stage)
				continue
			}
			assert.ErrorIs(t, err, domain.ErrPrecondition, "step %d stage %s", tt.step, stage)
		}
	}

	verified := pendingLand()
	verified.Status = domain.LandVerified
	verified.VerificationStep = domain.VerificationComplete
	for _, stage := range Stages() {
		assert.ErrorIs(t, CanStart(verified, stage), domain.ErrPrecondition)
	}
	assert.ErrorIs(t, CanStart(pendingLand(), Stage(9)), domain.ErrValidation)
}

func TestApplyWalksAllStages(t *testing.T) {
	land := pendingLand()
	now := time.Now()

	require.NoError(t, Apply(land, StageDocuments, StageResult{Documents: []string{"deed.pdf"}}, now))
	assert.Equal(t, 2, land.VerificationStep)
	assert.Equal(t, []string{"deed.pdf"}, land.Documents)
	require.NoError(t, land.Validate())

	require.NoError(t, Apply(land, StageNotary, StageResult{}, now))
	require.NoError(t, Apply(land, StageProof, StageResult{}, now))
	assert.Equal(t, 4, land.VerificationStep)
	assert.Equal(t, domain.LandPending, land.Status)
	assert.Nil(t, land.CertificateID)

	require.NoError(t, Apply(land, StageMint, StageResult{CertificateID: "nft_abc123xyz"}, now))
	assert.Equal(t, domain.LandVerified, land.Status)
	assert.Equal(t, domain.VerificationComplete, land.VerificationStep)
	require.NotNil(t, land.CertificateID)
	assert.Equal(t, "nft_abc123xyz", *land.CertificateID)
	require.NoError(t, land.Validate())

	assert.ErrorIs(t, Apply(land, StageMint, StageResult{CertificateID: "nft_again"}, now), domain.ErrPrecondition)
}

func TestApplyMintWithoutCertificate(t *testing.T) {
	land := pendingLand()
	land.VerificationStep = 4
	assert.Error(t, Apply(land, StageMint, StageResult{}, time.Now()))
	assert.Equal(t, domain.LandPending, land.Status)
}

func TestCertificateFormat(t *testing.T) {
	id, err := NewCertificateID()
	require.NoError(t, err)
	assert.Regexp(t, `^nft_[0-9a-z]{9}$`, id)
}
