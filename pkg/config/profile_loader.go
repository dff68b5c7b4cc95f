package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CommunityProfile is a per-community tuning profile: one commons may run a
// tighter retirement quorum or a slower reputation decay than another. The
// shape of every computation is fixed in code; profiles carry only the
// numbers.
type CommunityProfile struct {
	Name       string           `yaml:"name" json:"name"`
	Code       string           `yaml:"code" json:"code"`
	Reputation ReputationConfig `yaml:"reputation" json:"reputation"`
	Retirement RetirementConfig `yaml:"retirement" json:"retirement"`
	Receipts   ReceiptsConfig   `yaml:"receipts" json:"receipts"`
	Degraded   DegradedConfig   `yaml:"degraded" json:"degraded"`
}

// ReputationConfig tunes score derivation.
type ReputationConfig struct {
	HalfLifeDays int                `yaml:"half_life_days" json:"half_life_days"`
	DefaultScore float64            `yaml:"default_score" json:"default_score"`
	ClaimWeights map[string]float64 `yaml:"claim_weights,omitempty" json:"claim_weights,omitempty"`
}

// RetirementConfig tunes the end-of-life protocol.
type RetirementConfig struct {
	MinValidators       int     `yaml:"min_validators" json:"min_validators"`
	MaxValidators       int     `yaml:"max_validators" json:"max_validators"`
	HighValueQuantity   float64 `yaml:"high_value_quantity" json:"high_value_quantity"`
	ChallengeWindowDays int     `yaml:"challenge_window_days" json:"challenge_window_days"`
	DisposalCustodian   string  `yaml:"disposal_custodian" json:"disposal_custodian"`
}

// ChallengeWindow returns the configured window as a duration.
func (r RetirementConfig) ChallengeWindow() time.Duration {
	return time.Duration(r.ChallengeWindowDays) * 24 * time.Hour
}

// ReceiptsConfig tunes receipt issuance.
type ReceiptsConfig struct {
	ToleranceSeconds int `yaml:"tolerance_seconds" json:"tolerance_seconds"`
}

// Tolerance returns the pair timestamp tolerance as a duration.
func (r ReceiptsConfig) Tolerance() time.Duration {
	return time.Duration(r.ToleranceSeconds) * time.Second
}

// DegradedConfig carries the outage allow-list expression.
type DegradedConfig struct {
	AllowExpression string `yaml:"allow_expression" json:"allow_expression"`
}

// LoadProfile loads one community profile by code from profilesDir,
// expecting profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*CommunityProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile CommunityProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in the directory, keyed by
// community code.
func LoadAllProfiles(profilesDir string) (map[string]*CommunityProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*CommunityProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var profile CommunityProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Code] = &profile
	}
	return profiles, nil
}
