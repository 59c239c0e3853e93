package allocation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var (
	// ErrPolicyNotFound is returned when no policy is configured
	ErrPolicyNotFound = errors.New("no policy configured")
	// ErrInvalidPolicy wraps every policy validation failure
	ErrInvalidPolicy = errors.New("invalid policy")
)

// TargetInput is one requested target before normalization
type TargetInput struct {
	AssetClass string  `json:"asset_class" yaml:"asset_class" validate:"required,max=50"`
	Weight     float64 `json:"weight" yaml:"weight" validate:"gte=0,lte=1"`
	Band       float64 `json:"band" yaml:"band" validate:"gte=0,lte=1"`
}

// PolicyInput is a requested policy. An empty base currency means the
// service default.
type PolicyInput struct {
	BaseCurrency string        `json:"base_currency" yaml:"base_currency" validate:"omitempty,len=3,alpha"`
	Targets      []TargetInput `json:"targets" yaml:"targets" validate:"required,min=1,dive"`
}

// Service validates and stores the allocation policy
type Service struct {
	repo         *Repository
	validate     *validator.Validate
	baseCurrency string
	clock        utils.Clock
	log          zerolog.Logger
}

// NewService creates a new policy service
func NewService(repo *Repository, baseCurrency string, clock utils.Clock, log zerolog.Logger) *Service {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Service{
		repo:         repo,
		validate:     validator.New(),
		baseCurrency: utils.NormalizeCurrency(baseCurrency),
		clock:        clock,
		log:          log.With().Str("service", "allocation").Logger(),
	}
}

// GetPolicy returns the active policy or ErrPolicyNotFound
func (s *Service) GetPolicy(ctx context.Context) (*domain.Policy, error) {
	p, err := s.repo.GetPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPolicyNotFound
	}
	return p, nil
}

// SetPolicy replaces the active policy. Asset classes are normalized and
// must be distinct after normalization.
func (s *Service) SetPolicy(ctx context.Context, in PolicyInput) (*domain.Policy, error) {
	policy, err := s.buildPolicy(in)
	if err != nil {
		return nil, err
	}
	return s.repo.ReplacePolicy(ctx, *policy)
}

func (s *Service) buildPolicy(in PolicyInput) (*domain.Policy, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	base := utils.NormalizeCurrency(in.BaseCurrency)
	if base == "" {
		base = s.baseCurrency
	}

	policy := &domain.Policy{
		BaseCurrency: base,
		UpdatedAt:    s.clock.Now(),
		Targets:      make([]domain.PolicyTarget, 0, len(in.Targets)),
	}

	seen := make(map[domain.AssetClass]bool, len(in.Targets))
	for _, t := range in.Targets {
		class := domain.NormalizeAssetClass(t.AssetClass)
		if seen[class] {
			return nil, fmt.Errorf("%w: duplicate target for %s", ErrInvalidPolicy, class)
		}
		seen[class] = true

		policy.Targets = append(policy.Targets, domain.PolicyTarget{
			AssetClass: class,
			Weight:     t.Weight,
			Band:       t.Band,
		})
	}

	return policy, nil
}

// SeedFromFile applies the YAML policy at path when no policy exists yet.
// It reports whether a policy was written.
func (s *Service) SeedFromFile(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}

	existing, err := s.repo.GetPolicy(ctx)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.log.Debug().Str("path", path).Msg("Policy already configured, seed skipped")
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	var in PolicyInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return false, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidPolicy, path, err)
	}

	if _, err := s.SetPolicy(ctx, in); err != nil {
		return false, err
	}

	s.log.Info().Str("path", path).Int("targets", len(in.Targets)).Msg("Policy seeded from file")
	return true, nil
}
