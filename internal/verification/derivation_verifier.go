package verification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"swap-risk-lab/internal/derivation"
	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/idhash"
	"swap-risk-lab/internal/storage"
)

// ErrContractNotFound is returned when a contract id doesn't exist.
var ErrContractNotFound = errors.New("contract not found")

// Store is the subset of storage the verifier reads.
type Store interface {
	storage.ContractStore
	storage.ObligationStore
}

// Saver re-persists a contract with a fresh derivation.
// ingestion.Pipeline implements it.
type Saver interface {
	SaveContract(ctx context.Context, c *domain.SwapContract) (*domain.SwapContract, *derivation.Result, error)
}

// DerivationVerifierOptions contains configuration for creating a DerivationVerifier.
type DerivationVerifierOptions struct {
	Store  Store
	Saver  Saver // required by Repair and RepairAll only
	Logger *zap.Logger
}

// DerivationVerifier re-derives stored contracts and compares the result
// with the stored obligations and triggers.
type DerivationVerifier struct {
	store  Store
	saver  Saver
	logger *zap.Logger
}

// NewDerivationVerifier creates a new DerivationVerifier.
func NewDerivationVerifier(opts DerivationVerifierOptions) *DerivationVerifier {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DerivationVerifier{store: opts.Store, saver: opts.Saver, logger: logger}
}

// VerifyContract verifies a single contract by id.
func (v *DerivationVerifier) VerifyContract(ctx context.Context, contractID string) (*VerificationResult, error) {
	c, err := v.store.GetContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}
	return v.verify(ctx, c)
}

func (v *DerivationVerifier) verify(ctx context.Context, c *domain.SwapContract) (*VerificationResult, error) {
	stored, err := v.store.ListObligations(ctx, c.ContractID)
	if err != nil {
		return nil, fmt.Errorf("list obligations of %s: %w", c.ContractID, err)
	}
	storedTriggers := make([]int, len(stored))
	for i, o := range stored {
		triggers, err := v.store.ListTriggers(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list triggers of obligation %d: %w", o.ID, err)
		}
		storedTriggers[i] = len(triggers)
	}

	derived := derivation.Derive(c)
	derivedTriggers := make([]int, len(derived.Obligations))
	for i := range derived.Obligations {
		derivedTriggers[i] = len(derived.Triggers[i])
	}

	divergences := CompareObligations(stored, storedTriggers, derived)
	return &VerificationResult{
		ContractID:    c.ContractID,
		Match:         len(divergences) == 0,
		Divergences:   divergences,
		StoredDigest:  idhash.ObligationDigest(stored, storedTriggers),
		DerivedDigest: idhash.ObligationDigest(derived.Obligations, derivedTriggers),
	}, nil
}

// VerifyAll verifies all stored contracts. A contract that cannot be read
// is reported as divergent.
func (v *DerivationVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	contracts, err := v.store.ListContracts(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalContracts: len(contracts),
		Results:        make([]VerificationResult, 0, len(contracts)),
	}

	for _, c := range contracts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := v.verify(ctx, c)
		if err != nil {
			report.Results = append(report.Results, VerificationResult{
				ContractID: c.ContractID,
				Divergences: []FieldDivergence{
					{Field: "error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentContracts++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedContracts++
		} else {
			report.DivergentContracts++
		}
	}

	v.logger.Info("verification finished",
		zap.Int("contracts", report.TotalContracts),
		zap.Int("divergent", report.DivergentContracts),
	)
	return report, nil
}

// Repair re-saves a divergent contract. Reports whether a write happened.
// Saving replaces every derived row, so repairing twice is harmless.
func (v *DerivationVerifier) Repair(ctx context.Context, contractID string) (bool, error) {
	if v.saver == nil {
		return false, errors.New("repair: no saver configured")
	}

	c, err := v.store.GetContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, ErrContractNotFound
		}
		return false, err
	}
	result, err := v.verify(ctx, c)
	if err != nil {
		return false, err
	}
	if result.Match {
		return false, nil
	}

	if _, _, err := v.saver.SaveContract(ctx, c); err != nil {
		return false, fmt.Errorf("repair %s: %w", contractID, err)
	}
	v.logger.Info("contract repaired",
		zap.String("contract_id", contractID),
		zap.Int("divergences", len(result.Divergences)),
	)
	return true, nil
}

// RepairAll verifies every contract and repairs the divergent ones.
func (v *DerivationVerifier) RepairAll(ctx context.Context) (*VerificationReport, error) {
	report, err := v.VerifyAll(ctx)
	if err != nil {
		return report, err
	}
	for _, id := range report.Divergent() {
		repaired, err := v.Repair(ctx, id)
		if err != nil {
			v.logger.Warn("repair failed", zap.String("contract_id", id), zap.Error(err))
			continue
		}
		if repaired {
			report.Repaired++
		}
	}
	return report, nil
}
