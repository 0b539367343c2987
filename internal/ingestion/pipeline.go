// Package ingestion moves source files through normalization, entity
// resolution and derivation into the contract store.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"swap-risk-lab/internal/derivation"
	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/idhash"
	"swap-risk-lab/internal/normalization"
	"swap-risk-lab/internal/observability"
	"swap-risk-lab/internal/resolver"
	"swap-risk-lab/internal/storage"
)

// Event types sent to the Publisher.
const (
	EventContractPersisted = "contract_persisted"
	EventFileProcessed     = "file_processed"
)

// Publisher receives ingestion events.
type Publisher interface {
	Publish(eventType string, payload any)
}

// Invalidator is notified after every successful write.
type Invalidator interface {
	Invalidate()
}

// ContractFailure is a normalized contract that could not be persisted.
type ContractFailure struct {
	ContractID string
	Err        error
}

// FileResult summarizes the ingestion of one file.
type FileResult struct {
	Path         string
	Fingerprint  string
	Rows         int
	Persisted    []string // contract ids in input order
	Failed       []ContractFailure
	Skipped      []normalization.SkippedRow
	Unrecognized []string
	Obligations  int
	Triggers     int
	Instruments  int
	Duration     time.Duration
}

// ContractEvent is the payload of EventContractPersisted.
type ContractEvent struct {
	ContractID      string  `json:"contract_id"`
	Counterparty    string  `json:"counterparty"`
	ReferenceEntity string  `json:"reference_entity"`
	SwapType        string  `json:"swap_type"`
	Notional        float64 `json:"notional_amount"`
	Currency        string  `json:"currency"`
	Obligations     int     `json:"obligations"`
	Triggers        int     `json:"triggers"`
}

// FileEvent is the payload of EventFileProcessed.
type FileEvent struct {
	Path      string `json:"path"`
	Persisted int    `json:"persisted"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Normalizer *normalization.Normalizer // nil uses the default field map
	Resolver   *resolver.Resolver        // required
	Store      storage.ContractStore     // required
	Cache      Invalidator               // optional
	Publisher  Publisher                 // optional
	Logger     *zap.Logger
}

// Pipeline persists normalized contracts together with their derived
// obligations, triggers and instruments.
type Pipeline struct {
	normalizer *normalization.Normalizer
	resolver   *resolver.Resolver
	store      storage.ContractStore
	cache      Invalidator
	publisher  Publisher
	logger     *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = normalization.New(normalization.Options{Logger: logger})
	}
	return &Pipeline{
		normalizer: normalizer,
		resolver:   opts.Resolver,
		store:      opts.Store,
		cache:      opts.Cache,
		publisher:  opts.Publisher,
		logger:     logger,
	}
}

// ProcessFile ingests one file. Malformed rows and contracts that fail to
// persist are reported in the result; only unreadable files and context
// cancellation return an error.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	start := time.Now()
	logger := p.logger.With(zap.String("path", path))

	fingerprint, err := idhash.FileFingerprint(path)
	if err != nil {
		observability.RecordFile("error", time.Since(start))
		return nil, fmt.Errorf("fingerprint %s: %w", path, err)
	}

	norm, err := p.normalizer.NormalizeFile(path)
	if err != nil {
		observability.RecordFile("error", time.Since(start))
		return nil, fmt.Errorf("normalize %s: %w", path, err)
	}

	for reason, n := range norm.SkippedByReason() {
		for i := 0; i < n; i++ {
			observability.RecordSkippedRow(reason)
		}
	}
	for _, u := range norm.Unrecognized {
		field, _, _ := strings.Cut(u, "=")
		observability.RecordUnrecognized(field)
	}

	res, err := p.ProcessContracts(ctx, norm.Contracts)
	res.Path = path
	res.Fingerprint = fingerprint
	res.Rows = len(norm.Contracts) + len(norm.Skipped)
	res.Skipped = norm.Skipped
	res.Unrecognized = norm.Unrecognized
	res.Duration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "cancelled"
	}
	observability.RecordFile(status, res.Duration)

	p.publish(EventFileProcessed, FileEvent{
		Path:      path,
		Persisted: len(res.Persisted),
		Failed:    len(res.Failed),
		Skipped:   len(res.Skipped),
	})

	logger.Info("file processed",
		zap.Int("rows", res.Rows),
		zap.Int("persisted", len(res.Persisted)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("obligations", res.Obligations),
		zap.Int("triggers", res.Triggers),
		zap.Duration("duration", res.Duration),
	)
	return res, err
}

// ProcessContracts persists contracts one at a time. A failing contract is
// recorded and the loop moves on. The returned result is never nil.
func (p *Pipeline) ProcessContracts(ctx context.Context, contracts []*domain.SwapContract) (*FileResult, error) {
	res := &FileResult{}
	for _, c := range contracts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		stored, derived, err := p.SaveContract(ctx, c)
		observability.RecordContract(err)
		if err != nil {
			p.logger.Warn("contract not persisted",
				zap.String("contract_id", c.ContractID),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, ContractFailure{ContractID: c.ContractID, Err: err})
			continue
		}

		res.Persisted = append(res.Persisted, stored.ContractID)
		res.Obligations += len(derived.Obligations)
		res.Triggers += derived.TriggerCount()
		res.Instruments += len(derived.Instruments)

		p.publish(EventContractPersisted, ContractEvent{
			ContractID:      stored.ContractID,
			Counterparty:    stored.Counterparty,
			ReferenceEntity: stored.ReferenceEntity,
			SwapType:        stored.SwapType.String(),
			Notional:        stored.NotionalAmount,
			Currency:        stored.Currency,
			Obligations:     len(derived.Obligations),
			Triggers:        derived.TriggerCount(),
		})
	}
	return res, nil
}

// SaveContract resolves the contract's counterparty and instruments, derives
// its obligations and writes the whole graph in one transaction. The
// exposure cache is invalidated after the write.
func (p *Pipeline) SaveContract(ctx context.Context, c *domain.SwapContract) (*domain.SwapContract, *derivation.Result, error) {
	if c == nil {
		return nil, nil, storage.ErrInvalidInput
	}

	cp, err := p.resolver.GetOrCreateCounterparty(ctx, c.Counterparty)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve counterparty %q: %w", c.Counterparty, err)
	}
	contract := c.Clone()
	contract.CounterpartyID = cp.ID

	derived := derivation.Derive(contract)
	graph, err := p.buildGraph(ctx, contract, derived)
	if err != nil {
		return nil, nil, err
	}

	stored, err := p.store.SaveContractGraph(ctx, graph)
	if err != nil {
		return nil, nil, fmt.Errorf("save %s: %w", c.ContractID, err)
	}

	for _, o := range derived.Obligations {
		observability.RecordObligation(o.Type)
	}
	if p.cache != nil {
		p.cache.Invalidate()
	}
	return stored, derived, nil
}

func (p *Pipeline) buildGraph(ctx context.Context, c *domain.SwapContract, derived *derivation.Result) (*storage.ContractGraph, error) {
	graph := &storage.ContractGraph{Contract: c}
	for i, o := range derived.Obligations {
		graph.Obligations = append(graph.Obligations, storage.ObligationGraph{
			Obligation: o,
			Triggers:   derived.Triggers[i],
		})
	}

	for _, spec := range derived.Instruments {
		if strings.TrimSpace(spec.Identifier) == "" {
			continue
		}
		sec, err := p.resolver.GetOrCreateSecurity(ctx, spec.Identifier)
		if err != nil {
			return nil, fmt.Errorf("resolve security %q: %w", spec.Identifier, err)
		}
		graph.Instruments = append(graph.Instruments, &domain.UnderlyingInstrument{
			SecurityID:     sec.ID,
			Identifier:     sec.Identifier,
			InstrumentType: spec.InstrumentType,
			Description:    spec.Description,
			Quantity:       spec.Quantity,
			Notional:       spec.Notional,
			Currency:       spec.Currency,
		})
	}
	return graph, nil
}

func (p *Pipeline) publish(eventType string, payload any) {
	if p.publisher != nil {
		p.publisher.Publish(eventType, payload)
	}
}
