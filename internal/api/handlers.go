package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"swap-risk-lab/internal/domain"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/normalization"
	"swap-risk-lab/internal/reporting"
	"swap-risk-lab/internal/storage"
	"swap-risk-lab/internal/trigger"
)

// EventContractDeleted is published after DELETE /api/contracts/{id}.
const EventContractDeleted = "contract_deleted"

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps storage and aggregation sentinels to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, exposure.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, normalization.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func subjectKind(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind := chi.URLParam(r, "kind")
	if kind != exposure.KindEntity && kind != exposure.KindCounterparty {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("kind must be %q or %q", exposure.KindEntity, exposure.KindCounterparty))
		return "", false
	}
	return kind, true
}

func (s *Server) listContracts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		contracts []*domain.SwapContract
		err       error
	)
	switch q := r.URL.Query(); {
	case q.Get("counterparty") != "":
		contracts, err = s.opts.Store.FindByCounterparty(ctx, q.Get("counterparty"))
	case q.Get("entity") != "":
		contracts, err = s.opts.Store.FindByReferenceEntity(ctx, q.Get("entity"))
	default:
		contracts, err = s.opts.Store.ListContracts(ctx)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if r.URL.Query().Get("format") == reporting.FormatCSV {
		out, err := reporting.RenderContractsCSV(contracts)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, out)
		return
	}
	writeJSON(w, http.StatusOK, contracts)
}

func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	c, err := s.opts.Store.GetContract(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contractID")
	removed, err := s.opts.Store.DeleteContract(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("contract %s not found", id))
		return
	}
	if s.opts.Aggregator != nil {
		s.opts.Aggregator.Invalidate()
	}
	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(EventContractDeleted, map[string]string{"contract_id": id})
	}
	s.logger.Info("contract deleted", zap.String("contract_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) contractObligations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "contractID")
	if _, err := s.opts.Store.GetContract(ctx, id); err != nil {
		writeStoreError(w, err)
		return
	}
	rows, err := s.opts.Store.ObligationsView(ctx, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) explainContract(w http.ResponseWriter, r *http.Request) {
	text, err := s.opts.Reports.ExplainContract(r.Context(), chi.URLParam(r, "contractID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": text})
}

// ExposureResponse is the JSON shape of an exposure.
type ExposureResponse struct {
	Kind             string                         `json:"kind"`
	Subject          string                         `json:"subject"`
	TotalNotional    float64                        `json:"total_notional"`
	NumSwaps         int                            `json:"num_swaps"`
	AvgNotional      float64                        `json:"avg_notional"`
	EarliestMaturity time.Time                      `json:"earliest_maturity"`
	LatestMaturity   time.Time                      `json:"latest_maturity"`
	ByCurrency       []exposure.Share               `json:"by_currency"`
	ByCounterparty   []exposure.Share               `json:"by_counterparty"`
	BySwapType       map[domain.SwapType]float64    `json:"by_swap_type"`
	Largest          string                         `json:"largest_contract"`
	Contracts        []string                       `json:"contracts"`
	Analysis         *exposure.CounterpartyAnalysis `json:"counterparty_analysis,omitempty"`
}

func (s *Server) getExposure(w http.ResponseWriter, r *http.Request) {
	kind, ok := subjectKind(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	e, err := s.opts.Aggregator.Exposure(r.Context(), kind, name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := ExposureResponse{
		Kind:             e.Kind,
		Subject:          e.Subject,
		TotalNotional:    e.TotalNotional,
		NumSwaps:         e.NumSwaps,
		AvgNotional:      e.AvgNotional,
		EarliestMaturity: e.EarliestMaturity,
		LatestMaturity:   e.LatestMaturity,
		ByCurrency:       exposure.Ranked(e.ByCurrency, e.TotalNotional),
		ByCounterparty:   exposure.Ranked(e.ByCounterparty, e.TotalNotional),
		BySwapType:       e.BySwapType,
	}
	if e.Largest != nil {
		resp.Largest = e.Largest.ContractID
	}
	for _, c := range e.Contracts {
		resp.Contracts = append(resp.Contracts, c.ContractID)
	}
	if kind == exposure.KindCounterparty {
		analysis, err := exposure.AnalyzeCounterparty(name, e.Contracts, s.now())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp.Analysis = analysis
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getRisk(w http.ResponseWriter, r *http.Request) {
	kind, ok := subjectKind(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	withNarrative := q.Get("narrative") == "true" || q.Get("narrative") == "1"

	report, err := s.opts.Reports.Generate(r.Context(), kind, chi.URLParam(r, "name"), withNarrative)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	switch format := q.Get("format"); format {
	case "", reporting.FormatJSON:
		writeJSON(w, http.StatusOK, report)
	case reporting.FormatMarkdown, reporting.FormatCSV:
		out, err := reporting.Render(report, format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if format == reporting.FormatCSV {
			w.Header().Set("Content-Type", "text/csv")
		} else {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		}
		io.WriteString(w, out)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (s *Server) riskHistory(w http.ResponseWriter, r *http.Request) {
	kind, ok := subjectKind(w, r)
	if !ok {
		return
	}
	if s.opts.History == nil {
		writeJSON(w, http.StatusOK, []*domain.RiskSnapshot{})
		return
	}
	snaps, err := s.opts.History.GetBySubject(r.Context(), kind, chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) obligationsView(w http.ResponseWriter, r *http.Request) {
	rows, err := s.opts.Store.ObligationsView(r.Context(), r.URL.Query().Get("contract_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if r.URL.Query().Get("format") == reporting.FormatCSV {
		out, err := reporting.RenderObligationsCSV(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, out)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// obligationsDue evaluates every trigger as of a date. Entities listed in
// credit_event are treated as having defaulted; performance takes
// ENTITY:VALUE pairs.
func (s *Server) obligationsDue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf := s.now().UTC()
	if v := q.Get("as_of"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid as_of %q: want YYYY-MM-DD", v))
			return
		}
		asOf = d
	}
	env := trigger.Env{AsOf: asOf, CreditEvents: make(map[string]bool), Performance: make(map[string]float64)}
	for _, entity := range splitParams(q["credit_event"]) {
		env.CreditEvents[entity] = true
	}
	for _, pair := range splitParams(q["performance"]) {
		entity, raw, ok := strings.Cut(pair, ":")
		perf, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if !ok || err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid performance %q: want ENTITY:VALUE", pair))
			return
		}
		env.Performance[strings.TrimSpace(entity)] = perf
	}

	rows, err := s.opts.Store.ObligationsView(r.Context(), "")
	if err != nil {
		writeStoreError(w, err)
		return
	}
	due := trigger.Due(rows, env)
	if due == nil {
		due = []*domain.ObligationViewRow{}
	}
	writeJSON(w, http.StatusOK, due)
}

// splitParams flattens repeated and comma separated query values.
func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ingest stores the uploaded "file" part under a temporary name with the
// original extension and runs it through the pipeline.
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("missing file part: %v", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !normalization.IsSupported("upload" + ext) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	tmp, err := os.CreateTemp("", "swaprisk-upload-*"+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.opts.Pipeline.ProcessFile(r.Context(), tmp.Name())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.mu.Lock()
	s.uploads++
	s.lastIngest = s.now()
	s.mu.Unlock()

	resp := IngestResponse{
		File:        header.Filename,
		Rows:        result.Rows,
		Persisted:   result.Persisted,
		Obligations: result.Obligations,
		Triggers:    result.Triggers,
		Instruments: result.Instruments,
	}
	if resp.Persisted == nil {
		resp.Persisted = []string{}
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, FailedContract{ContractID: f.ContractID, Error: f.Err.Error()})
	}
	for _, sk := range result.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedRow{Row: sk.Index, Reason: sk.Reason, Detail: sk.Detail})
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestResponse is the JSON response for POST /api/ingest.
type IngestResponse struct {
	File        string           `json:"file"`
	Rows        int              `json:"rows"`
	Persisted   []string         `json:"persisted"`
	Failed      []FailedContract `json:"failed,omitempty"`
	Skipped     []SkippedRow     `json:"skipped,omitempty"`
	Obligations int              `json:"obligations"`
	Triggers    int              `json:"triggers"`
	Instruments int              `json:"instruments"`
}

// FailedContract is a contract that normalized but could not be saved.
type FailedContract struct {
	ContractID string `json:"contract_id"`
	Error      string `json:"error"`
}

// SkippedRow is a source row rejected during normalization.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}
