// Package capability maintains the per-recipient capability cache that
// decides whether an address can take RCS traffic, and which features
// its client advertises.
package capability

import (
	"context"
	"sync"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
	"github.com/pkg/errors"
)

// ProbeResult is the decoded outcome of one capability probe.
// Supported false is a definitive answer, not an error: the platform
// reported the address cannot take RCS traffic.
type ProbeResult struct {
	Supported bool
	Features  []string
}

// Prober performs a live capability check against the platform.
type Prober interface {
	Probe(ctx context.Context, agent *model.RCSAgent, msisdn, requestID string) (*ProbeResult, error)
}

// Registry answers capability lookups from the persistent cache, and
// probes exactly once per (agent, address) pair when the cache misses.
type Registry struct {
	records *repository.CapabilityRepository
	prober  Prober

	mu       sync.Mutex
	inflight map[string]*probeCall
}

type probeCall struct {
	done   chan struct{}
	record *model.CapabilityRecord
	err    error
}

func NewRegistry(records *repository.CapabilityRepository, prober Prober) *Registry {
	return &Registry{
		records:  records,
		prober:   prober,
		inflight: make(map[string]*probeCall),
	}
}

// Lookup returns the cached capability record, probing on a miss.
// Concurrent lookups for the same pair share one probe. The returned
// record may say the address does not support RCS; callers decide what
// that means for routing.
func (r *Registry) Lookup(ctx context.Context, agent *model.RCSAgent, msisdn, requestID string) (*model.CapabilityRecord, error) {
	record, err := r.records.Get(ctx, agent.ID, msisdn)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	key := agent.ID + "/" + msisdn
	r.mu.Lock()
	if call, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.record, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &probeCall{done: make(chan struct{})}
	r.inflight[key] = call
	r.mu.Unlock()

	call.record, call.err = r.probeAndStore(ctx, agent, msisdn, requestID)
	close(call.done)

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()

	return call.record, call.err
}

func (r *Registry) probeAndStore(ctx context.Context, agent *model.RCSAgent, msisdn, requestID string) (*model.CapabilityRecord, error) {
	result, err := r.prober.Probe(ctx, agent, msisdn, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "capability probe")
	}

	record := &model.CapabilityRecord{
		AgentID:     agent.ID,
		MSISDN:      msisdn,
		SupportsRCS: result.Supported,
	}
	if result.Supported {
		record.SetFeatures(result.Features)
	}

	stored, err := r.records.Upsert(ctx, record)
	if err != nil {
		return nil, errors.Wrap(err, "persist capability record")
	}
	logger.Debug("capability probed", "msisdn", msisdn, "supports_rcs", stored.SupportsRCS)
	return stored, nil
}

// Apply stores a platform-pushed capability update. A disabled update
// clears every feature flag along with RCS support.
func (r *Registry) Apply(ctx context.Context, agentID, msisdn string, enabled bool, features []string) error {
	record := &model.CapabilityRecord{
		AgentID:     agentID,
		MSISDN:      msisdn,
		SupportsRCS: enabled,
	}
	if enabled {
		record.SetFeatures(features)
	}
	_, err := r.records.Upsert(ctx, record)
	return err
}

// Revoke drops the cached record so the next send re-probes.
func (r *Registry) Revoke(ctx context.Context, agentID, msisdn string) error {
	return r.records.Delete(ctx, agentID, msisdn)
}

// Sweep re-probes records older than maxAge, refreshing stale answers
// in batches. It returns how many records were refreshed.
func (r *Registry) Sweep(ctx context.Context, agent *model.RCSAgent, maxAge time.Duration, batch int) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	stale, err := r.records.ListProbedBefore(ctx, cutoff, batch)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, record := range stale {
		if record.AgentID != agent.ID {
			continue
		}
		if _, err := r.probeAndStore(ctx, agent, record.MSISDN, record.ID); err != nil {
			logger.Warn("capability sweep probe failed", "msisdn", record.MSISDN, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
