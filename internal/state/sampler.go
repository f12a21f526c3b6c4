package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"apiconform/internal/model"
)

// SamplerConfig controls which kinds StateSampler tracks and how it
// samples them (spec.md §4.4 "Configuration (enumerated)").
type SamplerConfig struct {
	TrackEntityCounts    bool
	TrackEntityChecksums bool
	IncludeOnly          map[string]struct{} // non-empty wins over Exclude
	Exclude              map[string]struct{}
	MaxParallelism       int
	SampleTimeout        time.Duration // per-kind query timeout, default 30s
}

// DefaultSamplerConfig returns the spec's documented defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		TrackEntityCounts:    true,
		TrackEntityChecksums: false,
		MaxParallelism:       runtime.NumCPU(),
		SampleTimeout:        30 * time.Second,
	}
}

// Sampler captures StateSnapshots from a Source.
type Sampler struct {
	source Source
	config SamplerConfig
	log    *zap.Logger
}

// NewSampler builds a Sampler. A nil logger is valid; failures are simply
// not logged.
func NewSampler(source Source, config SamplerConfig, log *zap.Logger) *Sampler {
	if config.MaxParallelism <= 0 {
		config.MaxParallelism = runtime.NumCPU()
	}
	if config.SampleTimeout <= 0 {
		config.SampleTimeout = 30 * time.Second
	}
	return &Sampler{source: source, config: config, log: log}
}

// Capture produces a StateSnapshot for every tracked kind, bounded by
// config.MaxParallelism concurrent kinds via a counting semaphore
// (golang.org/x/sync/semaphore), each kind retried once on transient
// error before being omitted (spec.md §4.4, §7 StateSourceError).
func (s *Sampler) Capture(ctx context.Context) (model.StateSnapshot, error) {
	start := time.Now()

	kinds, err := s.trackedKinds(ctx)
	if err != nil {
		return model.StateSnapshot{}, err
	}

	sem := semaphore.NewWeighted(int64(s.config.MaxParallelism))
	var mu sync.Mutex
	samples := map[string]model.KindSample{}
	var wg sync.WaitGroup

	for _, kind := range kinds {
		kind := kind
		if err := sem.Acquire(ctx, 1); err != nil {
			break // cancelled; stop launching new work, let in-flight finish
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			sample, ok := s.sampleKindWithRetry(ctx, kind)
			if !ok {
				return
			}
			mu.Lock()
			samples[kind] = sample
			mu.Unlock()
		}()
	}
	wg.Wait()

	return model.StateSnapshot{
		CapturedAt:         start,
		Duration:           time.Since(start),
		Samples:            samples,
		TrackedEntityTypes: kinds,
	}, nil
}

func (s *Sampler) trackedKinds(ctx context.Context) ([]string, error) {
	descriptors, err := s.source.EntityKinds(ctx)
	if err != nil {
		return nil, err
	}
	var kinds []string
	for _, d := range descriptors {
		if s.isTracked(d.Name) {
			kinds = append(kinds, d.Name)
		}
	}
	sort.Strings(kinds)
	return kinds, nil
}

func (s *Sampler) isTracked(kind string) bool {
	if len(s.config.IncludeOnly) > 0 {
		_, ok := s.config.IncludeOnly[kind]
		return ok
	}
	_, excluded := s.config.Exclude[kind]
	return !excluded
}

func (s *Sampler) sampleKindWithRetry(ctx context.Context, kind string) (model.KindSample, bool) {
	sample, err := s.sampleKind(ctx, kind)
	if err == nil {
		return sample, true
	}
	sample, err = s.sampleKind(ctx, kind)
	if err == nil {
		return sample, true
	}
	if s.log != nil {
		s.log.Warn("state sample failed twice, omitting kind",
			zap.String("kind", kind), zap.Error(err))
	}
	return model.KindSample{}, false
}

func (s *Sampler) sampleKind(ctx context.Context, kind string) (model.KindSample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SampleTimeout)
	defer cancel()

	sample := model.KindSample{}
	if s.config.TrackEntityCounts {
		count, err := s.source.Count(ctx, kind)
		if err != nil {
			return model.KindSample{}, err
		}
		sample.Count = count
	}
	if s.config.TrackEntityChecksums {
		records, err := s.source.ListAll(ctx, kind)
		if err != nil {
			return model.KindSample{}, err
		}
		sum, err := canonicalChecksum(records)
		if err != nil {
			return model.KindSample{}, err
		}
		sample.Checksum = sum
		sample.HasChecksum = true
	}
	return sample, nil
}

// canonicalChecksum hashes the SHA-256 of records' canonical JSON encoding:
// field names exactly as the Source returns them (no case conversion is
// applied), no pretty-print, object keys sorted ascending at every level.
// encoding/json's default map encoding already sorts keys; the
// canonicalize pass below additionally normalizes any nested
// map[string]interface{} produced by a loose StateSource implementation.
func canonicalChecksum(records []interface{}) (string, error) {
	normalized := make([]interface{}, len(records))
	for i, r := range records {
		normalized[i] = canonicalize(r)
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[strings.TrimSpace(k)] = canonicalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = canonicalize(val)
		}
		return out
	default:
		return v
	}
}
