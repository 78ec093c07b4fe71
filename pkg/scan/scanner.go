package scan

import (
	"errors"
	"fmt"
	"log"

	"volscan/internal/models"
	"volscan/pkg/blend"
	"volscan/pkg/dataset"
	"volscan/pkg/geometry"
)

var (
	// Done is returned by Pull once every location has been handed out
	Done = errors.New("scan complete")

	// ErrDoublePull is returned when Pull is called while a location is
	// still awaiting its Push
	ErrDoublePull = errors.New("pull while a request is outstanding")

	// ErrPushWithoutPull is returned when Push is called with no
	// outstanding request
	ErrPushWithoutPull = errors.New("push without pull")
)

// state is the mutable part of a scan. outstanding is non-nil exactly
// between a Pull and its matching Push.
type state struct {
	cursor      int
	outstanding *geometry.Vec3d
}

// Scanner hands out input samples one at a time and merges the results
// pushed back into its outputs
type Scanner struct {
	dataset dataset.Dataset
	plan    *Plan
	outputs blend.Accumulator
	logger  *log.Logger
	state   state
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger used for per-location progress lines
func WithLogger(l *log.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithOutputs makes the scanner merge into acc instead of allocating its
// own outputs, e.g. an accumulator from blend.Into writing to preallocated
// buffers
func WithOutputs(acc blend.Accumulator) Option {
	return func(s *Scanner) {
		s.outputs = acc
	}
}

// New builds the scan plan over ds and prepares the outputs for spec
func New(ds dataset.Dataset, spec models.ScanSpec, params Params, opts ...Option) (*Scanner, error) {
	plan, err := BuildPlan(spec, ds.Range(), params)
	if err != nil {
		return nil, fmt.Errorf("building scan plan: %w", err)
	}

	s := &Scanner{
		dataset: ds,
		plan:    plan,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.outputs == nil {
		s.outputs, err = blend.Prepare(spec, plan.locs, blend.Options{
			Overlap: plan.Overlapping(),
			Mode:    params.Blend,
			Stride:  plan.stride,
		})
		if err != nil {
			return nil, fmt.Errorf("preparing outputs: %w", err)
		}
	}
	return s, nil
}

// Pull returns the input sample for the next location. It returns Done once
// the plan is exhausted, leaving the scanner unchanged.
func (s *Scanner) Pull() (models.Sample, error) {
	if s.state.cursor >= s.plan.Len() {
		return nil, Done
	}
	if s.state.outstanding != nil {
		return nil, fmt.Errorf("%w: %v", ErrDoublePull, *s.state.outstanding)
	}

	idx := s.state.cursor
	loc := s.plan.locs[idx]
	s.logger.Printf("(%d/%d) loc: %v", idx+1, s.plan.Len(), loc)

	sample, err := s.dataset.Sample(loc)
	if err != nil {
		return nil, fmt.Errorf("fetching sample at %v: %w", loc, err)
	}

	s.state.outstanding = &loc
	s.state.cursor++
	return sample, nil
}

// Push merges the result for the outstanding location. If the outputs
// reject it the location stays outstanding.
func (s *Scanner) Push(sample models.Sample) error {
	if s.state.outstanding == nil {
		return ErrPushWithoutPull
	}
	loc := *s.state.outstanding
	if err := s.outputs.Push(loc, sample); err != nil {
		return fmt.Errorf("merging result at %v: %w", loc, err)
	}
	s.state.outstanding = nil
	return nil
}

// Voxels returns the merged outputs, complete or not
func (s *Scanner) Voxels() models.Sample {
	return s.outputs.Voxels()
}

// Plan returns the scan plan
func (s *Scanner) Plan() *Plan {
	return s.plan
}

// Progress returns the number of locations pulled so far and the total
func (s *Scanner) Progress() (pulled, total int) {
	return s.state.cursor, s.plan.Len()
}

// Outstanding returns the location awaiting a Push, if any
func (s *Scanner) Outstanding() (geometry.Vec3d, bool) {
	if s.state.outstanding == nil {
		return geometry.Vec3d{}, false
	}
	return *s.state.outstanding, true
}
