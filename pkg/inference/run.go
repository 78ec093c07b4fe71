// Package inference drives a model over a scan and assembles the complete
// pipeline from a slice stack on disk to exported output volumes.
package inference

import (
	"errors"
	"fmt"

	"volscan/internal/models"
	"volscan/pkg/geometry"
	"volscan/pkg/scan"
)

// Func computes the output sample for the input sample centred at loc.
// Every output patch must be centred at loc with its head's patch shape.
type Func func(loc geometry.Vec3d, input models.Sample) (models.Sample, error)

// Run alternates Pull and Push on s until the scan is exhausted, calling
// infer for every location. It stops at the first error.
func Run(s *scan.Scanner, infer Func) error {
	for {
		input, err := s.Pull()
		if errors.Is(err, scan.Done) {
			return nil
		}
		if err != nil {
			return err
		}

		loc, _ := s.Outstanding()
		output, err := infer(loc, input)
		if err != nil {
			return fmt.Errorf("inference at %v: %w", loc, err)
		}
		if err := s.Push(output); err != nil {
			return err
		}
	}
}

// Identity returns a Func that crops the single-channel input patch named
// inputKey to each head of spec, repeating it across the head's channels.
// Every head's spatial patch must fit inside the input patch.
func Identity(spec models.ScanSpec, inputKey string) Func {
	return func(loc geometry.Vec3d, input models.Sample) (models.Sample, error) {
		src, ok := input[inputKey]
		if !ok {
			return nil, fmt.Errorf("input sample has no %q patch", inputKey)
		}

		out := make(models.Sample, len(spec))
		for key, shape := range spec {
			crop, err := src.Patch(geometry.CenteredBox(loc, shape.Spatial()))
			if err != nil {
				return nil, fmt.Errorf("head %q: %w", key, err)
			}

			n := crop.Voxels()
			channels := shape.Channels()
			data := make([]float64, channels*n)
			for c := 0; c < channels; c++ {
				copy(data[c*n:(c+1)*n], crop.Data[:n])
			}
			crop.Data = data
			crop.Channels = channels
			out[key] = crop
		}
		return out, nil
	}
}
