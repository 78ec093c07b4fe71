package inference

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/tiff"

	"volscan/internal/models"
	"volscan/pkg/config"
	"volscan/pkg/dataset"
	"volscan/pkg/scan"
	"volscan/pkg/visualization"
	"volscan/pkg/volume"
)

// Params holds the runner parameters
type Params struct {
	// InputDir is the directory containing the 2D slices of the input
	// volume in JPEG or TIFF format, ordered by the number in their names
	InputDir string

	// OutputDir is where the output slices are written. Nothing is
	// written when empty.
	OutputDir string

	// Config supplies the scan parameters, heads and output settings
	Config *config.Config

	// Infer is the model. When nil, Identity over the configured heads
	// is used.
	Infer Func
}

// Runner loads a slice stack, scans it with the configured model and
// exports the merged outputs.
//
// The process consists of several steps:
// 1. Loading the input slices
// 2. Building the input volume and dataset
// 3. Preparing the scanner
// 4. Running inference over every scan location
// 5. Saving the output volumes
// 6. Calculating summary metrics
type Runner struct {
	params *Params

	// runID tags log output of this run
	runID  string
	logger *log.Logger

	// slices holds the input slice images in z order
	slices []image.Image

	// width and height store the dimensions of the input slices
	width  int
	height int

	input   *volume.Array
	scanner *scan.Scanner
	metrics Metrics
}

// NewRunner creates a new runner with the provided parameters
func NewRunner(params *Params) *Runner {
	runID := uuid.New().String()
	return &Runner{
		params: params,
		runID:  runID,
		logger: log.New(os.Stdout, fmt.Sprintf("[%s] ", runID[:8]), 0),
		slices: make([]image.Image, 0),
	}
}

// RunID returns the unique identifier of this run
func (r *Runner) RunID() string {
	return r.runID
}

// SetLogger replaces the logger used for progress and step output
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Process runs the complete pipeline
func (r *Runner) Process() error {
	cfg := r.params.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
		r.params.Config = cfg
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	r.logger.Println("Step 1: Loading input slices...")
	if err := r.loadSlices(); err != nil {
		return fmt.Errorf("failed to load slices: %w", err)
	}

	r.logger.Println("Step 2: Building input volume...")
	ds, err := r.buildDataset()
	if err != nil {
		return fmt.Errorf("failed to build dataset: %w", err)
	}

	r.logger.Println("Step 3: Preparing scan...")
	params, err := cfg.ScanParams()
	if err != nil {
		return err
	}
	scanLogger := r.logger
	if !cfg.Output.Verbose {
		scanLogger = log.New(io.Discard, "", 0)
	}
	r.scanner, err = scan.New(ds, cfg.ScanSpec(), params, scan.WithLogger(scanLogger))
	if err != nil {
		return err
	}
	plan := r.scanner.Plan()
	r.logger.Printf("Scan plan: %d locations, stride %v (default %v), overlapping=%v",
		plan.Len(), plan.Stride(), plan.DefaultStride(), plan.Overlapping())

	r.logger.Println("Step 4: Running inference...")
	infer := r.params.Infer
	if infer == nil {
		infer = Identity(cfg.ScanSpec(), cfg.Input.Key)
	}
	if err := Run(r.scanner, infer); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if r.params.OutputDir != "" {
		r.logger.Println("Step 5: Saving output volumes...")
		if err := r.saveOutputs(); err != nil {
			return fmt.Errorf("failed to save outputs: %w", err)
		}
	}

	r.logger.Println("Step 6: Calculating metrics...")
	r.metrics = CalculateMetrics(plan, r.scanner.Voxels())

	return nil
}

// loadSlices loads the input slices sorted by the number in their file names
func (r *Runner) loadSlices() error {
	entries, err := os.ReadDir(r.params.InputDir)
	if err != nil {
		return err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".tif", ".tiff":
			imageFiles = append(imageFiles, entry.Name())
		}
	}

	if len(imageFiles) == 0 {
		return fmt.Errorf("no JPEG or TIFF images found in input directory")
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	r.slices = r.slices[:0]
	for _, filename := range imageFiles {
		img, err := loadImage(filepath.Join(r.params.InputDir, filename))
		if err != nil {
			return fmt.Errorf("failed to load image %s: %w", filename, err)
		}

		bounds := img.Bounds()
		if len(r.slices) == 0 {
			r.width = bounds.Dx()
			r.height = bounds.Dy()
		} else if bounds.Dx() != r.width || bounds.Dy() != r.height {
			return fmt.Errorf("image %s is %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), r.width, r.height)
		}

		r.slices = append(r.slices, img)
	}

	r.logger.Printf("Loaded %d slices with dimensions %dx%d", len(r.slices), r.width, r.height)
	return nil
}

// buildDataset stacks the slices along z into the input volume
func (r *Runner) buildDataset() (*dataset.VolumeDataset, error) {
	cfg := r.params.Config
	r.input = volume.New(1, [3]int{}, [3]int{len(r.slices), r.height, r.width})
	copy(r.input.Data, imagesToFloat(r.slices))

	ds, err := dataset.NewVolumeDataset(cfg.InputSpec())
	if err != nil {
		return nil, err
	}
	if err := ds.AddVolume(cfg.Input.Key, r.input); err != nil {
		return nil, err
	}
	return ds, nil
}

// saveOutputs writes every head as a z-slice sequence
func (r *Runner) saveOutputs() error {
	cfg := r.params.Config
	voxels := r.scanner.Voxels()
	for _, key := range cfg.ScanSpec().Keys() {
		vol := voxels[key]
		channel := cfg.Output.Channel
		if channel >= vol.Channels {
			channel = vol.Channels - 1
		}
		viewer, err := visualization.NewViewer(vol, channel)
		if err != nil {
			return err
		}
		dir := filepath.Join(r.params.OutputDir, key)
		if err := viewer.SaveSliceSequence("z", dir, cfg.Output.Format); err != nil {
			return fmt.Errorf("head %q: %w", key, err)
		}
		r.logger.Printf("Saved head %q to %s", key, dir)
	}
	return nil
}

// GetMetrics returns the metrics of the last completed run
func (r *Runner) GetMetrics() Metrics {
	return r.metrics
}

// Voxels returns the merged outputs
func (r *Runner) Voxels() models.Sample {
	if r.scanner == nil {
		return nil
	}
	return r.scanner.Voxels()
}

// Input returns the input volume built from the slices
func (r *Runner) Input() *volume.Array {
	return r.input
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage loads a JPEG or TIFF image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return tiff.Decode(file)
	default:
		return jpeg.Decode(file)
	}
}

// imagesToFloat converts a slice of images to float array
func imagesToFloat(images []image.Image) []float64 {
	if len(images) == 0 {
		return nil
	}

	bounds := images[0].Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	size := width * height
	result := make([]float64, size*len(images))

	for i, img := range images {
		b := img.Bounds()
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// Convert 16-bit color to float64 (0-1 range)
				result[i*size+y*width+x] = float64(r) / 65535.0
			}
		}
	}

	return result
}
