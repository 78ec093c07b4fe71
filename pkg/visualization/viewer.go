package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"volscan/pkg/volume"
)

// Viewer extracts 2D sections from one channel of a scanned output volume.
// Positions are absolute volume coordinates, matching the scan locations.
type Viewer struct {
	// vol holds the output volume
	vol *volume.Array

	// channel is the channel being viewed
	channel int

	// lo and hi map voxel values onto the 16-bit grey range
	lo, hi float64
}

// NewViewer creates a viewer over one channel of vol. Values are scaled
// from the channel's own minimum and maximum.
func NewViewer(vol *volume.Array, channel int) (*Viewer, error) {
	if channel < 0 || channel >= vol.Channels {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", channel, vol.Channels)
	}

	n := vol.Voxels()
	data := vol.Data[channel*n : (channel+1)*n]
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if n == 0 {
		lo, hi = 0, 1
	}

	return &Viewer{vol: vol, channel: channel, lo: lo, hi: hi}, nil
}

func (v *Viewer) gray(value float64) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	scaled := (value - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, scaled*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	o := v.vol.Origin
	s := v.vol.Shape
	c := v.channel

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position < o[2] || position >= o[2]+s[2] {
			return nil, fmt.Errorf("position %d outside x range [%d, %d)", position, o[2], o[2]+s[2])
		}

		img = image.NewGray16(image.Rect(0, 0, s[0], s[1]))
		for y := 0; y < s[1]; y++ {
			for z := 0; z < s[0]; z++ {
				img.SetGray16(z, y, v.gray(v.vol.At(c, o[0]+z, o[1]+y, position)))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position < o[1] || position >= o[1]+s[1] {
			return nil, fmt.Errorf("position %d outside y range [%d, %d)", position, o[1], o[1]+s[1])
		}

		img = image.NewGray16(image.Rect(0, 0, s[2], s[0]))
		for z := 0; z < s[0]; z++ {
			for x := 0; x < s[2]; x++ {
				img.SetGray16(x, z, v.gray(v.vol.At(c, o[0]+z, position, o[2]+x)))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position < o[0] || position >= o[0]+s[0] {
			return nil, fmt.Errorf("position %d outside z range [%d, %d)", position, o[0], o[0]+s[0])
		}

		img = image.NewGray16(image.Rect(0, 0, s[2], s[1]))
		for y := 0; y < s[1]; y++ {
			for x := 0; x < s[2]; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(c, position, o[1]+y, o[2]+x)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice; the extension selects TIFF or JPEG
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		return tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
}

// SaveSliceSequence extracts and saves every slice along the specified axis.
// format is "tiff" or "jpeg".
func (v *Viewer) SaveSliceSequence(axis, outputDir, format string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	ext := ".tif"
	if format == "jpeg" {
		ext = ".jpg"
	}

	var dim int
	switch axis {
	case "x", "X":
		dim = 2
	case "y", "Y":
		dim = 1
	case "z", "Z":
		dim = 0
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	start := v.vol.Origin[dim]
	for pos := start; pos < start+v.vol.Shape[dim]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%04d%s", axis, pos, ext))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
