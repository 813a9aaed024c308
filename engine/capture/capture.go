// Package capture writes render targets and CPU reference images to OpenEXR files for offline
// inspection of the linear values a technique produced.
package capture

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-oit/engine/renderer/resource"
	"github.com/mrjoshuak/go-openexr/exr"
)

// ErrUnsupportedFormat is returned for textures whose texels are not color or depth values.
var ErrUnsupportedFormat = errors.New("capture: unsupported texture format")

// Prober returns the representative texel of a texture, as the headless backend does.
type Prober interface {
	Probe(tex *resource.Texture) [4]float32
}

// FromFunc builds an image by evaluating fn at every pixel.
//
// Parameters:
//   - width: the image width in pixels
//   - height: the image height in pixels
//   - fn: returns the linear RGBA value of pixel (x, y)
//
// Returns:
//   - *exr.RGBAImage: the image
func FromFunc(width, height int, fn func(x, y int) [4]float32) *exr.RGBAImage {
	img := exr.NewRGBAImage(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := fn(x, y)
			img.SetRGBA(x, y, v[0], v[1], v[2], v[3])
		}
	}
	return img
}

// Uniform builds an image filled with v.
func Uniform(width, height int, v [4]float32) *exr.RGBAImage {
	img := exr.NewRGBAImage(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], v[:])
	}
	return img
}

// Expand maps a texel of the given format onto RGBA. Single channel formats are replicated to
// grey, two channel formats fill red and green, and missing alpha is 1.
//
// Returns:
//   - [4]float32: the RGBA value
//   - error: ErrUnsupportedFormat for integer and undefined formats
func Expand(format resource.TextureFormat, v [4]float32) ([4]float32, error) {
	switch format {
	case resource.FormatRGBA8Unorm, resource.FormatBGRA8Unorm, resource.FormatRGBA16Float:
		return v, nil
	case resource.FormatRG16Float:
		return [4]float32{v[0], v[1], 0, 1}, nil
	case resource.FormatR8Unorm, resource.FormatR32Float, resource.FormatDepth32Float, resource.FormatDepth16Unorm:
		return [4]float32{v[0], v[0], v[0], 1}, nil
	}
	return [4]float32{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Texture reads tex through p into an image of the texture's size.
//
// Parameters:
//   - p: the texel source
//   - tex: the texture to capture
//
// Returns:
//   - *exr.RGBAImage: the image
//   - error: ErrUnsupportedFormat if the texture format has no color interpretation
func Texture(p Prober, tex *resource.Texture) (*exr.RGBAImage, error) {
	if tex == nil {
		return nil, errors.New("capture: nil texture")
	}
	v, err := Expand(tex.Desc.Format, p.Probe(tex))
	if err != nil {
		return nil, fmt.Errorf("capture %q: %w", tex.Desc.Label, err)
	}
	return Uniform(int(tex.Desc.Width), int(tex.Desc.Height), v), nil
}

// WriteFile encodes img as a half float, ZIP compressed EXR file, creating missing directories.
func WriteFile(path string, img *exr.RGBAImage) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("capture: create %s: %w", dir, err)
		}
	}
	if err := exr.EncodeFile(path, img); err != nil {
		return fmt.Errorf("capture: write %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes an EXR file written by WriteFile.
func ReadFile(path string) (*exr.RGBAImage, error) {
	img, err := exr.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: read %s: %w", path, err)
	}
	return img, nil
}

// Targets writes one EXR file per named texture into dir. Files are named
// "<prefix>_<name>.exr" with path separators and dots in the name replaced by underscores.
// Textures in an unsupported format are skipped.
//
// Parameters:
//   - dir: the output directory
//   - prefix: the file name prefix, e.g. the frame number
//   - p: the texel source
//   - targets: the textures to capture by name
//
// Returns:
//   - []string: the written paths in name order
//   - error: the first write error
func Targets(dir, prefix string, p Prober, targets map[string]*resource.Texture) ([]string, error) {
	names := make([]string, 0, len(targets))
	for name, tex := range targets {
		if tex != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	replacer := strings.NewReplacer("/", "_", "\\", "_", ".", "_", " ", "_")
	var paths []string
	for _, name := range names {
		img, err := Texture(p, targets[name])
		if errors.Is(err, ErrUnsupportedFormat) {
			continue
		}
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.exr", prefix, replacer.Replace(name)))
		if err := WriteFile(path, img); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
