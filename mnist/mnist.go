// Package mnist loads the MNIST handwritten-digit dataset from its idx-ubyte
// files, plain or gzipped.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

const (
	ImgSize    = 28
	NumPixels  = ImgSize * ImgSize
	NumClasses = 10
)

const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

const (
	trainImagesFile = "train-images-idx3-ubyte"
	trainLabelsFile = "train-labels-idx1-ubyte"
	testImagesFile  = "t10k-images-idx3-ubyte"
	testLabelsFile  = "t10k-labels-idx1-ubyte"
)

// Split is one side of the train/test partition: flattened images scaled to
// [0,1], one row per sample, and the matching digit labels.
type Split struct {
	Features *mat.Dense
	Labels   []int
}

// Len returns the number of samples in the split.
func (s *Split) Len() int { return len(s.Labels) }

// Image returns sample i as an ImgSize x ImgSize float32 tensor.
func (s *Split) Image(i int) tensor.Tensor {
	row := s.Features.RawRowView(i)
	backing := make([]float32, NumPixels)
	for j, v := range row {
		backing[j] = float32(v)
	}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(ImgSize, ImgSize), tensor.WithBacking(backing))
}

// Load reads the four MNIST idx files from dir. For each file a gzipped copy
// (name + ".gz") is preferred when present.
func Load(dir string) (train, test *Split, err error) {
	train, err = loadSplit(dir, trainImagesFile, trainLabelsFile)
	if err != nil {
		return nil, nil, err
	}
	test, err = loadSplit(dir, testImagesFile, testLabelsFile)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadSplit(dir, imagesName, labelsName string) (*Split, error) {
	features, err := readImagesFile(filepath.Join(dir, imagesName))
	if err != nil {
		return nil, err
	}
	labels, err := readLabelsFile(filepath.Join(dir, labelsName))
	if err != nil {
		return nil, err
	}
	n, _ := features.Dims()
	if n != len(labels) {
		return nil, fmt.Errorf("mnist: %s has %d images but %s has %d labels", imagesName, n, labelsName, len(labels))
	}
	return &Split{Features: features, Labels: labels}, nil
}

func readImagesFile(path string) (*mat.Dense, error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadImages(r)
}

func readLabelsFile(path string) ([]int, error) {
	r, err := openMaybeGzip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadLabels(r)
}

func openMaybeGzip(path string) (io.ReadCloser, error) {
	if f, err := os.Open(path + ".gz"); err == nil {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mnist: %s.gz: %w", path, err)
		}
		return &gzipFile{gz: gz, f: f}, nil
	}
	return os.Open(path)
}

type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	if err := g.gz.Close(); err != nil {
		g.f.Close()
		return err
	}
	return g.f.Close()
}

// ReadImages decodes an idx3-ubyte image stream into an n x rows*cols matrix
// with pixel values scaled to [0,1].
func ReadImages(r io.Reader) (*mat.Dense, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, header[:]); err != nil {
		return nil, fmt.Errorf("mnist: reading image header: %w", err)
	}
	if header[0] != imageMagic {
		return nil, fmt.Errorf("mnist: bad image magic 0x%08x", header[0])
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if count <= 0 || rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("mnist: bad image dimensions %d x %d x %d", count, rows, cols)
	}
	raw := make([]byte, count*rows*cols)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("mnist: reading %d images: %w", count, err)
	}
	norm := make([]float64, len(raw))
	for i, b := range raw {
		norm[i] = float64(b) / 255.0
	}
	return mat.NewDense(count, rows*cols, norm), nil
}

// ReadLabels decodes an idx1-ubyte label stream.
func ReadLabels(r io.Reader) ([]int, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, header[:]); err != nil {
		return nil, fmt.Errorf("mnist: reading label header: %w", err)
	}
	if header[0] != labelMagic {
		return nil, fmt.Errorf("mnist: bad label magic 0x%08x", header[0])
	}
	raw := make([]byte, int(header[1]))
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("mnist: reading %d labels: %w", len(raw), err)
	}
	labels := make([]int, len(raw))
	for i, b := range raw {
		labels[i] = int(b)
	}
	return labels, nil
}

// OneHot encodes labels as an n x numClasses float32 tensor.
func OneHot(labels []int, numClasses int) (tensor.Tensor, error) {
	norm := make([]float32, len(labels)*numClasses)
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("mnist: label %d at index %d outside [0, %d)", label, i, numClasses)
		}
		norm[i*numClasses+label] = 1.0
	}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(len(labels), numClasses), tensor.WithBacking(norm)), nil
}

// SaveImagePNG writes sample i of the split as a grayscale PNG.
func SaveImagePNG(s *Split, i int, path string) error {
	t := s.Image(i)
	img := image.NewGray(image.Rect(0, 0, ImgSize, ImgSize))
	for y := 0; y < ImgSize; y++ {
		for x := 0; x < ImgSize; x++ {
			v, err := t.At(y, x)
			if err != nil {
				return err
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v.(float32) * 255.0)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
