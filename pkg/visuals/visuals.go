// Package visuals provides the generate_image tool: an image model draws the
// post's visual, which is then cropped to LinkedIn's feed formats and saved.
package visuals

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/germanamz/postcraft/pkg/chats/content"
	"github.com/germanamz/postcraft/pkg/tools/toolbox"
)

// Format is a LinkedIn image size.
type Format struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Formats LinkedIn renders well in the feed.
var Formats = map[string]Format{
	"square":    {Name: "square", Width: 1080, Height: 1080},
	"landscape": {Name: "landscape", Width: 1200, Height: 627},
	"portrait":  {Name: "portrait", Width: 1080, Height: 1350},
}

// ErrUnknownFormat is returned for a format name missing from Formats.
var ErrUnknownFormat = errors.New("visuals: unknown format")

// Generator draws images from a prompt. gemini.Adapter implements it.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) ([]content.Image, error)
}

// Asset is a rendered file.
type Asset struct {
	Format string `json:"format"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Studio renders and records assets for one run.
type Studio struct {
	gen      Generator
	dir      string
	prefix   string
	defaults []string
	logger   *slog.Logger

	mu     sync.Mutex
	assets []Asset
	seq    int
}

// NewStudio creates a Studio writing files named <prefix>-<n>-<format>.png
// into dir. formats are rendered when a call does not name any.
func NewStudio(gen Generator, dir, prefix string, formats []string, logger *slog.Logger) (*Studio, error) {
	if len(formats) == 0 {
		formats = []string{"square"}
	}
	for _, f := range formats {
		if _, ok := Formats[f]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Studio{gen: gen, dir: dir, prefix: prefix, defaults: formats, logger: logger}, nil
}

// Render generates one image for prompt and writes it in each format.
func (s *Studio) Render(ctx context.Context, prompt string, formats []string) ([]Asset, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("visuals: empty prompt")
	}
	if len(formats) == 0 {
		formats = s.defaults
	}

	specs := make([]Format, 0, len(formats))
	for _, name := range formats {
		f, ok := Formats[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
		}
		specs = append(specs, f)
	}

	imgs, err := s.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("visuals: %w", err)
	}
	if len(imgs) == 0 {
		return nil, errors.New("visuals: generator returned no image")
	}

	src, _, err := image.Decode(bytes.NewReader(imgs[0].Data))
	if err != nil {
		return nil, fmt.Errorf("visuals: decode image: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("visuals: %w", err)
	}

	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()

	out := make([]Asset, 0, len(specs))
	for _, f := range specs {
		path := filepath.Join(s.dir, fmt.Sprintf("%s-%d-%s.png", s.prefix, n, f.Name))
		if err := imaging.Save(Fit(src, f), path); err != nil {
			return nil, fmt.Errorf("visuals: save %s: %w", f.Name, err)
		}
		out = append(out, Asset{Format: f.Name, Path: path, Width: f.Width, Height: f.Height})
		s.logger.Debug("visual written", "path", path)
	}

	s.mu.Lock()
	s.assets = append(s.assets, out...)
	s.mu.Unlock()

	return out, nil
}

// Assets returns every asset rendered so far.
func (s *Studio) Assets() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]Asset, len(s.assets))
	copy(cp, s.assets)
	return cp
}

// Fit scales and centre-crops img to exactly f's dimensions.
func Fit(img image.Image, f Format) image.Image {
	return imaging.Fill(img, f.Width, f.Height, imaging.Center, imaging.Lanczos)
}

// FormatNames lists the supported format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(Formats))
	for n := range Formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type imageInput struct {
	Prompt  string   `json:"prompt" jsonschema:"description=Detailed description of the visual to create"`
	Formats []string `json:"formats,omitempty" jsonschema:"description=LinkedIn formats to render (square or landscape or portrait)"`
}

type imageOutput struct {
	Images []Asset `json:"images"`
}

// Tools returns a toolbox with the generate_image tool.
func (s *Studio) Tools() *toolbox.ToolBox {
	return toolbox.New(toolbox.Func("generate_image",
		"Create a professional visual for the LinkedIn post and save it in LinkedIn image sizes.",
		func(ctx context.Context, in imageInput) (imageOutput, error) {
			assets, err := s.Render(ctx, in.Prompt, in.Formats)
			if err != nil {
				return imageOutput{}, err
			}
			return imageOutput{Images: assets}, nil
		}))
}
