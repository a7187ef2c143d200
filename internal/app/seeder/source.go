package seeder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/heartmarshall/seedloader/internal/config"
	"github.com/heartmarshall/seedloader/internal/domain"
	"github.com/heartmarshall/seedloader/seeddata"
)

// ErrFileNotFound is returned by a Source for a seed file it does not hold.
var ErrFileNotFound = errors.New("seed file not found")

// Source yields the raw content of seed files by file name.
type Source interface {
	// Describe names the source for reports.
	Describe() string
	// Check verifies that the source is reachable.
	Check(ctx context.Context) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// NewSource builds the source selected by cfg.
func NewSource(cfg config.SeederConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceE2E:
		return NewFSSource(seeddata.E2E(), "e2e (embedded)"), nil
	case config.SourceCustom:
		if cfg.Path == "" {
			return nil, domain.NewConfigurationError("custom source requires a path")
		}
		return NewAFSSource(cfg.Path), nil
	default:
		return nil, domain.NewConfigurationError("unknown source %q", cfg.Source)
	}
}

// FSSource reads seed files from an fs.FS.
type FSSource struct {
	fsys fs.FS
	name string
}

// NewFSSource creates an FSSource described as name.
func NewFSSource(fsys fs.FS, name string) *FSSource {
	return &FSSource{fsys: fsys, name: name}
}

func (s *FSSource) Describe() string { return s.name }

func (s *FSSource) Check(context.Context) error { return nil }

func (s *FSSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrFileNotFound)
	}
	return data, err
}

// AFSSource reads seed files under a base location through viant/afs, so
// local directories and any registered storage scheme work alike.
type AFSSource struct {
	fs      afs.Service
	baseURL string
}

// NewAFSSource creates an AFSSource rooted at baseURL.
func NewAFSSource(baseURL string) *AFSSource {
	return &AFSSource{fs: afs.New(), baseURL: baseURL}
}

func (s *AFSSource) Describe() string { return s.baseURL }

func (s *AFSSource) Check(ctx context.Context) error {
	ok, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil {
		return domain.NewConfigurationError("check source %s: %v", s.baseURL, err)
	}
	if !ok {
		return domain.NewConfigurationError("source %s does not exist", s.baseURL)
	}
	return nil
}

func (s *AFSSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	URL := url.Join(s.baseURL, name)
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", URL, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", URL, ErrFileNotFound)
	}
	return s.fs.DownloadWithURL(ctx, URL)
}
