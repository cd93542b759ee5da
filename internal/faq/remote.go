package faq

import (
	"context"
	"io"
	"sync"

	domerrors "github.com/melonneet/ezhishi-chatbot/internal/errors"
	"github.com/melonneet/ezhishi-chatbot/internal/r2client"
)

// MaxRemoteSize caps the decoded size of a remote FAQ document.
const MaxRemoteSize = 32 << 20

// ObjectStore is the subset of the bucket client the remote source needs.
type ObjectStore interface {
	HeadObject(ctx context.Context, key string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// RemoteSource reads FAQ documents from an object store. Fetch compares
// ETags and reports ErrUnchanged when the object has not been replaced.
type RemoteSource struct {
	store ObjectStore
	key   string

	mu       sync.Mutex
	lastETag string
}

// NewRemoteSource creates a source for key.
func NewRemoteSource(store ObjectStore, key string) *RemoteSource {
	return &RemoteSource{store: store, key: key}
}

// Name implements Source.
func (s *RemoteSource) Name() string { return "r2://" + s.key }

// Fetch implements Source.
func (s *RemoteSource) Fetch(ctx context.Context) (*LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	etag, err := s.store.HeadObject(ctx, s.key)
	if err != nil {
		return nil, domerrors.NewLoadError(s.Name(), -1, err)
	}
	if etag != "" && etag == s.lastETag {
		return nil, ErrUnchanged
	}

	body, etag, err := s.store.Download(ctx, s.key)
	if err != nil {
		return nil, domerrors.NewLoadError(s.Name(), -1, err)
	}
	defer func() { _ = body.Close() }()

	data, err := r2client.ReadObject(s.key, body, MaxRemoteSize)
	if err != nil {
		return nil, domerrors.NewLoadError(s.Name(), -1, err)
	}

	res, err := Parse(s.Name(), FormatFor(s.key), data)
	if err != nil {
		return nil, err
	}
	s.lastETag = etag
	return res, nil
}
