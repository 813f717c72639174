// Package library implements the file lifecycle: upload, edit, delete,
// download and the listings built on the access rules, plus threaded
// comments on files.
package library

import (
	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/notify"
	"github.com/marmos91/mozaichub/pkg/quota"
	"github.com/marmos91/mozaichub/pkg/render"
	"github.com/marmos91/mozaichub/pkg/social"
)

const (
	// DefaultMaxUploadSize is 200 MiB.
	DefaultMaxUploadSize int64 = 200 << 20

	// MaxCommentLength is the longest accepted comment, in characters.
	MaxCommentLength = 5000
)

// Feed section sizes.
const (
	FeedPopular = 6
	FeedMedia   = 8
	FeedOther   = 8
	FeedFriends = 6
)

// Config holds library limits.
type Config struct {
	MaxUploadSize int64
}

// Deps are the collaborators of the library service.
type Deps struct {
	Metadata metadata.Store
	Content  content.ContentStore
	Access   *access.Resolver
	Quota    *quota.Ledger
	Notify   *notify.Service
	Graph    *social.Graph
	Sweeper  *gc.Sweeper
	Renderer render.Renderer
	Clock    clockwork.Clock
}

// Service is the file library.
type Service struct {
	store    metadata.Store
	content  content.ContentStore
	access   *access.Resolver
	quota    *quota.Ledger
	notify   *notify.Service
	graph    *social.Graph
	sweeper  *gc.Sweeper
	renderer render.Renderer
	clock    clockwork.Clock
	config   Config
}

// New creates the library service.
func New(deps Deps, config Config) *Service {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	if deps.Renderer == nil {
		deps.Renderer = render.NewMarkdown()
	}
	return &Service{
		store:    deps.Metadata,
		content:  deps.Content,
		access:   deps.Access,
		quota:    deps.Quota,
		notify:   deps.Notify,
		graph:    deps.Graph,
		sweeper:  deps.Sweeper,
		renderer: deps.Renderer,
		clock:    deps.Clock,
		config:   config,
	}
}

// MaxUploadSize returns the configured upload limit in bytes.
func (s *Service) MaxUploadSize() int64 {
	return s.config.MaxUploadSize
}
