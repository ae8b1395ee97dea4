// Package connector exposes the X connector through the host plugin contract:
// declare credentials, initialize from config, and compute update sets.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/xsync/internal/config"
	"github.com/ppiankov/xsync/internal/content"
	"github.com/ppiankov/xsync/internal/filter"
	"github.com/ppiankov/xsync/internal/privacy"
	"github.com/ppiankov/xsync/internal/reconcile"
	"github.com/ppiankov/xsync/internal/source"
)

// CredentialBearerToken is the only credential the connector requires.
const CredentialBearerToken = "bearerToken"

const bearerTokenInstructions = `An X API v2 app-only bearer token.

1. Sign in at https://developer.x.com and open the Developer Portal.
2. Create a project and an app inside it (the free tier is enough for small account lists).
3. Open the app's "Keys and tokens" page and generate a Bearer Token.
4. Paste the token here. It is only used for read requests.`

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrNotInitialized    = errors.New("connector is not initialized")
)

// Plugin is the contract the host drives.
type Plugin interface {
	RequiredCredentials() map[string]string
	Init(ctx context.Context, credentials map[string]string, opts config.Options) error
	Update(ctx context.Context, lastUsed int64, existing map[string]int64) reconcile.UpdateMap
}

var _ Plugin = (*Connector)(nil)

// ClientFactory builds the fetcher for an authenticated session.
type ClientFactory func(token string) (source.Fetcher, error)

// XFactory returns a factory producing X API clients with the given options.
func XFactory(opts ...source.XOption) ClientFactory {
	return func(token string) (source.Fetcher, error) {
		return source.NewX(token, opts...)
	}
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for filtering and fetch windows.
func WithClock(now func() time.Time) Option {
	return func(c *Connector) { c.now = now }
}

// Connector holds no client until Init; everything Update needs lives in the session.
type Connector struct {
	newClient ClientFactory
	logger    *slog.Logger
	now       func() time.Time
	session   *session
}

// session is the state established by Init and read by Update.
type session struct {
	fetcher       source.Fetcher
	users         []source.User
	hashtags      []string
	criteria      filter.Criteria
	redactor      *privacy.Redactor
	includeHeader bool
	noDelete      bool
}

// New creates a connector that builds its API client with factory during Init.
func New(factory ClientFactory, opts ...Option) *Connector {
	c := &Connector{
		newClient: factory,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) RequiredCredentials() map[string]string {
	return map[string]string{CredentialBearerToken: bearerTokenInstructions}
}

// Init authenticates, resolves account handles and fixes the filter criteria.
// Handles that cannot be resolved are logged and skipped.
func (c *Connector) Init(ctx context.Context, credentials map[string]string, opts config.Options) error {
	token := strings.TrimSpace(credentials[CredentialBearerToken])
	if token == "" {
		return fmt.Errorf("%w: %s", ErrMissingCredential, CredentialBearerToken)
	}
	if opts.DropAfter < 0 {
		return fmt.Errorf("drop after: %w: negative duration %s", config.ErrInvalidDuration, opts.DropAfter)
	}
	if c.newClient == nil {
		return errors.New("connector: client factory is required")
	}

	redactor, err := privacy.NewRedactor(opts.RedactPatterns)
	if err != nil {
		return err
	}

	fetcher, err := c.newClient(token)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if opts.MirrorURL != "" {
		mirror, err := source.NewFeedMirror(opts.MirrorURL)
		if err != nil {
			return fmt.Errorf("create mirror: %w", err)
		}
		fetcher = &source.Mirrored{Fetcher: fetcher, Mirror: mirror}
	}

	users := make([]source.User, 0, len(opts.Users))
	for _, handle := range opts.Users {
		user, err := fetcher.ResolveUser(ctx, handle)
		if err != nil {
			c.logger.Warn("skipping unresolved user", "handle", handle, "error", err)
			continue
		}
		users = append(users, user)
	}

	c.session = &session{
		fetcher:       fetcher,
		users:         users,
		hashtags:      opts.Hashtags,
		criteria:      filter.NewCriteria(opts.StartDate, opts.DropAfter, opts.DirtyWords),
		redactor:      redactor,
		includeHeader: opts.IncludeHeader,
		noDelete:      opts.NoDelete,
	}

	c.logger.Info("connector initialized",
		"users", len(users),
		"unresolved", len(opts.Users)-len(users),
		"hashtags", len(opts.Hashtags),
	)
	return nil
}

// Update fetches every source, filters and formats the survivors, and diffs
// them against existing. It never fails: any error is logged and an empty
// map is returned so the host writes nothing.
func (c *Connector) Update(ctx context.Context, lastUsed int64, existing map[string]int64) (result reconcile.UpdateMap) {
	log := c.logger.With("run_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			log.Error("update panicked", "panic", r)
			result = reconcile.UpdateMap{}
		}
	}()

	updates, err := c.update(ctx, log, lastUsed, existing)
	if err != nil {
		log.Error("update failed", "error", err)
		return reconcile.UpdateMap{}
	}
	return updates
}

func (c *Connector) update(ctx context.Context, log *slog.Logger, lastUsed int64, existing map[string]int64) (reconcile.UpdateMap, error) {
	s := c.session
	if s == nil {
		return nil, ErrNotInitialized
	}

	if len(s.users)+len(s.hashtags) == 0 {
		log.Info("no sources to fetch")
		return reconcile.UpdateMap{}, nil
	}

	now := c.now()
	since := filter.WindowStart(s.criteria, now)

	outcomes := fetchAll(ctx, s, since)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	batches := make([][]source.Post, 0, len(outcomes))
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			log.Warn("fetch failed", "source", o.Source, "error", o.Err)
			continue
		}
		log.Debug("fetched", "source", o.Source, "posts", len(o.Posts))
		batches = append(batches, o.Posts)
	}

	posts := reconcile.Dedup(batches...)
	survivors := filter.Apply(posts, s.criteria, now)

	items := make([]reconcile.Item, 0, len(survivors))
	for _, p := range survivors {
		p.Text = s.redactor.Apply(p.Text)
		items = append(items, reconcile.Item{
			ID:      reconcile.ContentID(p.ID),
			Content: content.Render(p, s.includeHeader),
		})
	}

	noDelete := s.noDelete
	if failed > 0 && !noDelete {
		// Posts of a failed source are unknown, so absence proves nothing.
		log.Warn("skipping deletions after fetch failures", "failed", failed, "sources", len(outcomes))
		noDelete = true
	}

	updates := reconcile.Diff(items, reconcile.Existing(existing), lastUsed, noDelete)

	adds, deletes := countActions(updates)
	log.Info("update computed",
		"since", since,
		"sources", len(outcomes),
		"failed", failed,
		"fetched", len(posts),
		"survivors", len(items),
		"add", adds,
		"delete", deletes,
	)
	return updates, nil
}

func countActions(updates reconcile.UpdateMap) (adds, deletes int) {
	for _, u := range updates {
		switch u.Action {
		case reconcile.ActionAdd:
			adds++
		case reconcile.ActionDelete:
			deletes++
		}
	}
	return adds, deletes
}
