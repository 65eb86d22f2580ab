package identity

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"signon/internal/directory"
	dErrors "signon/pkg/domain-errors"
)

// Candidates is the outcome of a directory search. Zero identities with no
// unavailable sources is a definitive "no account"; unavailable sources mean
// the answer may be incomplete and the caller should say which system is
// having issues.
type Candidates struct {
	Identities  []Identity
	Unavailable []directory.Source
}

// Resolver queries the backing directories and applies the priority and
// alias-merge rules. Azure is optional; the others must be configured.
type Resolver struct {
	auth   directory.Directory
	nomis  directory.Directory
	delius directory.Directory
	azure  directory.Directory
	logger *slog.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func WithAzure(azure directory.Directory) ResolverOption {
	return func(r *Resolver) { r.azure = azure }
}

func NewResolver(auth, nomis, delius directory.Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		auth:   auth,
		nomis:  nomis,
		delius: delius,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveCandidates finds every account a login identifier could mean. An
// identifier containing "@" is a federated login's verified email and is
// searched across all directories; anything else is matched as a username in
// priority order. A directory being down narrows the result rather than
// failing it, unless every directory is down.
func (r *Resolver) ResolveCandidates(ctx context.Context, loginIdentifier string) (Candidates, error) {
	if strings.Contains(loginIdentifier, "@") {
		return r.candidatesByEmail(ctx, loginIdentifier)
	}
	return r.candidatesByUsername(ctx, loginIdentifier)
}

func (r *Resolver) candidatesByUsername(ctx context.Context, username string) (Candidates, error) {
	var out Candidates
	for _, dir := range []directory.Directory{r.auth, r.nomis, r.delius} {
		record, err := dir.FindByUsername(ctx, username)
		if err != nil {
			r.logger.Warn("directory lookup failed", "source", dir.Source(), "error", err)
			out.Unavailable = append(out.Unavailable, dir.Source())
			continue
		}
		if record != nil {
			out.Identities = append(out.Identities, FromRecord(*record))
		}
	}
	if len(out.Identities) == 0 && len(out.Unavailable) == 3 {
		return Candidates{}, dErrors.New(dErrors.CodeDirectoryUnavailable, "no user directory is available")
	}
	return out, nil
}

func (r *Resolver) candidatesByEmail(ctx context.Context, email string) (Candidates, error) {
	dirs := []directory.Directory{r.auth, r.nomis, r.delius}

	var mu sync.Mutex
	var out Candidates
	g, gctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			records, err := dir.FindByEmail(gctx, email)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("directory email search failed", "source", dir.Source(), "error", err)
				out.Unavailable = append(out.Unavailable, dir.Source())
				return nil
			}
			for _, record := range records {
				out.Identities = append(out.Identities, FromRecord(record))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Candidates{}, err
	}

	if len(out.Identities) == 0 && len(out.Unavailable) == len(dirs) {
		return Candidates{}, dErrors.New(dErrors.CodeDirectoryUnavailable, "no user directory is available")
	}
	// Directories answer concurrently; order the result by priority so
	// disambiguation prompts are stable.
	sortByPriority(out.Identities)
	return out, nil
}

var sourcePriority = map[directory.Source]int{
	directory.SourceAuth:    0,
	directory.SourceNomis:   1,
	directory.SourceAzureAD: 2,
	directory.SourceDelius:  3,
}

func sortByPriority(identities []Identity) {
	sort.Slice(identities, func(i, j int) bool {
		a, b := identities[i], identities[j]
		if sourcePriority[a.Source] != sourcePriority[b.Source] {
			return sourcePriority[a.Source] < sourcePriority[b.Source]
		}
		return a.Username < b.Username
	})
}

// ResolveMaster finds the single authoritative record for a chosen username.
// A local record wins unless it is an alias row, in which case the prison or
// probation master is authoritative and the alias's local attributes are
// merged onto it.
func (r *Resolver) ResolveMaster(ctx context.Context, username string) (Identity, error) {
	var unavailable error

	authRecord, err := r.auth.FindByUsername(ctx, username)
	switch {
	case err != nil:
		unavailable = err
	case authRecord != nil && authRecord.Auth.Master:
		return FromRecord(*authRecord), nil
	case authRecord != nil:
		return r.resolveAlias(ctx, *authRecord.Auth)
	}

	for _, dir := range r.passthroughOrder() {
		record, err := dir.FindByUsername(ctx, username)
		if err != nil {
			if unavailable == nil {
				unavailable = err
			}
			continue
		}
		if record != nil {
			return FromRecord(*record), nil
		}
	}

	// Only report an outage when it could have hidden the account.
	if unavailable != nil {
		return Identity{}, unavailable
	}
	return Identity{}, dErrors.Newf(dErrors.CodeNotFound, "account %s not found", username)
}

func (r *Resolver) passthroughOrder() []directory.Directory {
	dirs := []directory.Directory{r.nomis}
	if r.azure != nil {
		dirs = append(dirs, r.azure)
	}
	return append(dirs, r.delius)
}

// resolveAlias follows an alias row to its owning directory. The upstream
// record is required: if its directory is down the user cannot sign in, since
// no other system can vouch for the account's state.
func (r *Resolver) resolveAlias(ctx context.Context, alias directory.AuthUser) (Identity, error) {
	var dir directory.Directory
	switch alias.AliasSource {
	case directory.SourceNomis:
		dir = r.nomis
	case directory.SourceDelius:
		dir = r.delius
	case directory.SourceAzureAD:
		dir = r.azure
	}
	if dir == nil {
		r.logger.Error("alias row without a resolvable source", "username", alias.Username, "alias_source", alias.AliasSource)
		return Identity{}, dErrors.Newf(dErrors.CodeInternal, "account %s aliases unknown source %s", alias.Username, alias.AliasSource)
	}

	record, err := dir.FindByUsername(ctx, alias.Username)
	if err != nil {
		return Identity{}, err
	}
	if record == nil {
		return Identity{}, dErrors.Newf(dErrors.CodeNotFound, "account %s not found in %s", alias.Username, alias.AliasSource.Description())
	}
	return mergeAlias(FromRecord(*record), alias), nil
}
