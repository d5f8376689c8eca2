// Package orchestrator implements the Sync Orchestrator (spec.md §4.J):
// per repository, picks Strategy A (commit-based git diff) when a prior
// commit is recorded and still reachable in the local clone, else falls
// back to Strategy B (walking tree diff); emits a fully delimited op
// stream (Repo/Mapping/CreateDir/Copy/Remove); on operator confirmation
// executes it against the transport with progress, then rewrites the
// device Sync-State.
package orchestrator

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/flippy-sync/flippy/internal/diff"
	"github.com/flippy-sync/flippy/internal/gitfacade"
	"github.com/flippy-sync/flippy/internal/project"
	"github.com/flippy-sync/flippy/internal/progress"
	"github.com/flippy-sync/flippy/internal/rpctransport"
	"github.com/flippy-sync/flippy/internal/store"
	"github.com/flippy-sync/flippy/internal/syncstate"
	"github.com/flippy-sync/flippy/internal/tree"
)

// ErrCloneMissing is returned when a repository has no local clone under
// the store yet (spec.md §4.J step 1: "otherwise fail with instruction
// to run the fetch command").
var ErrCloneMissing = errors.New("orchestrator: repository has no local clone; run store fetch")

// OpKind discriminates one entry of the full, delimited op stream
// spec.md §3 "Op stream" defines — a superset of diff.Op that also
// carries the Repo/Mapping context delimiters.
type OpKind int

const (
	OpRepo OpKind = iota
	OpMapping
	OpCreateDir
	OpCopy
	OpRemove
)

// Op is one entry of the orchestrator's op stream. Fields are populated
// according to Kind: Repo carries LocalClonePath; Mapping carries
// LocalSubpath and RemoteDestination; CreateDir/Copy/Remove carry Path,
// relative to the most recently emitted Mapping's LocalSubpath (for
// Copy) and RemoteDestination (for all three).
type Op struct {
	Kind              OpKind
	LocalClonePath    string
	LocalSubpath      string
	RemoteDestination string
	Path              string
}

// Confirm is asked once, after the full op stream has been computed
// across every repository, whether to apply it.
type Confirm func(ops []Op) bool

// Orchestrator drives one full sync run across every repository in a
// Project.
type Orchestrator struct {
	Project   *project.Project
	Store     *store.Store
	Transport rpctransport.Transport
	Progress  *progress.Tree // optional; nil disables progress reporting
}

// New returns an Orchestrator wired to run a sync against transport.
func New(p *project.Project, st *store.Store, t rpctransport.Transport) *Orchestrator {
	return &Orchestrator{Project: p, Store: st, Transport: t}
}

// readSyncState loads the device's current Sync-State, treating an
// absent file as empty (first run for every repository) and surfacing
// any other error (including malformed content) as fatal.
func (o *Orchestrator) readSyncState() (syncstate.SyncFile, error) {
	data, err := o.Transport.FsRead(syncstate.Path)
	if errors.Is(err, rpctransport.ErrNotFound) {
		return syncstate.SyncFile{}, nil
	}
	if err != nil {
		return syncstate.SyncFile{}, errors.Wrap(err, "read sync-state")
	}
	sf, err := syncstate.Deserialize(data)
	if err != nil {
		return syncstate.SyncFile{}, errors.Wrap(err, "sync-state is malformed; operator must inspect")
	}
	return sf, nil
}

// sortedRepoNames returns the project's repository names in a fixed
// (alphabetical) order, so a sync run is reproducible across invocations.
func sortedRepoNames(p *project.Project) []string {
	names := make([]string, 0, len(p.Repositories))
	for name := range p.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plan computes the full op stream for a sync run without executing
// anything, and the Sync-State that should be written on success.
func (o *Orchestrator) Plan() ([]Op, syncstate.SyncFile, error) {
	prior, err := o.readSyncState()
	if err != nil {
		return nil, syncstate.SyncFile{}, err
	}

	var ops []Op
	pending := syncstate.SyncFile{}

	for _, name := range sortedRepoNames(o.Project) {
		repo := o.Project.Repositories[name]

		if !o.Store.HasRepoClone(repo.UUID) {
			return nil, syncstate.SyncFile{}, errors.Wrapf(ErrCloneMissing, "repository %q", name)
		}
		clonePath := o.Store.RepoClonePath(repo.UUID)

		gr, err := gitfacade.Open(clonePath)
		if err != nil {
			return nil, syncstate.SyncFile{}, errors.Wrapf(err, "open clone for %q", name)
		}
		head, err := gr.HeadCommit()
		if err != nil {
			return nil, syncstate.SyncFile{}, errors.Wrapf(err, "head commit for %q", name)
		}

		ops = append(ops, Op{Kind: OpRepo, LocalClonePath: clonePath})

		repoOps, err := o.planRepository(gr, clonePath, repo, prior, head)
		if err != nil {
			return nil, syncstate.SyncFile{}, errors.Wrapf(err, "plan repository %q", name)
		}
		ops = append(ops, repoOps...)

		pending.Repositories = append(pending.Repositories, syncstate.Record{
			UUID:   repo.UUID,
			Commit: [20]byte(head.Hash),
		})
	}

	return ops, pending, nil
}

// planRepository emits the Mapping + CreateDir/Copy/Remove ops for one
// repository, choosing Strategy A or B per mapping set as spec.md §4.J
// describes (the strategy choice is per-repository, driven by whether
// the repository's prior commit is known and still resolvable).
func (o *Orchestrator) planRepository(gr *gitfacade.Repo, clonePath string, repo *project.Repository, prior syncstate.SyncFile, head *object.Commit) ([]Op, error) {
	var ops []Op

	priorCommit, haveStrategyA := o.resolvePriorCommit(gr, repo, prior)

	for _, domain := range project.Domains() {
		mapping, ok := repo.Mappings[domain]
		if !ok {
			continue
		}
		destination, _ := domain.Destination()

		ps := gitfacade.NewPathspec(mapping.Include, mapping.Exclude)
		lcd := ps.LongestCommonDirectory()

		ops = append(ops, Op{Kind: OpMapping, LocalSubpath: lcd, RemoteDestination: destination})

		var mappingOps []Op
		var err error
		if haveStrategyA {
			mappingOps, err = o.planMappingStrategyA(gr, priorCommit, head, ps, lcd)
		} else {
			mappingOps, err = o.planMappingStrategyB(clonePath, head, ps, lcd, destination, domain)
		}
		if err != nil {
			return nil, err
		}
		ops = append(ops, mappingOps...)
	}

	return ops, nil
}

// resolvePriorCommit determines whether Strategy A applies: a commit is
// recorded for repo.UUID in prior and that commit is still resolvable in
// the local clone.
func (o *Orchestrator) resolvePriorCommit(gr *gitfacade.Repo, repo *project.Repository, prior syncstate.SyncFile) (*object.Commit, bool) {
	commitBytes, ok := prior.FindCommit(repo.UUID)
	if !ok {
		return nil, false
	}
	oid := hexHash(commitBytes)
	c, err := gr.FindCommit(oid)
	if err != nil {
		return nil, false
	}
	return c, true
}

func (o *Orchestrator) planMappingStrategyA(gr *gitfacade.Repo, prior, head *object.Commit, ps *gitfacade.Pathspec, lcd string) ([]Op, error) {
	changes, err := gr.DiffTreeToTree(prior, head)
	if err != nil {
		return nil, errors.Wrap(err, "diff tree to tree")
	}

	var ops []Op
	for _, ch := range changes {
		if !ps.IsIncluded(ch.Path, false) {
			continue
		}
		rel := stripPrefix(ch.Path, lcd)
		switch ch.Kind {
		case gitfacade.Added, gitfacade.Modified:
			ops = append(ops, Op{Kind: OpCopy, Path: rel})
		case gitfacade.Deleted:
			ops = append(ops, Op{Kind: OpRemove, Path: rel})
		}
	}
	return ops, nil
}

func (o *Orchestrator) planMappingStrategyB(clonePath string, head *object.Commit, ps *gitfacade.Pathspec, lcd, destination string, domain project.Domain) ([]Op, error) {
	entries, err := ps.IndexEntriesWithPaths(head)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate index entries")
	}

	pathSizes := make([]tree.PathSize, 0, len(entries))
	for _, e := range entries {
		pathSizes = append(pathSizes, tree.PathSize{Path: stripPrefix(e.Path, lcd), Size: e.Size})
	}
	local := tree.BuildLocal(pathSizes)

	ignore := map[string]bool{}
	for _, n := range domain.Ignore() {
		ignore[n] = true
	}
	remote, err := tree.BuildRemote(o.Transport, destination, ignore)
	if err != nil {
		return nil, errors.Wrap(err, "build remote tree")
	}

	localRoot := filepath.Join(clonePath, filepath.FromSlash(lcd))
	oracle := diff.NewEqualityOracle(o.Transport, remote, destination, localRoot)

	diffOps, err := diff.Diff(local, remote, oracle)
	if err != nil {
		return nil, errors.Wrap(err, "diff")
	}

	ops := make([]Op, 0, len(diffOps))
	for _, d := range diffOps {
		ops = append(ops, Op{Kind: translateDiffKind(d.Kind), Path: d.Path})
	}
	return ops, nil
}

func translateDiffKind(k diff.OpKind) OpKind {
	switch k {
	case diff.OpCreateDir:
		return OpCreateDir
	case diff.OpRemove:
		return OpRemove
	default:
		return OpCopy
	}
}

// stripPrefix removes lcd+"/" from path if present; lcd == "" leaves
// path untouched.
func stripPrefix(path, lcd string) string {
	if lcd == "" {
		return path
	}
	prefix := lcd + "/"
	if strings.HasPrefix(path, prefix) {
		return path[len(prefix):]
	}
	return path
}

// Run computes the op stream, asks confirm to approve it (skipped when
// the stream contains no mutating ops), executes it on acceptance, and
// writes the updated Sync-State only on success or no-op (spec.md §4.J:
// "Cross-run idempotence").
func (o *Orchestrator) Run(confirm Confirm) error {
	ops, pending, err := o.Plan()
	if err != nil {
		return err
	}

	if !hasMutatingOps(ops) {
		return o.writeSyncState(pending)
	}

	if confirm != nil && !confirm(ops) {
		return nil
	}

	if err := o.apply(ops); err != nil {
		return err
	}
	return o.writeSyncState(pending)
}

func hasMutatingOps(ops []Op) bool {
	for _, op := range ops {
		switch op.Kind {
		case OpCreateDir, OpCopy, OpRemove:
			return true
		}
	}
	return false
}

func (o *Orchestrator) writeSyncState(sf syncstate.SyncFile) error {
	if err := o.Transport.FsWrite(syncstate.Path, sf.Serialize(), nil); err != nil {
		return errors.Wrap(err, "write sync-state")
	}
	return nil
}

// apply executes ops in order, tracking the current Repo/Mapping context
// the delimiters install.
func (o *Orchestrator) apply(ops []Op) error {
	var clonePath, localSubpath, remoteDestination string
	var item *progress.Item

	for _, op := range ops {
		switch op.Kind {
		case OpRepo:
			clonePath = op.LocalClonePath
		case OpMapping:
			localSubpath = op.LocalSubpath
			remoteDestination = op.RemoteDestination
			if o.Progress != nil {
				item = o.Progress.Init(remoteDestination, 0, "ops")
			}
		case OpCreateDir:
			if _, err := o.Transport.FsCreateDir(path.Join(remoteDestination, op.Path)); err != nil {
				return errors.Wrapf(err, "create dir %s", op.Path)
			}
			incItem(item)
		case OpCopy:
			local := filepath.Join(clonePath, filepath.FromSlash(localSubpath), filepath.FromSlash(op.Path))
			data, err := os.ReadFile(local)
			if err != nil {
				return errors.Wrapf(err, "read %s", local)
			}
			remote := path.Join(remoteDestination, op.Path)
			var progressFn rpctransport.ProgressFunc
			if item != nil {
				progressFn = func(written int64) { item.Info(op.Path) }
			}
			if err := o.Transport.FsWrite(remote, data, progressFn); err != nil {
				return errors.Wrapf(err, "write %s", remote)
			}
			incItem(item)
		case OpRemove:
			remote := path.Join(remoteDestination, op.Path)
			if err := o.Transport.FsRemove(remote, true); err != nil {
				return errors.Wrapf(err, "remove %s", remote)
			}
			incItem(item)
		}
	}
	return nil
}

func incItem(item *progress.Item) {
	if item != nil {
		item.Inc(1)
	}
}

func hexHash(b [20]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, 40)
	for _, c := range b {
		out = append(out, hexDigits[c>>4], hexDigits[c&0xf])
	}
	return string(out)
}
