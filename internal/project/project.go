// Package project implements the persistent project configuration: the set
// of repositories, their domain mappings, and the selected firmware, stored
// as a single TOML file at the project root.
package project

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FileName is the name of the project file within the project root.
const FileName = "flip.toml"

// Domain identifies one of the six on-device database directories a
// Mapping can target.
type Domain string

const (
	DomainSubGHz   Domain = "subghz"
	DomainRfid     Domain = "rfid"
	DomainNfc      Domain = "nfc"
	DomainIR       Domain = "ir"
	DomainIButton  Domain = "ibutton"
	DomainBadUSB   Domain = "badusb"
)

// domainInfo is the fixed on-device destination and root-level ignore set
// for a Domain, per spec.md §3.
type domainInfo struct {
	Destination string
	Ignore      []string
}

var domainTable = map[Domain]domainInfo{
	DomainSubGHz:  {Destination: "/ext/subghz", Ignore: []string{"assets"}},
	DomainNfc:     {Destination: "/ext/nfc", Ignore: []string{"assets", ".cache"}},
	DomainBadUSB:  {Destination: "/ext/badusb", Ignore: []string{"assets", ".badusb.settings"}},
	DomainRfid:    {Destination: "/ext/lfrfid", Ignore: nil},
	DomainIButton: {Destination: "/ext/ibutton", Ignore: nil},
	DomainIR:      {Destination: "/ext/infared", Ignore: []string{"assets"}},
}

// Destination returns the fixed on-device directory for d, and whether d is
// a known domain.
func (d Domain) Destination() (string, bool) {
	info, ok := domainTable[d]
	return info.Destination, ok
}

// Ignore returns the fixed root-level ignore set for d.
func (d Domain) Ignore() []string {
	return domainTable[d].Ignore
}

// Domains lists every recognized domain, in the fixed order spec.md §3
// tabulates them.
func Domains() []Domain {
	return []Domain{DomainSubGHz, DomainNfc, DomainBadUSB, DomainRfid, DomainIButton, DomainIR}
}

// Mapping is a selector over a repository's working tree: an include/exclude
// pathspec pattern list paired (via the owning Domain) with a fixed
// destination and ignore set.
type Mapping struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// Mappings holds the (up to six) domain selectors configured for one
// repository. Absent domains are simply missing from the map.
type Mappings map[Domain]Mapping

// Repository is one upstream source tree mirrored onto the device.
type Repository struct {
	URL      string    `toml:"url"`
	UUID     uuid.UUID `toml:"uuid"`
	Mappings Mappings  `toml:"mappings"`
}

// urlNamespace is the namespace UUID for repository and firmware-cache
// fingerprints (spec.md §3, "uuid5(URL_NAMESPACE, url_bytes)").
var urlNamespace = uuid.NameSpaceURL

// UUIDForURL derives the stable UUIDv5 fingerprint for a URL.
func UUIDForURL(url string) uuid.UUID {
	return uuid.NewSHA1(urlNamespace, []byte(url))
}

// Project is the persistent, whole-file-rewritten configuration living at
// <root>/flip.toml.
type Project struct {
	Name         string                 `toml:"name"`
	Firmware     string                 `toml:"firmware"`
	Repositories map[string]*Repository `toml:"repositories"`

	root string
}

// Root returns the project's root directory, as passed to Load.
func (p *Project) Root() string { return p.root }

// StoreDir returns <root>/store, the directory holding cloned repositories
// and cached firmware archives (spec.md §6).
func (p *Project) StoreDir() string { return filepath.Join(p.root, "store") }

// Exists reports whether a project file is present at root.
func Exists(root string) (bool, error) {
	_, err := os.Stat(filepath.Join(root, FileName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %s", filepath.Join(root, FileName))
}

// Load reads and parses the project file at root.
func Load(root string) (*Project, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissing, "%s", path)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var p Project
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%s: %v", path, err)
	}
	p.root = root
	if p.Repositories == nil {
		p.Repositories = map[string]*Repository{}
	}
	return &p, nil
}

// Save rewrites the project file atomically: the new content is written to
// a temp file in the same directory and renamed over the original so a
// crash mid-write never leaves a truncated flip.toml.
func (p *Project) Save() error {
	path := filepath.Join(p.root, FileName)

	buf, err := toml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "marshal project")
	}

	tmp, err := os.CreateTemp(p.root, ".flip.toml.*")
	if err != nil {
		return errors.Wrap(err, "create temp project file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp project file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp project file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "rename temp project file into place")
	}
	return nil
}

// New constructs a fresh Project for a not-yet-existing root with no
// repositories and the default firmware selection.
func New(root, name string) (*Project, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Project{
		Name:         name,
		Firmware:     "official@release",
		Repositories: map[string]*Repository{},
		root:         root,
	}, nil
}

var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateName enforces spec.md §6's project name grammar: non-empty, at
// most 64 characters, first character an ASCII letter, remaining characters
// ASCII alphanumeric, '-' or '_'.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}
	if len(name) > 64 {
		return errors.Wrapf(ErrInvalidName, "%q: longer than 64 characters", name)
	}
	if !nameRe.MatchString(name) {
		return errors.Wrapf(ErrInvalidName, "%q: must start with a letter and contain only letters, digits, '-' or '_'", name)
	}
	return nil
}

// AddRepository inserts a new repository under name, deriving its UUIDv5
// fingerprint from url. It fails if name or the derived UUID already exist
// in the project (spec.md §3 invariant: both name and UUID unique).
func (p *Project) AddRepository(name, url string) (*Repository, error) {
	if _, ok := p.Repositories[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateName, "repository %q", name)
	}
	id := UUIDForURL(url)
	for existing, repo := range p.Repositories {
		if repo.UUID == id {
			return nil, errors.Wrapf(ErrDuplicateUUID, "repository %q has the same url as %q", name, existing)
		}
	}
	repo := &Repository{URL: url, UUID: id, Mappings: Mappings{}}
	p.Repositories[name] = repo
	return repo, nil
}

// RemoveRepository deletes a repository from the project by name.
func (p *Project) RemoveRepository(name string) error {
	if _, ok := p.Repositories[name]; !ok {
		return errors.Wrapf(ErrNotFound, "repository %q", name)
	}
	delete(p.Repositories, name)
	return nil
}
