// Package gitrepo keeps a git log of every published content document.
package gitrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"sitecopy/api/internal/content"
)

const (
	contentFile = "content.json"
	branchName  = "main"
)

var (
	ErrNoHistory       = errors.New("no publish history")
	ErrUnknownRevision = errors.New("unknown revision")
)

type Commit struct {
	Hash      string    `json:"hash"`
	ShortHash string    `json:"shortHash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service writes one repository at dir. All operations are serialized.
type Service struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Service {
	return &Service{dir: dir, now: time.Now}
}

func (s *Service) Dir() string {
	return s.dir
}

// Record commits doc as the new head. When doc matches the current head
// nothing is written and created is false.
func (s *Service) Record(doc content.Document, author, message string) (commit Commit, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Commit{}, false, fmt.Errorf("marshal content: %w", err)
	}
	payload = append(payload, '\n')

	repo, err := s.openOrInit()
	if err != nil {
		return Commit{}, false, err
	}

	var previous *content.Document
	if head, err := headCommit(repo); err == nil {
		prev, err := readContentFromCommit(head)
		if err != nil {
			return Commit{}, false, err
		}
		if raw, err := json.MarshalIndent(prev, "", "  "); err == nil && bytes.Equal(append(raw, '\n'), payload) {
			return toCommit(head), false, nil
		}
		previous = &prev
	} else if !errors.Is(err, ErrNoHistory) {
		return Commit{}, false, err
	}

	if strings.TrimSpace(message) == "" {
		message = "Publish site content"
	}
	if previous != nil {
		if sections := ChangedSections(*previous, doc); len(sections) > 0 {
			message = fmt.Sprintf("%s\n\nsections: %s", message, strings.Join(sections, ", "))
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, false, fmt.Errorf("open worktree: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, contentFile), payload, 0o644); err != nil {
		return Commit{}, false, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Commit{}, false, fmt.Errorf("git add content: %w", err)
	}

	if strings.TrimSpace(author) == "" {
		author = "Site operator"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@sitecopy.local", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if err != nil {
		return Commit{}, false, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), true, nil
}

// History lists commits newest first. limit <= 0 returns everything.
func (s *Service) History(limit int) ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if errors.Is(err, ErrNoHistory) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}
	head, err := headCommit(repo)
	if errors.Is(err, ErrNoHistory) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ContentAt returns the document stored at hash, which may be abbreviated.
func (s *Service) ContentAt(hash string) (content.Document, Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return content.Document{}, Commit{}, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return content.Document{}, Commit{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return content.Document{}, Commit{}, fmt.Errorf("%w: %s", ErrUnknownRevision, hash)
		}
		return content.Document{}, Commit{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	doc, err := readContentFromCommit(commitObj)
	if err != nil {
		return content.Document{}, Commit{}, err
	}
	return doc, toCommit(commitObj), nil
}

// ChangedSections names the top-level sections that differ between two
// documents, in document order.
func ChangedSections(from, to content.Document) []string {
	pairs := []struct {
		name   string
		before any
		after  any
	}{
		{name: "hero", before: from.Hero, after: to.Hero},
		{name: "services", before: from.Services, after: to.Services},
		{name: "mission", before: from.Mission, after: to.Mission},
		{name: "skills", before: from.Skills, after: to.Skills},
		{name: "projects", before: from.Projects, after: to.Projects},
		{name: "testimonials", before: from.Testimonials, after: to.Testimonials},
		{name: "contact", before: from.Contact, after: to.Contact},
	}
	result := make([]string, 0)
	for _, item := range pairs {
		before, _ := json.Marshal(item.before)
		after, _ := json.Marshal(item.after)
		if !bytes.Equal(before, after) {
			result = append(result, item.name)
		}
	}
	return result
}

func (s *Service) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit() (*git.Repository, error) {
	repo, err := s.open()
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNoHistory) {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branchName, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func readContentFromCommit(commitObj *object.Commit) (content.Document, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return content.Document{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return content.Document{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return content.Document{}, fmt.Errorf("read content bytes: %w", err)
	}
	return content.Decode(raw)
}

func toCommit(commitObj *object.Commit) Commit {
	hash := commitObj.Hash.String()
	return Commit{
		Hash:      hash,
		ShortHash: hash[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "operator"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return plumbing.ZeroHash, fmt.Errorf("%w: empty revision", ErrUnknownRevision)
	}
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s: %v", ErrUnknownRevision, hash, err)
	}
	return *resolved, nil
}
