// Package ingest feeds documents dropped into an inbox directory into the
// artist registry.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/entity"
	"github.com/joseph-ayodele/artists-registry/internal/services/artists"
)

const (
	ProcessedDir = ".processed"
	RejectedDir  = ".rejected"
	inboxActor   = "inbox"
)

// Uploader is satisfied by the artists service.
type Uploader interface {
	Upload(ctx context.Context, in artists.UploadInput) (*entity.Artist, error)
}

type Result struct {
	SourcePath   string
	ArtistID     uuid.UUID
	HashHex      string
	Deduplicated bool
	Err          string
}

type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Inbox uploads every supported file under Root once, then archives it
// under Root/.processed (or Root/.rejected when the upload was refused).
type Inbox struct {
	root   string
	up     Uploader
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID // sha256 -> artist
}

func NewInbox(root string, up Uploader, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{root: root, up: up, logger: logger, seen: map[string]uuid.UUID{}}
}

// IngestPath uploads one file. Content already uploaded by this inbox is
// archived without creating a second artist.
func (i *Inbox) IngestPath(ctx context.Context, path string) (Result, error) {
	out := Result{SourcePath: path}
	name := filepath.Base(path)
	if !constants.IsSupported(constants.NormalizeExt(filepath.Ext(name))) {
		return out, fmt.Errorf("%w: %s", errUnsupported, name)
	}

	sum, err := hashFile(path)
	if err != nil {
		return out, err
	}
	out.HashHex = sum

	i.mu.Lock()
	prev, dup := i.seen[sum]
	i.mu.Unlock()
	if dup {
		out.ArtistID, out.Deduplicated = prev, true
		i.logger.Info("inbox.duplicate", "path", path, "artist_id", prev)
		return out, i.archive(path, ProcessedDir, sum)
	}

	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	a, uerr := i.up.Upload(ctx, artists.UploadInput{Filename: name, Reader: f, CreatedBy: inboxActor})
	_ = f.Close()

	if a == nil {
		// nothing was created; keep the file aside for an operator
		i.logger.Warn("inbox.rejected", "path", path, "error", uerr)
		if aerr := i.archive(path, RejectedDir, sum); aerr != nil {
			i.logger.Error("inbox.archive.failed", "path", path, "error", aerr)
		}
		return out, uerr
	}

	i.mu.Lock()
	i.seen[sum] = a.ID
	i.mu.Unlock()
	out.ArtistID = a.ID
	if uerr != nil {
		// the failed artist exists and can be reprocessed from its stored copy
		out.Err = uerr.Error()
		i.logger.Warn("inbox.extraction.failed", "path", path, "artist_id", a.ID, "error", uerr)
	} else {
		i.logger.Info("inbox.uploaded", "path", path, "artist_id", a.ID, "status", a.ExtractionStatus)
	}
	return out, i.archive(path, ProcessedDir, sum)
}

var errUnsupported = errors.New("unsupported file type")

// IngestDirectory walks Root, skipping hidden entries, and ingests every
// supported file.
func (i *Inbox) IngestDirectory(ctx context.Context) ([]Result, DirStats, error) {
	if strings.TrimSpace(i.root) == "" {
		return nil, DirStats{}, errors.New("inbox root is required")
	}
	var results []Result
	var stats DirStats

	err := filepath.WalkDir(i.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if path != i.root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsSupported(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		if r.Err != "" {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// Run ingests what is already in Root and then every file the watcher
// reports until ctx is done.
func (i *Inbox) Run(ctx context.Context, cfg WatchConfig) error {
	_, stats, err := i.IngestDirectory(ctx)
	if err != nil {
		return err
	}
	i.logger.Info("inbox.scan.done", "root", i.root, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "failed", stats.Failed, "deduplicated", stats.Deduplicated)

	cfg.Roots = []string{i.root}
	events, errs, err := StartWatcher(ctx, cfg, i.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := os.Stat(p); err != nil {
				continue // renamed away or already archived
			}
			if _, err := i.IngestPath(ctx, p); err != nil && !errors.Is(err, errUnsupported) {
				i.logger.Warn("inbox.ingest.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				i.logger.Warn("inbox.watch.error", "error", err)
			}
		}
	}
}

func (i *Inbox) archive(path, sub, sum string) error {
	dir := filepath.Join(i.root, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(dir, sum[:12]+"-"+filepath.Base(path))
	}
	return os.Rename(path, dst)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
