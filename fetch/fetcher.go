package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"chelsa_sampler/config"
	"chelsa_sampler/httputil"
	"chelsa_sampler/models"
)

// Failure taxonomy for a single fetch attempt. The caller loop matches these
// with errors.Is; anything else from the transport counts as a network error.
var (
	ErrSizeTooSmall = errors.New("file below minimum plausible size")
	ErrSizeMismatch = errors.New("size differs from server-reported size")
	ErrBadSignature = errors.New("missing TIFF byte-order signature")
)

var tiffSignatures = [][]byte{{0x49, 0x49}, {0x4D, 0x4D}}

// AbortError is returned once consecutive failures reach the configured
// threshold. No further files are attempted after it is raised.
type AbortError struct {
	Failed []string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf(
		"aborting after %d consecutive failure(s); failed files: %s; check network connectivity, server availability, manifest integrity and free disk space",
		len(e.Failed), strings.Join(e.Failed, ", "))
}

// Result is the outcome of one fetch pass over the filtered manifest.
// Validated preserves the relative order of the input paths.
type Result struct {
	Validated  []string
	Resumed    int
	Downloaded int
	Failed     []string
}

type Fetcher struct {
	cfg      config.FetchConfig
	download *http.Client
	probe    *http.Client
	sleep    func(time.Duration)

	// OnEvent, when set, receives one event per artifact decision so the
	// caller can persist an audit trail.
	OnEvent func(models.ArtifactEvent)
}

func New(cfg config.FetchConfig, clients *httputil.Clients) *Fetcher {
	return &Fetcher{
		cfg:      cfg,
		download: clients.Download,
		probe:    clients.API,
		sleep:    time.Sleep,
	}
}

// FetchAll ensures a validated local copy of every remote path, strictly
// sequentially and in manifest order. It stops early with an *AbortError once
// the consecutive-failure threshold is crossed; the Result is valid either
// way and contains everything secured up to that point.
func (f *Fetcher) FetchAll(ctx context.Context, remotes []string) (*Result, error) {
	if err := os.MkdirAll(f.cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	res := &Result{}
	failures := 0

	for i, remote := range remotes {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name := localName(remote)
		local := filepath.Join(f.cfg.DataDir, name)
		log.Printf("[%d/%d] %s", i+1, len(remotes), name)

		resumed, err := f.tryResume(local)
		if err != nil {
			return res, err
		}
		if resumed {
			log.Printf("  already present, skipping download")
			res.Validated = append(res.Validated, local)
			res.Resumed++
			failures = 0
			f.emit(models.ArtifactEvent{Name: name, URL: remote, Action: models.ArtifactResumed, Bytes: fileSize(local)})
			continue
		}

		size, err := f.fetchOne(ctx, remote, local)
		if err != nil {
			// Never leave a partial or invalid file behind.
			os.Remove(local)
			log.Printf("  FAILED: %v", err)
			res.Failed = append(res.Failed, name)
			failures++
			f.emit(models.ArtifactEvent{Name: name, URL: remote, Action: models.ArtifactFailed, Error: err.Error()})
			if failures >= f.cfg.FailureThreshold {
				return res, &AbortError{Failed: res.Failed}
			}
			continue
		}

		log.Printf("  ok (%d bytes)", size)
		res.Validated = append(res.Validated, local)
		res.Downloaded++
		failures = 0
		f.emit(models.ArtifactEvent{Name: name, URL: remote, Action: models.ArtifactDownloaded, Bytes: size})

		// Politeness toward the mirror; only after an actual download.
		f.sleep(f.cfg.Delay)
	}

	return res, nil
}

// tryResume accepts an existing local file whose size exceeds the minimum
// plausible size, deleting anything smaller so it gets refetched. With
// VerifyResume set the TIFF signature is re-checked as well, which is
// stricter than size alone.
func (f *Fetcher) tryResume(local string) (bool, error) {
	info, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", local, err)
	}

	if info.Size() > f.cfg.MinBytes {
		if !f.cfg.VerifyResume {
			return true, nil
		}
		if err := checkSignature(local); err == nil {
			return true, nil
		}
		log.Printf("  existing file has a bad signature, refetching")
	} else {
		log.Printf("  existing file too small (%d bytes), refetching", info.Size())
	}

	if err := os.Remove(local); err != nil {
		return false, fmt.Errorf("remove corrupt %s: %w", local, err)
	}
	return false, nil
}

// fetchOne downloads remote to local and runs the full validation chain,
// returning the validated byte size.
func (f *Fetcher) fetchOne(ctx context.Context, remote, local string) (int64, error) {
	expected := f.expectedSize(ctx, remote)
	if expected > 0 {
		log.Printf("  expecting %d bytes", expected)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.download.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	out, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", local, err)
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", local, err)
	}

	if err := f.validate(local, written, expected); err != nil {
		return 0, err
	}
	return written, nil
}

// expectedSize asks the server for the Content-Length via HEAD. Best-effort:
// a failed probe or a missing header just disables the size-tolerance check.
func (f *Fetcher) expectedSize(ctx context.Context, remote string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, remote, nil)
	if err != nil {
		return 0
	}
	resp, err := f.probe.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0
	}
	return resp.ContentLength
}

func (f *Fetcher) validate(local string, written, expected int64) error {
	info, err := os.Stat(local)
	if err != nil {
		return fmt.Errorf("stat after download: %w", err)
	}

	if info.Size() < f.cfg.MinBytes {
		return fmt.Errorf("%w: %d < %d bytes", ErrSizeTooSmall, info.Size(), f.cfg.MinBytes)
	}

	if expected > 0 {
		diff := math.Abs(float64(info.Size())-float64(expected)) / float64(expected)
		if diff > f.cfg.SizeTolerance {
			return fmt.Errorf("%w: got %d, expected %d", ErrSizeMismatch, info.Size(), expected)
		}
	}

	return checkSignature(local)
}

func checkSignature(local string) error {
	fh, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open for signature check: %w", err)
	}
	defer fh.Close()

	head := make([]byte, 2)
	if _, err := io.ReadFull(fh, head); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	for _, sig := range tiffSignatures {
		if bytes.Equal(head, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: got % x", ErrBadSignature, head)
}

// localName derives the on-disk file name from the final path segment of the
// remote locator.
func localName(remote string) string {
	if u, err := url.Parse(remote); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(remote)
}

func (f *Fetcher) emit(ev models.ArtifactEvent) {
	if f.OnEvent != nil {
		ev.CreatedAt = time.Now()
		f.OnEvent(ev)
	}
}

func fileSize(local string) int64 {
	info, err := os.Stat(local)
	if err != nil {
		return 0
	}
	return info.Size()
}
