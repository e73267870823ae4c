package ctfd

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dimasma0305/ctfdump/function/log"
	"golang.org/x/sync/errgroup"
)

const (
	MetadataFile     = "ReadMe.md"
	DefaultWorkers   = 4
	downloadChunkLen = 32 * 1024
)

var (
	//go:embed templates/*
	TemplateFile embed.FS

	metadataTemplate = template.Must(template.ParseFS(TemplateFile, "templates/"+MetadataFile))
)

// Report is what happened to one challenge directory.
type Report struct {
	Dir        string
	Skipped    bool
	Downloaded []string
	Failed     []error
}

type MaterializerOptions struct {
	// Workers bounds concurrent downloads within one challenge.
	Workers int
	// SkipExisting leaves a challenge alone when its directory is already
	// on disk. Otherwise metadata is rewritten and every asset fetched again.
	SkipExisting bool
}

// Materializer writes challenges to disk.
type Materializer struct {
	session      *Session
	layout       Layout
	workers      int
	skipExisting bool
}

func NewMaterializer(s *Session, layout Layout, opts MaterializerOptions) *Materializer {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Materializer{
		session:      s,
		layout:       layout,
		workers:      workers,
		skipExisting: opts.SkipExisting,
	}
}

// Materialize creates the challenge directory, writes its metadata and
// downloads the assets. The returned error is a *FilesystemError for the
// directory or the metadata file; a failed asset only lands in
// Report.Failed.
func (m *Materializer) Materialize(ctx context.Context, chall *Challenge, assets []Asset) (*Report, error) {
	dir := m.layout.ChallengeDir(chall)
	report := &Report{Dir: dir}
	if m.skipExisting && m.layout.Exists(dir) {
		log.InfoH2("Skipping Challenge [%s] %s, %s exists", chall.CategoryName(), chall.Name, dir)
		report.Skipped = true
		return report, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return report, &FilesystemError{Path: dir, Err: err}
	}
	if err := WriteMetadata(dir, chall); err != nil {
		return report, err
	}
	log.InfoH2("Creating Challenge [%s] %s", chall.CategoryName(), chall.Name)

	outcomes := make([]error, len(assets))
	g := new(errgroup.Group)
	g.SetLimit(m.workers)
	for _, group := range groupByFileName(assets) {
		g.Go(func() error {
			// same local name: run in order so the last one wins
			for _, i := range group {
				outcomes[i] = m.download(ctx, dir, assets[i])
			}
			return nil
		})
	}
	g.Wait()

	for i, err := range outcomes {
		if err != nil {
			log.ErrorH2("%s", err)
			report.Failed = append(report.Failed, err)
			continue
		}
		log.InfoH3("%s", assets[i].FileName)
		report.Downloaded = append(report.Downloaded, filepath.Join(dir, assets[i].FileName))
	}
	return report, nil
}

// WriteMetadata renders the metadata file into dir, replacing any previous
// one.
func WriteMetadata(dir string, chall *Challenge) error {
	var buf bytes.Buffer
	if err := metadataTemplate.Execute(&buf, chall); err != nil {
		return fmt.Errorf("render metadata: %w", err)
	}
	dst := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(dst, buf.Bytes(), 0644); err != nil {
		return &FilesystemError{Path: dst, Err: err}
	}
	return nil
}

// groupByFileName returns asset indexes grouped by local file name, groups
// ordered by first appearance.
func groupByFileName(assets []Asset) [][]int {
	var (
		groups [][]int
		index  = make(map[string]int)
	)
	for i, asset := range assets {
		g, ok := index[asset.FileName]
		if !ok {
			g = len(groups)
			index[asset.FileName] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (m *Materializer) download(ctx context.Context, dir string, asset Asset) error {
	res, err := m.session.Download(ctx, asset.Url)
	if err != nil {
		return &TransferError{URL: asset.Url, Err: err}
	}
	defer res.Body.Close()
	if m.session.requiresLogin(res) {
		return &TransferError{URL: asset.Url, Err: ErrNotLoggedIn}
	}
	if !res.IsSuccessState() {
		return &TransferError{URL: asset.Url, Err: fmt.Errorf("status %d", res.StatusCode)}
	}

	dst := filepath.Join(dir, asset.FileName)
	file, err := os.Create(dst)
	if err != nil {
		return &FilesystemError{Path: dst, Err: err}
	}
	if _, err := copyChunks(ctx, file, res.Body); err != nil {
		file.Close()
		return &TransferError{URL: asset.Url, Err: err}
	}
	if err := file.Close(); err != nil {
		return &FilesystemError{Path: dst, Err: err}
	}
	return nil
}

// copyChunks streams src into dst in fixed-size chunks, dropping empty
// reads and stopping when ctx is done.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, downloadChunkLen)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
