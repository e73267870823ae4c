package ctfd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimasma0305/ctfdump/function/log"
	"github.com/hokaccha/go-prettyjson"
)

// Options configures one dump run.
type Options struct {
	Url     string
	Creds   *Creds
	NoLogin bool
	Session SessionOptions
	// Output is the directory the <host>/<category>/<name> tree goes under.
	Output       string
	Workers      int
	SkipExisting bool
	Filters      Filters
	Verbose      bool
}

// Summary counts what a run did.
type Summary struct {
	Generation Generation
	Challenges int
	Skipped    int
	Files      int
	Failures   int
}

// Dumper runs a whole dump: detect the platform generation, log in,
// enumerate, collect assets, write them to disk and log out.
type Dumper struct {
	opts    Options
	session *Session
}

func NewDumper(opts Options) (*Dumper, error) {
	s, err := NewSession(opts.Url, opts.Session)
	if err != nil {
		return nil, err
	}
	if !opts.NoLogin && opts.Creds == nil {
		return nil, fmt.Errorf("credentials are required unless login is skipped")
	}
	return &Dumper{opts: opts, session: s}, nil
}

func (d *Dumper) Session() *Session {
	return d.session
}

// Run performs the dump. Authentication, detection and enumeration
// failures abort it; a failing challenge directory or asset is logged and
// counted.
func (d *Dumper) Run(ctx context.Context) (*Summary, error) {
	defer d.session.Close()
	s := d.session

	loggedIn := false
	gen, err := Detect(ctx, s)
	if errors.Is(err, ErrNotLoggedIn) && !d.opts.NoLogin {
		// every anonymous probe was refused: log in, then probe again
		log.Debug("anonymous detection refused, logging in first")
		if err := d.login(ctx); err != nil {
			return nil, err
		}
		loggedIn = true
		gen, err = Detect(ctx, s)
	}
	if err != nil {
		return nil, err
	}
	log.Info("Detected platform version: %s", gen)

	if !d.opts.NoLogin && !loggedIn {
		if err := d.login(ctx); err != nil {
			return nil, err
		}
		loggedIn = true
	}
	if loggedIn {
		defer func() {
			// an interrupted run is abandoned as is
			if ctx.Err() == nil {
				Logout(ctx, s)
			}
		}()
	}

	var (
		summary   = &Summary{Generation: gen}
		collector = NewCollector(s.Url)
		writer    = NewMaterializer(s, Layout{Root: d.opts.Output, Host: s.HostName()}, MaterializerOptions{
			Workers:      d.opts.Workers,
			SkipExisting: d.opts.SkipExisting,
		})
	)
	for chall, err := range Enumerate(ctx, s, gen) {
		if err != nil {
			var recordErr *RecordError
			if errors.As(err, &recordErr) {
				log.ErrorH2("skipping %s", err)
				summary.Failures++
				continue
			}
			return summary, err
		}
		if !d.opts.Filters.Match(chall) {
			continue
		}
		if d.opts.Verbose {
			if data, err := prettyjson.Marshal(chall); err == nil {
				fmt.Println(string(data))
			}
		}

		report, err := writer.Materialize(ctx, chall, collector.Collect(chall))
		if err != nil {
			log.ErrorH2("%s", err)
			summary.Failures++
			continue
		}
		if report.Skipped {
			summary.Skipped++
			continue
		}
		summary.Challenges++
		summary.Files += len(report.Downloaded)
		summary.Failures += len(report.Failed)
		log.SuccessDownload(chall.Name, chall.CategoryName())
	}
	return summary, ctx.Err()
}

func (d *Dumper) login(ctx context.Context) error {
	log.Info("Logging in as %s", d.opts.Creds.Username)
	if err := Login(ctx, d.session, d.opts.Creds); err != nil {
		return err
	}
	return nil
}
