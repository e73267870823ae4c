package ctfd_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dimasma0305/ctfdump/function/scraper/ctfd"
)

var offlineChallenges = []mockChallenge{
	{Id: 3, Name: "baby rop", Category: "pwn", Description: "nc pwn.example.com 1337", Value: 100, Files: []string{"/files/aa11/chall", "bb22/libc.so.6"}},
	{Id: 4, Name: "sanity", Category: "", Description: "CTF{free}", Value: 1, Files: []string{}},
	{Id: 7, Name: "warmup", Category: "web", Description: "just look", Value: 50},
}

func newTestDumper(t *testing.T, url string, opts ctfd.Options) *ctfd.Dumper {
	t.Helper()
	opts.Url = url
	if opts.Output == "" {
		opts.Output = t.TempDir()
	}
	if !opts.NoLogin && opts.Creds == nil {
		opts.Creds = &ctfd.Creds{Username: testUser, Password: testPassword}
	}
	d, err := ctfd.NewDumper(opts)
	if err != nil {
		t.Fatalf("NewDumper() error: %v", err)
	}
	return d
}

func TestDumpRun(t *testing.T) {
	for _, gen := range []ctfd.Generation{ctfd.RESTv2, ctfd.JSONv1_2, ctfd.JSONv1} {
		t.Run(gen.String(), func(t *testing.T) {
			m := newMockPlatform(t, gen, offlineChallenges)
			out := t.TempDir()
			d := newTestDumper(t, m.URL(), ctfd.Options{Output: out})

			summary, err := d.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			want := ctfd.Summary{Generation: gen, Challenges: 3, Files: 2}
			if *summary != want {
				t.Errorf("summary = %+v, want %+v", *summary, want)
			}
			for _, hit := range []string{"POST /login", "GET /logout"} {
				if n := m.Count(hit); n != 1 {
					t.Errorf("%s issued %d times, want 1", hit, n)
				}
			}

			host := d.Session().HostName()
			for _, name := range []string{
				filepath.Join(out, host, "pwn", "baby rop", "chall"),
				filepath.Join(out, host, "pwn", "baby rop", "libc.so.6"),
				filepath.Join(out, host, "pwn", "baby rop", ctfd.MetadataFile),
				filepath.Join(out, host, "sanity", ctfd.MetadataFile),
				filepath.Join(out, host, "web", "warmup", ctfd.MetadataFile),
			} {
				if _, err := os.Stat(name); err != nil {
					t.Errorf("missing %s: %v", name, err)
				}
			}
			if got := readFile(t, filepath.Join(out, host, "pwn", "baby rop", "libc.so.6")); got != "content of bb22/libc.so.6" {
				t.Errorf("libc.so.6 = %q", got)
			}
		})
	}
}

func TestDumpLogsInBeforeDetectingWhenRequired(t *testing.T) {
	m := newMockPlatform(t, ctfd.JSONv1_2, offlineChallenges)
	m.authRequired = true
	d := newTestDumper(t, m.URL(), ctfd.Options{})

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if summary.Generation != ctfd.JSONv1_2 || summary.Challenges != 3 {
		t.Errorf("summary = %+v", *summary)
	}
	if n := m.Count("POST /login"); n != 1 {
		t.Errorf("logged in %d times, want once", n)
	}
}

func TestDumpWithoutLogin(t *testing.T) {
	m := newMockPlatform(t, ctfd.RESTv2, offlineChallenges)
	d := newTestDumper(t, m.URL(), ctfd.Options{NoLogin: true})

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, hit := range []string{"GET /login", "POST /login", "GET /logout"} {
		if n := m.Count(hit); n != 0 {
			t.Errorf("%s issued %d times, want none", hit, n)
		}
	}
}

func TestDumpBadCredentials(t *testing.T) {
	m := newMockPlatform(t, ctfd.RESTv2, offlineChallenges)
	out := t.TempDir()
	d := newTestDumper(t, m.URL(), ctfd.Options{
		Output: out,
		Creds:  &ctfd.Creds{Username: testUser, Password: "nope"},
	})

	_, err := d.Run(context.Background())
	if !errors.Is(err, ctfd.ErrInvalidCredentials) {
		t.Fatalf("Run() error = %v, want ErrInvalidCredentials", err)
	}
	if n := m.Count("GET /api/v1/challenges/3"); n != 0 {
		t.Errorf("enumerated after a failed login")
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Errorf("output written after a failed login: %v", entries)
	}
}

func TestDumpFilters(t *testing.T) {
	m := newMockPlatform(t, ctfd.RESTv2, offlineChallenges)
	d := newTestDumper(t, m.URL(), ctfd.Options{
		Filters: ctfd.Filters{ctfd.CategoryFilter("PWN")},
	})

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Challenges != 1 || summary.Files != 2 {
		t.Errorf("summary = %+v, want only baby rop", *summary)
	}
}

func TestDumpSkipExisting(t *testing.T) {
	m := newMockPlatform(t, ctfd.JSONv1_2, offlineChallenges)
	out := t.TempDir()

	first, err := newTestDumper(t, m.URL(), ctfd.Options{Output: out}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := newTestDumper(t, m.URL(), ctfd.Options{Output: out, SkipExisting: true}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Challenges != 3 || second.Challenges != 0 || second.Skipped != 3 {
		t.Errorf("first = %+v, second = %+v", *first, *second)
	}
}

func TestNewDumperRequiresCreds(t *testing.T) {
	_, err := ctfd.NewDumper(ctfd.Options{Url: "https://ctf.example.com"})
	if err == nil {
		t.Error("NewDumper() without credentials succeeded")
	}
	if _, err := ctfd.NewDumper(ctfd.Options{Url: "https://ctf.example.com", NoLogin: true}); err != nil {
		t.Errorf("NewDumper() with NoLogin: %v", err)
	}
}

func TestDumpCancelled(t *testing.T) {
	m := newMockPlatform(t, ctfd.RESTv2, offlineChallenges)
	d := newTestDumper(t, m.URL(), ctfd.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if n := m.Count("GET /logout"); n != 0 {
		t.Errorf("logout issued after cancellation")
	}
}
