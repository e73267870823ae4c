package ctfd_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/dimasma0305/ctfdump/function/scraper/ctfd"
)

const (
	testNonce    = "8f2c1e0b7a"
	testUser     = "alice"
	testPassword = "hunter2"
	loginPage    = `<html><body><form method="post">
<input name="name" type="text">
<input name="password" type="password">
<input type="hidden" name="nonce" value="` + testNonce + `">
</form></body></html>`
)

type mockChallenge struct {
	Id          int      `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Value       int      `json:"value"`
	Files       []string `json:"files"`
}

// mockPlatform serves exactly the endpoints of one platform generation.
type mockPlatform struct {
	t          *testing.T
	gen        ctfd.Generation
	challenges []mockChallenge
	// authRequired makes every challenge endpoint answer 403 until login.
	authRequired bool

	mu   sync.Mutex
	hits []string

	server *httptest.Server
}

func newMockPlatform(t *testing.T, gen ctfd.Generation, challenges []mockChallenge) *mockPlatform {
	t.Helper()
	m := &mockPlatform{t: t, gen: gen, challenges: challenges}
	routes := m.routes()
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.record(r)
		routes.ServeHTTP(w, r)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockPlatform) URL() string { return m.server.URL }

func (m *mockPlatform) record(r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, r.Method+" "+r.URL.Path)
}

func (m *mockPlatform) Hits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.hits...)
}

func (m *mockPlatform) Count(hit string) int {
	n := 0
	for _, h := range m.Hits() {
		if h == hit {
			n++
		}
	}
	return n
}

func (m *mockPlatform) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = nil
}

func authed(r *http.Request) bool {
	c, err := r.Cookie("session")
	return err == nil && c.Value == "authenticated"
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (m *mockPlatform) find(r *http.Request) (mockChallenge, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return mockChallenge{}, false
	}
	for _, c := range m.challenges {
		if c.Id == id {
			return c, true
		}
	}
	return mockChallenge{}, false
}

func (m *mockPlatform) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "anonymous", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("nonce") != testNonce ||
			r.PostForm.Get("name") != testUser ||
			r.PostForm.Get("password") != testPassword {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "Your username or password is incorrect"+loginPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "authenticated", Path: "/"})
		http.Redirect(w, r, r.URL.Query().Get("next"), http.StatusFound)
	})
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /challenges", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Redirect(w, r, "/login?next=/challenges", http.StatusFound)
			return
		}
		fmt.Fprint(w, "<html>challenges</html>")
	})
	mux.HandleFunc("GET /files/{path...}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "content of "+r.PathValue("path"))
	})

	switch m.gen {
	case ctfd.RESTv2:
		mux.HandleFunc("GET /api/v1/challenges", func(w http.ResponseWriter, r *http.Request) {
			if m.authRequired && !authed(r) {
				writeJson(w, http.StatusForbidden, map[string]any{"message": "forbidden"})
				return
			}
			var data []map[string]any
			for _, c := range m.challenges {
				// the summary deliberately differs from the detail
				data = append(data, map[string]any{
					"id": c.Id, "name": c.Name, "category": c.Category, "value": 1,
					"solved_by_me": c.Id%2 == 0,
				})
			}
			writeJson(w, http.StatusOK, map[string]any{"success": true, "data": data})
		})
		mux.HandleFunc("GET /api/v1/challenges/{id}", func(w http.ResponseWriter, r *http.Request) {
			if m.authRequired && !authed(r) {
				writeJson(w, http.StatusForbidden, map[string]any{"message": "forbidden"})
				return
			}
			c, ok := m.find(r)
			if !ok {
				writeJson(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
				return
			}
			writeJson(w, http.StatusOK, map[string]any{"success": true, "data": c})
		})

	case ctfd.JSONv1_2:
		mux.HandleFunc("GET /chals", func(w http.ResponseWriter, r *http.Request) {
			if m.authRequired && !authed(r) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			var game []map[string]any
			for _, c := range m.challenges {
				item := map[string]any{
					"id": c.Id, "name": c.Name, "category": c.Category,
					"description": c.Description, "value": c.Value,
				}
				if c.Files != nil {
					item["files"] = c.Files
				}
				game = append(game, item)
			}
			writeJson(w, http.StatusOK, map[string]any{"game": game})
		})

	case ctfd.JSONv1:
		mux.HandleFunc("GET /chals", func(w http.ResponseWriter, r *http.Request) {
			if m.authRequired && !authed(r) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			var game []map[string]any
			for _, c := range m.challenges {
				game = append(game, map[string]any{"id": c.Id, "name": c.Name, "category": c.Category})
			}
			writeJson(w, http.StatusOK, map[string]any{"game": game})
		})
		mux.HandleFunc("GET /chals/{id}", func(w http.ResponseWriter, r *http.Request) {
			c, ok := m.find(r)
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJson(w, http.StatusOK, c)
		})

	case ctfd.LegacyHTML:
		mux.HandleFunc("GET /chals", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<!DOCTYPE html><html><body>challenges</body></html>")
		})
	}
	return mux
}

func newTestSession(t *testing.T, url string) *ctfd.Session {
	t.Helper()
	s, err := ctfd.NewSession(url, ctfd.SessionOptions{})
	if err != nil {
		t.Fatalf("NewSession(%q): %v", url, err)
	}
	t.Cleanup(s.Close)
	return s
}

var sampleChallenges = []mockChallenge{
	{Id: 3, Name: "baby rop", Category: "pwn", Description: "nc pwn.example.com 1337", Value: 100, Files: []string{"/files/aa11/chall"}},
	{Id: 7, Name: "warmup", Category: "web", Description: "see http://example.com/files/a.zip", Value: 50, Files: []string{}},
}
