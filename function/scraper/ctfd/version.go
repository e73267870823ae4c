package ctfd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dimasma0305/ctfdump/function/log"
)

const (
	restChallengesPath   = "/api/v1/challenges"
	legacyChallengesPath = "/chals"
	loginPath            = "/login"
	logoutPath           = "/logout"
	challengesPath       = "/challenges"
	filesPrefix          = "/files/"
)

// Generation is one wire format of the platform. It is selected once per
// run by Detect and never changes afterwards.
type Generation int

const (
	// LegacyHTML serves /chals as an html page; no scrape strategy exists for it.
	LegacyHTML Generation = iota
	// JSONv1 lists identifiers on /chals and serves details on /chals/<id>.
	JSONv1
	// JSONv1_2 serves full records, description included, on /chals.
	JSONv1_2
	// RESTv2 serves /api/v1/challenges and /api/v1/challenges/<id>.
	RESTv2
)

func (g Generation) String() string {
	switch g {
	case LegacyHTML:
		return "legacy-html"
	case JSONv1:
		return "json-v1"
	case JSONv1_2:
		return "json-v1.2"
	case RESTv2:
		return "rest-v2"
	}
	return fmt.Sprintf("generation(%d)", int(g))
}

// Detect works out which generation the platform speaks. Probes run in a
// fixed order and the first match wins:
//
//  1. /api/v1/challenges answering anything but 404 selects RESTv2; an
//     auth-required answer still proves the endpoint exists.
//  2. /chals whose records lack a description selects JSONv1.
//  3. Any other JSON /chals selects JSONv1_2.
//
// A /chals probe that demands authentication yields ErrNotLoggedIn, so the
// caller can log in and probe again. An html /chals page yields LegacyHTML
// and a body that is neither json nor html ErrUnsupportedPlatform. Anything
// else is ErrDetection.
func Detect(ctx context.Context, s *Session) (Generation, error) {
	res, err := s.Get(ctx, restChallengesPath)
	if err != nil {
		return 0, err
	}
	if res.StatusCode != http.StatusNotFound {
		log.Debug("%s answered %d, selecting %s", restChallengesPath, res.StatusCode, RESTv2)
		return RESTv2, nil
	}

	res, err = s.Get(ctx, legacyChallengesPath)
	if err != nil {
		return 0, err
	}
	if s.requiresLogin(res) {
		return 0, fmt.Errorf("probe %s: %w", legacyChallengesPath, ErrNotLoggedIn)
	}
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s answered %d", ErrDetection, legacyChallengesPath, res.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(res.Bytes(), &body); err != nil {
		if looksLikeHTML(res.GetContentType(), res.Bytes()) {
			return LegacyHTML, nil
		}
		return 0, fmt.Errorf("%w: %s is neither json nor html: %v", ErrUnsupportedPlatform, legacyChallengesPath, err)
	}
	raw, ok := body["game"]
	if !ok {
		return 0, fmt.Errorf("%w: %s has no game list", ErrDetection, legacyChallengesPath)
	}
	var game []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &game); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDetection, legacyChallengesPath, err)
	}
	if len(game) > 0 {
		if _, ok := game[0]["description"]; !ok {
			return JSONv1, nil
		}
	}
	return JSONv1_2, nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body)))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
