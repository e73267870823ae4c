package ctfd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strconv"

	"github.com/dimasma0305/ctfdump/function/utils"
	"github.com/imroc/req/v3"
)

// enumerator is the per-generation strategy behind Enumerate. It calls
// yield for every record, with a *RecordError for a record that could not
// be read, and stops as soon as yield returns false. The returned error is
// fatal for the whole enumeration.
type enumerator interface {
	enumerate(ctx context.Context, s *Session, yield func(*Challenge, error) bool) error
}

var enumerators = map[Generation]enumerator{
	LegacyHTML: legacyHTML{},
	JSONv1:     jsonV1{},
	JSONv1_2:   jsonV1_2{},
	RESTv2:     restV2{},
}

// Enumerate streams the platform's challenges in server order. The
// sequence is single pass: ranging over it again re-issues every request.
//
// A pair with a *RecordError describes one unreadable record and the
// sequence goes on after it. Any other error, ErrNotLoggedIn included, is
// the last pair of the sequence.
func Enumerate(ctx context.Context, s *Session, gen Generation) iter.Seq2[*Challenge, error] {
	return func(yield func(*Challenge, error) bool) {
		e, ok := enumerators[gen]
		if !ok {
			yield(nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, gen))
			return
		}
		stopped := false
		err := e.enumerate(ctx, s, func(c *Challenge, err error) bool {
			if !yield(c, err) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// fetch GETs ref and fails with ErrNotLoggedIn when the platform wants a
// session first.
func fetch(ctx context.Context, s *Session, ref string) (*req.Response, error) {
	res, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if s.requiresLogin(res) {
		return nil, fmt.Errorf("GET %s: %w", ref, ErrNotLoggedIn)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", ref, res.StatusCode)
	}
	return res, nil
}

// fetchDetail is fetch for a per-challenge endpoint: anything short of a
// lost session is reported as a RecordError.
func fetchDetail(ctx context.Context, s *Session, ref string, id int) (*req.Response, error) {
	res, err := fetch(ctx, s, ref)
	if err != nil {
		if isFatal(err) {
			return nil, err
		}
		return nil, &RecordError{ID: id, Err: err}
	}
	return res, nil
}

func isFatal(err error) bool {
	return errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// decodeList decodes an array of records one element at a time, so a bad
// element costs only itself.
func decodeList(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type restV2 struct{}

func (restV2) enumerate(ctx context.Context, s *Session, yield func(*Challenge, error) bool) error {
	res, err := fetch(ctx, s, restChallengesPath)
	if err != nil {
		return err
	}
	var data json.RawMessage
	if err := utils.GetJson(res.Bytes(), &data); err != nil {
		return fmt.Errorf("challenge list: %w", err)
	}
	items, err := decodeList(data)
	if err != nil {
		return fmt.Errorf("challenge list: %w", err)
	}

	for _, item := range items {
		summary, err := decodeChallenge(item)
		if err != nil {
			if !yield(nil, &RecordError{Err: err}) {
				return nil
			}
			continue
		}
		id := int(summary.Id)
		res, err := fetchDetail(ctx, s, restChallengesPath+"/"+strconv.Itoa(id), id)
		if err != nil {
			if isFatal(err) {
				return err
			}
			if !yield(nil, err) {
				return nil
			}
			continue
		}
		var detail json.RawMessage
		if err := utils.GetJson(res.Bytes(), &detail); err != nil {
			if !yield(nil, &RecordError{ID: id, Err: err}) {
				return nil
			}
			continue
		}
		full, err := decodeChallenge(detail)
		if err != nil {
			if !yield(nil, &RecordError{ID: id, Err: err}) {
				return nil
			}
			continue
		}
		if !yield(full.toChallenge(summary), nil) {
			return nil
		}
	}
	return nil
}

// legacyList reads the {"game": [...]} document served on /chals.
func legacyList(ctx context.Context, s *Session) ([]json.RawMessage, error) {
	res, err := fetch(ctx, s, legacyChallengesPath)
	if err != nil {
		return nil, err
	}
	var body struct {
		Game json.RawMessage `json:"game"`
	}
	if err := json.Unmarshal(res.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("%w: %s is not json: %v", ErrUnsupportedPlatform, legacyChallengesPath, err)
	}
	items, err := decodeList(body.Game)
	if err != nil {
		return nil, fmt.Errorf("challenge list: %w", err)
	}
	return items, nil
}

type jsonV1_2 struct{}

func (jsonV1_2) enumerate(ctx context.Context, s *Session, yield func(*Challenge, error) bool) error {
	items, err := legacyList(ctx, s)
	if err != nil {
		return err
	}
	for _, item := range items {
		raw, err := decodeChallenge(item)
		if err != nil {
			if !yield(nil, &RecordError{Err: err}) {
				return nil
			}
			continue
		}
		if !yield(raw.toChallenge(nil), nil) {
			return nil
		}
	}
	return nil
}

type jsonV1 struct{}

func (jsonV1) enumerate(ctx context.Context, s *Session, yield func(*Challenge, error) bool) error {
	items, err := legacyList(ctx, s)
	if err != nil {
		return err
	}
	for _, item := range items {
		summary, err := decodeChallenge(item)
		if err != nil {
			if !yield(nil, &RecordError{Err: err}) {
				return nil
			}
			continue
		}
		id := int(summary.Id)
		res, err := fetchDetail(ctx, s, legacyChallengesPath+"/"+strconv.Itoa(id), id)
		if err != nil {
			if isFatal(err) {
				return err
			}
			if !yield(nil, err) {
				return nil
			}
			continue
		}
		full, err := decodeChallenge(res.Bytes())
		if err != nil {
			if !yield(nil, &RecordError{ID: id, Err: err}) {
				return nil
			}
			continue
		}
		if !yield(full.toChallenge(summary), nil) {
			return nil
		}
	}
	return nil
}

// legacyHTML has no scrape strategy. Guessing one would produce garbage, so
// it refuses outright.
type legacyHTML struct{}

func (legacyHTML) enumerate(ctx context.Context, s *Session, yield func(*Challenge, error) bool) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, LegacyHTML)
}
