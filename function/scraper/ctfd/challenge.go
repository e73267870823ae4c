package ctfd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Challenge is the normalized record of one competition task, whatever
// generation it came from.
type Challenge struct {
	Id             int      `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Value          int      `json:"value"`
	Files          []string `json:"files"`
	Tags           []string `json:"tags,omitempty"`
	ConnectionInfo string   `json:"connection_info,omitempty"`
	SolvedByMe     bool     `json:"solved_by_me"`
}

// CategoryName is the category for display, "No Category" when empty.
func (c *Challenge) CategoryName() string {
	if c.Category == "" {
		return "No Category"
	}
	return c.Category
}

// rawChallenge is what every generation sends for one challenge, decoded
// leniently: numbers may arrive as strings, strings as null and files or
// tags as either plain strings or objects.
type rawChallenge struct {
	Id             flexInt    `json:"id"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	Description    string     `json:"description"`
	Value          flexInt    `json:"value"`
	Files          stringList `json:"files"`
	Tags           stringList `json:"tags"`
	ConnectionInfo string     `json:"connection_info"`
	SolvedByMe     bool       `json:"solved_by_me"`
}

func decodeChallenge(data []byte) (*rawChallenge, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("challenge record is not an object")
	}
	var raw rawChallenge
	if err := json.Unmarshal(data, &raw); err != nil {
		// a field of the wrong type leaves the rest decoded
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, err
		}
	}
	return &raw, nil
}

// toChallenge builds the normalized record. fallback supplies fields the
// detail response left out, typically the list entry it was fetched for.
func (r *rawChallenge) toChallenge(fallback *rawChallenge) *Challenge {
	c := &Challenge{
		Id:             int(r.Id),
		Name:           strings.TrimSpace(r.Name),
		Category:       strings.TrimSpace(r.Category),
		Description:    r.Description,
		Value:          int(r.Value),
		Files:          []string(r.Files),
		Tags:           []string(r.Tags),
		ConnectionInfo: r.ConnectionInfo,
		SolvedByMe:     r.SolvedByMe,
	}
	if fallback != nil {
		if c.Id == 0 {
			c.Id = int(fallback.Id)
		}
		if c.Name == "" {
			c.Name = strings.TrimSpace(fallback.Name)
		}
		if c.Category == "" {
			c.Category = strings.TrimSpace(fallback.Category)
		}
		if c.Value == 0 {
			c.Value = int(fallback.Value)
		}
		c.SolvedByMe = c.SolvedByMe || fallback.SolvedByMe
	}
	if c.Name == "" {
		c.Name = "challenge-" + strconv.Itoa(c.Id)
	}
	if c.Files == nil {
		c.Files = []string{}
	}
	return c
}

// flexInt accepts a JSON number, a numeric string or null. Anything it
// cannot read becomes 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// stringList accepts an array whose items are strings or objects carrying
// the string under one of a few well-known keys.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		*l = nil
		return nil
	}
	res := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				res = append(res, s)
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		for _, key := range []string{"location", "url", "value", "name"} {
			if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
				res = append(res, strings.TrimSpace(v))
				break
			}
		}
	}
	*l = res
	return nil
}
