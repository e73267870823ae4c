package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// GetJson unwraps the {"success": bool, "message": string, "data": ...}
// envelope used by the platform API and decodes data into the given value.
func GetJson(byte []byte, data any) error {
	var tmp struct {
		Message string
		Success bool
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(byte, &tmp); err != nil {
		return err
	}
	if !tmp.Success {
		return fmt.Errorf("request end with %q status", tmp.Message)
	}
	if len(tmp.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(tmp.Data, data); err != nil {
		return err
	}
	return nil
}

func UrlJoinPath(base string, path ...string) string {
	res, err := url.JoinPath(base, path...)
	if err != nil {
		panic(err)
	}
	return res
}

// IsAbsoluteURL reports whether ref carries its own http(s) scheme and host.
func IsAbsoluteURL(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ResolveRef joins a path reference onto base, keeping any base path prefix
// and the reference's own query string. Absolute references are returned
// unchanged.
func ResolveRef(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if IsAbsoluteURL(ref) {
		return ref, nil
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	res := base.JoinPath(parsed.Path)
	res.RawQuery = parsed.RawQuery
	res.Fragment = ""
	return res.String(), nil
}
