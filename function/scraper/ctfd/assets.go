package ctfd

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/dimasma0305/ctfdump/function/utils"
)

var (
	// scheme, a host with at least one dot, then one or more path segments
	descriptionUrlPattern = regexp.MustCompile(`https?://\w+(?:\.\w+)+(?:/[\w._-]+)+`)
	fileNameNormalizer    = regexp.MustCompile(`[^\w\s\-.()]`)
	whitespaceNormalizer  = regexp.MustCompile(`[\t\n\v\f\r]`)
)

const fallbackFileName = "attachment"

// Asset is one file to download and the name it gets on disk.
type Asset struct {
	Url      string
	FileName string
}

// FindUrls returns every http(s) url embedded in text, in order of
// appearance.
func FindUrls(text string) []string {
	return descriptionUrlPattern.FindAllString(text, -1)
}

// SanitizeFileName keeps word characters, spaces, hyphens, dots and
// parentheses. Path separators never survive, and a result made only of
// dots is replaced so the name cannot point outside its directory.
func SanitizeFileName(name string) string {
	name = whitespaceNormalizer.ReplaceAllString(name, " ")
	name = fileNameNormalizer.ReplaceAllString(strings.TrimSpace(name), "")
	return strings.TrimSpace(name)
}

func safeFileName(name string) string {
	name = SanitizeFileName(name)
	if strings.Trim(name, ". ") == "" {
		return fallbackFileName
	}
	return name
}

// Collector turns a challenge's file references and description into
// download urls.
type Collector struct {
	base *url.URL
}

func NewCollector(base *url.URL) *Collector {
	return &Collector{base: base}
}

// FileUrl makes a server-declared file reference absolute. Bare paths are
// moved under /files/ first; absolute urls pass through unchanged.
func (c *Collector) FileUrl(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if utils.IsAbsoluteURL(ref) {
		return ref, nil
	}
	if !strings.HasPrefix(ref, filesPrefix) {
		ref = filesPrefix + strings.TrimLeft(ref, "/")
	}
	return utils.ResolveRef(c.base, ref)
}

// Collect merges the explicit file references with the urls found in the
// description, deduplicated by absolute url in first-seen order.
func (c *Collector) Collect(chall *Challenge) []Asset {
	var (
		assets []Asset
		seen   = make(map[string]struct{})
	)
	add := func(raw string) {
		if _, ok := seen[raw]; ok {
			return
		}
		seen[raw] = struct{}{}
		assets = append(assets, Asset{Url: raw, FileName: fileNameFromUrl(raw)})
	}
	for _, ref := range chall.Files {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		abs, err := c.FileUrl(ref)
		if err != nil {
			continue
		}
		add(abs)
	}
	for _, found := range FindUrls(chall.Description) {
		add(found)
	}
	return assets
}

// fileNameFromUrl is the sanitized last path segment of raw.
func fileNameFromUrl(raw string) string {
	var p string
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else {
		p = strings.Split(raw, "?")[0]
	}
	return safeFileName(path.Base(p))
}
