package ctfd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dimasma0305/ctfdump/function/log"
	"github.com/dimasma0305/ctfdump/function/utils"
	"github.com/imroc/req/v3"
)

const (
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/110.0"
	defaultTimeout = 2 * time.Minute
	dialTimeout    = 15 * time.Second
)

// SessionOptions tunes the HTTP client owned by a Session.
type SessionOptions struct {
	// Timeout is how long a request may go without progress: connecting,
	// waiting for headers, or between two reads of a streamed body. A
	// non-streamed request must also complete within it. Zero means two
	// minutes.
	Timeout time.Duration
	// Cookies are preset for the platform host only, e.g. a session cookie
	// copied from a browser.
	Cookies  map[string]string
	Insecure bool
	Debug    bool
}

// Session owns the authenticated client bound to one platform url. Cookies
// and keep-alive connections live here and nowhere else.
type Session struct {
	Url     *url.URL
	client  *req.Client
	timeout time.Duration
}

// NewSession creates a Session for baseUrl.
func NewSession(baseUrl string, opts SessionOptions) (*Session, error) {
	u, err := url.Parse(strings.TrimSpace(baseUrl))
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", baseUrl, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: scheme and host are required", baseUrl)
	}
	u.RawQuery = ""
	u.Fragment = ""

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	// no client-wide timeout: it would also cap the transfer of a large body
	client := req.C().
		SetUserAgent(userAgent).
		SetDial(dialer.DialContext).
		SetTLSHandshakeTimeout(dialTimeout).
		SetLogger(log.Logger()).
		DisableAutoDecode()
	client.GetTransport().SetResponseHeaderTimeout(timeout)
	if opts.Insecure {
		client.EnableInsecureSkipVerify()
	}
	if opts.Debug {
		client.EnableDebugLog()
	}
	if len(opts.Cookies) > 0 {
		if err := presetCookies(client, u, opts.Cookies); err != nil {
			return nil, err
		}
	}
	return &Session{Url: u, client: client, timeout: timeout}, nil
}

// presetCookies stores cookies in the client's jar as host-only cookies of
// u, so they follow the same domain rules as the ones set at login and are
// never sent to another host.
func presetCookies(client *req.Client, u *url.URL, values map[string]string) error {
	jar := client.GetClient().Jar
	if jar == nil {
		var err error
		if jar, err = cookiejar.New(nil); err != nil {
			return fmt.Errorf("cookie jar: %w", err)
		}
		client.SetCookieJar(jar)
	}
	cookies := make([]*http.Cookie, 0, len(values))
	for name, value := range values {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, cookies)
	return nil
}

// URL resolves a path relative to the platform url. Absolute urls are
// returned unchanged.
func (s *Session) URL(ref string) string {
	res, err := utils.ResolveRef(s.Url, ref)
	if err != nil {
		return utils.UrlJoinPath(s.Url.String(), ref)
	}
	return res
}

// Path returns the path component URL(ref) would request.
func (s *Session) Path(ref string) string {
	u, err := url.Parse(s.URL(ref))
	if err != nil {
		return ref
	}
	return u.Path
}

// HostName is the platform host without its port.
func (s *Session) HostName() string {
	return s.Url.Hostname()
}

// Get fetches ref and reads the whole body. The request, body included,
// must complete within the session timeout.
func (s *Session) Get(ctx context.Context, ref string) (*req.Response, error) {
	target := s.URL(ref)
	log.Debug("GET %s", target)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	return res, nil
}

// Post submits form to ref with query appended to the url, following
// redirects like Get.
func (s *Session) Post(ctx context.Context, ref string, query, form map[string]string) (*req.Response, error) {
	target := s.URL(ref)
	log.Debug("POST %s", target)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetFormData(form).
		Post(target)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", target, err)
	}
	return res, nil
}

// Download issues a GET whose body is left unread so the caller can stream
// it. There is no limit on the total transfer time; the request is
// abandoned once it goes a whole session timeout without receiving data.
// The caller must close res.Body.
func (s *Session) Download(ctx context.Context, ref string) (*req.Response, error) {
	target := s.URL(ref)
	log.Debug("GET %s (stream)", target)
	ctx, cancel := context.WithCancel(ctx)
	body := &idleBody{timeout: s.timeout, cancel: cancel}
	body.timer = time.AfterFunc(s.timeout, body.expire)
	res, err := s.client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(target)
	if err != nil {
		if res != nil && res.Response != nil && res.Body != nil {
			res.Body.Close()
		}
		body.stop()
		return nil, body.wrap(err)
	}
	body.ReadCloser = res.Body
	res.Body = body
	return res, nil
}

// idleBody cancels its request when no data arrived for timeout.
type idleBody struct {
	io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	stalled atomic.Bool
}

func (b *idleBody) expire() {
	b.stalled.Store(true)
	b.cancel()
}

func (b *idleBody) stop() {
	b.timer.Stop()
	b.cancel()
}

func (b *idleBody) wrap(err error) error {
	if err != nil && b.stalled.Load() {
		return fmt.Errorf("no data received for %s: %w", b.timeout, err)
	}
	return err
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 && !b.stalled.Load() {
		b.timer.Reset(b.timeout)
	}
	return n, b.wrap(err)
}

func (b *idleBody) Close() error {
	b.stop()
	return b.ReadCloser.Close()
}

// Close releases idle connections.
func (s *Session) Close() {
	s.client.GetClient().CloseIdleConnections()
}

// finalPath is the path of the last request after redirects were followed.
func finalPath(res *req.Response) string {
	if res == nil || res.Response == nil || res.Response.Request == nil || res.Response.Request.URL == nil {
		return ""
	}
	return res.Response.Request.URL.Path
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// requiresLogin reports whether res says the request needed an
// authenticated session: an explicit 401/403, or a redirect onto the login
// page.
func (s *Session) requiresLogin(res *req.Response) bool {
	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return samePath(finalPath(res), s.Path(loginPath))
}
