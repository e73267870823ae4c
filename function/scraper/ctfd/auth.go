package ctfd

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dimasma0305/ctfdump/function/log"
)

type Creds struct {
	Username string
	Password string
}

// ExtractNonce pulls the anti-forgery token out of the login page: the value
// of the hidden input named "nonce". It returns ErrTokenNotFound when the
// page has no such field.
func ExtractNonce(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	nonce, exist := doc.Find(`input[name="nonce"]`).First().Attr("value")
	if !exist || strings.TrimSpace(nonce) == "" {
		return "", ErrTokenNotFound
	}
	return nonce, nil
}

// Login signs in as creds. The login flow is the same for every
// generation: fetch the nonce, post the form with next=/challenges and
// check that the redirects land on the challenges page.
func Login(ctx context.Context, s *Session, creds *Creds) error {
	res, err := s.Get(ctx, loginPath)
	if err != nil {
		return err
	}
	nonce, err := ExtractNonce(res.Bytes())
	if err != nil {
		return err
	}

	next := s.Path(challengesPath)
	res, err = s.Post(ctx, loginPath,
		map[string]string{"next": next},
		map[string]string{
			"name":     creds.Username,
			"password": creds.Password,
			"_submit":  "Submit",
			"nonce":    nonce,
		})
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest || !samePath(finalPath(res), next) {
		log.Debug("login landed on %q with status %d", finalPath(res), res.StatusCode)
		return ErrInvalidCredentials
	}
	return nil
}

// Logout ends the session. It is best effort: failures are logged and
// swallowed.
func Logout(ctx context.Context, s *Session) {
	res, err := s.Get(ctx, logoutPath)
	if err != nil {
		log.ErrorH2("logout failed: %s", err)
		return
	}
	if res.IsErrorState() {
		log.ErrorH2("logout answered %d", res.StatusCode)
	}
}
