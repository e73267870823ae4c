package creds

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"
)

const (
	EnvUsername = "CTF_USERNAME"
	EnvPassword = "CTF_PASSWORD"
)

type CredsStruct struct {
	Url      string `validate:"required,url"`
	Username string `validate:"required_unless=NoLogin true"`
	Password string `validate:"required_unless=NoLogin true"`
	NoLogin  bool
}

func (cs *CredsStruct) Validate() error {
	v := validator.New()
	if err := v.Struct(cs); err != nil {
		return err
	}
	return nil
}

// FromEnv fills a blank username or password from the environment.
func (cs *CredsStruct) FromEnv() {
	if cs.Username == "" {
		cs.Username = os.Getenv(EnvUsername)
	}
	if cs.Password == "" {
		cs.Password = os.Getenv(EnvPassword)
	}
}

// Prompt asks on the terminal for whatever is still missing. The password
// is read without echo when in is a terminal.
func (cs *CredsStruct) Prompt(in *os.File, out io.Writer) error {
	if cs.NoLogin {
		return nil
	}
	reader := bufio.NewReader(in)
	if cs.Username == "" {
		fmt.Fprint(out, "User: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read username: %w", err)
		}
		cs.Username = strings.TrimSpace(line)
	}
	if cs.Password == "" {
		fmt.Fprint(out, "Password: ")
		if term.IsTerminal(int(in.Fd())) {
			pass, err := term.ReadPassword(int(in.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			cs.Password = string(pass)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			cs.Password = strings.TrimRight(line, "\r\n")
		}
	}
	return nil
}
