// Package useradd implements the interactive account creation used by the
// useradd binary.
package useradd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/services"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type Registrar interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
}

// getSimpleText prints a prompt to w and reads a single trimmed line.
func getSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func getPassword(prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// Run prompts for the account fields on in/out and registers the user with
// the given role. Accounts created here are already verified.
func Run(ctx context.Context, r Registrar, role string, in io.Reader, out io.Writer) (*models.User, error) {

	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	reader := bufio.NewReader(in)

	email, err := getSimpleText(reader, "Enter email", out)
	if err != nil {
		return nil, err
	}
	username, err := getSimpleText(reader, "Enter user name", out)
	if err != nil {
		return nil, err
	}
	country, err := getSimpleText(reader, "Enter country", out)
	if err != nil {
		return nil, err
	}

	password, err := getPassword("Enter password", out)
	if err != nil {
		return nil, err
	}
	confirm, err := getPassword("Repeat password", out)
	if err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, errors.New("passwords do not match")
	}

	return r.Register(ctx, services.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
		Country:  country,
		Role:     role,
		Verified: true,
	})
}
