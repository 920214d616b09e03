// Package seedadmin bootstraps the first SUPER_ADMIN account from an
// interactive terminal.
package seedadmin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

var ErrPasswordsDiffer = errors.New("passwords do not match")

// AdminCreator persists the admin account.
type AdminCreator interface {
	CreateSuperAdmin(ctx context.Context, email, password string) (*models.User, error)
}

// Run asks for the email (unless given) and the password twice, then
// creates the account.
func Run(ctx context.Context, creator AdminCreator, in *bufio.Reader, out io.Writer, email string) (*models.User, error) {
	if email == "" {
		var err error
		email, err = getSimpleText(in, "Admin email", out)
		if err != nil {
			return nil, fmt.Errorf("read email: %w", err)
		}
	}

	pw, err := getPassword("Password", out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer wipe(pw)

	confirm, err := getPassword("Repeat password", out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer wipe(confirm)

	if !bytes.Equal(pw, confirm) {
		return nil, ErrPasswordsDiffer
	}

	user, err := creator.CreateSuperAdmin(ctx, email, string(pw))
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "Created %s (%s)\n", user.Identifier, user.ID)
	return user, nil
}
