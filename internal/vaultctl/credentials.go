package vaultctl

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/services"
)

// login asks for the user's master secret and checks it. The caller wipes
// the returned secret.
func (a *App) login(ctx context.Context, s *store, username string) (*models.User, []byte, error) {
	pw, err := GetPassword(a.out, "Master secret: ")
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.Authenticate(ctx, username, string(pw))
	if err != nil {
		common.WipeByteArray(pw)
		return nil, nil, err
	}
	return u, pw, nil
}

func (a *App) addCredential(ctx context.Context, s *store, args []string) error {
	u, secret, err := a.login(ctx, s, args[0])
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	sitePw, err := GetPassword(a.out, "Site password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(sitePw)

	in := services.CredentialInput{SiteName: args[1], SiteUsername: args[2], SitePassword: string(sitePw)}
	if len(args) == 4 {
		in.SiteURL = args[3]
	}
	c, err := s.creds.Add(ctx, u.ID, string(secret), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "stored %s\n", c.ID)
	return nil
}

func (a *App) listCredentials(ctx context.Context, s *store, args []string) error {
	u, secret, err := a.login(ctx, s, args[0])
	if err != nil {
		return err
	}
	common.WipeByteArray(secret)

	items, err := s.creds.List(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "no credentials")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSITE\tLOGIN\tURL\tADDED")
	for _, c := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.SiteName, c.SiteUsername, c.SiteURL, c.CreatedAt.UTC().Format(timeLayout))
	}
	return w.Flush()
}

func (a *App) revealCredential(ctx context.Context, s *store, args []string) error {
	u, secret, err := a.login(ctx, s, args[0])
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	pw, err := s.creds.Reveal(ctx, u.ID, args[1], string(secret))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, pw)
	return nil
}

func (a *App) deleteCredential(ctx context.Context, s *store, args []string) error {
	u, secret, err := a.login(ctx, s, args[0])
	if err != nil {
		return err
	}
	common.WipeByteArray(secret)

	if err := s.creds.Delete(ctx, u.ID, args[1]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "deleted")
	return nil
}
