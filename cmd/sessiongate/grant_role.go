package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/internal/logging"
	"github.com/MrEthical07/sessiongate/internal/settings"
)

// grantRole sets the role of an existing account. Tokens already issued
// keep their role until the next login or refresh.
func grantRole(args []string) error {
	fs := pflag.NewFlagSet("grant-role", pflag.ContinueOnError)
	settings.RegisterFlags(fs)
	email := fs.String("email", "", "account email")
	roleName := fs.String("role", "", "ADMIN or USER")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}
	role, ok := sessiongate.ParseRole(*roleName)
	if !ok {
		return fmt.Errorf("--role must be ADMIN or USER, got %q", *roleName)
	}

	st, err := settings.Load(fs)
	if err != nil {
		return err
	}
	logger := logging.New(st.LogLevel, st.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := openDatabase(ctx, st)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.SetRole(ctx, *email, role)
	if err != nil {
		return fmt.Errorf("grant %s to %s: %w", role, *email, err)
	}

	logger.Warn("role granted", "user_id", user.ID, "email", user.Email, "role", user.Role)
	fmt.Printf("%s (%s) is now %s\n", user.Email, user.ID, user.Role)
	return nil
}
