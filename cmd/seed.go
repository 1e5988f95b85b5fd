/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leave-notifier/apiserver/config"
	"github.com/leave-notifier/apiserver/internal/db"
	"github.com/leave-notifier/apiserver/internal/store"
	"github.com/leave-notifier/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	seedUsername string
	seedPassword string
	seedEmail    string
	seedName     string
	seedDemo     bool
)

// seedCmd represents the seed command. It creates the initial super
// user (and optionally a demo leave) so a fresh deployment is usable.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with an initial super user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedPassword == "" {
			return errors.New("--password is required")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		return seed(cmd.Context(), store.NewUserRepository(dbConn), store.NewLeaveRepository(dbConn))
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedUsername, "username", "admin", "super user login name")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "super user password")
	seedCmd.Flags().StringVar(&seedEmail, "email", "admin@example.com", "super user email")
	seedCmd.Flags().StringVar(&seedName, "name", "Administrator", "super user display name")
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "also create a demo leave request")
}

func seed(ctx context.Context, users *store.UserRepository, leaves *store.LeaveRepository) error {
	if _, err := users.GetByUsername(ctx, seedUsername); err == nil {
		fmt.Printf("user %q already exists, nothing to do\n", seedUsername)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user, err := users.Create(ctx, types.User{
		Username:     seedUsername,
		Email:        seedEmail,
		Name:         seedName,
		SuperUser:    true,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return err
	}
	fmt.Printf("created super user %q (id %d)\n", user.Username, user.ID)

	if !seedDemo {
		return nil
	}

	from := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	leave, err := leaves.Create(ctx, types.Leave{
		Username:      user.Username,
		From:          from,
		To:            from.AddDate(0, 0, 4),
		Justification: "demo leave request",
		Means:         types.MeansEmail,
		Status:        types.StatusPending,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created demo leave (id %d)\n", leave.ID)
	return nil
}
