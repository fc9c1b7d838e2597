package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bedrud/bedrud-go"
	"github.com/bedrud/bedrud-go/api"
)

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer rooms and users (requires the admin access)",
	}

	rooms := &cobra.Command{Use: "rooms", Short: "Manage all rooms"}
	rooms.AddCommand(adminRoomsListCmd(a), adminRoomsUpdateCmd(a), adminRoomsTokenCmd(a))

	users := &cobra.Command{Use: "users", Short: "Manage users"}
	users.AddCommand(adminUsersListCmd(a), adminUsersStatusCmd(a))

	cmd.AddCommand(rooms, users)
	return cmd
}

func adminRoomsListCmd(a *app) *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rooms page by page",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			list, err := c.Admin().ListAllRooms(ctx, skip, limit)
			if err != nil {
				return err
			}
			return a.print(cmd, list)
		}),
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Rooms to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	return cmd
}

func adminRoomsUpdateCmd(a *app) *cobra.Command {
	var (
		name   string
		active bool
		maxParticipants int
	)

	cmd := &cobra.Command{
		Use:   "update <room-id>",
		Short: "Change a room's name, state or participant limit",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, args []string) error {
			var patch api.RoomPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("active") {
				patch.IsActive = &active
			}
			if flags.Changed("max-participants") {
				patch.MaxParticipants = &maxParticipants
			}
			if patch == (api.RoomPatch{}) {
				return errors.New("nothing to update")
			}

			room, err := c.Admin().UpdateRoom(ctx, args[0], patch)
			if err != nil {
				return err
			}
			return a.print(cmd, room)
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "New room name")
	cmd.Flags().BoolVar(&active, "active", true, "Whether the room accepts participants")
	cmd.Flags().IntVar(&maxParticipants, "max-participants", 0, "New participant limit")
	return cmd
}

func adminRoomsTokenCmd(a *app) *cobra.Command {
	var req api.GenerateTokenRequest

	cmd := &cobra.Command{
		Use:   "token <room-id>",
		Short: "Issue a media credential for a user",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, args []string) error {
			tok, err := c.Admin().GenerateRoomToken(ctx, args[0], req)
			if err != nil {
				return err
			}
			return a.print(cmd, tok)
		}),
	}

	cmd.Flags().StringVar(&req.UserID, "user", "", "User id")
	cmd.Flags().IntVar(&req.Duration, "duration", 0, "Credential lifetime in seconds (backend default when 0)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func adminUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			users, err := c.Admin().ListUsers(ctx)
			if err != nil {
				return err
			}
			return a.print(cmd, users)
		}),
	}
}

func adminUsersStatusCmd(a *app) *cobra.Command {
	var active bool

	cmd := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Activate or deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, args []string) error {
			msg, err := c.Admin().UpdateUserStatus(ctx, args[0], active)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&active, "active", true, "New status")
	return cmd
}
