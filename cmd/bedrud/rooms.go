package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bedrud/bedrud-go"
	"github.com/bedrud/bedrud-go/api"
)

func roomsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Create and join meeting rooms",
	}
	cmd.AddCommand(roomsCreateCmd(a), roomsJoinCmd(a))
	return cmd
}

func roomsCreateCmd(a *app) *cobra.Command {
	var req api.CreateRoomRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room (the backend picks a name when --name is empty)",
		Args:  cobra.NoArgs,
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, _ []string) error {
			room, err := c.Rooms().CreateRoom(ctx, req)
			if err != nil {
				return err
			}
			return a.print(cmd, room)
		}),
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Room name")
	cmd.Flags().IntVar(&req.MaxParticipants, "max-participants", 0, "Participant limit (backend default when 0)")
	return cmd
}

type joinView struct {
	Room      *api.JoinRoomResponse `json:"room"`
	Media     string                `json:"media"`
	Connected bool                  `json:"connected"`
}

func roomsJoinCmd(a *app) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "join <room>",
		Short: "Join a room and print the media credential",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(a, func(ctx context.Context, cmd *cobra.Command, c *bedrud.Client, args []string) error {
			if !connect {
				room, err := c.Rooms().JoinRoom(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(cmd, joinView{Room: room, Media: c.Media().URL()})
			}

			meeting, err := c.JoinMeeting(ctx, args[0])
			if err != nil {
				return err
			}
			defer meeting.Conn.Close()
			return a.print(cmd, joinView{Room: meeting.Room, Media: c.Media().URL(), Connected: true})
		}),
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "Also open the media connection to check the credential")
	return cmd
}
