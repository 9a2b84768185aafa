package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/playful-game/roomsync/internal/client"
	"github.com/playful-game/roomsync/internal/config"
	"github.com/playful-game/roomsync/internal/gameerr"
	"github.com/playful-game/roomsync/internal/phase"
	"github.com/playful-game/roomsync/internal/session"
	"github.com/playful-game/roomsync/internal/transport"
)

const replHelp = `Commands:
  create <name>            create a room and become its host
  join <code> <name>       join a room by its code
  resume                   pick up the last session stored on this device
  start                    start the game
  topic <topic> <emoji...> set the round topic and emoji selection
  answer <text...>         submit the leader's guess
  skip                     end the discussion early
  check                    start grading the answer
  finish                   end the room
  state                    print the current session
  leave                    leave the room and wipe local state
  quit                     exit`

func runREPL(ctx context.Context, c *client.Client, cfg *config.Config) error {
	fmt.Println(replHelp)

	subID := uuid.NewString()
	snaps := make(chan session.Snapshot, 32)
	c.Subscribe(subID, snaps)
	defer c.Unsubscribe(subID)
	go watchPhases(snaps)

	sc := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := runCommand(ctx, c, cmd, args); err != nil {
			var ge *gameerr.Error
			if errors.As(err, &ge) {
				fmt.Println(gameerr.UserMessage(ge.Code))
			}
			fmt.Println("error:", err)
		}
		fmt.Print("> ")
	}
	return sc.Err()
}

func runCommand(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "create":
		if len(args) != 1 {
			return errors.New("usage: create <name>")
		}
		s, err := c.CreateRoom(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("room %s created, share the code with the others\n", s.RoomCode)
		fmt.Printf("theme: %s (hint: %s)\n", s.Theme, s.Hint)
		return nil

	case "join":
		if len(args) != 2 {
			return errors.New("usage: join <code> <name>")
		}
		s, err := c.JoinRoom(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("joined room %s\n", s.RoomCode)
		return nil

	case "resume":
		ok, err := c.Resume(ctx, "", "")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("nothing to resume on this device")
			return nil
		}
		fmt.Printf("resumed room %s\n", c.Snapshot().RoomCode)
		return nil

	case "start":
		return c.StartGame(ctx)

	case "topic":
		if len(args) < 2 {
			return errors.New("usage: topic <topic> <emoji...>")
		}
		return c.SubmitTopic(ctx, args[0], args[1:])

	case "answer":
		if len(args) == 0 {
			return errors.New("usage: answer <text...>")
		}
		return c.SubmitAnswer(ctx, strings.Join(args, " "))

	case "skip":
		return c.SkipDiscussion(ctx)

	case "check":
		return c.BeginChecking(ctx)

	case "finish":
		return c.FinishRoom(ctx)

	case "state":
		printState(c.Snapshot())
		return nil

	case "leave":
		return c.Reset()

	case "help":
		fmt.Println(replHelp)
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

// watchPhases prints a line whenever the room moves to a new phase or the
// roster changes size, so the prompt stays quiet during timer ticks.
func watchPhases(snaps <-chan session.Snapshot) {
	var lastPhase string
	lastCount := -1
	for snap := range snaps {
		s := snap.Session
		if string(s.Phase) != lastPhase {
			lastPhase = string(s.Phase)
			fmt.Printf("\n[%s]\n> ", s.Phase)
			if s.Phase == phase.SettingTopic {
				fmt.Printf("\nround starting in %d seconds\n> ", int(client.PreRoundCountdown.Seconds()))
			}
		}
		if len(s.Roster) != lastCount {
			lastCount = len(s.Roster)
			fmt.Printf("\n%d participant(s) in the room\n> ", lastCount)
		}
		if s.LastError != "" {
			fmt.Printf("\nserver: %s\n> ", s.LastError)
		}
	}
}

func printState(s session.Session) {
	fmt.Printf("room:   %s (%s)\n", s.RoomCode, s.RoomID)
	fmt.Printf("phase:  %s", s.Phase)
	if s.Clock.Seconds > 0 {
		fmt.Printf("  %02d:%02d", s.Clock.Seconds/60, s.Clock.Seconds%60)
	}
	fmt.Println()
	if s.Topic != "" {
		fmt.Printf("topic:  %s\n", s.Topic)
	}
	if emojis := s.VisibleEmojis(); len(emojis) > 0 {
		fmt.Printf("emojis: %s\n", strings.Join(emojis, " "))
	}
	for _, p := range s.Roster {
		marker := " "
		if p.UserID == s.LocalUserID {
			marker = "*"
		}
		role := p.Role
		if p.IsLeader {
			role += ", leader"
		}
		fmt.Printf("  %s %s (%s)\n", marker, p.UserName, role)
	}
}

func printStatus(st transport.Status, err error) {
	switch st {
	case transport.StatusReconnecting:
		fmt.Print("\nconnection lost, retrying...\n> ")
	case transport.StatusConnected:
		fmt.Print("\nconnected\n> ")
	case transport.StatusFailed:
		fmt.Printf("\nconnection failed: %v\n> ", err)
	}
}
