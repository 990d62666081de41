package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/config"
	"github.com/matheus3301/chatty/internal/daemon"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/phone"
	"github.com/matheus3301/chatty/internal/profile"
	"github.com/matheus3301/chatty/internal/store"
)

var normalizeCommand = &cli.Command{
	Name:      "normalize",
	Usage:     "print the canonical form of phone numbers",
	ArgsUsage: "<number>...",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "region", Usage: "ISO 3166 region, defaults to country_code from config"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return errors.New("usage: chattyctl normalize <number>...")
		}
		region := c.String("region")
		if region == "" {
			region = loadConfig().CountryCode
		}
		n := phone.NewNormalizer(0)
		var out []phone.Number
		for _, raw := range c.Args().Slice() {
			out = append(out, n.Normalize(raw, region))
		}
		if c.Bool("json") {
			return outputJSON(out)
		}
		for _, num := range out {
			canonical := num.Canonical()
			if canonical == "" {
				canonical = "-"
			}
			fmt.Printf("%-24s %-18s valid=%v\n", num.Raw, canonical, num.Valid)
		}
		return nil
	},
}

var detectCommand = &cli.Command{
	Name:      "detect",
	Usage:     "list the protocols an address could belong to",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("usage: chattyctl detect <address>")
		}
		m := identity.NewMatcher(phone.NewNormalizer(0), loadConfig().CountryCode)
		p := m.DetectProtocol(c.Args().First(), backend.ProtocolAny)
		if c.Bool("json") {
			return outputJSON(map[string]string{"address": c.Args().First(), "protocols": p.String()})
		}
		fmt.Println(p)
		return nil
	},
}

type accountStatus struct {
	Account  string `json:"account"`
	Protocol string `json:"protocol"`
	Status   string `json:"status"`
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "show the connectivity of every configured account",
	Action: func(c *cli.Context) error {
		paths := profile.For(profileName(c))
		conn, err := grpc.NewClient("unix://"+paths.Socket(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("cannot connect to daemon for profile %q: %w", paths.Name, err)
		}
		defer func() { _ = conn.Close() }()
		client := healthpb.NewHealthClient(conn)

		ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
		defer cancel()

		if _, err := client.Check(ctx, &healthpb.HealthCheckRequest{}); err != nil {
			return fmt.Errorf("daemon for profile %q is not running: %w", paths.Name, err)
		}

		var out []accountStatus
		for _, ac := range loadConfig().Accounts {
			st := "UNKNOWN"
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: daemon.AccountService(ac.ID)})
			if err == nil {
				st = "DISCONNECTED"
				if resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
					st = "CONNECTED"
				}
			}
			out = append(out, accountStatus{Account: ac.ID, Protocol: ac.Protocol, Status: st})
		}
		if c.Bool("json") {
			return outputJSON(out)
		}
		fmt.Printf("Profile: %s\n", paths.Name)
		for _, s := range out {
			fmt.Printf("  %-20s %-10s %s\n", s.Account, s.Protocol, s.Status)
		}
		return nil
	},
}

type chatRow struct {
	Account  string    `json:"account"`
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Unread   int       `json:"unread"`
	LastSeen time.Time `json:"last_message_at"`
}

var chatsCommand = &cli.Command{
	Name:  "chats",
	Usage: "list stored chats",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "account", Usage: "only this account"},
	},
	Action: func(c *cli.Context) error {
		db, err := openStore(profileName(c))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		ids := []string{c.String("account")}
		if ids[0] == "" {
			ids = ids[:0]
			for _, ac := range loadConfig().Accounts {
				ids = append(ids, ac.ID)
			}
		}

		var out []chatRow
		for _, id := range ids {
			chats, err := db.ListChats(c.Context, id)
			if err != nil {
				return fmt.Errorf("list chats of %s: %w", id, err)
			}
			for _, ch := range chats {
				row := chatRow{Account: ch.Account, Key: ch.Key, Name: ch.Name, Unread: ch.UnreadCount}
				if ch.LastMessageAt > 0 {
					row.LastSeen = time.UnixMilli(ch.LastMessageAt)
				}
				out = append(out, row)
			}
		}
		if c.Bool("json") {
			return outputJSON(out)
		}
		if len(out) == 0 {
			fmt.Println("No chats found.")
			return nil
		}
		for _, r := range out {
			name := r.Name
			if name == "" {
				name = r.Key
			}
			fmt.Printf("%-12s %-32s unread=%d\n", r.Account, truncate(name, 32), r.Unread)
		}
		return nil
	},
}

var enableCommand = &cli.Command{
	Name:      "enable",
	Usage:     "re-enable an account that was disabled after an authentication failure",
	ArgsUsage: "<account>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("usage: chattyctl enable <account>")
		}
		id := c.Args().First()
		db, err := openStore(profileName(c))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		a, err := db.GetAccount(c.Context, id)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("unknown account %q", id)
		}
		if err := db.SetAccountEnabled(c.Context, id, true); err != nil {
			return err
		}
		fmt.Printf("Account %s enabled; restart chattyd to connect it.\n", id)
		return nil
	},
}

func openStore(name string) (*store.DB, error) {
	path := profile.For(name).AppDB()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("profile %q has no database: %w", name, err)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func loadConfig() *config.Config {
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return &config.Config{HistoryPageSize: config.DefaultHistoryPageSize}
	}
	return cfg
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
