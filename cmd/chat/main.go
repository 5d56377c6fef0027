// Package main runs the dialogue in a terminal, one stdin line per inbound
// message.
//
// Usage:
//
//	go run ./cmd/chat [--user=<phone>] [--csv=leads.csv]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wolfman30/odonto-agent/internal/agent"
	appconfig "github.com/wolfman30/odonto-agent/internal/config"
	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/internal/leads"
	"github.com/wolfman30/odonto-agent/internal/session"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "+5500000000000", "simulated sender phone")
	csvPath := flag.String("csv", "", "append confirmed leads to this CSV file")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr)

	var opts []agent.Option
	opts = append(opts, agent.WithLogger(logger))
	if *csvPath != "" {
		opts = append(opts, agent.WithLeadSink(leads.NewMultiSink(leads.NamedSink{Name: "csv", Sink: leads.NewCSVSink(*csvPath)})))
	}

	svc := agent.NewService(dialogue.NewEngine(cfg.DialogueConfig()), session.NewMemoryStore(), opts...)
	if err := run(context.Background(), svc, *user, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "chat:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *agent.Service, user string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Simulador WhatsApp. Digite uma mensagem (Ctrl+D para sair).")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		outcome, err := svc.HandleTurn(ctx, agent.Inbound{
			UserID:    user,
			RawSender: "whatsapp:" + user,
			Text:      scanner.Text(),
			Channel:   "terminal",
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.TrimRight(outcome.Reply, "\n"))
		if outcome.Lead != nil {
			fmt.Fprintf(out, "[lead] %s | %s | %s\n", outcome.Lead.PatientName, outcome.Lead.Period, outcome.Lead.SlotChoice)
		}
		if outcome.LeadErr != nil {
			fmt.Fprintf(out, "[lead error] %v\n", outcome.LeadErr)
		}
	}
}
