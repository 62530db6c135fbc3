// Command negentropy-repl is an interactive two-engine shell for manually
// driving a negentropy reconciliation session: add items to a client and a
// server, seal both, and step through the message exchange one send at a
// time.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/rust-nostr/negentropy"
	"github.com/rust-nostr/negentropy/internal/hex"
)

func main() {
	if err := (&repl{idSize: 16}).run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// repl holds the two sides of a session plus the pending frame in flight.
type repl struct {
	idSize  int
	client  *negentropy.Engine
	server  *negentropy.Engine
	pending []byte // last frame emitted, not yet delivered to the other side
	turn    string // "client" or "server": the side pending is delivered to next; "" when no session is in flight

	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".negentropy_repl_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("negentropy-repl - interactive reconciliation shell")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	r.reset()

	for {
		line, err := r.liner.Prompt("negentropy> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "reset":
			r.reset()

		case "add":
			r.cmdAdd(args)

		case "seal":
			r.cmdSeal(args)

		case "initiate":
			r.cmdInitiate()

		case "step":
			r.cmdStep()

		case "status":
			r.cmdStatus()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *repl) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *repl) reset() {
	r.client, _ = negentropy.New(r.idSize, 0)
	r.server, _ = negentropy.New(r.idSize, 0)
	r.pending = nil
	r.turn = ""
}

func (r *repl) completer(line string) []string {
	cmds := []string{"add", "seal", "initiate", "step", "status", "reset", "help", "exit"}

	var matches []string
	for _, c := range cmds {
		if strings.HasPrefix(c, line) {
			matches = append(matches, c)
		}
	}

	return matches
}

func (r *repl) printHelp() {
	fmt.Println(`Commands:
  add <client|server> <timestamp> <hexid>   add an item to one side
  seal <client|server>                      seal one side's store
  initiate                                  client starts the session
  step                                      deliver the pending frame to the other side
  status                                    show pending frame and session state
  reset                                     start a fresh session
  exit                                      quit`)
}

func (r *repl) engineFor(side string) *negentropy.Engine {
	switch side {
	case "client":
		return r.client
	case "server":
		return r.server
	default:
		return nil
	}
}

func (r *repl) cmdAdd(args []string) {
	if len(args) != 3 {
		fmt.Println("usage: add <client|server> <timestamp> <hexid>")
		return
	}

	eng := r.engineFor(args[0])
	if eng == nil {
		fmt.Println("side must be client or server")
		return
	}

	ts, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Println("bad timestamp:", err)
		return
	}

	id, err := hex.Decode(args[2])
	if err != nil {
		fmt.Println("bad id:", err)
		return
	}

	if err := eng.Add(ts, id); err != nil {
		fmt.Println("add failed:", err)
		return
	}

	fmt.Println("ok")
}

func (r *repl) cmdSeal(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: seal <client|server>")
		return
	}

	eng := r.engineFor(args[0])
	if eng == nil {
		fmt.Println("side must be client or server")
		return
	}

	if err := eng.Seal(); err != nil {
		fmt.Println("seal failed:", err)
		return
	}

	fmt.Println("ok")
}

func (r *repl) cmdInitiate() {
	q, err := r.client.Initiate()
	if err != nil {
		fmt.Println("initiate failed:", err)
		return
	}

	r.pending = q
	r.turn = "server"

	fmt.Printf("client -> server: %s (%d bytes)\n", hex.Encode(q), len(q))
}

func (r *repl) cmdStep() {
	if r.turn == "" {
		fmt.Println("no pending frame, call initiate first")
		return
	}

	switch r.turn {
	case "server":
		reply, err := r.server.Reconcile(r.pending)
		if err != nil {
			fmt.Println("server reconcile failed:", err)
			return
		}

		r.pending = reply
		r.turn = "client"

		fmt.Printf("server -> client: %s (%d bytes)\n", hex.Encode(reply), len(reply))

	case "client":
		have, need, out, done, err := r.client.ReconcileWithIDs(r.pending)
		if err != nil {
			fmt.Println("client reconcile failed:", err)
			return
		}

		for _, id := range have {
			fmt.Println("have", hex.Encode(id))
		}

		for _, id := range need {
			fmt.Println("need", hex.Encode(id))
		}

		if done {
			fmt.Println("done")
			r.pending = nil
			r.turn = ""
			return
		}

		r.pending = out
		r.turn = "server"

		fmt.Printf("client -> server: %s (%d bytes)\n", hex.Encode(out), len(out))

	default:
		fmt.Println("no pending frame, call initiate first")
	}
}

func (r *repl) cmdStatus() {
	fmt.Printf("id_size=%d\n", r.idSize)

	if r.turn == "" {
		fmt.Println("no pending frame")
		return
	}

	fmt.Printf("pending frame (%d bytes) awaiting delivery to %s\n", len(r.pending), r.turn)
}
