// Command negentropy-harness is a line-protocol test harness compatible
// with the reference implementation's test suite
// (https://github.com/hoytech/negentropy/tree/master/test). It reads
// commands from stdin, one per line, and writes results to stdout.
//
// Supported lines:
//
//	item,<created>,<hexid>   add an item
//	seal                     seal the store
//	initiate                 start a session, emit "msg,<hexframe>"
//	msg,<hexframe>           feed an incoming frame, emit more msg/have/need/done lines
//
// FRAMESIZELIMIT in the environment sets the engine's frame size limit, same
// as the reference harness. --scenario loads a HuJSON fixture and runs it
// without reading stdin at all; --record durably writes the exchanged frame
// transcript.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/rust-nostr/negentropy"
	"github.com/rust-nostr/negentropy/internal/hex"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("negentropy-harness", flag.ContinueOnError)
	fs.SetOutput(stderr)

	idSize := fs.Int("id-size", 16, "item id size in bytes (8-32)")
	frameSizeLimit := fs.Uint64("frame-size-limit", 0, "frame size limit in bytes, 0 for unlimited")
	scenarioPath := fs.String("scenario", "", "run a HuJSON scenario file instead of reading stdin")
	recordPath := fs.String("record", "", "path to durably record the exchanged frame transcript")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if v := getenv("FRAMESIZELIMIT"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			fmt.Fprintf(stderr, "invalid FRAMESIZELIMIT: %v\n", err)
			return 1
		}

		*frameSizeLimit = parsed
	}

	var transcript []string
	record := func(line string) {
		if *recordPath != "" {
			transcript = append(transcript, line)
		}
	}

	var err error
	if *scenarioPath != "" {
		err = runScenario(*scenarioPath, stdout, record)
	} else {
		err = runStdinLoop(*idSize, *frameSizeLimit, stdin, stdout, record)
	}

	if *recordPath != "" {
		if werr := writeTranscript(*recordPath, transcript); werr != nil {
			fmt.Fprintf(stderr, "recording transcript: %v\n", werr)
			return 1
		}
	}

	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	return 0
}

func writeTranscript(path string, lines []string) error {
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}

	return atomic.WriteFile(path, strings.NewReader(body))
}

// runStdinLoop reproduces the reference harness's stdin command loop.
func runStdinLoop(idSize int, frameSizeLimit uint64, stdin io.Reader, stdout io.Writer, record func(string)) error {
	eng, err := negentropy.New(idSize, frameSizeLimit)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<24)

	for scanner.Scan() {
		line := scanner.Text()
		record(line)

		fields := strings.Split(line, ",")

		switch fields[0] {
		case "item":
			created, perr := strconv.ParseUint(fields[1], 10, 64)
			if perr != nil {
				return fmt.Errorf("parse item timestamp: %w", perr)
			}

			id, perr := hex.Decode(fields[2])
			if perr != nil {
				return fmt.Errorf("parse item id: %w", perr)
			}

			if aerr := eng.Add(created, id); aerr != nil {
				return fmt.Errorf("add item: %w", aerr)
			}

		case "seal":
			if serr := eng.Seal(); serr != nil {
				return fmt.Errorf("seal: %w", serr)
			}

		case "initiate":
			q, ierr := eng.Initiate()
			if ierr != nil {
				return fmt.Errorf("initiate: %w", ierr)
			}

			if aerr := checkFrameSize(q, frameSizeLimit); aerr != nil {
				return aerr
			}

			emit(stdout, record, "msg,%s", hex.Encode(q))

		case "msg":
			var q []byte
			if len(fields) >= 2 && fields[1] != "" {
				var derr error
				q, derr = hex.Decode(fields[1])
				if derr != nil {
					return fmt.Errorf("parse msg frame: %w", derr)
				}
			}

			var out []byte
			if eng.IsInitiator() {
				have, need, reply, done, rerr := eng.ReconcileWithIDs(q)
				if rerr != nil {
					return fmt.Errorf("reconcile: %w", rerr)
				}

				for _, id := range have {
					emit(stdout, record, "have,%s", hex.Encode(id))
				}

				for _, id := range need {
					emit(stdout, record, "need,%s", hex.Encode(id))
				}

				if done {
					emit(stdout, record, "done")
					continue
				}

				out = reply
			} else {
				reply, rerr := eng.Reconcile(q)
				if rerr != nil {
					return fmt.Errorf("reconcile: %w", rerr)
				}

				out = reply
			}

			if aerr := checkFrameSize(out, frameSizeLimit); aerr != nil {
				return aerr
			}

			emit(stdout, record, "msg,%s", hex.Encode(out))

		default:
			return fmt.Errorf("unknown command: %s", fields[0])
		}
	}

	return scanner.Err()
}

func checkFrameSize(frame []byte, limit uint64) error {
	if limit > 0 && uint64(len(frame)) > limit {
		return fmt.Errorf("frameSizeLimit exceeded: %d > %d", len(frame), limit)
	}

	return nil
}

func emit(w io.Writer, record func(string), format string, a ...interface{}) {
	line := fmt.Sprintf(format, a...)
	fmt.Fprintln(w, line)
	record(line)
}

// scenario is the HuJSON fixture shape for the --scenario mode: two
// independent item sets for a client and a server, run to completion.
type scenario struct {
	IDSize         int            `json:"id_size"`
	FrameSizeLimit uint64         `json:"frame_size_limit"`
	Client         []scenarioItem `json:"client"`
	Server         []scenarioItem `json:"server"`
}

type scenarioItem struct {
	Timestamp uint64 `json:"timestamp"`
	ID        string `json:"id"`
}

func runScenario(path string, stdout io.Writer, record func(string)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}

	var s scenario
	if err := json.Unmarshal(standardized, &s); err != nil {
		return fmt.Errorf("decode scenario: %w", err)
	}

	client, err := buildEngine(s.IDSize, s.FrameSizeLimit, s.Client)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	server, err := buildEngine(s.IDSize, s.FrameSizeLimit, s.Server)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	msg, err := client.Initiate()
	if err != nil {
		return fmt.Errorf("initiate: %w", err)
	}

	emit(stdout, record, "msg,%s", hex.Encode(msg))

	for {
		reply, err := server.Reconcile(msg)
		if err != nil {
			return fmt.Errorf("server reconcile: %w", err)
		}

		have, need, out, done, err := client.ReconcileWithIDs(reply)
		if err != nil {
			return fmt.Errorf("client reconcile: %w", err)
		}

		for _, id := range have {
			emit(stdout, record, "have,%s", hex.Encode(id))
		}

		for _, id := range need {
			emit(stdout, record, "need,%s", hex.Encode(id))
		}

		if done {
			emit(stdout, record, "done")
			return nil
		}

		msg = out
		emit(stdout, record, "msg,%s", hex.Encode(msg))
	}
}

func buildEngine(idSize int, frameSizeLimit uint64, items []scenarioItem) (*negentropy.Engine, error) {
	eng, err := negentropy.New(idSize, frameSizeLimit)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		id, err := hex.Decode(it.ID)
		if err != nil {
			return nil, fmt.Errorf("decode id %q: %w", it.ID, err)
		}

		if err := eng.Add(it.Timestamp, id); err != nil {
			return nil, err
		}
	}

	if err := eng.Seal(); err != nil {
		return nil, err
	}

	return eng, nil
}
