// Command holomem is an interactive shell over a holographic associative
// memory: remember episodes as role=value bindings, recall fillers by role,
// and run compositional queries, optionally persisting the store to a
// SQLite snapshot between sessions.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/holomem/hologram"
	"github.com/Harshitk-cp/holomem/internal/config"
	"github.com/Harshitk-cp/holomem/snapshot"
)

const defaultTopK = 5

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	opts := []hologram.Option{
		hologram.WithDimension(config.Dimension()),
		hologram.WithDecay(hologram.ExponentialDecay(config.DecayHalfLife())),
		hologram.WithLogger(logger),
	}
	if seed, ok := config.Seed(); ok {
		opts = append(opts, hologram.WithSeed(seed))
	}
	if config.SymbolIndex() {
		opts = append(opts, hologram.WithSymbolIndex())
	}

	var store *snapshot.Store
	var mem *hologram.Memory

	if path := config.SnapshotPath(); path != "" {
		var err error
		store, err = snapshot.Open(path)
		if err != nil {
			logger.Fatal("failed to open snapshot", zap.Error(err))
		}
		defer store.Close()

		mem, err = store.Load(opts...)
		switch {
		case err == nil:
			logger.Info("snapshot loaded",
				zap.String("path", path),
				zap.Int("capsules", mem.Len()))
		case errors.Is(err, snapshot.ErrEmptySnapshot):
			logger.Info("starting empty store", zap.String("path", path))
		default:
			logger.Fatal("failed to load snapshot",
				zap.String("path", path), zap.Error(err))
		}
	}
	if mem == nil {
		var err error
		mem, err = hologram.New(opts...)
		if err != nil {
			logger.Fatal("failed to create store", zap.Error(err))
		}
	}

	runShell(mem, store, logger, os.Stdin, os.Stdout)
}

// runShell reads commands until exit/quit or EOF; both paths save the
// snapshot when one is configured.
func runShell(mem *hologram.Memory, store *snapshot.Store, logger *zap.Logger, in io.Reader, out io.Writer) {
	fmt.Fprintf(out, "holomem — dimension %d, %d capsule(s). Type 'help'.\n", mem.Dimension(), mem.Len())

	scanner := bufio.NewScanner(in)
loop:
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "remember":
			runRemember(out, mem, args)
		case "recall":
			runRecall(out, mem, args)
		case "query":
			runQuery(out, mem, args)
		case "stats":
			runStats(out, mem)
		case "consolidate":
			result, err := mem.Consolidate(config.ConsolidateThreshold())
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintf(out, "merged %d capsule(s), %d kept\n", result.Merged, result.Kept)
		case "sweep":
			result := mem.DecaySweep()
			fmt.Fprintf(out, "evicted %d capsule(s), %d kept\n", result.Evicted, result.Kept)
		case "save":
			if store == nil {
				fmt.Fprintln(out, "no snapshot path configured (set HOLOMEM_SNAPSHOT_PATH)")
				continue
			}
			if err := store.Save(mem); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintf(out, "saved %d capsule(s)\n", mem.Len())
		case "help":
			printHelp(out)
		case "exit", "quit":
			break loop
		default:
			fmt.Fprintf(out, "unknown command %q (try 'help')\n", cmd)
		}
	}

	if store != nil {
		if err := store.Save(mem); err != nil {
			logger.Error("failed to save snapshot on exit", zap.Error(err))
		}
	}
}

func runRemember(out io.Writer, mem *hologram.Memory, args []string) {
	bindings, rest := parsePairs(args)
	if len(bindings) == 0 {
		fmt.Fprintln(out, "usage: remember ROLE=value [ROLE=value ...] [importance]")
		return
	}
	importance := 1.0
	if len(rest) == 1 {
		if v, err := strconv.ParseFloat(rest[0], 64); err == nil {
			importance = v
		}
	}
	c, err := mem.CreateCapsule(bindings, importance)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	fmt.Fprintf(out, "capsule %s stored (%d bindings)\n", c.ID(), len(c.Roles()))
}

func runRecall(out io.Writer, mem *hologram.Memory, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(out, "usage: recall ROLE [k]")
		return
	}
	topK := defaultTopK
	if len(args) > 1 {
		if k, err := strconv.Atoi(args[1]); err == nil && k > 0 {
			topK = k
		}
	}
	matches, err := mem.FindBestSymbolForRole(args[0], topK)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "no matches")
		return
	}
	for i, match := range matches {
		fmt.Fprintf(out, "%2d. %-20s %.4f\n", i+1, match.Symbol, match.Similarity)
	}
}

func runQuery(out io.Writer, mem *hologram.Memory, args []string) {
	partial, rest := parsePairs(args)
	if len(partial) == 0 {
		fmt.Fprintln(out, "usage: query ROLE=value [ROLE=value ...] [k]")
		return
	}
	topK := defaultTopK
	if len(rest) == 1 {
		if k, err := strconv.Atoi(rest[0]); err == nil && k > 0 {
			topK = k
		}
	}
	matches, err := mem.CompositionalQuery(partial, topK)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "no matches")
		return
	}
	for i, match := range matches {
		fmt.Fprintf(out, "%2d. %s  score=%.4f sim=%.4f  %s\n",
			i+1, match.Capsule.ID(), match.Score, match.Similarity,
			describeCapsule(match.Capsule))
	}
}

func runStats(out io.Writer, mem *hologram.Memory) {
	fmt.Fprintf(out, "dimension: %d\n", mem.Dimension())
	fmt.Fprintf(out, "capsules:  %d\n", mem.Len())
	fmt.Fprintf(out, "symbols:   %d\n", mem.Symbols().Len())
	fmt.Fprintf(out, "roles:     %d\n", mem.Roles().Len())
}

func describeCapsule(c *hologram.Capsule) string {
	parts := make([]string, 0, len(c.Roles()))
	for _, role := range c.Roles() {
		if info, ok := c.Binding(role); ok && info.Symbol != "" {
			parts = append(parts, role+"="+info.Symbol)
		}
	}
	return strings.Join(parts, " ")
}

// parsePairs splits args into ROLE=value pairs and leftover tokens.
func parsePairs(args []string) (map[string]string, []string) {
	pairs := make(map[string]string)
	var rest []string
	for _, arg := range args {
		role, value, ok := strings.Cut(arg, "=")
		if !ok {
			rest = append(rest, arg)
			continue
		}
		pairs[role] = value
	}
	return pairs, rest
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `commands:
  remember ROLE=value [ROLE=value ...] [importance]   store an episode
  recall ROLE [k]                                     best symbols for a role
  query ROLE=value [ROLE=value ...] [k]               rank matching capsules
  stats                                               store counters
  consolidate                                         merge duplicate capsules
  sweep                                               evict decayed capsules
  save                                                write snapshot
  exit                                                save (if configured) and quit`)
}
