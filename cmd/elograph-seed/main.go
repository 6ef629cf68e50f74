// Command elograph-seed fills a data directory with a deterministic synthetic
// graph of users and teams, for load and query testing. It writes through the
// engine directly, so the server must not be running against the same
// directory.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/elodb/elograph/pkg/engine"
)

// lcg is a small deterministic generator so repeated runs with the same
// SEED_RANDOM produce the same graph.
type lcg struct {
	state uint64
}

func (l *lcg) nextUint32() uint32 {
	l.state = l.state*6364136223846793005 + 1
	return uint32(l.state >> 32)
}

func (l *lcg) genRange(max uint32) uint32 {
	if max == 0 {
		return 0
	}
	return l.nextUint32() % max
}

func envUint(name string, def uint32) uint32 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return def
}

func main() {
	dataDir := os.Getenv("ELO_DB_PATH")
	if dataDir == "" {
		dataDir = "./data"
	}
	if os.Getenv("SEED_RESET") == "true" {
		_ = os.Remove(filepath.Join(dataDir, engine.DefaultOptions(dataDir).AofFilename))
	}

	numUsers := envUint("SEED_USERS", 100_000)
	numTeams := envUint("SEED_TEAMS", 10_000)
	userEdges := envUint("SEED_USER_EDGES", 5)
	teamEdges := envUint("SEED_TEAM_EDGES", 5)
	ratingMin := envUint("SEED_RATING_MIN", 300)
	ratingMax := envUint("SEED_RATING_MAX", 900)
	rngSeed := uint64(42)
	if v := os.Getenv("SEED_RANDOM"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			rngSeed = n
		}
	}

	eng, err := engine.Open(engine.DefaultOptions(dataDir))
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}
	defer eng.Close()

	// A run id ties the seeded graph back to this invocation in the logs.
	runID := uuid.NewString()
	slog.Info("seeding graph", "run_id", runID, "data_dir", dataDir,
		"users", numUsers, "teams", numTeams, "seed", rngSeed)

	rng := &lcg{state: rngSeed}
	if err := seedNodes(eng, numUsers, numTeams, ratingMin, ratingMax, rng); err != nil {
		log.Fatalf("Node seeding failed: %v", err)
	}
	if err := seedEdges(eng, numUsers, numTeams, userEdges, teamEdges, rng); err != nil {
		log.Fatalf("Edge seeding failed: %v", err)
	}

	// One compaction at the end keeps the journal to roughly one frame per key.
	if err := eng.RewriteAOF(); err != nil {
		log.Fatalf("Journal rewrite failed: %v", err)
	}

	fmt.Printf("Seeded users=%d, teams=%d, user_edges=%d, team_edges=%d\n",
		numUsers, numTeams, userEdges, teamEdges)
}

func seedNodes(eng *engine.Engine, numUsers, numTeams, ratingMin, ratingMax uint32, rng *lcg) error {
	for idx := uint32(0); idx < numUsers; idx++ {
		id := fmt.Sprintf("user:%d", idx)
		if err := eng.CreateNode(id, map[string]string{"type": "user"}); err != nil {
			return fmt.Errorf("create %s: %w", id, err)
		}
	}
	for idx := uint32(0); idx < numTeams; idx++ {
		id := fmt.Sprintf("team:%d", idx)
		rating := ratingMin + rng.genRange(ratingMax-ratingMin+1)
		data := map[string]string{
			"type":   "team",
			"rating": strconv.FormatUint(uint64(rating), 10),
		}
		if err := eng.CreateNode(id, data); err != nil {
			return fmt.Errorf("create %s: %w", id, err)
		}
	}
	return nil
}

func seedEdges(eng *engine.Engine, numUsers, numTeams, userEdges, teamEdges uint32, rng *lcg) error {
	// Every user owns a few random teams.
	for userIdx := uint32(0); userIdx < numUsers; userIdx++ {
		userID := fmt.Sprintf("user:%d", userIdx)
		chosen := make(map[uint32]struct{})
		for uint32(len(chosen)) < userEdges && uint32(len(chosen)) < numTeams {
			teamIdx := rng.genRange(numTeams)
			if _, dup := chosen[teamIdx]; dup {
				continue
			}
			chosen[teamIdx] = struct{}{}
			teamID := fmt.Sprintf("team:%d", teamIdx)
			data := map[string]string{"type": "owner"}
			if err := eng.CreateEdge(userID, teamID, data); err != nil {
				return fmt.Errorf("edge %s -> %s: %w", userID, teamID, err)
			}
		}
	}

	// Teams rival a few other teams with a random weight.
	for teamIdx := uint32(0); teamIdx < numTeams; teamIdx++ {
		fromID := fmt.Sprintf("team:%d", teamIdx)
		chosen := make(map[uint32]struct{})
		for uint32(len(chosen)) < teamEdges && uint32(len(chosen)) < numTeams-1 {
			toIdx := rng.genRange(numTeams)
			if toIdx == teamIdx {
				continue
			}
			if _, dup := chosen[toIdx]; dup {
				continue
			}
			chosen[toIdx] = struct{}{}
			toID := fmt.Sprintf("team:%d", toIdx)
			weight := 0.5 + float64(rng.genRange(150))/100.0
			data := map[string]string{"weight": fmt.Sprintf("%.2f", weight)}
			if err := eng.CreateEdge(fromID, toID, data); err != nil {
				return fmt.Errorf("edge %s -> %s: %w", fromID, toID, err)
			}
		}
	}
	return nil
}
