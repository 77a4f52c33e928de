// Command duelsim plays batches of rounds without a window. The player
// is steered by the scripted policy and the opponent by the configured
// one; each round prints its id, outcome and length.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"time"

	"duelshooter/brain"
	"duelshooter/game"
	"duelshooter/profiling"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	configPath  string
	advanced    bool
	rounds      int
	seed        int64
	maxTicks    int
	policy      string
	weights     string
	script      string
	initWeights string
	profile     bool
	logHits     bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("duelsim", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "TOML config file applied over the defaults")
	fs.BoolVar(&o.advanced, "advanced", false, "Use the advanced variant (learned opponent, 50-hit rounds)")
	fs.IntVar(&o.rounds, "rounds", 10, "Number of rounds to play")
	fs.Int64Var(&o.seed, "seed", 1, "Random seed for every policy")
	fs.IntVar(&o.maxTicks, "max-ticks", 100000, "Stop a round after this many ticks (0 = no limit)")
	fs.StringVar(&o.policy, "policy", "", "Opponent policy: scripted, learned or script")
	fs.StringVar(&o.weights, "weights", "", "Weight file for the learned opponent (or set DUEL_WEIGHTS env var)")
	fs.StringVar(&o.script, "script", "", "JavaScript policy file for the script opponent")
	fs.StringVar(&o.initWeights, "init-weights", "", "Write a freshly initialised weight file to this path and exit")
	fs.BoolVar(&o.profile, "profile", false, "Write a CPU profile of the batch into profiles/")
	fs.BoolVar(&o.logHits, "log-hits", false, "Log the running score on every hit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.rounds < 0 {
		return options{}, fmt.Errorf("rounds must not be negative, got %d", o.rounds)
	}
	return o, nil
}

func buildConfig(o options) (game.Config, error) {
	cfg := game.DefaultConfig()
	if o.advanced {
		cfg = game.AdvancedConfig()
	}
	if o.configPath != "" {
		var err error
		if cfg, err = game.LoadConfig(o.configPath, cfg); err != nil {
			return game.Config{}, err
		}
	}

	if o.policy != "" {
		cfg.Opponent.Kind = game.PolicyKind(o.policy)
	}
	if o.weights != "" {
		cfg.Opponent.WeightsPath = o.weights
	} else if w := os.Getenv("DUEL_WEIGHTS"); w != "" {
		cfg.Opponent.WeightsPath = w
	}
	if o.script != "" {
		cfg.Opponent.ScriptPath = o.script
	}
	if o.logHits {
		cfg.LogHits = true
	}
	return cfg, cfg.Validate()
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(o)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rng := rand.New(rand.NewSource(o.seed))

	if o.initWeights != "" {
		return initWeights(cfg, rng, o.initWeights)
	}

	if o.profile {
		p, err := profiling.New("profiles")
		if err != nil {
			return err
		}
		stop, err := p.StartCPU("duelsim")
		if err != nil {
			return err
		}
		defer func() {
			if err := stop(); err != nil {
				log.Printf("Failed to write profile: %v", err)
			}
		}()
	}

	newOpponent, err := opponentFactory(cfg, rng)
	if err != nil {
		return err
	}

	driver := game.DefaultConfig().Opponent
	driver.LeadAim = false

	log.Printf("Playing %d rounds against the %s opponent (seed %d)", o.rounds, cfg.Opponent.Kind, o.seed)
	start := time.Now()

	var tally game.Tally
	for i := 0; i < o.rounds; i++ {
		opponent, err := newOpponent(rng)
		if err != nil {
			return err
		}
		r := game.NewRound(cfg, opponent)
		out, finished := game.Play(r, game.NewScriptedPolicy(driver, rng), o.maxTicks)
		tally.Add(out, finished)

		result := out.String()
		if !finished {
			result = "timeout, " + result
		}
		fmt.Fprintf(stdout, "%s %s %d\n", r.ID, result, out.Ticks)
	}

	fmt.Fprintln(stdout, tally.String())
	log.Printf("Batch finished in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// opponentFactory returns a constructor for fresh opponents. The learned
// network is built from rng and loaded once, then shared between rounds.
func opponentFactory(cfg game.Config, rng *rand.Rand) (func(*rand.Rand) (game.Policy, error), error) {
	if cfg.Opponent.Kind != game.PolicyLearned {
		return func(rng *rand.Rand) (game.Policy, error) {
			return game.NewPolicy(cfg, rng)
		}, nil
	}

	net, err := game.LoadNetwork(cfg, rng)
	if err != nil {
		return nil, err
	}
	return func(rng *rand.Rand) (game.Policy, error) {
		return game.NewLearnedPolicy(net, cfg.Opponent, rng), nil
	}, nil
}

func initWeights(cfg game.Config, rng *rand.Rand, path string) error {
	net, err := brain.New(rng, cfg.ObservationSize(), cfg.Opponent.Hidden1, cfg.Opponent.Hidden2, game.MoveCount)
	if err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}
	if err := net.Save(path); err != nil {
		return err
	}
	log.Printf("Wrote %v network weights to %s", net.Sizes(), path)
	return nil
}
