package orchestrator

import (
	"fmt"

	"github.com/pkg/errors"

	quorumbench "quorum-bench"
)

const (
	// DefaultBasicOperations is the operation count of the baseline run
	DefaultBasicOperations = 1000
	// DefaultSweepOperations is the operation count of every sweep entry
	DefaultSweepOperations = 200
)

// RunConfig is one invocation of the benchmark binary
type RunConfig struct {
	Key        quorumbench.ConfigurationKey
	Operations int
}

// Args returns the positional arguments of the invocation: ops N W R
func (rc RunConfig) Args() []string {
	return []string{
		fmt.Sprint(rc.Operations),
		fmt.Sprint(rc.Key.N),
		fmt.Sprint(rc.Key.W),
		fmt.Sprint(rc.Key.R),
	}
}

// NewKey names a configuration after its quorum parameters, e.g. N20_W10_R5
func NewKey(n, w, r int) quorumbench.ConfigurationKey {
	return quorumbench.ConfigurationKey{Name: fmt.Sprintf("N%d_W%d_R%d", n, w, r), N: n, W: w, R: r}
}

// BasicRun is the baseline configuration, run before the sweep
func BasicRun(operations int) RunConfig {
	return RunConfig{Key: NewKey(3, 2, 2), Operations: operations}
}

// DefaultCatalogue returns the benchmark matrix in execution order
func DefaultCatalogue(operations int) []RunConfig {
	triples := [][3]int{
		// N=3
		{3, 1, 1}, {3, 1, 2}, {3, 2, 2}, {3, 2, 3}, {3, 3, 3},
		// N=5
		{5, 1, 1}, {5, 2, 2}, {5, 3, 3}, {5, 3, 4}, {5, 5, 5},
		// N=10
		{10, 1, 1}, {10, 3, 3}, {10, 5, 5}, {10, 6, 6}, {10, 10, 10},
		// N=20, W=10, varying R
		{20, 10, 1}, {20, 10, 5}, {20, 10, 10}, {20, 10, 15}, {20, 10, 20},
		// N=20, R=10, varying W
		{20, 1, 10}, {20, 5, 10}, {20, 15, 10}, {20, 20, 10},
	}

	catalogue := make([]RunConfig, 0, len(triples))
	for _, t := range triples {
		catalogue = append(catalogue, RunConfig{Key: NewKey(t[0], t[1], t[2]), Operations: operations})
	}
	return catalogue
}

// ValidateCatalogue checks that names and quorum triples are unique and the
// parameters are usable
func ValidateCatalogue(catalogue []RunConfig) error {
	names := make(map[string]bool, len(catalogue))
	triples := make(map[[3]int]string, len(catalogue))

	for _, rc := range catalogue {
		k := rc.Key
		switch {
		case k.Name == "":
			return errors.Errorf("configuration %s has no name", k.Label())
		case k.N <= 0 || k.W <= 0 || k.R <= 0:
			return errors.Errorf("configuration %s: quorum parameters must be positive", k.Name)
		case k.W > k.N || k.R > k.N:
			return errors.Errorf("configuration %s: quorum larger than replica count", k.Name)
		case rc.Operations <= 0:
			return errors.Errorf("configuration %s: operation count must be positive", k.Name)
		}

		if names[k.Name] {
			return errors.Errorf("duplicate configuration name %s", k.Name)
		}
		names[k.Name] = true

		triple := [3]int{k.N, k.W, k.R}
		if other, ok := triples[triple]; ok {
			return errors.Errorf("configurations %s and %s share %s", other, k.Name, k.Label())
		}
		triples[triple] = k.Name
	}
	return nil
}
