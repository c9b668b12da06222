package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"greenexchange/models"
	"greenexchange/services"
	"greenexchange/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	seedFile    string
	seedPlanter string
	seedReset   bool

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load tree listings from a YAML file",
		RunE:  runSeed,
	}
)

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "trees.yaml", "YAML file of tree listings")
	seedCmd.Flags().StringVar(&seedPlanter, "planter", "", "email of the user the trees are planted by (required)")
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "delete every tree before seeding")
	_ = seedCmd.MarkFlagRequired("planter")
	rootCmd.AddCommand(seedCmd)
}

// seedTree is one listing in the seed file.
type seedTree struct {
	Adhar   int64             `yaml:"adhar"`
	State   string            `yaml:"state"`
	Distric string            `yaml:"distric"`
	PinCode string            `yaml:"pinCode"`
	Price   float64           `yaml:"price"`
	Image   string            `yaml:"image"`
	Status  models.TreeStatus `yaml:"status"`
}

type seedFileContent struct {
	Trees []seedTree `yaml:"trees"`
}

func runSeed(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(seedFile)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	n, err := seedTrees(cmd.Context(), a.store, a.trees, a.logger, f, seedPlanter, seedReset)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d trees\n", n)
	return nil
}

// seedTrees plants every listing in r for the planter. Listings marked
// Verified are verified right after planting.
func seedTrees(ctx context.Context, st store.Store, trees *services.TreeService, logger *zap.Logger, r io.Reader, planterEmail string, reset bool) (int, error) {
	var content seedFileContent
	if err := yaml.NewDecoder(r).Decode(&content); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}
	for i, t := range content.Trees {
		switch t.Status {
		case "", models.StatusPending, models.StatusVerified:
		default:
			return 0, fmt.Errorf("tree %d: cannot seed with status %q", i, t.Status)
		}
	}

	planter, err := st.Users().FindByEmail(ctx, planterEmail)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("planter %q not found, sign up first", planterEmail)
	}
	if err != nil {
		return 0, err
	}

	if reset {
		var deleted int64
		err := st.WithTransaction(ctx, func(ctx context.Context) error {
			var err error
			if deleted, err = st.Trees().DeleteAll(ctx); err != nil {
				return err
			}
			return st.Users().ClearTreeRefs(ctx)
		})
		if err != nil {
			return 0, fmt.Errorf("reset trees: %w", err)
		}
		logger.Info("trees deleted", zap.Int64("count", deleted))
	}

	for i, t := range content.Trees {
		tree, err := trees.Plant(ctx, planter.ID, services.PlantInput{
			Adhar:   t.Adhar,
			State:   t.State,
			Distric: t.Distric,
			PinCode: t.PinCode,
			Price:   t.Price,
		}, t.Image)
		if err != nil {
			return i, fmt.Errorf("tree %d: %w", i, err)
		}
		if t.Status == models.StatusVerified {
			if _, err := trees.Verify(ctx, tree.ID); err != nil {
				return i, fmt.Errorf("tree %d: %w", i, err)
			}
		}
	}
	return len(content.Trees), nil
}
