package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/butykaidavid/read-rival-quest/services"
	"github.com/butykaidavid/read-rival-quest/validation"
)

var (
	flagSeedFile string
	flagCreator  string
)

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "Manage reading challenges",
}

var challengesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the challenges listed in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := loadChallengeSeed(flagSeedFile)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		svc := services.NewChallengeService(db)

		for _, in := range inputs {
			ch, err := svc.CreateChallenge(cmd.Context(), flagCreator, in)
			if err != nil {
				return fmt.Errorf("creating %q: %w", in.Title, err)
			}
			fmt.Printf("%s %s %s\n", color.GreenString("✓"), ch.Title, color.New(color.Faint).Sprint(ch.ID))
		}
		return nil
	},
}

// loadChallengeSeed reads a YAML list of challenges and validates each one.
func loadChallengeSeed(path string) ([]services.ChallengeInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var inputs []services.ChallengeInput
	if err := yaml.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	v := validation.New()
	for i := range inputs {
		if err := v.Validate(&inputs[i]); err != nil {
			return nil, fmt.Errorf("challenge %d (%q): %w", i+1, inputs[i].Title, err)
		}
	}
	return inputs, nil
}

func init() {
	challengesSeedCmd.Flags().StringVar(&flagSeedFile, "file", "challenges.yaml", "YAML file with a list of challenges")
	challengesSeedCmd.Flags().StringVar(&flagCreator, "creator", "system", "User id recorded as the creator")
	challengesCmd.AddCommand(challengesSeedCmd)
}
