package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/wadjakorntonsri/linkbio/pkg/adapters/repository"
	"github.com/wadjakorntonsri/linkbio/pkg/config"
	"github.com/wadjakorntonsri/linkbio/pkg/core/domain"
	"github.com/wadjakorntonsri/linkbio/pkg/logger"
	"github.com/wadjakorntonsri/linkbio/pkg/ports"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")

	if len(os.Args) < 2 {
		fmt.Println("expected 'export' or 'import' subcommands")
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.AppEnv)
	ctx := context.Background()

	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer repo.Close()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := doExport(ctx, repo, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
	case "import":
		importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		file, err := os.Open(*importFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open file")
		}
		defer file.Close()

		count, err := doImport(ctx, repo, file, log)
		if err != nil {
			log.Fatal().Err(err).Msg("import failed")
		}
		log.Info().Int("count", count).Msg("imported profiles")
	default:
		fmt.Println("expected 'export' or 'import' subcommands")
		os.Exit(1)
	}
}

// exportedProfile keeps the password hash, which domain.Profile hides from JSON
type exportedProfile struct {
	domain.Profile
	Password string `json:"password"`
}

func doExport(ctx context.Context, repo ports.ProfileRepository, w io.Writer) error {
	profiles, err := repo.Dump(ctx)
	if err != nil {
		return err
	}

	out := make([]exportedProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, exportedProfile{Profile: p, Password: p.Password})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// doImport creates every profile whose handle is not taken yet
func doImport(ctx context.Context, repo ports.ProfileRepository, r io.Reader, log zerolog.Logger) (int, error) {
	var profiles []exportedProfile
	if err := json.NewDecoder(r).Decode(&profiles); err != nil {
		return 0, fmt.Errorf("decode failed: %w", err)
	}

	count := 0
	for _, ep := range profiles {
		p := ep.Profile
		p.Password = ep.Password

		existing, err := repo.GetProfileByHandle(ctx, p.Handle)
		if err != nil {
			return count, err
		}
		if existing != nil {
			log.Info().Str("handle", p.Handle).Msg("skipping existing handle")
			continue
		}

		if err := repo.CreateProfile(ctx, &p); err != nil {
			log.Warn().Err(err).Str("handle", p.Handle).Msg("failed to import profile")
			continue
		}
		count++
	}
	return count, nil
}
