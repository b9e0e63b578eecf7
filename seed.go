package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"designsense-go/internal/database"
	"designsense-go/internal/models"
	"designsense-go/internal/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type seedFlags struct {
	file                    string
	imagesDir               string
	withDefaultSupplemental bool
}

func newSeedCmd(root *rootFlags) *cobra.Command {
	f := &seedFlags{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the question bank from a YAML file or an image directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.file == "" && f.imagesDir == "" {
				return errors.New("one of --file or --images-dir is required")
			}
			return runSeed(root, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.file, "file", "", "Question bank YAML file")
	flags.StringVar(&f.imagesDir, "images-dir", "", "Directory of <question>_<score>_<type> images to build questions from")
	flags.BoolVar(&f.withDefaultSupplemental, "with-default-supplemental", false, "Use the built-in scenario and role questions")

	return cmd
}

func runSeed(root *rootFlags, f *seedFlags) error {
	_, conf, log, _, err := bootstrap(root)
	if err != nil {
		return err
	}
	defer log.Sync()

	bank := &models.QuestionBank{}
	if f.file != "" {
		if bank, err = models.LoadQuestionBank(f.file); err != nil {
			return err
		}
	}
	if f.imagesDir != "" {
		questions, err := services.ScanImageDir(f.imagesDir)
		if err != nil {
			return err
		}
		bank.Questions = questions
		log.Info("Scanned image directory", zap.String("dir", f.imagesDir), zap.Int("questions", len(questions)))
	}
	if f.withDefaultSupplemental || len(bank.Supplemental) == 0 {
		bank.Supplemental = services.DefaultSupplemental()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(ctx, conf.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close(context.Background())

	return services.NewSeeder(pool.Store(), log).Run(ctx, bank)
}
