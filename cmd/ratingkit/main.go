// Copyright 2024 ratingkit Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ratingkit/ratingkit/base/log"
	"github.com/ratingkit/ratingkit/config"
	"github.com/ratingkit/ratingkit/model"
	"github.com/ratingkit/ratingkit/model/rating"
)

const version = "0.1.0"

var rootCommand = &cobra.Command{
	Use:   "ratingkit",
	Short: "Batch fit-and-predict pipeline for sparse rating matrices.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println("ratingkit version", version)
			return
		}
		// Setup logger
		debugMode, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debugMode)
		// Cancel the search on interrupt; finished stages stay valid.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := run(ctx, cmd); err != nil {
			log.Logger().Fatal("failed to run pipeline", zap.Error(err))
		}
	},
}

func init() {
	rootCommand.PersistentFlags().Bool("version", false, "ratingkit version")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().String("ratings", "", "ratings file path")
	rootCommand.PersistentFlags().String("queries", "", "query pairs file path")
	rootCommand.PersistentFlags().String("output", "predictions.csv", "predictions output path")
	rootCommand.PersistentFlags().String("sep", "\t", "field separator")
	rootCommand.PersistentFlags().Bool("header", false, "skip the first line of input files")
	log.AddFlags(rootCommand.PersistentFlags())
	_ = rootCommand.MarkPersistentFlagRequired("ratings")
}

func run(ctx context.Context, cmd *cobra.Command) error {
	configPath, _ := cmd.PersistentFlags().GetString("config")
	ratingsPath, _ := cmd.PersistentFlags().GetString("ratings")
	queriesPath, _ := cmd.PersistentFlags().GetString("queries")
	outputPath, _ := cmd.PersistentFlags().GetString("output")
	sep, _ := cmd.PersistentFlags().GetString("sep")
	hasHeader, _ := cmd.PersistentFlags().GetBool("header")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return errors.Trace(err)
	}
	// Load inputs concurrently.
	var (
		dataset *rating.Dataset
		queries []rating.Pair
	)
	g, loadCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dataset, err = loadRatings(ratingsPath, sep, hasHeader)
		return errors.Trace(err)
	})
	g.Go(func() error {
		if queriesPath == "" {
			return nil
		}
		var err error
		queries, err = loadQueries(queriesPath, sep, hasHeader)
		return errors.Trace(err)
	})
	if err = g.Wait(); err != nil {
		return errors.Trace(err)
	}
	if err = loadCtx.Err(); err != nil {
		return errors.Trace(err)
	}
	// Split and search.
	trainSet, testSet, err := dataset.SplitRatio(conf.TestFraction, conf.SplitSeed)
	if err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("split dataset",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("test_set_size", testSet.Count()))
	fixed := model.Params{
		model.ItemMinCount: conf.ItemMinCount,
		model.UserMinCount: conf.UserMinCount,
	}
	fitConfig := rating.NewFitConfig().SetJobs(conf.Jobs)
	result, err := rating.GridSearch(ctx, trainSet, testSet, fixed, rating.SearchGrid{
		Lambda1: conf.Lambda1Grid,
		Lambda2: conf.Lambda2Grid,
		Rank:    conf.RankGrid,
	}, fitConfig)
	if err != nil {
		return errors.Trace(err)
	}
	// Report RMSE per model variant under the selected hyper-parameters.
	report, err := rating.EvaluateAll(ctx, trainSet, testSet, result.BestParams, fitConfig)
	if err != nil {
		return errors.Trace(err)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("MODEL", "RMSE")
	for _, variant := range rating.Variants {
		if err = table.Append([]string{variant, fmt.Sprintf("%.5f", report[variant])}); err != nil {
			return errors.Trace(err)
		}
	}
	if err = table.Render(); err != nil {
		return errors.Trace(err)
	}
	// Fit the final predictor and answer queries.
	if len(queries) == 0 {
		return nil
	}
	predictor, err := rating.Fit(ctx, trainSet, testSet, result.BestParams, fitConfig)
	if err != nil {
		return errors.Trace(err)
	}
	predictions := predictor.PredictBatch(queries, conf.Jobs)
	if err = writePredictions(outputPath, sep, queries, predictions); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("write predictions",
		zap.String("output", outputPath),
		zap.Int("n_queries", len(queries)))
	return nil
}

func loadRatings(path, sep string, hasHeader bool) (*rating.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Trace(err)
	}
	pbReader := progressbar.NewReader(file, progressbar.DefaultBytes(
		stat.Size(),
		"Loading ratings",
	))
	dataset, err := rating.ReadData(&pbReader, sep, hasHeader)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("n_ratings", dataset.Count()))
	return dataset, nil
}

func loadQueries(path, sep string, hasHeader bool) ([]rating.Pair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var pairs []rating.Pair
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if hasHeader {
			hasHeader = false
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 2 {
			continue
		}
		userId, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "malformed user id %q", fields[0])
		}
		itemId, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "malformed item id %q", fields[1])
		}
		pairs = append(pairs, rating.Pair{UserId: userId, ItemId: itemId})
	}
	return pairs, errors.Trace(scanner.Err())
}

func writePredictions(path, sep string, queries []rating.Pair, predictions []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	for i, pair := range queries {
		if _, err = fmt.Fprintf(writer, "%d%s%d%s%.6f\n",
			pair.UserId, sep, pair.ItemId, sep, predictions[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(writer.Flush())
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
