package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"irisnet/config"
	"irisnet/form"
	"irisnet/logger"
	"irisnet/ml"
)

func main() {
	configPath := flag.String("config", "", "optional config file; defaults are used when empty")
	iterations := flag.Int("iterations", 0, "override max iterations")
	threshold := flag.Float64("threshold", -1, "override error threshold")
	seed := flag.Int64("seed", 0, "override random seed")
	quiet := flag.Bool("quiet", false, "do not print training progress")
	predict := flag.String("predict", "", "comma separated measurements to classify after training, e.g. 4.3,3.0,1.1,0.1")
	lang := flag.String("lang", "es", "language of the prediction line")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *iterations > 0 {
		cfg.ML.MaxIterations = *iterations
	}
	if *threshold >= 0 {
		cfg.ML.ErrorThreshold = *threshold
	}
	if *seed != 0 {
		cfg.ML.Seed = *seed
	}
	cfg.ML.Log = !*quiet

	// progress goes to stdout as plain lines, so keep zap to warnings
	cfg.Log.Level = "warn"
	cfg.Log.File = ""
	zlog, _, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	trainer := ml.NewTrainer(cfg.ML, zlog)
	trainer.OnProgress(func(p ml.Progress) { fmt.Println(p) })

	dataset := ml.IrisDataset()
	fmt.Println("training...")
	model, result, err := trainer.Train(context.Background(), dataset)
	if err != nil {
		log.Fatalf("failed to train model: %v", err)
	}
	fmt.Printf("training completed: iterations=%d error=%.6f converged=%t duration=%v\n",
		result.Iterations, result.Error, result.Converged(cfg.ML), result.Duration)

	accuracy, cm := ml.Evaluate(model, dataset)
	fmt.Printf("accuracy=%.2f\n", accuracy)
	printConfusion(cm)

	if *predict == "" {
		return
	}
	features, err := parseFeatures(*predict)
	if err != nil {
		log.Fatalf("invalid -predict value: %v", err)
	}
	predictor := form.NewPredictor(model, zlog)
	renderer := form.HTMLRenderer{W: os.Stdout, Lang: form.ParseLanguage(*lang)}
	if _, err := predictor.Handle(form.FeaturesReader{Features: features, Strict: true}, renderer); err != nil {
		zlog.Error("prediction failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println()
}

func parseFeatures(s string) (ml.Features, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return ml.Features{}, err
		}
		values = append(values, v)
	}
	return ml.FeaturesFromVector(values)
}

func printConfusion(cm ml.ConfusionMatrix) {
	fmt.Printf("%-12s", "")
	for _, c := range ml.Classes() {
		fmt.Printf("%12s", c)
	}
	fmt.Println()
	for _, want := range ml.Classes() {
		fmt.Printf("%-12s", want)
		for _, got := range ml.Classes() {
			fmt.Printf("%12d", cm[want][got])
		}
		fmt.Println()
	}
}
