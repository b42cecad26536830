package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/schollz/progressbar/v3"

	"github.com/rokm/macvi-usv-odce-toolkit/pkg/eval"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/mods"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/report"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/scoredb"
	"github.com/rokm/macvi-usv-odce-toolkit/pkg/submission"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	logger, err := logs.NewLog()
	check(err)

	parser := argparse.NewParser("odcetool", "Evaluate USV obstacle detection results and manage challenge submissions")

	evalCmd := parser.NewCommand("evaluate", "Run all three evaluation setups over a detection results file")
	datasetFile := evalCmd.String("d", "dataset", &argparse.Options{Help: "Dataset metadata JSON (mods.json)", Required: true})
	resultsFile := evalCmd.String("r", "results", &argparse.Options{Help: "Detection results JSON", Required: true})
	configFile := evalCmd.String("c", "config", &argparse.Options{Help: "JSON file overriding evaluation parameters"})
	sequences := evalCmd.String("q", "sequences", &argparse.Options{Help: "Evaluate only these sequence IDs (eg 1,3-5,9)"})
	outputFile := evalCmd.String("o", "output", &argparse.Options{Help: "Write evaluation_results.json to this file"})
	showCounts := evalCmd.Flag("n", "counts", &argparse.Options{Help: "Print raw TP/FP/FN counts per setup and size bucket"})
	noProgress := evalCmd.Flag("", "no-progress", &argparse.Options{Help: "Disable the progress bar"})
	method := evalCmd.String("m", "method", &argparse.Options{Help: "Method name for the score DB record", Default: "unnamed"})
	scoreDBFile := evalCmd.String("s", "scoredb", &argparse.Options{Help: "Record this run in the given sqlite score DB"})

	boardCmd := parser.NewCommand("leaderboard", "Print the local score DB ranked by challenge score")
	boardDBFile := boardCmd.String("s", "scoredb", &argparse.Options{Help: "Sqlite score DB", Required: true})
	boardLimit := boardCmd.Int("l", "limit", &argparse.Options{Help: "Show only the top N runs", Default: 0})

	prepareCmd := parser.NewCommand("prepare-submission", "Pack detection results, evaluation report and source code into a submission zip")
	prepArchive := prepareCmd.String("a", "archive", &argparse.Options{Help: "Output zip file", Required: true})
	prepResults := prepareCmd.String("r", "results", &argparse.Options{Help: "Detection results JSON", Required: true})
	prepEval := prepareCmd.String("e", "evaluation", &argparse.Options{Help: "evaluation_results.json to include"})
	prepSource := prepareCmd.String("c", "source-code", &argparse.Options{Help: "Directory holding the method's source code"})

	unpackCmd := parser.NewCommand("unpack-submission", "Extract a submission zip into a fresh directory")
	unpackArchive := unpackCmd.String("a", "archive", &argparse.Options{Help: "Submission zip file", Required: true})
	unpackTarget := unpackCmd.String("t", "target", &argparse.Options{Help: "Target directory (must not exist)", Required: true})

	err = parser.Parse(os.Args)
	if err != nil {
		logger.Errorf(parser.Usage(err))
		os.Exit(1)
	}

	switch {
	case evalCmd.Happened():
		err = runEvaluate(logger, evaluateArgs{
			datasetFile: *datasetFile,
			resultsFile: *resultsFile,
			configFile:  *configFile,
			sequences:   *sequences,
			outputFile:  *outputFile,
			showCounts:  *showCounts,
			noProgress:  *noProgress,
			method:      *method,
			scoreDBFile: *scoreDBFile,
		})
	case boardCmd.Happened():
		err = runLeaderboard(logger, *boardDBFile, *boardLimit)
	case prepareCmd.Happened():
		err = submission.Prepare(*prepArchive, *prepResults, *prepEval, *prepSource)
		if err == nil {
			logger.Infof("Wrote submission archive %v", *prepArchive)
		}
	case unpackCmd.Happened():
		err = runUnpack(logger, *unpackArchive, *unpackTarget)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

type evaluateArgs struct {
	datasetFile string
	resultsFile string
	configFile  string
	sequences   string
	outputFile  string
	showCounts  bool
	noProgress  bool
	method      string
	scoreDBFile string
}

func runEvaluate(logger logs.Log, args evaluateArgs) error {
	var cfg *eval.Config
	if args.configFile != "" {
		var err error
		cfg, err = eval.LoadConfig(args.configFile)
		if err != nil {
			return fmt.Errorf("Failed to load config %v: %w", args.configFile, err)
		}
	}

	opts := &eval.Options{}
	if args.sequences != "" {
		seqs, err := mods.ParseSequenceList(args.sequences)
		if err != nil {
			return err
		}
		opts.Sequences = seqs
	}

	dataset, err := mods.LoadDataset(args.datasetFile)
	if err != nil {
		return err
	}
	results, err := mods.LoadResults(args.resultsFile)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !args.noProgress {
		opts.Progress = func(setup eval.Setup, done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total*len(eval.AllSetups()),
					progressbar.OptionSetWidth(15),
					progressbar.OptionSetDescription("Evaluating"))
			}
			bar.Add(1)
		}
	}

	evaluation, err := eval.NewEvaluator(logger, cfg).EvaluateAll(dataset, results, opts)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	rep, err := report.New(evaluation)
	if err != nil {
		return err
	}
	rep.WriteSummary(os.Stdout)
	if args.showCounts {
		report.WriteCounts(os.Stdout, evaluation)
	}
	if args.outputFile != "" {
		if err := rep.Save(args.outputFile); err != nil {
			return err
		}
		logger.Infof("Wrote %v", args.outputFile)
	}
	if args.scoreDBFile != "" {
		db, err := scoredb.Open(logger, args.scoreDBFile)
		if err != nil {
			return err
		}
		if _, err := db.AddRun(args.method, evaluation.Challenge, rep); err != nil {
			return err
		}
		logger.Infof("Recorded run '%v' in %v", args.method, args.scoreDBFile)
	}
	report.WriteChallenge(os.Stdout, evaluation.Challenge)
	return nil
}

func runLeaderboard(logger logs.Log, dbFilename string, limit int) error {
	db, err := scoredb.Open(logger, dbFilename)
	if err != nil {
		return err
	}
	runs, err := db.Leaderboard(limit)
	if err != nil {
		return err
	}
	fmt.Printf("%-4v %-24v %-10v %7v %7v %7v %7v\n", "#", "method", "date", "F_avg", "F_s1", "F_s2", "F_s3")
	for i, run := range runs {
		fmt.Printf("%-4d %-24v %-10v %7.3f %7.3f %7.3f %7.3f\n",
			i+1, run.Method, run.CreatedAt.Get().Format("2006-01-02"), run.FAvg, run.FSetup1, run.FSetup2, run.FSetup3)
	}
	return nil
}

func runUnpack(logger logs.Log, archive, target string) error {
	if err := submission.Unpack(archive, target); err != nil {
		return err
	}
	names, err := submission.Verify(archive)
	if err != nil {
		return err
	}
	logger.Infof("Unpacked %v entries into %v", len(names), target)
	return nil
}
