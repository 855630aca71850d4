package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/models"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/device"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/report"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/simulate"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/storage"
)

// Global flags
var (
	dbPath       string
	deviceURL    string
	samplingRate float64
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("OSCILLOBP_DB_PATH", storage.DefaultDBFile), "Path to the SQLite database file")
	flag.StringVar(&deviceURL, "device", getEnvOrDefault("OSCILLOBP_DEVICE_URL", device.DefaultURL), "Cuff controller start URL")
	flag.Float64Var(&samplingRate, "rate", pipeline.DefaultSamplingRate, "Sampling rate of recordings that do not carry one (Hz)")
	flag.Usage = printUsage
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a new service with the global options
func createService() (oscillobp.Service, error) {
	return oscillobp.NewService(
		oscillobp.WithDBPath(dbPath),
		oscillobp.WithDeviceURL(deviceURL),
		oscillobp.WithSamplingRate(samplingRate),
	)
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command, args := flag.Arg(0), flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	var err error
	switch command {
	case "analyze":
		err = handleAnalyze(args)
	case "simulate":
		err = handleSimulate(args)
	case "measure":
		err = handleMeasure(args)
	case "list":
		err = handleList(args)
	case "averages":
		err = handleAverages(args)
	case "export":
		err = handleExport(args)
	case "delete":
		err = handleDelete(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		log.Errorf("%s failed: %v", command, err)
		os.Exit(1)
	}
}

// splitArgs separates leading positional arguments from flags, so
// "analyze rec.json -detail" works as well as "analyze -detail rec.json".
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

func handleAnalyze(args []string) error {
	positional, flagArgs := splitArgs(args)

	cmd := flag.NewFlagSet("analyze", flag.ExitOnError)
	rate := cmd.Float64("rate", 0, "Sampling rate (Hz), overrides the file")
	detail := cmd.Bool("detail", false, "Print pressure points and signal quality")
	cmd.Parse(flagArgs)
	positional = append(positional, cmd.Args()...)

	if len(positional) != 1 {
		return fmt.Errorf("usage: oscillobp analyze <recording.json|recording.csv> [-rate <hz>] [-detail]")
	}

	c, err := readRecording(positional[0])
	if err != nil {
		return err
	}
	fs := samplingRate
	if c.SamplingRate > 0 {
		fs = c.SamplingRate
	}
	if *rate > 0 {
		fs = *rate
	}

	fmt.Printf("🔍 Analyzing %s samples at %.0f Hz (%.1f s)\n",
		humanize.Comma(int64(len(c.Samples))), fs, float64(len(c.Samples))/fs)

	est := pipeline.NewEstimator()
	if !*detail {
		printResult(est.Estimate(c.Samples, fs))
		return nil
	}

	a, err := est.Analyze(c.Samples, fs)
	if err != nil {
		return err
	}
	printResult(a.Result)
	fmt.Println("\n📈 Detail:")
	fmt.Printf("   MAP:        %.1f mmHg at sample %d\n", a.MAP, a.XMAP)
	fmt.Printf("   Systolic:   threshold %.3f at sample %d\n", a.YSys, a.XSys)
	fmt.Printf("   Diastolic:  threshold %.3f at sample %d\n", a.YDia, a.XDia)
	fmt.Printf("   Beats:      %d\n", a.Quality.PeakCount)
	fmt.Printf("   Spectral:   %.1f bpm\n", a.Quality.SpectralPulseRate)
	fmt.Printf("   Deflation:  %.2f mmHg/s\n", a.Quality.DeflationRate)
	return nil
}

func printResult(res pipeline.Result) {
	if !res.OK() {
		fmt.Println("\n❌ No estimate: the recording has too few usable oscillations")
		return
	}
	fmt.Printf("\n✅ %.1f / %.1f mmHg, pulse %d bpm\n", *res.SBP, *res.DBP, res.PulseRate)
}

func handleSimulate(args []string) error {
	p := simulate.DefaultProfile()

	cmd := flag.NewFlagSet("simulate", flag.ExitOnError)
	out := cmd.String("out", "", "Write the recording to this file instead of stdout")
	cmd.Float64Var(&p.SBP, "sbp", p.SBP, "Systolic pressure (mmHg)")
	cmd.Float64Var(&p.MAP, "map", p.MAP, "Mean arterial pressure (mmHg)")
	cmd.Float64Var(&p.DBP, "dbp", p.DBP, "Diastolic pressure (mmHg)")
	cmd.Float64Var(&p.PulseRate, "pulse", p.PulseRate, "Pulse rate (bpm)")
	cmd.Float64Var(&p.StartPressure, "start", p.StartPressure, "Cuff pressure at the start of deflation (mmHg)")
	cmd.Float64Var(&p.EndPressure, "end", p.EndPressure, "Cuff pressure at the end of deflation (mmHg)")
	cmd.Float64Var(&p.Duration, "duration", p.Duration, "Deflation time (s)")
	cmd.Float64Var(&p.SamplingRate, "rate", p.SamplingRate, "Sampling rate (Hz)")
	cmd.Float64Var(&p.Amplitude, "amplitude", p.Amplitude, "Oscillation amplitude at MAP (mmHg)")
	cmd.Float64Var(&p.Noise, "noise", p.Noise, "Gaussian noise standard deviation (mmHg)")
	cmd.Int64Var(&p.Seed, "seed", p.Seed, "Noise seed")
	cmd.Parse(args)

	samples, err := simulate.Deflation(p)
	if err != nil {
		return err
	}
	c := models.Capture{SamplingRate: p.SamplingRate, Samples: samples}

	if *out == "" {
		return writeRecording(os.Stdout, c)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeRecording(f, c); err != nil {
		return err
	}
	fmt.Printf("💾 Wrote %s samples (%.0f/%.0f mmHg, %.0f bpm) to %s\n",
		humanize.Comma(int64(len(samples))), p.SBP, p.DBP, p.PulseRate, *out)
	return nil
}

func handleMeasure(args []string) error {
	cmd := flag.NewFlagSet("measure", flag.ExitOnError)
	patient := cmd.String("patient", "", "Patient name")
	timeout := cmd.Duration("timeout", device.DefaultTimeout, "Measurement timeout")
	cmd.Parse(args)

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	fmt.Printf("🩺 Starting measurement on %s, keep still...\n", deviceURL)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m, err := svc.Measure(ctx, *patient)
	if err != nil {
		return err
	}
	if !m.Complete() {
		fmt.Printf("\n❌ Recording stored (ID: %s) but no estimate could be made\n", m.ID)
		return nil
	}
	fmt.Printf("\n✅ %.1f / %.1f mmHg, pulse %d bpm\n", *m.SBP, *m.DBP, m.Pulse)
	fmt.Printf("   Patient: %s\n", m.Patient)
	fmt.Printf("   ID:      %s\n", m.ID)
	return nil
}

func formatPressures(m models.Measurement) string {
	if !m.Complete() {
		return "no estimate"
	}
	return fmt.Sprintf("%.1f / %.1f mmHg, pulse %d", *m.SBP, *m.DBP, m.Pulse)
}

func handleList(args []string) error {
	cmd := flag.NewFlagSet("list", flag.ExitOnError)
	patient := cmd.String("patient", "", "Only this patient")
	limit := cmd.Int("limit", 0, "Maximum number of measurements")
	cmd.Parse(args)

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	ms, err := svc.ListMeasurements(models.MeasurementFilter{Patient: *patient, Limit: *limit})
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		fmt.Println("\n📭 No measurements in database")
		return nil
	}

	fmt.Printf("\n📚 Found %d measurement(s):\n\n", len(ms))
	for i, m := range ms {
		fmt.Printf("%d. %s: %s\n", i+1, m.Patient, formatPressures(m))
		fmt.Printf("   %s (%s) via %s\n", m.TakenAt.Format("2006-01-02 15:04"), humanize.Time(m.TakenAt), m.Source)
		fmt.Printf("   ID: %s\n\n", m.ID)
	}
	return nil
}

func handleAverages(args []string) error {
	cmd := flag.NewFlagSet("averages", flag.ExitOnError)
	patient := cmd.String("patient", "", "Only this patient")
	daily := cmd.Bool("daily", false, "Daily averages instead of monthly")
	period := cmd.String("period", "week", "Daily period: week or month")
	date := cmd.String("date", "", "Any day in the period, YYYY-MM-DD (default today)")
	cmd.Parse(args)

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	if !*daily {
		avgs, err := svc.MonthlyAverages(*patient)
		if err != nil {
			return err
		}
		if len(avgs) == 0 {
			fmt.Println("\n📭 No complete measurements")
			return nil
		}
		fmt.Println("\n📊 Monthly averages:")
		for _, a := range avgs {
			fmt.Printf("   %-15s %5.1f / %5.1f mmHg, pulse %5.1f (%d)\n", a.MonthName, a.AvgSBP, a.AvgDBP, a.AvgPulse, a.Count)
		}
		return nil
	}

	var base time.Time
	if *date != "" {
		base, err = time.ParseInLocation(time.DateOnly, *date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date %q", *date)
		}
	}
	rep, err := svc.DailyAverages(*patient, report.ParsePeriod(*period), base)
	if err != nil {
		return err
	}
	fmt.Printf("\n📊 %s (%s to %s):\n", rep.PeriodName, rep.StartDate, rep.EndDate)
	for _, d := range rep.Days {
		if d.Count == 0 {
			fmt.Printf("   %s %-9s -\n", d.DisplayDate, d.DayName)
			continue
		}
		fmt.Printf("   %s %-9s %5.1f / %5.1f mmHg, pulse %5.1f (%d)\n",
			d.DisplayDate, d.DayName, *d.AvgSBP, *d.AvgDBP, *d.AvgPulse, d.Count)
	}
	return nil
}

func handleExport(args []string) error {
	cmd := flag.NewFlagSet("export", flag.ExitOnError)
	patient := cmd.String("patient", "", "Only this patient")
	out := cmd.String("out", "", "Write CSV to this file instead of stdout")
	cmd.Parse(args)

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	filter := models.MeasurementFilter{Patient: *patient}
	if *out == "" {
		return svc.ExportCSV(os.Stdout, filter)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := svc.ExportCSV(f, filter); err != nil {
		return err
	}
	fmt.Printf("💾 Exported measurements to %s\n", *out)
	return nil
}

func handleDelete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: oscillobp delete <measurement_id>")
	}
	id := args[0]

	svc, err := createService()
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	m, err := svc.GetMeasurement(id)
	if err != nil {
		return err
	}
	if err := svc.DeleteMeasurement(id); err != nil {
		return err
	}

	fmt.Printf("\n✅ Deleted measurement:\n")
	fmt.Printf("   ID:      %s\n", m.ID)
	fmt.Printf("   Patient: %s\n", m.Patient)
	fmt.Printf("   Taken:   %s (%s)\n", m.TakenAt.Format("2006-01-02 15:04"), humanize.Time(m.TakenAt))
	fmt.Printf("   Result:  %s\n", formatPressures(*m))
	return nil
}

func printUsage() {
	fmt.Println("OscilloBP - oscillometric blood pressure CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -db <path>         Path to SQLite database (env: OSCILLOBP_DB_PATH, default: oscillobp.sqlite3)")
	fmt.Println("  -device <url>      Cuff controller start URL (env: OSCILLOBP_DEVICE_URL)")
	fmt.Println("  -rate <hz>         Sampling rate of recordings without one (default: 100)")
	fmt.Println("\nUsage:")
	fmt.Println("  oscillobp [global-options] analyze <recording.json|recording.csv> [-rate <hz>] [-detail]")
	fmt.Println("  oscillobp [global-options] simulate [-out <file>] [-sbp 120 -map 100 -dbp 80 -pulse 72 -noise 0.1 ...]")
	fmt.Println("  oscillobp [global-options] measure [-patient <name>]")
	fmt.Println("  oscillobp [global-options] list [-patient <name>] [-limit <n>]")
	fmt.Println("  oscillobp [global-options] averages [-patient <name>] [-daily -period week|month -date YYYY-MM-DD]")
	fmt.Println("  oscillobp [global-options] export [-patient <name>] [-out <file.csv>]")
	fmt.Println("  oscillobp [global-options] delete <measurement_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Simulate a 140/90 subject and analyse it")
	fmt.Println("  oscillobp simulate -sbp 140 -map 115 -dbp 90 -out rec.json")
	fmt.Println("  oscillobp analyze rec.json -detail")
}
