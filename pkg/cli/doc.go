/*
Package cli provides output formatting, progress display, error types and
signal handling for the chaoslab command.

Output Formatting:

Results are rendered as text, JSON, YAML or CSV. Values implementing Table
render as aligned columns in text mode and as rows in CSV mode:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, result)

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(total.Milliseconds())
	progress.Update(elapsed.Milliseconds(), "capturing")
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
