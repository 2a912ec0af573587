package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docverify/cmd/docverify/commands"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	ctx := kong.Parse(cli,
		kong.Name("docverify"),
		kong.Description("Verify cross-references and content constraints across a documentation corpus."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String(), "config_path": commands.DefaultConfigPath},
		kong.Bind(global),
	)
	err := ctx.Run(cli)
	os.Exit(exitCode(err, cli.Verbose))
}

func exitCode(err error, verbose bool) int {
	if err == nil {
		return derrors.ExitOK
	}
	// The report has already been printed.
	if errors.Is(err, commands.ErrVerdictFailed) {
		return derrors.ExitVerdictFailed
	}
	return derrors.NewCLIErrorAdapter(verbose, nil).Report(os.Stderr, err)
}
