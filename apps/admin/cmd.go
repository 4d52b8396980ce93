package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	backend *apiclient.Client
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME - sign in against the backend and print the session it would open")
	fmt.Fprintln(cli.out, "  whoami -token TOKEN      - print the identity the backend reports for a token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginCmd.SetOutput(cli.out)
	loginUname := loginCmd.String("username", "", "The user's username. The password will be prompted next.")

	whoamiCmd := flag.NewFlagSet("whoami", flag.ContinueOnError)
	whoamiCmd.SetOutput(cli.out)
	whoamiToken := whoamiCmd.String("token", "", "A bearer token issued by the backend.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		uname := core.CleanString(*loginUname)
		if uname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(uname, string(pwd))
	case "whoami":
		if err := whoamiCmd.Parse(args[2:]); err != nil {
			return err
		}
		if core.CleanString(*whoamiToken) == "" {
			whoamiCmd.Usage()
			return errHelp
		}
		return cli.whoami(core.CleanString(*whoamiToken))
	default:
		cli.printUsage()
		return errHelp
	}
}

// login runs the same exchange as the web sign in: token first, then identity.
func (cli *commandLine) login(uname, pwd string) error {
	ctx := context.Background()
	result, err := cli.backend.Login(ctx, uname, pwd)
	if err != nil {
		return err
	}
	info, err := cli.backend.WithToken(result.Token).UserInfo(ctx)
	if err != nil {
		return err
	}
	cli.printIdentity(info)
	fmt.Fprintf(cli.out, "token:    %s\n", result.Token)
	return nil
}

func (cli *commandLine) whoami(token string) error {
	info, err := cli.backend.WithToken(token).UserInfo(context.Background())
	if err != nil {
		return err
	}
	cli.printIdentity(info)
	return nil
}

func (cli *commandLine) printIdentity(info user.Info) {
	role := info.ParsedRole()
	fmt.Fprintf(cli.out, "username: %s\n", info.Username)
	fmt.Fprintf(cli.out, "name:     %s\n", info.DisplayName())
	fmt.Fprintf(cli.out, "role:     %s\n", role)
	fmt.Fprintf(cli.out, "home:     %s\n", role.HomePath())
}
