package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sql.DB
	usrRepo    user.Repository
	thesisSvc  thesis.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-admin|-tutor|-student] - add or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  confirmregistration -thesis ID - confirm the registration of a registered thesis")
	fmt.Println("  remind [-older-than DURATION] - remind tutors of pending supervision requests")
}

// promptPassword reads a password without echoing it; errHelp if none was typed.
func promptPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all admin roles.")
	addUserTutor := addUserCmd.Bool("tutor", false, "Grant the tutor role.")
	addUserStudent := addUserCmd.Bool("student", false, "Grant the student role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	confirmCmd := flag.NewFlagSet("confirmregistration", flag.ContinueOnError)
	confirmThesis := confirmCmd.String("thesis", "", "The ID of the registered thesis.")

	remindCmd := flag.NewFlagSet("remind", flag.ContinueOnError)
	remindOlderThan := remindCmd.Duration("older-than", cli.conf.Reminder.PendingAfter, "Remind requests pending for longer than this.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		var roles []string
		switch {
		case *addUserAdmin:
			roles = user.AdminRoles
		case *addUserTutor:
			roles = user.TutorRoles
		case *addUserStudent:
			roles = user.StudentRoles
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, roles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "confirmregistration":
		if err := confirmCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *confirmThesis == "" {
			confirmCmd.Usage()
			return errHelp
		}
		return cli.confirmRegistration(*confirmThesis)

	case "remind":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *remindOlderThan <= 0 {
			remindCmd.Usage()
			return errHelp
		}
		return cli.remind(*remindOlderThan)

	default:
		cli.printUsage()
		return errHelp
	}
}
