package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	appfs "github.com/trezcool/thesisflow/fs"
	"github.com/trezcool/thesisflow/storage/database"
)

var (
	gooseRunFunc     = goose.RunFS        // mockable
	gooseVersionFunc = goose.GetDBVersion // mockable
)

// schemaCommands move the schema; the version it ends up at is reported after them.
var schemaCommands = map[string]bool{
	"up": true, "up-by-one": true, "up-to": true,
	"down": true, "down-to": true, "redo": true, "reset": true,
}

// migrate runs a goose command against the embedded thesis & supervision request migrations.
func (cli *commandLine) migrate(args []string) error {
	command, arguments := args[0], args[1:]
	if err := gooseRunFunc(command, cli.db, appfs.FS, database.MigrationsDir, arguments...); err != nil {
		return err
	}
	if !schemaCommands[command] {
		return nil
	}

	version, err := gooseVersionFunc(cli.db)
	if err != nil {
		return errors.Wrap(err, "getting schema version")
	}
	fmt.Printf("schema at version %d\n", version)
	return nil
}
