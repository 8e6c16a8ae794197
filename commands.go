package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/log"
)

// runCommand handles the administrative sub-commands given after the flags.
func runCommand(db *sql.DB, args []string) error {
	switch args[0] {
	case "useradd":
		if len(args) != 3 {
			return fmt.Errorf("usage: useradd <username> <password>")
		}
		u, err := database.NewUsers(db).Create(context.Background(), args[1], args[2])
		if err != nil {
			return err
		}
		log.WithField("id", u.ID).Infof("created owner %q", u.Username)
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}
